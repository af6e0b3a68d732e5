// Package config 提供配置提供者的默认实现
package config

import (
	chainconfig "github.com/obelisk/v1/internal/config/chain"
	logconfig "github.com/obelisk/v1/internal/config/log"
	badgerconfig "github.com/obelisk/v1/internal/config/storage/badger"
	"github.com/obelisk/v1/pkg/interfaces/config"
)

// AppConfig 应用级用户配置（各分组均可为空，为空时使用默认值）
type AppConfig struct {
	Environment string                      `json:"environment"`
	Chain       *chainconfig.ChainOptions   `json:"chain,omitempty"`
	Log         *logconfig.LogOptions       `json:"log,omitempty"`
	Badger      *badgerconfig.BadgerOptions `json:"badger,omitempty"`
}

// Provider 实现配置提供者接口
type Provider struct {
	appConfig *AppConfig
}

// NewProvider 创建配置提供者
func NewProvider(appConfig *AppConfig) config.Provider {
	return &Provider{appConfig: appConfig}
}

// GetChain 获取链状态核心配置
func (p *Provider) GetChain() *chainconfig.ChainOptions {
	var user *chainconfig.ChainOptions
	if p.appConfig != nil {
		user = p.appConfig.Chain
	}
	if user == nil {
		return chainconfig.New(nil).GetOptions()
	}
	return chainconfig.New(user).GetOptions()
}

// GetLog 获取日志配置
func (p *Provider) GetLog() *logconfig.LogOptions {
	var user *logconfig.LogOptions
	if p.appConfig != nil {
		user = p.appConfig.Log
	}
	if user == nil {
		return logconfig.New(nil).GetOptions()
	}
	return logconfig.New(user).GetOptions()
}

// GetBadger 获取BadgerDB存储配置
func (p *Provider) GetBadger() *badgerconfig.BadgerOptions {
	var user *badgerconfig.BadgerOptions
	if p.appConfig != nil {
		user = p.appConfig.Badger
	}
	var cfg *badgerconfig.Config
	if user == nil {
		cfg = badgerconfig.New(nil)
	} else {
		cfg = badgerconfig.New(user)
	}
	return &badgerconfig.BadgerOptions{
		Path:         cfg.GetPath(),
		InMemory:     cfg.IsInMemory(),
		SyncWrites:   cfg.IsSyncWritesEnabled(),
		MemTableSize: cfg.GetMemTableSize(),
	}
}

// GetEnvironment 获取运行环境标识
func (p *Provider) GetEnvironment() string {
	if p.appConfig != nil && p.appConfig.Environment != "" {
		return p.appConfig.Environment
	}
	return "development"
}

// 编译时检查
var _ config.Provider = (*Provider)(nil)
