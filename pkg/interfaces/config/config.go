// Package config 提供系统配置提供者的接口定义
//
// ⚙️ **配置提供者 (Configuration Provider)**
//
// 本文件定义了系统的配置访问接口：各模块依赖此接口获取
// 自己关心的配置分组，而不直接读取配置文件。
package config

import (
	chainconfig "github.com/obelisk/v1/internal/config/chain"
	logconfig "github.com/obelisk/v1/internal/config/log"
	badgerconfig "github.com/obelisk/v1/internal/config/storage/badger"
)

// Provider 配置提供者接口
type Provider interface {
	// GetChain 获取链状态核心配置
	GetChain() *chainconfig.ChainOptions

	// GetLog 获取日志配置
	GetLog() *logconfig.LogOptions

	// GetBadger 获取BadgerDB存储配置
	GetBadger() *badgerconfig.BadgerOptions

	// GetEnvironment 获取运行环境标识（development / production / test）
	GetEnvironment() string
}
