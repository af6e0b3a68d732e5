// Package chain 提供链状态核心的配置选项
package chain

import (
	"fmt"
	"time"
)

// ChainOptions 链状态核心配置选项
//
// 采用扁平结构，按关注点分组：重组限制、孤块池、回滚记录保留、创世参数。
type ChainOptions struct {
	// === 重组限制 ===

	// MaxReorgDepth 重组时允许的最大回溯深度（分叉点查找与断开回滚共用）。
	// 候选分支的分叉点超出该深度时，重组被拒绝且状态不变，
	// 防御恶意深分叉造成的资源耗尽。
	MaxReorgDepth uint32 `json:"max_reorg_depth"`

	// === 孤块池 ===

	// OrphanPoolCapacity 孤块池最大容量。超出时按策略逐出：
	// 优先逐出高度距当前主链最远、且最早进入的条目。
	OrphanPoolCapacity int `json:"orphan_pool_capacity"`

	// OrphanTTL 孤块最长等待时间，超时条目在周期清理中移除。
	OrphanTTL time.Duration `json:"orphan_ttl"`

	// OrphanEvictInterval 周期清理间隔。清理与写入路径解耦，
	// 避免在热插入路径上增加延迟。
	OrphanEvictInterval time.Duration `json:"orphan_evict_interval"`

	// === 回滚记录保留 ===

	// UndoKeepWindow 已断开分支的回滚记录保留窗口（相对当前链尖的高度差）。
	// 窗口内的记录保留，使分支来回切换（flapping）的代价尽量低；
	// 主链上的回滚记录不受此窗口限制（裁剪策略不在本核心范围内）。
	UndoKeepWindow uint64 `json:"undo_keep_window"`

	// === 创世参数 ===

	// Genesis 创世区块头参数。节点首次启动时由链状态核心落库。
	Genesis GenesisOptions `json:"genesis"`
}

// GenesisOptions 创世区块头参数
type GenesisOptions struct {
	Version   uint32 `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Bits      uint32 `json:"bits"`
	Nonce     uint64 `json:"nonce"`
}

// Config 链配置实现
type Config struct {
	options *ChainOptions
}

// New 创建链配置实现
//
// userConfig 非空时覆盖默认值（只接受 *ChainOptions）。
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultChainOptions()

	if userConfig != nil {
		// 注意 (*ChainOptions)(nil) 装入 interface{} 后不等于 nil
		if opts, ok := userConfig.(*ChainOptions); ok && opts != nil {
			applyUserChainConfig(defaultOptions, opts)
		}
	}

	return &Config{options: defaultOptions}
}

// GetOptions 返回配置选项
func (c *Config) GetOptions() *ChainOptions {
	return c.options
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	o := c.options
	if o.MaxReorgDepth == 0 {
		return fmt.Errorf("max_reorg_depth 必须大于 0")
	}
	if o.OrphanPoolCapacity <= 0 {
		return fmt.Errorf("orphan_pool_capacity 必须大于 0")
	}
	if o.OrphanTTL <= 0 {
		return fmt.Errorf("orphan_ttl 必须大于 0")
	}
	if o.OrphanEvictInterval <= 0 {
		return fmt.Errorf("orphan_evict_interval 必须大于 0")
	}
	return nil
}

// createDefaultChainOptions 创建默认链配置
func createDefaultChainOptions() *ChainOptions {
	return &ChainOptions{
		MaxReorgDepth:       defaultMaxReorgDepth,
		OrphanPoolCapacity:  defaultOrphanPoolCapacity,
		OrphanTTL:           defaultOrphanTTL,
		OrphanEvictInterval: defaultOrphanEvictInterval,
		UndoKeepWindow:      defaultUndoKeepWindow,
		Genesis: GenesisOptions{
			Version:   defaultGenesisVersion,
			Timestamp: defaultGenesisTimestamp,
			Bits:      defaultGenesisBits,
			Nonce:     defaultGenesisNonce,
		},
	}
}

// applyUserChainConfig 应用用户配置覆盖默认值（零值字段保持默认）
func applyUserChainConfig(dst, src *ChainOptions) {
	if src.MaxReorgDepth > 0 {
		dst.MaxReorgDepth = src.MaxReorgDepth
	}
	if src.OrphanPoolCapacity > 0 {
		dst.OrphanPoolCapacity = src.OrphanPoolCapacity
	}
	if src.OrphanTTL > 0 {
		dst.OrphanTTL = src.OrphanTTL
	}
	if src.OrphanEvictInterval > 0 {
		dst.OrphanEvictInterval = src.OrphanEvictInterval
	}
	if src.UndoKeepWindow > 0 {
		dst.UndoKeepWindow = src.UndoKeepWindow
	}
	if src.Genesis != (GenesisOptions{}) {
		dst.Genesis = src.Genesis
	}
}
