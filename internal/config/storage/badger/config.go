// Package badger 提供BadgerDB存储的配置选项
package badger

// BadgerOptions BadgerDB存储配置选项
// 专注于基础设施核心功能的简化配置
type BadgerOptions struct {
	// === 基础配置 ===
	Path       string `json:"path"`        // 数据库存储路径
	InMemory   bool   `json:"in_memory"`   // 是否使用内存模式（测试/一次性运行）
	SyncWrites bool   `json:"sync_writes"` // 是否同步写入（数据安全性）

	// === 基础性能配置 ===
	MemTableSize int64 `json:"mem_table_size"` // 内存表大小
}

// Config BadgerDB配置实现
type Config struct {
	options *BadgerOptions
}

// New 创建BadgerDB配置实现
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultBadgerOptions()

	if userConfig != nil {
		// 注意 (*BadgerOptions)(nil) 装入 interface{} 后不等于 nil
		if opts, ok := userConfig.(*BadgerOptions); ok && opts != nil {
			applyUserConfig(defaultOptions, opts)
		}
	}

	return &Config{options: defaultOptions}
}

// NewFromOptions 从BadgerOptions创建配置实现
func NewFromOptions(options *BadgerOptions) *Config {
	return &Config{options: options}
}

// GetPath 返回数据库存储路径
func (c *Config) GetPath() string {
	return c.options.Path
}

// IsInMemory 返回是否使用内存模式
func (c *Config) IsInMemory() bool {
	return c.options.InMemory
}

// IsSyncWritesEnabled 返回是否启用同步写入
func (c *Config) IsSyncWritesEnabled() bool {
	return c.options.SyncWrites
}

// GetMemTableSize 返回内存表大小
func (c *Config) GetMemTableSize() int64 {
	return c.options.MemTableSize
}

// createDefaultBadgerOptions 创建默认BadgerDB配置
func createDefaultBadgerOptions() *BadgerOptions {
	return &BadgerOptions{
		Path:         defaultPath,
		InMemory:     defaultInMemory,
		SyncWrites:   defaultSyncWrites,
		MemTableSize: defaultMemTableSize,
	}
}

// applyUserConfig 应用用户配置覆盖默认值
func applyUserConfig(dst, src *BadgerOptions) {
	if src.Path != "" {
		dst.Path = src.Path
	}
	dst.InMemory = src.InMemory
	dst.SyncWrites = src.SyncWrites
	if src.MemTableSize > 0 {
		dst.MemTableSize = src.MemTableSize
	}
}
