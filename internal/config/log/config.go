// Package log 提供日志模块的配置选项
package log

// LogOptions 日志配置选项
// 专注于基础设施核心功能的简化配置
type LogOptions struct {
	// === 基础配置 ===
	Level     string `json:"level"`      // 日志级别 (debug, info, warn, error, fatal)
	ToConsole bool   `json:"to_console"` // 是否输出到控制台
	FilePath  string `json:"file_path"`  // 日志文件路径（为空时不写文件）

	// === 基础轮转配置 ===
	MaxSize    int  `json:"max_size"`    // 单个日志文件最大大小(MB)
	MaxBackups int  `json:"max_backups"` // 最大备份文件数
	MaxAge     int  `json:"max_age"`     // 日志文件最大保留天数
	Compress   bool `json:"compress"`    // 是否压缩历史日志文件

	// === 调试配置 ===
	EnableCaller bool `json:"enable_caller"` // 是否启用调用者信息
}

// Config 日志配置实现
type Config struct {
	options *LogOptions
}

// New 创建日志配置实现
func New(userConfig interface{}) *Config {
	defaultOptions := createDefaultLogOptions()

	if userConfig != nil {
		// 注意 (*LogOptions)(nil) 装入 interface{} 后不等于 nil
		if opts, ok := userConfig.(*LogOptions); ok && opts != nil {
			applyUserLogConfig(defaultOptions, opts)
		}
	}

	return &Config{options: defaultOptions}
}

// GetOptions 返回配置选项
func (c *Config) GetOptions() *LogOptions {
	return c.options
}

// createDefaultLogOptions 创建默认日志配置
func createDefaultLogOptions() *LogOptions {
	return &LogOptions{
		Level:        defaultLogLevel,
		ToConsole:    defaultToConsole,
		FilePath:     defaultFilePath,
		MaxSize:      defaultMaxSize,
		MaxBackups:   defaultMaxBackups,
		MaxAge:       defaultMaxAge,
		Compress:     defaultCompress,
		EnableCaller: defaultEnableCaller,
	}
}

// applyUserLogConfig 应用用户配置覆盖默认值
func applyUserLogConfig(dst, src *LogOptions) {
	if src.Level != "" {
		dst.Level = src.Level
	}
	dst.ToConsole = src.ToConsole
	if src.FilePath != "" {
		dst.FilePath = src.FilePath
	}
	if src.MaxSize > 0 {
		dst.MaxSize = src.MaxSize
	}
	if src.MaxBackups > 0 {
		dst.MaxBackups = src.MaxBackups
	}
	if src.MaxAge > 0 {
		dst.MaxAge = src.MaxAge
	}
	dst.Compress = src.Compress
	dst.EnableCaller = src.EnableCaller
}
