package log

// nopLogger 空日志记录器（可选依赖未注入时的兜底）
type nopLogger struct{}

// NewNopLogger 返回一个丢弃所有输出的 Logger
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string)                  {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Info(string)                   {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warn(string)                   {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Error(string)                  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Fatal(string)                  {}
func (nopLogger) Fatalf(string, ...interface{}) {}
func (n nopLogger) With(...interface{}) Logger  { return n }
func (nopLogger) Sync() error                   { return nil }
