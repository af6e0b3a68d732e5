package badger

// BadgerDB配置默认值
const (
	// defaultPath 默认数据目录
	defaultPath = "./data/badger"

	// defaultInMemory 默认使用磁盘模式
	defaultInMemory = false

	// defaultSyncWrites 默认关闭同步写入
	// 原因：链状态核心的关键变更都在显式事务中提交，
	// 同步写入带来的吞吐损失远大于崩溃窗口收益
	defaultSyncWrites = false

	// defaultMemTableSize 内存表大小设为64MB
	defaultMemTableSize int64 = 64 << 20
)
