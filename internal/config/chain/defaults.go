package chain

import "time"

// 链状态核心配置默认值
const (
	// defaultMaxReorgDepth 最大重组深度设为100
	// 原因：100个区块覆盖了真实网络中可观测的最深自然分叉，
	// 超过该深度的分叉几乎必然是攻击或长时间分区，应由运维介入
	defaultMaxReorgDepth uint32 = 100

	// defaultOrphanPoolCapacity 孤块池容量设为100
	// 原因：正常同步中同时等待父块的区块数量很少，100 已留足余量；
	// 容量上限同时限制了恶意孤块泛洪的内存占用
	defaultOrphanPoolCapacity = 100

	// defaultOrphanTTL 孤块最长等待时间设为20分钟
	// 原因：父块在若干个出块周期内仍未到达，说明该孤块大概率
	// 来自已被淘汰的分支或恶意构造，继续持有没有价值
	defaultOrphanTTL = 20 * time.Minute

	// defaultOrphanEvictInterval 周期清理间隔设为5分钟
	// 原因：清理与插入路径解耦；5分钟的粒度对 20 分钟的 TTL 足够精细
	defaultOrphanEvictInterval = 5 * time.Minute

	// defaultUndoKeepWindow 已断开分支回滚记录保留窗口设为32
	// 原因：分支抖动（flapping）通常发生在链尖附近的浅层分叉，
	// 32 个高度的窗口覆盖绝大多数抖动场景
	defaultUndoKeepWindow uint64 = 32
)

// 创世区块头默认参数
const (
	defaultGenesisVersion uint32 = 1

	// defaultGenesisTimestamp 创世时间戳（2025-01-01T00:00:00Z）
	defaultGenesisTimestamp int64 = 1735689600

	// defaultGenesisBits 创世压缩难度目标（最低难度）
	defaultGenesisBits uint32 = 0x1d00ffff

	defaultGenesisNonce uint64 = 0
)
