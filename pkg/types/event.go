// Package types provides blockchain type definitions.
package types

// EventType 事件类型
type EventType string

// 链状态核心产生的事件
//
// 本核心只负责发布，不依赖任何订阅方的消费结果。
// 订阅方通常是 P2P 广播器与钱包同步服务。
const (
	// EventTypeBlockConnected 区块连接到主链
	EventTypeBlockConnected EventType = "chain.block.connected"

	// EventTypeBlockOrphaned 区块因父缺失进入孤块池
	EventTypeBlockOrphaned EventType = "chain.block.orphaned"

	// EventTypeChainReorganized 主链发生重组
	EventTypeChainReorganized EventType = "chain.reorganized"

	// EventTypeChainHalted 链写入因致命错误停止
	EventTypeChainHalted EventType = "chain.halted"
)

// BlockConnectedEvent 区块连接事件数据
type BlockConnectedEvent struct {
	Hash   Hash   `json:"hash"`
	Height uint64 `json:"height"`
}

// BlockOrphanedEvent 孤块事件数据
type BlockOrphanedEvent struct {
	Hash          Hash `json:"hash"`
	MissingParent Hash `json:"missing_parent"`
}

// ChainReorganizedEvent 链重组事件数据
//
// Disconnected 自旧链尖向下逆序排列；Connected 自分叉点向上正序排列。
type ChainReorganizedEvent struct {
	ForkHeight   uint64 `json:"fork_height"`
	OldTip       Hash   `json:"old_tip"`
	NewTip       Hash   `json:"new_tip"`
	Disconnected []Hash `json:"disconnected"`
	Connected    []Hash `json:"connected"`
}

// ChainHaltedEvent 链停写事件数据
type ChainHaltedEvent struct {
	Reason string `json:"reason"`
}
