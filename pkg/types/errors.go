// Package types provides blockchain type definitions.
package types

import "errors"

// 链状态核心错误分类
//
// 🎯 **传播策略**：
//   - 可恢复错误（ErrInvalidBlock / ErrReorgDepthExceeded）返回给直接调用方，
//     由其执行常规处理（对等节点扣分、日志记录等）
//   - 不变量违例（ErrCorruptedState / ErrChainHalted）不在本地恢复，
//     升级为致命条件并停止链写入，掩盖它们会让错误账本被当作权威状态
var (
	// ErrUnknownParent 区块父哈希未知。
	// 调用方必须改走孤块池，而不是调用元数据插入。
	ErrUnknownParent = errors.New("unknown parent block")

	// ErrInvalidBlock 区块未通过外部验证器校验，直接拒绝且不入库。
	ErrInvalidBlock = errors.New("invalid block")

	// ErrNotAnAncestor 指定区块不是目标区块的祖先。
	ErrNotAnAncestor = errors.New("not an ancestor")

	// ErrReorgDepthExceeded 候选分支的分叉点超出配置的最大回溯深度，
	// 重组被拒绝且状态不变（防御恶意深分叉导致的资源耗尽）。
	ErrReorgDepthExceeded = errors.New("reorg depth exceeded")

	// ErrCorruptedState 检测到存储状态与链图不一致（如回滚记录缺失、
	// 账本 undo 失败）。属于致命条件，需要外部介入（从检查点重同步）。
	ErrCorruptedState = errors.New("corrupted chain state")

	// ErrChainHalted 链写入已因致命错误停止，拒绝后续变更操作。
	ErrChainHalted = errors.New("chain mutation halted")

	// ErrBlockNotFound 按哈希/高度查询的区块不存在。
	ErrBlockNotFound = errors.New("block not found")
)
