// Package ledger 提供账本（UTXO 集）与区块验证器的协作接口定义
//
// 💰 **外部协作者边界 (External Collaborator Boundary)**
//
// 链状态核心不实现账本变更与区块校验的内部逻辑，只编排它们
// 发生的时机与顺序。本文件是这条边界的唯一契约：
// - Ledger：按区块为单位应用/回滚账本状态
// - BlockValidator：区块结构、签名、PoW 校验（无状态）
package ledger

import (
	"context"
	"math/big"

	"github.com/obelisk/v1/pkg/types"
)

// Ledger 账本协作者接口（UTXO 集）
//
// 🎯 **回滚契约**：
// Apply(block) 返回的 UndoRecord 必须足以精确逆转该区块造成的全部
// 账本变更——Apply 后紧接 Undo 要求账本恢复到 Apply 之前的状态，
// 字节级一致。本核心负责 UndoRecord 的持久化与按需取回。
type Ledger interface {
	// Apply 将区块的账本效果应用到当前状态，返回回滚记录。
	//
	// 失败（如只有全局上下文才能检测的双花）是可恢复条件：
	// 进行中的重组会被中止并完整回退。
	Apply(ctx context.Context, block *types.Block) (*types.UndoRecord, error)

	// Undo 使用回滚记录精确逆转区块的账本效果。
	//
	// 失败被视为致命条件：说明回滚记录或账本状态已损坏，
	// 本核心将停止后续链变更并要求外部恢复。
	Undo(ctx context.Context, block *types.Block, record *types.UndoRecord) error
}

// BlockValidator 区块验证器协作者接口（无状态）
//
// 本核心绝不重复实现结构、签名或 PoW 校验。
type BlockValidator interface {
	// Validate 校验区块相对其父区块的结构正确性，
	// 返回该区块的工作量证明值（由难度目标换算）。
	//
	// parent 为父区块元数据；创世区块校验时 parent 为 nil。
	// 校验失败返回 types.ErrInvalidBlock（可包装细节）。
	Validate(ctx context.Context, block *types.Block, parent *types.BlockMetadata) (*big.Int, error)
}
