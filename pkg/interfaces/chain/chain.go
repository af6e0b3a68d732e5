// Package chain 提供链状态核心的公共接口定义
//
// 🔗 **链状态核心 (Chain State Core)**
//
// 本文件定义链状态核心对节点其余部分暴露的窄接口，专注于：
// - 区块提交：经验证的区块进入链图的唯一入口
// - 链查询：链尖、分支、主链归属的一致性读取
// - 指标查询：分叉/重组统计快照
//
// 🎯 **设计原则**
// - 单一串行点：所有链状态变更经由 SubmitBlock 串行执行
// - 一致性读取：查询永远不会观测到进行中的重组中间态
// - 窄接口：不暴露任何内部存储或图结构细节
package chain

import (
	"context"

	"github.com/obelisk/v1/pkg/types"
)

// ChainState 链状态核心接口
//
// 所有写操作（区块插入、孤块级联、重组）相互之间互斥执行：
// 一个逻辑链变更操作完整结束后，下一个才开始；繁忙时排队而非丢弃。
// 读操作获取时间点一致的快照，绝不观测到半连接/半断开的中间状态。
type ChainState interface {
	// SubmitBlock 提交一个经过外部验证器结构校验的区块。
	//
	// 处理流程：
	// - 父区块已知：记录元数据并更新分支工作量；若该分支超过主链则触发重组
	// - 父区块未知：进入孤块池（结果为 orphaned，不算错误）
	// - 区块已存在：幂等空操作（结果为 duplicate）
	//
	// 随后递归检查孤块池中等待本区块的后代（级联附加）。
	SubmitBlock(ctx context.Context, block *types.Block) (*types.SubmitResult, error)

	// CurrentTip 返回当前主链链尖（哈希、高度、累积工作量）。
	CurrentTip(ctx context.Context) (*types.TipInfo, error)

	// GetChainInfo 返回链综合信息。
	GetChainInfo(ctx context.Context) (*types.ChainInfo, error)

	// GetBranchTips 返回所有已知分支链尖及其累积工作量。
	GetBranchTips(ctx context.Context) ([]types.BranchTip, error)

	// IsOnMainChain 判断指定区块是否位于当前主链上。
	// 区块未知时返回 types.ErrBlockNotFound。
	IsOnMainChain(ctx context.Context, hash types.Hash) (bool, error)

	// GetChainMetrics 返回分叉/重组统计指标快照。
	GetChainMetrics(ctx context.Context) (*types.ChainMetrics, error)
}
