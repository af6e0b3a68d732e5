// Package types provides blockchain type definitions.
package types

import "math/big"

// ChainInfo 区块链综合信息（跨模块数据结构）
//
// 用于一次性返回链的关键状态数据，便于上层聚合查询与展示。
type ChainInfo struct {
	// 基础状态
	Height        uint64 `json:"height"`          // 当前主链高度
	BestBlockHash Hash   `json:"best_block_hash"` // 主链链尖哈希

	// CumulativeWork 主链累积工作量（十进制字符串便于 JSON 输出）
	CumulativeWork *big.Int `json:"cumulative_work"`

	// 系统状态
	IsReady bool   `json:"is_ready"` // 系统是否就绪可用
	Status  string `json:"status"`   // 链状态详细描述
	// Status可能的值：
	// - "normal": 正常运行状态，可接收区块
	// - "reorganizing": 正在执行链重组，写入串行化中
	// - "halted": 检测到不可恢复的状态损坏，已停止链写入

	// 分支信息
	BranchCount int `json:"branch_count"` // 当前已知分支（链尖）数量
	OrphanCount int `json:"orphan_count"` // 孤块池当前大小

	// 时间信息
	LastBlockTime int64 `json:"last_block_time"` // 链尖区块时间戳
}

// TipInfo 链尖信息（CurrentTip 查询结果）
type TipInfo struct {
	Hash   Hash     `json:"hash"`
	Height uint64   `json:"height"`
	Work   *big.Int `json:"work"`
}

// BranchTip 分支链尖（GetBranchTips 查询结果的元素）
type BranchTip struct {
	Hash Hash     `json:"hash"`
	Work *big.Int `json:"work"`

	// IsMain 该分支是否为当前主链
	IsMain bool `json:"is_main"`
}

// SubmitStatus 区块提交结果状态
type SubmitStatus string

const (
	// SubmitStatusConnected 区块已连接为主链新链尖
	SubmitStatusConnected SubmitStatus = "connected"

	// SubmitStatusReorganized 区块触发了链重组并成为新主链链尖
	SubmitStatusReorganized SubmitStatus = "reorganized"

	// SubmitStatusSideChain 区块已记录为侧链（工作量未超过主链，非错误）
	SubmitStatusSideChain SubmitStatus = "side_chain"

	// SubmitStatusOrphaned 父区块未知，区块进入孤块池等待
	SubmitStatusOrphaned SubmitStatus = "orphaned"

	// SubmitStatusDuplicate 区块已存在，本次提交为幂等空操作
	SubmitStatusDuplicate SubmitStatus = "duplicate"
)

// SubmitResult 区块提交结果
type SubmitResult struct {
	Status SubmitStatus `json:"status"`
	Hash   Hash         `json:"hash"`
	Height uint64       `json:"height"`

	// Reorg 本次提交触发的重组摘要（仅 Status == reorganized 时非空）
	Reorg *ReorgSummary `json:"reorg,omitempty"`
}

// ReorgSummary 一次链重组的结果摘要
type ReorgSummary struct {
	ForkHeight   uint64 `json:"fork_height"`
	OldTip       Hash   `json:"old_tip"`
	NewTip       Hash   `json:"new_tip"`
	Disconnected []Hash `json:"disconnected"` // 自链尖向下、逆序
	Connected    []Hash `json:"connected"`    // 自分叉点向上、正序
}

// ChainMetrics 链状态统计指标（可查询快照）
type ChainMetrics struct {
	TotalBlocks    uint64  `json:"total_blocks"`    // 已接受的区块总数（含侧链）
	TotalForks     uint64  `json:"total_forks"`     // 观测到的分叉次数
	TotalReorgs    uint64  `json:"total_reorgs"`    // 已执行的重组次数
	AbortedReorgs  uint64  `json:"aborted_reorgs"`  // 中止并成功回退的重组次数
	TotalOrphans   uint64  `json:"total_orphans"`   // 进入孤块池的区块总数
	MaxReorgDepth  uint32  `json:"max_reorg_depth"` // 历史最大重组深度
	AvgReorgDepth  float64 `json:"avg_reorg_depth"` // 平均重组深度
	OrphanPoolSize int     `json:"orphan_pool_size"`
}
