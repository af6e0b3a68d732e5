// Package testutil 提供链核心测试的公共脚手架
//
// - 内存 KVStore：基于 BadgerDB 内存模式，测试结束自动关闭
// - 区块构造器：产出哈希互不相同、父子关系确定的测试区块
// - 账本/验证器桩：记录调用序列，支持注入失败点
package testutil

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	badgerconfig "github.com/obelisk/v1/internal/config/storage/badger"
	"github.com/obelisk/v1/internal/core/chain/work"
	badgerstore "github.com/obelisk/v1/internal/core/infrastructure/storage/badger"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/interfaces/ledger"
	"github.com/obelisk/v1/pkg/types"
)

// 编译时检查
var (
	_ ledger.Ledger         = (*FakeLedger)(nil)
	_ ledger.BlockValidator = (*FakeValidator)(nil)
)

// EasyBits 测试用压缩难度（目标极大，工作量为正的最小档）
const EasyBits uint32 = 0x207fffff

// NewMemoryKV 创建内存模式的 BadgerDB 存储，测试结束自动关闭
func NewMemoryKV(t *testing.T) storage.KVStore {
	t.Helper()

	cfg := badgerconfig.NewFromOptions(&badgerconfig.BadgerOptions{
		InMemory:     true,
		MemTableSize: 64 << 20,
	})
	kv, err := badgerstore.New(cfg, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

// MakeBlock 构造一个测试区块
//
// nonce 用于在同一父区块下制造互不相同的兄弟区块。
func MakeBlock(parent types.Hash, height uint64, nonce uint64) *types.Block {
	return MakeBlockBits(parent, height, nonce, EasyBits)
}

// MakeBlockBits 构造指定难度位的测试区块
func MakeBlockBits(parent types.Hash, height uint64, nonce uint64, bits uint32) *types.Block {
	return &types.Block{
		Header: &types.BlockHeader{
			Version:      1,
			Height:       height,
			PreviousHash: parent,
			Timestamp:    1735689600 + int64(height)*600,
			Bits:         bits,
			Nonce:        nonce,
		},
	}
}

// MakeChain 在 parent 之后构造 n 个首尾相连的区块
func MakeChain(parent *types.Block, n int, nonce uint64) []*types.Block {
	blocks := make([]*types.Block, 0, n)
	prevHash := parent.Header.BlockHash()
	height := parent.Header.Height
	for i := 0; i < n; i++ {
		height++
		block := MakeBlock(prevHash, height, nonce)
		blocks = append(blocks, block)
		prevHash = block.Header.BlockHash()
	}
	return blocks
}

// BlockWork 按区块头难度位计算单块工作量
func BlockWork(block *types.Block) *big.Int {
	return work.CalcWork(block.Header.Bits)
}

// FakeLedger 账本桩
//
// 记录 Apply/Undo 的调用序列，可通过 FailApplyOn/FailUndoOn
// 注入指定区块上的失败。
type FakeLedger struct {
	mu sync.Mutex

	Applied   []types.Hash
	Undone    []types.Hash
	failApply map[types.Hash]error
	failUndo  map[types.Hash]error
}

// NewFakeLedger 创建账本桩
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		failApply: make(map[types.Hash]error),
		failUndo:  make(map[types.Hash]error),
	}
}

// FailApplyOn 令指定区块的 Apply 返回 err
func (l *FakeLedger) FailApplyOn(hash types.Hash, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failApply[hash] = err
}

// FailUndoOn 令指定区块的 Undo 返回 err
func (l *FakeLedger) FailUndoOn(hash types.Hash, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failUndo[hash] = err
}

// Apply 应用区块并返回携带区块哈希的回滚记录
func (l *FakeLedger) Apply(_ context.Context, block *types.Block) (*types.UndoRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := block.Header.BlockHash()
	if err := l.failApply[hash]; err != nil {
		return nil, err
	}
	l.Applied = append(l.Applied, hash)
	return &types.UndoRecord{
		BlockHash: hash,
		Height:    block.Header.Height,
		Data:      hash[:],
	}, nil
}

// Undo 按回滚记录撤销区块
func (l *FakeLedger) Undo(_ context.Context, block *types.Block, _ *types.UndoRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := block.Header.BlockHash()
	if err := l.failUndo[hash]; err != nil {
		return err
	}
	l.Undone = append(l.Undone, hash)
	return nil
}

// AppliedSeq 返回 Apply 调用序列的副本
func (l *FakeLedger) AppliedSeq() []types.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Hash, len(l.Applied))
	copy(out, l.Applied)
	return out
}

// UndoneSeq 返回 Undo 调用序列的副本
func (l *FakeLedger) UndoneSeq() []types.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Hash, len(l.Undone))
	copy(out, l.Undone)
	return out
}

// FakeValidator 验证器桩
//
// 按区块头难度位计算工作量；RejectOn 注入的区块返回验证失败。
type FakeValidator struct {
	mu     sync.Mutex
	reject map[types.Hash]error
}

// NewFakeValidator 创建验证器桩
func NewFakeValidator() *FakeValidator {
	return &FakeValidator{reject: make(map[types.Hash]error)}
}

// RejectOn 令指定区块验证失败
func (v *FakeValidator) RejectOn(hash types.Hash, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reject[hash] = err
}

// Validate 返回区块的单块工作量
func (v *FakeValidator) Validate(_ context.Context, block *types.Block, _ *types.BlockMetadata) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.reject[block.Header.BlockHash()]; err != nil {
		return nil, err
	}
	return work.CalcWork(block.Header.Bits), nil
}
