package reorg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/internal/core/chain/index"
	"github.com/obelisk/v1/internal/core/chain/testutil"
	"github.com/obelisk/v1/internal/core/chain/undo"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/writegate"
	"github.com/obelisk/v1/pkg/types"
)

type testEnv struct {
	metaStore *index.Store
	undoStore *undo.Store
	ledger    *testutil.FakeLedger
	gate      writegate.WriteGate
	r         *Reorganizer

	genesis *types.BlockMetadata
}

func newTestEnv(t *testing.T, maxDepth uint32) *testEnv {
	t.Helper()

	kv := testutil.NewMemoryKV(t)
	metaStore, err := index.NewStore(kv, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = metaStore.Close() })
	undoStore := undo.NewStore(kv, nil)
	fakeLedger := testutil.NewFakeLedger()
	gate := writegate.New()

	r, err := NewReorganizer(metaStore, undoStore, fakeLedger, gate, maxDepth, nil)
	require.NoError(t, err)

	env := &testEnv{
		metaStore: metaStore,
		undoStore: undoStore,
		ledger:    fakeLedger,
		gate:      gate,
		r:         r,
	}

	ctx := context.Background()
	genesisBlock := testutil.MakeBlock(types.ZeroHash, 0, 0)
	env.genesis, err = metaStore.Insert(ctx, genesisBlock.Hash(), types.ZeroHash, testutil.BlockWork(genesisBlock))
	require.NoError(t, err)
	require.NoError(t, metaStore.PutBlock(ctx, genesisBlock))
	require.NoError(t, metaStore.ExtendMainChain(ctx, env.genesis))
	return env
}

// insertBranch 在 parent 之后接入 n 个区块
//
// asMain 为真时同步更新主链索引并写入回滚记录（模拟这些区块
// 曾经过账本应用）。返回各区块的元数据，升序排列。
func (env *testEnv) insertBranch(t *testing.T, parent *types.BlockMetadata, n int, nonce uint64, asMain bool) []*types.BlockMetadata {
	t.Helper()
	ctx := context.Background()

	var metas []*types.BlockMetadata
	parentHash := parent.Hash
	height := parent.Height
	for i := 0; i < n; i++ {
		height++
		block := testutil.MakeBlock(parentHash, height, nonce)
		meta, err := env.metaStore.Insert(ctx, block.Hash(), parentHash, testutil.BlockWork(block))
		require.NoError(t, err)
		require.NoError(t, env.metaStore.PutBlock(ctx, block))
		if asMain {
			require.NoError(t, env.metaStore.ExtendMainChain(ctx, meta))
			hash := block.Hash()
			require.NoError(t, env.undoStore.Put(ctx, &types.UndoRecord{
				BlockHash: hash,
				Height:    height,
				Data:      hash[:],
			}))
		}
		metas = append(metas, meta)
		parentHash = meta.Hash
	}
	return metas
}

func hashSeq(metas ...*types.BlockMetadata) []types.Hash {
	out := make([]types.Hash, 0, len(metas))
	for _, meta := range metas {
		out = append(out, meta.Hash)
	}
	return out
}

func TestReorganizer_SwitchesToHeavierBranch(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()

	// 主链 G <- A1 <- A2 <- A3；侧链 G <- B1 <- B2 <- B3 <- B4（更重）
	aChain := env.insertBranch(t, env.genesis, 3, 10, true)
	bChain := env.insertBranch(t, env.genesis, 4, 20, false)

	summary, err := env.r.Execute(ctx, bChain[3].Hash)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, uint64(0), summary.ForkHeight)
	assert.Equal(t, aChain[2].Hash, summary.OldTip)
	assert.Equal(t, bChain[3].Hash, summary.NewTip)
	// 断开自旧链尖逆序，接入自分叉点正序
	assert.Equal(t, hashSeq(aChain[2], aChain[1], aChain[0]), summary.Disconnected)
	assert.Equal(t, hashSeq(bChain[0], bChain[1], bChain[2], bChain[3]), summary.Connected)

	// 账本调用序列与摘要一致
	assert.Equal(t, summary.Disconnected, env.ledger.UndoneSeq())
	assert.Equal(t, summary.Connected, env.ledger.AppliedSeq())

	// 主链索引已切换
	tip, err := env.metaStore.Tip(ctx)
	require.NoError(t, err)
	assert.Equal(t, bChain[3].Hash, tip.Hash)
	assert.Equal(t, uint64(4), tip.Height)

	for _, meta := range bChain {
		onMain, err := env.metaStore.IsOnMainChain(ctx, meta.Hash)
		require.NoError(t, err)
		assert.True(t, onMain)
	}
	for _, meta := range aChain {
		onMain, err := env.metaStore.IsOnMainChain(ctx, meta.Hash)
		require.NoError(t, err)
		assert.False(t, onMain)
	}

	// 新链回滚记录已持久化，旧链记录保留（退役窗口内）
	for _, meta := range bChain {
		record, err := env.undoStore.Get(ctx, meta.Hash)
		require.NoError(t, err)
		assert.NotNil(t, record)
	}
	for _, meta := range aChain {
		record, err := env.undoStore.Get(ctx, meta.Hash)
		require.NoError(t, err)
		assert.NotNil(t, record)
	}

	assert.False(t, env.gate.IsReadOnly())
}

func TestReorganizer_AbortRestoresOldChain(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()

	aChain := env.insertBranch(t, env.genesis, 3, 10, true)
	bChain := env.insertBranch(t, env.genesis, 4, 20, false)

	// B3 应用失败（只有全量上下文才能发现的双花之类）
	applyErr := errors.New("double spend")
	env.ledger.FailApplyOn(bChain[2].Hash, applyErr)

	_, err := env.r.Execute(ctx, bChain[3].Hash)
	require.Error(t, err)

	var reorgErr *Error
	require.ErrorAs(t, err, &reorgErr)
	assert.Equal(t, ClassAborted, reorgErr.Class)
	assert.Equal(t, PhaseConnect, reorgErr.Phase)
	assert.ErrorIs(t, err, applyErr)

	// 账本轨迹：断开 A3..A1，接入 B1、B2 后失败，
	// 恢复时撤销 B2、B1，再正序重放 A1..A3
	assert.Equal(t, hashSeq(aChain[2], aChain[1], aChain[0], bChain[1], bChain[0]), env.ledger.UndoneSeq())
	assert.Equal(t, hashSeq(bChain[0], bChain[1], aChain[0], aChain[1], aChain[2]), env.ledger.AppliedSeq())

	// 主链索引未被触碰
	tip, err := env.metaStore.Tip(ctx)
	require.NoError(t, err)
	assert.Equal(t, aChain[2].Hash, tip.Hash)

	onMain, err := env.metaStore.IsOnMainChain(ctx, aChain[2].Hash)
	require.NoError(t, err)
	assert.True(t, onMain)

	// 重放产生的回滚记录已写回
	for _, meta := range aChain {
		record, err := env.undoStore.Get(ctx, meta.Hash)
		require.NoError(t, err)
		assert.NotNil(t, record)
	}

	assert.False(t, env.gate.IsReadOnly())
}

func TestReorganizer_UndoFailureHaltsWrites(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()

	aChain := env.insertBranch(t, env.genesis, 3, 10, true)
	bChain := env.insertBranch(t, env.genesis, 4, 20, false)

	undoErr := errors.New("undo data corrupt")
	env.ledger.FailUndoOn(aChain[1].Hash, undoErr)

	_, err := env.r.Execute(ctx, bChain[3].Hash)
	require.Error(t, err)

	var reorgErr *Error
	require.ErrorAs(t, err, &reorgErr)
	assert.Equal(t, ClassFatal, reorgErr.Class)
	assert.Equal(t, PhaseDisconnect, reorgErr.Phase)

	// 致命错误触发写门闸
	assert.True(t, env.gate.IsReadOnly())
	assert.ErrorIs(t, env.gate.Reason(), undoErr)
}

func TestReorganizer_DepthBound(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	// 需要断开 3 个区块，超过上限 2
	env.insertBranch(t, env.genesis, 3, 10, true)
	bChain := env.insertBranch(t, env.genesis, 4, 20, false)

	_, err := env.r.Execute(ctx, bChain[3].Hash)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrReorgDepthExceeded)

	var reorgErr *Error
	require.ErrorAs(t, err, &reorgErr)
	assert.Equal(t, ClassRejected, reorgErr.Class)

	// 被拒绝的重组不触碰账本
	assert.Empty(t, env.ledger.AppliedSeq())
	assert.Empty(t, env.ledger.UndoneSeq())
	assert.False(t, env.gate.IsReadOnly())
}

func TestReorganizer_MissingUndoRecordRejected(t *testing.T) {
	env := newTestEnv(t, 100)
	ctx := context.Background()

	aChain := env.insertBranch(t, env.genesis, 2, 10, true)
	bChain := env.insertBranch(t, env.genesis, 3, 20, false)

	// 删除旧链某块的回滚记录：预检阶段必须拒绝且不触碰账本
	require.NoError(t, env.undoStore.Delete(ctx, aChain[0].Hash))

	_, err := env.r.Execute(ctx, bChain[2].Hash)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCorruptedState)

	var reorgErr *Error
	require.ErrorAs(t, err, &reorgErr)
	assert.Equal(t, ClassRejected, reorgErr.Class)
	assert.Equal(t, PhasePrepare, reorgErr.Phase)

	assert.Empty(t, env.ledger.AppliedSeq())
	assert.Empty(t, env.ledger.UndoneSeq())
}
