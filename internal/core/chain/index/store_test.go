package index

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/internal/core/chain/testutil"
	"github.com/obelisk/v1/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(testutil.NewMemoryKV(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func insertGenesis(t *testing.T, store *Store) *types.BlockMetadata {
	t.Helper()
	genesis := testutil.MakeBlock(types.ZeroHash, 0, 0)
	meta, err := store.Insert(context.Background(), genesis.Header.BlockHash(), types.ZeroHash, testutil.BlockWork(genesis))
	require.NoError(t, err)
	return meta
}

func TestStore_InsertGenesis(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta := insertGenesis(t, store)
	assert.Equal(t, uint64(0), meta.Height)
	assert.True(t, meta.IsGenesis())

	hash, ok, err := store.GenesisHash(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta.Hash, hash)

	// 第二个创世区块必须被拒绝
	other := testutil.MakeBlock(types.ZeroHash, 0, 99)
	_, err = store.Insert(ctx, other.Header.BlockHash(), types.ZeroHash, testutil.BlockWork(other))
	assert.ErrorIs(t, err, types.ErrInvalidBlock)
}

func TestStore_InsertRequiresKnownParent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	insertGenesis(t, store)

	orphanParent := testutil.MakeBlock(types.ZeroHash, 5, 1)
	block := testutil.MakeBlock(orphanParent.Header.BlockHash(), 6, 0)
	_, err := store.Insert(ctx, block.Header.BlockHash(), block.Header.PreviousHash, testutil.BlockWork(block))
	assert.ErrorIs(t, err, types.ErrUnknownParent)
}

func TestStore_InsertAccumulatesWorkAndChildren(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	genesis := insertGenesis(t, store)

	child := testutil.MakeBlock(genesis.Hash, 1, 0)
	childMeta, err := store.Insert(ctx, child.Header.BlockHash(), genesis.Hash, testutil.BlockWork(child))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), childMeta.Height)
	expected := new(big.Int).Add(genesis.CumulativeWork, testutil.BlockWork(child))
	assert.Zero(t, expected.Cmp(childMeta.CumulativeWork))

	// 父记录的子列表同步更新
	parent, err := store.Get(ctx, genesis.Hash)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, []types.Hash{childMeta.Hash}, parent.Children)
}

func TestStore_InsertRejectsDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	genesis := insertGenesis(t, store)

	block := testutil.MakeBlock(genesis.Hash, 1, 0)
	_, err := store.Insert(ctx, block.Header.BlockHash(), genesis.Hash, testutil.BlockWork(block))
	require.NoError(t, err)

	_, err = store.Insert(ctx, block.Header.BlockHash(), genesis.Hash, testutil.BlockWork(block))
	assert.ErrorIs(t, err, types.ErrInvalidBlock)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	meta, err := store.Get(context.Background(), testutil.MakeBlock(types.ZeroHash, 1, 7).Header.BlockHash())
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestStore_PathToAncestor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	genesis := insertGenesis(t, store)

	// genesis <- b1 <- b2 <- b3
	blocks := testutil.MakeChain(testutil.MakeBlock(types.ZeroHash, 0, 0), 3, 0)
	parentHash := genesis.Hash
	var hashes []types.Hash
	for _, block := range blocks {
		meta, err := store.Insert(ctx, block.Header.BlockHash(), parentHash, testutil.BlockWork(block))
		require.NoError(t, err)
		hashes = append(hashes, meta.Hash)
		parentHash = meta.Hash
	}

	path, err := store.PathToAncestor(ctx, hashes[2], genesis.Hash, 0)
	require.NoError(t, err)
	require.Len(t, path, 3)
	// 回溯顺序：b3, b2, b1
	assert.Equal(t, hashes[2], path[0].Hash)
	assert.Equal(t, hashes[1], path[1].Hash)
	assert.Equal(t, hashes[0], path[2].Hash)

	// 自身到自身为空路径
	path, err = store.PathToAncestor(ctx, hashes[1], hashes[1], 0)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestStore_PathToAncestorNotAnAncestor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	genesis := insertGenesis(t, store)

	// 两个互不包含的分支
	left := testutil.MakeBlock(genesis.Hash, 1, 1)
	right := testutil.MakeBlock(genesis.Hash, 1, 2)
	leftMeta, err := store.Insert(ctx, left.Header.BlockHash(), genesis.Hash, testutil.BlockWork(left))
	require.NoError(t, err)
	rightMeta, err := store.Insert(ctx, right.Header.BlockHash(), genesis.Hash, testutil.BlockWork(right))
	require.NoError(t, err)

	_, err = store.PathToAncestor(ctx, leftMeta.Hash, rightMeta.Hash, 0)
	assert.ErrorIs(t, err, types.ErrNotAnAncestor)

	// 步数限制生效
	_, err = store.PathToAncestor(ctx, leftMeta.Hash, rightMeta.Hash, 1)
	assert.ErrorIs(t, err, types.ErrNotAnAncestor)
}

func TestStore_BlockRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	block := testutil.MakeBlock(types.ZeroHash, 3, 7)
	block.Payload = []byte("tx-bundle")
	require.NoError(t, store.PutBlock(ctx, block))

	got, err := store.GetBlock(ctx, block.Hash())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, block.Hash(), got.Hash())
	assert.Equal(t, block.Header.Height, got.Header.Height)
	assert.Equal(t, block.Payload, got.Payload)

	missing, err := store.GetBlock(ctx, testutil.MakeBlock(types.ZeroHash, 9, 9).Hash())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_MainChainIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	genesis := insertGenesis(t, store)

	// 链尖未初始化
	tip, err := store.Tip(ctx)
	require.NoError(t, err)
	assert.Nil(t, tip)

	require.NoError(t, store.ExtendMainChain(ctx, genesis))

	block := testutil.MakeBlock(genesis.Hash, 1, 0)
	meta, err := store.Insert(ctx, block.Header.BlockHash(), genesis.Hash, testutil.BlockWork(block))
	require.NoError(t, err)
	require.NoError(t, store.ExtendMainChain(ctx, meta))

	tip, err = store.Tip(ctx)
	require.NoError(t, err)
	require.NotNil(t, tip)
	assert.Equal(t, meta.Hash, tip.Hash)
	assert.Equal(t, uint64(1), tip.Height)
	assert.Zero(t, meta.CumulativeWork.Cmp(tip.Work))

	onMain, err := store.IsOnMainChain(ctx, meta.Hash)
	require.NoError(t, err)
	assert.True(t, onMain)

	hash, ok, err := store.MainChainHash(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta.Hash, hash)
}

func TestStore_SwitchMainChain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	genesis := insertGenesis(t, store)
	require.NoError(t, store.ExtendMainChain(ctx, genesis))

	// 旧链：genesis <- a1 <- a2 <- a3
	var oldMetas []*types.BlockMetadata
	parentHash := genesis.Hash
	for height := uint64(1); height <= 3; height++ {
		block := testutil.MakeBlock(parentHash, height, 10)
		meta, err := store.Insert(ctx, block.Header.BlockHash(), parentHash, testutil.BlockWork(block))
		require.NoError(t, err)
		require.NoError(t, store.ExtendMainChain(ctx, meta))
		oldMetas = append(oldMetas, meta)
		parentHash = meta.Hash
	}

	// 新链：genesis <- b1 <- b2（更短，模拟切换后遗留高度清理）
	var newMetas []*types.BlockMetadata
	parentHash = genesis.Hash
	for height := uint64(1); height <= 2; height++ {
		block := testutil.MakeBlock(parentHash, height, 20)
		meta, err := store.Insert(ctx, block.Header.BlockHash(), parentHash, testutil.BlockWork(block))
		require.NoError(t, err)
		newMetas = append(newMetas, meta)
		parentHash = meta.Hash
	}

	require.NoError(t, store.SwitchMainChain(ctx, 3, newMetas))

	tip, err := store.Tip(ctx)
	require.NoError(t, err)
	require.NotNil(t, tip)
	assert.Equal(t, newMetas[1].Hash, tip.Hash)

	// 高度 1、2 指向新链
	for i, meta := range newMetas {
		hash, ok, err := store.MainChainHash(ctx, uint64(i+1))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, meta.Hash, hash)
	}

	// 旧链尖高度的索引被清理
	_, ok, err := store.MainChainHash(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	onMain, err := store.IsOnMainChain(ctx, oldMetas[2].Hash)
	require.NoError(t, err)
	assert.False(t, onMain)
}
