package undo

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/internal/core/chain/testutil"
	"github.com/obelisk/v1/pkg/types"
)

func hashOf(nonce uint64) types.Hash {
	return testutil.MakeBlock(types.ZeroHash, 1, nonce).Header.BlockHash()
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := NewStore(testutil.NewMemoryKV(t), nil)
	ctx := context.Background()

	record := &types.UndoRecord{
		BlockHash: hashOf(1),
		Height:    42,
		Data:      bytes.Repeat([]byte("spent-output:"), 64),
	}
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, record.BlockHash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.BlockHash, got.BlockHash)
	assert.Equal(t, uint64(42), got.Height)
	assert.Equal(t, record.Data, got.Data)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store := NewStore(testutil.NewMemoryKV(t), nil)

	got, err := store.Get(context.Background(), hashOf(1))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(testutil.NewMemoryKV(t), nil)
	ctx := context.Background()

	record := &types.UndoRecord{BlockHash: hashOf(1), Height: 1, Data: []byte("x")}
	require.NoError(t, store.Put(ctx, record))
	require.NoError(t, store.Delete(ctx, record.BlockHash))

	got, err := store.Get(ctx, record.BlockHash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_PruneRetired(t *testing.T) {
	store := NewStore(testutil.NewMemoryKV(t), nil)
	ctx := context.Background()

	// 三条退役记录：高度 10、20、30
	for i, height := range []uint64{10, 20, 30} {
		record := &types.UndoRecord{BlockHash: hashOf(uint64(i + 1)), Height: height, Data: []byte("u")}
		require.NoError(t, store.Put(ctx, record))
		require.NoError(t, store.MarkRetired(ctx, record.BlockHash, height))
	}

	pruned, err := store.PruneRetired(ctx, 25)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	// 窗口之外的记录已删除
	for _, nonce := range []uint64{1, 2} {
		got, err := store.Get(ctx, hashOf(nonce))
		require.NoError(t, err)
		assert.Nil(t, got)
	}

	// 窗口之内的记录保留
	got, err := store.Get(ctx, hashOf(3))
	require.NoError(t, err)
	assert.NotNil(t, got)

	// 再次清理无事发生
	pruned, err = store.PruneRetired(ctx, 25)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestStore_ReinstateKeepsRecord(t *testing.T) {
	store := NewStore(testutil.NewMemoryKV(t), nil)
	ctx := context.Background()

	record := &types.UndoRecord{BlockHash: hashOf(1), Height: 5, Data: []byte("u")}
	require.NoError(t, store.Put(ctx, record))
	require.NoError(t, store.MarkRetired(ctx, record.BlockHash, 5))

	// 链摆动回来：撤销退役标记后清理不再触及该记录
	require.NoError(t, store.Reinstate(ctx, record.BlockHash, 5))

	pruned, err := store.PruneRetired(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, pruned)

	got, err := store.Get(ctx, record.BlockHash)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
