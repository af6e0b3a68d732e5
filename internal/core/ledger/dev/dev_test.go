package dev

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/internal/core/chain/testutil"
	"github.com/obelisk/v1/pkg/types"
)

func TestLedger_ApplyUndoRoundTrip(t *testing.T) {
	kv := testutil.NewMemoryKV(t)
	l := NewLedger(kv, nil)
	ctx := context.Background()

	genesis := testutil.MakeBlock(types.ZeroHash, 0, 0)
	child := testutil.MakeBlock(genesis.Hash(), 1, 0)

	before, err := l.currentState(ctx)
	require.NoError(t, err)

	r1, err := l.Apply(ctx, genesis)
	require.NoError(t, err)
	r2, err := l.Apply(ctx, child)
	require.NoError(t, err)

	// 逆序撤销后状态逐字节恢复
	require.NoError(t, l.Undo(ctx, child, r2))
	require.NoError(t, l.Undo(ctx, genesis, r1))

	after, err := l.currentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLedger_UndoOutOfOrderFails(t *testing.T) {
	kv := testutil.NewMemoryKV(t)
	l := NewLedger(kv, nil)
	ctx := context.Background()

	genesis := testutil.MakeBlock(types.ZeroHash, 0, 0)
	child := testutil.MakeBlock(genesis.Hash(), 1, 0)

	r1, err := l.Apply(ctx, genesis)
	require.NoError(t, err)
	_, err = l.Apply(ctx, child)
	require.NoError(t, err)

	// 跳过 child 直接撤销 genesis：摘要校验拦截
	err = l.Undo(ctx, genesis, r1)
	assert.ErrorIs(t, err, types.ErrCorruptedState)
}

func TestValidator_StructuralChecks(t *testing.T) {
	v := NewValidator()
	ctx := context.Background()

	genesis := testutil.MakeBlock(types.ZeroHash, 0, 0)
	blockWork, err := v.Validate(ctx, genesis, nil)
	require.NoError(t, err)
	assert.Positive(t, blockWork.Sign())

	parentMeta := &types.BlockMetadata{Hash: genesis.Hash(), Height: 0}

	valid := testutil.MakeBlock(genesis.Hash(), 1, 0)
	_, err = v.Validate(ctx, valid, parentMeta)
	assert.NoError(t, err)

	// 高度不连续
	badHeight := testutil.MakeBlock(genesis.Hash(), 5, 0)
	_, err = v.Validate(ctx, badHeight, parentMeta)
	assert.Error(t, err)

	// 父哈希不匹配
	badParent := testutil.MakeBlock(valid.Hash(), 1, 0)
	_, err = v.Validate(ctx, badParent, parentMeta)
	assert.Error(t, err)

	// 难度位无效
	badBits := testutil.MakeBlockBits(genesis.Hash(), 1, 0, 0)
	_, err = v.Validate(ctx, badBits, parentMeta)
	assert.Error(t, err)
}
