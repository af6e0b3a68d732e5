package orphan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/internal/core/chain/testutil"
	"github.com/obelisk/v1/pkg/types"
)

func TestPool_StoreAndTake(t *testing.T) {
	pool := NewPool(10, 20*time.Minute, nil)

	parent := testutil.MakeBlock(types.ZeroHash, 4, 0)
	parentHash := parent.Header.BlockHash()

	a := testutil.MakeBlock(parentHash, 5, 1)
	b := testutil.MakeBlock(parentHash, 5, 2)
	other := testutil.MakeBlock(a.Header.BlockHash(), 6, 0)

	assert.True(t, pool.Store(a))
	assert.True(t, pool.Store(b))
	assert.True(t, pool.Store(other))
	assert.Equal(t, 3, pool.Size())

	// 重复入池被忽略
	assert.False(t, pool.Store(a))
	assert.Equal(t, 3, pool.Size())

	taken := pool.TakeChildrenOf(parentHash)
	require.Len(t, taken, 2)
	assert.Equal(t, 1, pool.Size())
	assert.False(t, pool.Has(a.Header.BlockHash()))
	assert.False(t, pool.Has(b.Header.BlockHash()))
	assert.True(t, pool.Has(other.Header.BlockHash()))

	// 再取为空
	assert.Nil(t, pool.TakeChildrenOf(parentHash))
}

func TestPool_CapacityEvictsLowestHeight(t *testing.T) {
	pool := NewPool(2, 20*time.Minute, nil)

	parent := testutil.MakeBlock(types.ZeroHash, 0, 0)
	low := testutil.MakeBlock(parent.Header.BlockHash(), 1, 1)
	high := testutil.MakeBlock(parent.Header.BlockHash(), 9, 2)
	incoming := testutil.MakeBlock(parent.Header.BlockHash(), 7, 3)

	require.True(t, pool.Store(low))
	require.True(t, pool.Store(high))
	require.True(t, pool.Store(incoming))

	// 高度最低的条目被驱逐
	assert.Equal(t, 2, pool.Size())
	assert.False(t, pool.Has(low.Header.BlockHash()))
	assert.True(t, pool.Has(high.Header.BlockHash()))
	assert.True(t, pool.Has(incoming.Header.BlockHash()))
}

func TestPool_CapacityTieBreaksByAge(t *testing.T) {
	pool := NewPool(2, 20*time.Minute, nil)

	current := time.Unix(1_700_000_000, 0)
	pool.now = func() time.Time { return current }

	parent := testutil.MakeBlock(types.ZeroHash, 4, 0)
	first := testutil.MakeBlock(parent.Header.BlockHash(), 5, 1)
	pool.Store(first)

	current = current.Add(time.Second)
	second := testutil.MakeBlock(parent.Header.BlockHash(), 5, 2)
	pool.Store(second)

	current = current.Add(time.Second)
	third := testutil.MakeBlock(parent.Header.BlockHash(), 5, 3)
	pool.Store(third)

	// 同高度时最早入池者先被驱逐
	assert.False(t, pool.Has(first.Header.BlockHash()))
	assert.True(t, pool.Has(second.Header.BlockHash()))
	assert.True(t, pool.Has(third.Header.BlockHash()))
}

func TestPool_EvictExpired(t *testing.T) {
	pool := NewPool(10, 20*time.Minute, nil)

	current := time.Unix(1_700_000_000, 0)
	pool.now = func() time.Time { return current }

	parent := testutil.MakeBlock(types.ZeroHash, 4, 0)
	stale := testutil.MakeBlock(parent.Header.BlockHash(), 5, 1)
	pool.Store(stale)

	current = current.Add(15 * time.Minute)
	fresh := testutil.MakeBlock(parent.Header.BlockHash(), 5, 2)
	pool.Store(fresh)

	// 未过期时不清理
	assert.Empty(t, pool.EvictExpired())

	current = current.Add(10 * time.Minute)
	evicted := pool.EvictExpired()
	require.Len(t, evicted, 1)
	assert.Equal(t, stale.Header.BlockHash(), evicted[0])
	assert.True(t, pool.Has(fresh.Header.BlockHash()))

	// 被驱逐的条目不再可取
	taken := pool.TakeChildrenOf(parent.Header.BlockHash())
	require.Len(t, taken, 1)
	assert.Equal(t, fresh.Header.BlockHash(), taken[0].Header.BlockHash())
}
