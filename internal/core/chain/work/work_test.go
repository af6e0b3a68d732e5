package work_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/v1/internal/core/chain/work"
)

func TestCompactToBig_KnownValues(t *testing.T) {
	// 比特币主网创世难度目标
	target := work.CompactToBig(0x1d00ffff)
	expected, ok := new(big.Int).SetString(
		"00000000ffff0000000000000000000000000000000000000000000000000000", 16)
	require.True(t, ok)
	assert.Equal(t, 0, target.Cmp(expected))
}

func TestCompactToBig_SmallExponent(t *testing.T) {
	// 指数 <= 3 时尾数右移
	assert.Equal(t, int64(0x12), work.CompactToBig(0x01120000).Int64())
	assert.Equal(t, int64(0x1234), work.CompactToBig(0x02123400).Int64())
	assert.Equal(t, int64(0x123456), work.CompactToBig(0x03123456).Int64())
}

func TestCalcWork_LowerTargetMeansMoreWork(t *testing.T) {
	easy := work.CalcWork(0x1d00ffff)
	hard := work.CalcWork(0x1c00ffff) // 目标低 256 倍

	require.Positive(t, easy.Sign())
	require.Positive(t, hard.Sign())

	// 目标越低，工作量越高
	assert.Equal(t, 1, hard.Cmp(easy))
}

// CalcWork 直接吃压缩编码，内部完成目标展开；
// 调用方不需要（也不应该）先调 CompactToBig。
func TestCalcWork_TakesCompactBits(t *testing.T) {
	bits := uint32(0x1d00ffff)

	target := work.CompactToBig(bits)
	expected := new(big.Int).Div(
		new(big.Int).Lsh(big.NewInt(1), 256),
		new(big.Int).Add(target, big.NewInt(1)))

	assert.Equal(t, 0, work.CalcWork(bits).Cmp(expected))
}

func TestCalcWork_InvalidTargetIsZero(t *testing.T) {
	// 目标为 0 或负数时工作量为 0，在任何比较中不可能胜出
	assert.Equal(t, 0, work.CalcWork(0).Sign())
	assert.Equal(t, 0, work.CalcWork(0x03800000).Sign()) // 符号位置位
}

func TestAccumulate(t *testing.T) {
	sum := work.Accumulate(big.NewInt(10), big.NewInt(5))
	assert.Equal(t, int64(15), sum.Int64())

	// nil 视为 0
	assert.Equal(t, int64(5), work.Accumulate(nil, big.NewInt(5)).Int64())
	assert.Equal(t, int64(10), work.Accumulate(big.NewInt(10), nil).Int64())
	assert.Equal(t, int64(0), work.Accumulate(nil, nil).Int64())
}

func TestAccumulate_DoesNotMutateInputs(t *testing.T) {
	parent := big.NewInt(100)
	blk := big.NewInt(1)
	_ = work.Accumulate(parent, blk)

	assert.Equal(t, int64(100), parent.Int64())
	assert.Equal(t, int64(1), blk.Int64())
}

func TestCompare(t *testing.T) {
	assert.Equal(t, 1, work.Compare(big.NewInt(2), big.NewInt(1)))
	assert.Equal(t, 0, work.Compare(big.NewInt(2), big.NewInt(2)))
	assert.Equal(t, -1, work.Compare(big.NewInt(1), big.NewInt(2)))

	// nil 视为 0
	assert.Equal(t, 0, work.Compare(nil, nil))
	assert.Equal(t, -1, work.Compare(nil, big.NewInt(1)))
	assert.Equal(t, 1, work.Compare(big.NewInt(1), nil))
}
