// Package work 提供链工作量（chain work）的换算与比较
//
// ⛏️ **工作量算术 (Chain Work Arithmetic)**
//
// 本包实现工作量证明的核心算术，负责：
// - 压缩难度目标（compact bits）到工作量数值的换算
// - 沿链累积工作量
// - 工作量全序比较
//
// ⚠️ **共识关键**：CalcWork 必须与外部 PoW 验证器使用完全相同的
// 换算规则，否则分叉选择与共识校验会对"更重的链"产生分歧。
// 换算规则：work = 2^256 / (target + 1)，目标越低工作量越高。
package work

import (
	"math/big"
)

// oneLsh256 即 2^256，工作量换算的分子
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// CompactToBig 将压缩编码的难度目标展开为大整数
//
// 压缩编码与比特币一致：最高字节为指数，低 23 位为尾数，
// 第 24 位为符号位（合法目标不应为负，保留语义以兼容编码）。
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}

	return bn
}

// CalcWork 由压缩难度目标计算区块工作量
//
// 返回值恒为非负；目标非法（<= 0）时返回 0，
// 使非法区块在任何工作量比较中都不可能胜出。
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}

	// work = 2^256 / (target + 1)
	denominator := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(oneLsh256, denominator)
}

// Accumulate 累加父链工作量与本块工作量
//
// 任一参数为 nil 时视为 0。使用任意精度整数，不存在溢出问题。
func Accumulate(parentWork, blockWork *big.Int) *big.Int {
	sum := new(big.Int)
	if parentWork != nil {
		sum.Set(parentWork)
	}
	if blockWork != nil {
		sum.Add(sum, blockWork)
	}
	return sum
}

// Compare 比较两个工作量
//
// 返回：
//   - 1: a > b
//   - 0: a == b
//   - -1: a < b
//
// nil 视为 0，保证比较对任何输入都有定义。
func Compare(a, b *big.Int) int {
	if a == nil {
		a = big.NewInt(0)
	}
	if b == nil {
		b = big.NewInt(0)
	}
	return a.Cmp(b)
}
