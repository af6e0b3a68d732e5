// Package dev 提供开发模式的账本与验证器实现
//
// 🎯 **开发模式协作者 (Development Collaborators)**
//
// 链状态核心依赖外部的账本（UTXO 集）与区块验证器，二者均为接口。
// 本包提供单机运行/联调用的最小实现：
//   - Ledger：以滚动摘要模拟账本状态，Apply/Undo 严格可逆且可校验
//   - Validator：只做结构校验（父链接、高度、时间戳、难度位），
//     不做真实 PoW 求解验证
//
// ⚠️ 仅限开发环境。生产部署必须注入真实的共识验证器与 UTXO 账本。
package dev

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/obelisk/v1/internal/core/chain/work"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/interfaces/ledger"
	"github.com/obelisk/v1/pkg/types"
)

// stateKey 账本滚动摘要的存储键
const stateKey = "ledger:dev:state"

// Ledger 开发模式账本
//
// 状态是一个 32 字节滚动摘要：apply 时摘要前进
// （digest' = DoubleSHA256(digest || blockHash)），undo 时回退到
// 回滚记录携带的旧摘要。任何顺序错乱都会被摘要校验当场拦下。
type Ledger struct {
	kv     storage.KVStore
	logger log.Logger
}

// 编译时检查
var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger 创建开发模式账本
func NewLedger(kv storage.KVStore, logger log.Logger) *Ledger {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Ledger{kv: kv, logger: logger}
}

// Apply 应用区块：摘要前进，返回携带旧摘要的回滚记录
func (l *Ledger) Apply(ctx context.Context, block *types.Block) (*types.UndoRecord, error) {
	current, err := l.currentState(ctx)
	if err != nil {
		return nil, err
	}

	hash := block.Hash()
	next := advance(current, hash)
	if err := l.kv.Set(ctx, []byte(stateKey), next); err != nil {
		return nil, err
	}

	l.logger.Debugf("账本应用 block=%s height=%d", types.ShortHash(hash), block.Header.Height)
	return &types.UndoRecord{
		BlockHash: hash,
		Height:    block.Header.Height,
		Data:      current,
	}, nil
}

// Undo 撤销区块：校验当前摘要后回退到记录中的旧摘要
func (l *Ledger) Undo(ctx context.Context, block *types.Block, record *types.UndoRecord) error {
	current, err := l.currentState(ctx)
	if err != nil {
		return err
	}

	hash := block.Hash()
	expected := advance(record.Data, hash)
	if !bytes.Equal(current, expected) {
		return fmt.Errorf("账本摘要不匹配 block=%s: %w", types.ShortHash(hash), types.ErrCorruptedState)
	}

	if err := l.kv.Set(ctx, []byte(stateKey), record.Data); err != nil {
		return err
	}
	l.logger.Debugf("账本回退 block=%s height=%d", types.ShortHash(hash), block.Header.Height)
	return nil
}

func (l *Ledger) currentState(ctx context.Context) ([]byte, error) {
	state, err := l.kv.Get(ctx, []byte(stateKey))
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = make([]byte, 32)
	}
	return state, nil
}

// advance 计算 DoubleSHA256(state || blockHash)
func advance(state []byte, hash types.Hash) []byte {
	buf := make([]byte, 0, len(state)+32)
	buf = append(buf, state...)
	buf = append(buf, hash[:]...)
	digest := chainhash.DoubleHashH(buf)
	return digest[:]
}

// Validator 开发模式验证器
//
// 只做结构校验：父链接、高度连续性、时间戳、难度位可解析。
// 通过后返回按难度位计算的单块工作量。
type Validator struct{}

// 编译时检查
var _ ledger.BlockValidator = (*Validator)(nil)

// NewValidator 创建开发模式验证器
func NewValidator() *Validator {
	return &Validator{}
}

// Validate 结构校验（parent 为 nil 时按创世区块校验）
func (v *Validator) Validate(_ context.Context, block *types.Block, parent *types.BlockMetadata) (*big.Int, error) {
	header := block.Header
	if header == nil {
		return nil, fmt.Errorf("区块头缺失")
	}

	if parent == nil {
		if header.PreviousHash != types.ZeroHash || header.Height != 0 {
			return nil, fmt.Errorf("创世区块结构无效")
		}
	} else {
		if header.PreviousHash != parent.Hash {
			return nil, fmt.Errorf("父哈希不匹配")
		}
		if header.Height != parent.Height+1 {
			return nil, fmt.Errorf("高度不连续: %d -> %d", parent.Height, header.Height)
		}
	}
	if header.Timestamp <= 0 {
		return nil, fmt.Errorf("时间戳无效: %d", header.Timestamp)
	}

	blockWork := work.CalcWork(header.Bits)
	if blockWork.Sign() <= 0 {
		return nil, fmt.Errorf("难度位无效: %#x", header.Bits)
	}
	return blockWork, nil
}
