// Package undo 实现回滚记录存储
//
// 💾 **回滚记录存储 (Undo Record Store)**
//
// 账本每应用一个区块都会产出回滚记录，重组断开时据此精确撤销。
// 存储策略：
//   - 记录经 snappy 压缩后落盘（undo:rec:{hash}）
//   - 主链区块的记录始终保留（重组断开的前提）
//   - 被断开的区块记录保留一个有限窗口，使近期分叉来回摆动时
//     无需账本重算；窗口之外由 PruneRetired 清理
package undo

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/snappy"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/types"
)

const (
	recordKeyPrefix  = "undo:rec:"
	retiredKeyPrefix = "undo:retired:"
)

// Store 回滚记录存储
type Store struct {
	kv     storage.KVStore
	logger log.Logger
}

// NewStore 创建回滚记录存储
func NewStore(kv storage.KVStore, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Store{kv: kv, logger: logger}
}

// Put 持久化回滚记录
//
// 值布局：height(8, 大端) + snappy(data)。
func (s *Store) Put(ctx context.Context, record *types.UndoRecord) error {
	compressed := snappy.Encode(nil, record.Data)
	value := make([]byte, 8+len(compressed))
	binary.BigEndian.PutUint64(value[:8], record.Height)
	copy(value[8:], compressed)

	if err := s.kv.Set(ctx, recordKey(record.BlockHash), value); err != nil {
		return fmt.Errorf("写入回滚记录失败: %w", err)
	}
	return nil
}

// Get 读取回滚记录，不存在时返回 (nil, nil)
func (s *Store) Get(ctx context.Context, hash types.Hash) (*types.UndoRecord, error) {
	value, err := s.kv.Get(ctx, recordKey(hash))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	if len(value) < 8 {
		return nil, fmt.Errorf("回滚记录损坏 hash=%s: %w", types.ShortHash(hash), types.ErrCorruptedState)
	}

	data, err := snappy.Decode(nil, value[8:])
	if err != nil {
		return nil, fmt.Errorf("回滚记录解压失败 hash=%s: %w", types.ShortHash(hash), types.ErrCorruptedState)
	}

	return &types.UndoRecord{
		BlockHash: hash,
		Height:    binary.BigEndian.Uint64(value[:8]),
		Data:      data,
	}, nil
}

// Delete 删除回滚记录
func (s *Store) Delete(ctx context.Context, hash types.Hash) error {
	return s.kv.Delete(ctx, recordKey(hash))
}

// MarkRetired 登记一个已被断开的区块
//
// 记录本体保留，仅建立按高度索引的退役标记，供窗口清理使用。
func (s *Store) MarkRetired(ctx context.Context, hash types.Hash, height uint64) error {
	return s.kv.Set(ctx, retiredKey(height, hash), nil)
}

// Reinstate 撤销退役标记（被断开的区块因链再次摆动重新接入）
func (s *Store) Reinstate(ctx context.Context, hash types.Hash, height uint64) error {
	return s.kv.Delete(ctx, retiredKey(height, hash))
}

// PruneRetired 清理退役窗口之外的回滚记录
//
// 删除高度低于 belowHeight 的全部退役记录及其标记，返回清理数量。
func (s *Store) PruneRetired(ctx context.Context, belowHeight uint64) (int, error) {
	entries, err := s.kv.PrefixScan(ctx, []byte(retiredKeyPrefix))
	if err != nil {
		return 0, fmt.Errorf("扫描退役标记失败: %w", err)
	}

	pruned := 0
	for key := range entries {
		height, hash, err := parseRetiredKey(key)
		if err != nil {
			return pruned, err
		}
		if height >= belowHeight {
			continue
		}

		err = s.kv.RunInTransaction(ctx, func(tx storage.Transaction) error {
			if err := tx.Delete(recordKey(hash)); err != nil {
				return err
			}
			return tx.Delete([]byte(key))
		})
		if err != nil {
			return pruned, fmt.Errorf("清理回滚记录失败 hash=%s: %w", types.ShortHash(hash), err)
		}
		pruned++
	}

	if pruned > 0 {
		s.logger.Infof("回滚记录窗口清理 pruned=%d belowHeight=%d", pruned, belowHeight)
	}
	return pruned, nil
}

func recordKey(hash types.Hash) []byte {
	return []byte(recordKeyPrefix + hash.String())
}

// retiredKey 高度零填充到 20 位，保证字典序与数值序一致
func retiredKey(height uint64, hash types.Hash) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", retiredKeyPrefix, height, hash.String()))
}

func parseRetiredKey(key string) (uint64, types.Hash, error) {
	rest := strings.TrimPrefix(key, retiredKeyPrefix)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return 0, types.ZeroHash, fmt.Errorf("退役标记键损坏 %q: %w", key, types.ErrCorruptedState)
	}
	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, types.ZeroHash, fmt.Errorf("退役标记高度损坏 %q: %w", key, types.ErrCorruptedState)
	}
	hash, err := types.NewHashFromString(parts[1])
	if err != nil {
		return 0, types.ZeroHash, fmt.Errorf("退役标记哈希损坏 %q: %w", key, types.ErrCorruptedState)
	}
	return height, hash, nil
}
