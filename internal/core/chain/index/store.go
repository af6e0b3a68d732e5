// Package index 实现区块元数据存储
//
// 🔍 **区块元数据存储 (Block Metadata Store)**
//
// 维护节点已知的全部有效区块的拓扑视图（主链 + 侧链）：
// - 元数据记录：高度、父哈希、累计工作量、子区块列表
// - 主链索引：高度 -> 主链区块哈希的单射
// - 链尖记录：主链当前末端
//
// 🎯 **核心职责**
//   - Insert：父区块必须已存在（创世哨兵除外），一次事务内
//     写入新记录并登记到父区块的子列表
//   - PathToAncestor：沿父指针回溯，产出断开路径
//   - 主链索引切换：快速路径追加与重组提交共用同一套原子写入
//
// ⚠️ 注意：本存储只收录已通过验证的区块，孤块不在此登记。
package index

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/types"
)

// genesisKey 创世区块哈希的登记键（保证创世唯一）
const genesisKey = "indices:genesis"

// 元数据读缓存的生命周期
const cacheLifeWindow = 10 * time.Minute

// Store 区块元数据存储
//
// 读路径走 bigcache（元数据记录一经写入仅子列表会变化），
// 写路径全部经由 KVStore 事务落盘后再刷新缓存。
type Store struct {
	kv     storage.KVStore
	cache  *bigcache.BigCache
	logger log.Logger
}

// NewStore 创建区块元数据存储
func NewStore(kv storage.KVStore, logger log.Logger) (*Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("元数据存储需要 KVStore 实例")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	cacheConfig := bigcache.DefaultConfig(cacheLifeWindow)
	cacheConfig.Verbose = false
	cache, err := bigcache.New(context.Background(), cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("创建元数据缓存失败: %w", err)
	}

	return &Store{
		kv:     kv,
		cache:  cache,
		logger: logger,
	}, nil
}

// Close 关闭元数据读缓存（其后台淘汰协程随之退出）
func (s *Store) Close() error {
	return s.cache.Close()
}

// Insert 登记一个已验证区块的元数据
//
// 规则：
// - parentHash 为创世哨兵（ZeroHash）时走创世路径，且全局仅允许一次
// - 其余情况父区块必须已在存储中，否则返回 ErrUnknownParent
// - 高度 = 父高度 + 1；累计工作量 = 父累计工作量 + blockWork
// - 新记录写入与父记录子列表更新在同一事务内完成
func (s *Store) Insert(ctx context.Context, hash, parentHash types.Hash, blockWork *big.Int) (*types.BlockMetadata, error) {
	if exists, err := s.Has(ctx, hash); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("区块 %s 已登记: %w", types.ShortHash(hash), types.ErrInvalidBlock)
	}

	if parentHash == types.ZeroHash {
		return s.insertGenesis(ctx, hash, blockWork)
	}

	parent, err := s.Get(ctx, parentHash)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("父区块 %s 未知: %w", types.ShortHash(parentHash), types.ErrUnknownParent)
	}

	meta := &types.BlockMetadata{
		Hash:           hash,
		Height:         parent.Height + 1,
		ParentHash:     parentHash,
		CumulativeWork: new(big.Int).Add(parent.CumulativeWork, blockWork),
	}

	parent.Children = append(parent.Children, hash)

	metaValue, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}
	parentValue, err := encodeMeta(parent)
	if err != nil {
		return nil, err
	}

	err = s.kv.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Set(metaKey(hash), metaValue); err != nil {
			return err
		}
		return tx.Set(metaKey(parentHash), parentValue)
	})
	if err != nil {
		return nil, fmt.Errorf("写入元数据失败: %w", err)
	}

	s.fillCache(hash, metaValue)
	s.fillCache(parentHash, parentValue)

	s.logger.Debugf("登记区块元数据 hash=%s height=%d work=%s",
		types.ShortHash(hash), meta.Height, meta.CumulativeWork.Text(10))
	return meta.Clone(), nil
}

// insertGenesis 创世路径：父哈希为零哨兵，高度固定为 0
func (s *Store) insertGenesis(ctx context.Context, hash types.Hash, blockWork *big.Int) (*types.BlockMetadata, error) {
	existing, err := s.kv.Get(ctx, []byte(genesisKey))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("创世区块已存在: %w", types.ErrInvalidBlock)
	}

	meta := &types.BlockMetadata{
		Hash:           hash,
		Height:         0,
		ParentHash:     types.ZeroHash,
		CumulativeWork: new(big.Int).Set(blockWork),
	}

	metaValue, err := encodeMeta(meta)
	if err != nil {
		return nil, err
	}

	err = s.kv.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Set(metaKey(hash), metaValue); err != nil {
			return err
		}
		return tx.Set([]byte(genesisKey), hash[:])
	})
	if err != nil {
		return nil, fmt.Errorf("写入创世元数据失败: %w", err)
	}

	s.fillCache(hash, metaValue)
	s.logger.Infof("登记创世区块 hash=%s work=%s", types.ShortHash(hash), meta.CumulativeWork.Text(10))
	return meta.Clone(), nil
}

// Get 按哈希读取元数据，不存在时返回 (nil, nil)
func (s *Store) Get(ctx context.Context, hash types.Hash) (*types.BlockMetadata, error) {
	if cached, err := s.cache.Get(hash.String()); err == nil {
		return decodeMeta(cached)
	}

	value, err := s.kv.Get(ctx, metaKey(hash))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	s.fillCache(hash, value)
	return decodeMeta(value)
}

// Has 检查区块是否已登记
func (s *Store) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if _, err := s.cache.Get(hash.String()); err == nil {
		return true, nil
	}
	return s.kv.Exists(ctx, metaKey(hash))
}

// GenesisHash 返回创世区块哈希，未初始化时返回 (ZeroHash, false)
func (s *Store) GenesisHash(ctx context.Context) (types.Hash, bool, error) {
	value, err := s.kv.Get(ctx, []byte(genesisKey))
	if err != nil {
		return types.ZeroHash, false, err
	}
	if value == nil {
		return types.ZeroHash, false, nil
	}
	hash, err := types.NewHashFromBytes(value)
	if err != nil {
		return types.ZeroHash, false, err
	}
	return hash, true, nil
}

// PathToAncestor 沿父指针从 from 回溯到 ancestor
//
// 返回路径按回溯顺序排列：from 在首位，ancestor 的直接子区块在末位，
// 不包含 ancestor 本身。limit > 0 时限制回溯步数。
// 回溯越过创世或超出步数限制仍未命中时返回 ErrNotAnAncestor。
func (s *Store) PathToAncestor(ctx context.Context, from, ancestor types.Hash, limit int) ([]*types.BlockMetadata, error) {
	if from == ancestor {
		return nil, nil
	}

	var path []*types.BlockMetadata
	cursor := from
	for steps := 0; limit <= 0 || steps < limit; steps++ {
		meta, err := s.Get(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, fmt.Errorf("回溯遇到未登记区块 %s: %w", types.ShortHash(cursor), types.ErrCorruptedState)
		}

		path = append(path, meta)
		if meta.ParentHash == ancestor {
			return path, nil
		}
		if meta.IsGenesis() {
			return nil, fmt.Errorf("%s 不是 %s 的祖先: %w",
				types.ShortHash(ancestor), types.ShortHash(from), types.ErrNotAnAncestor)
		}
		cursor = meta.ParentHash
	}
	return nil, fmt.Errorf("回溯超出 %d 步仍未命中 %s: %w",
		limit, types.ShortHash(ancestor), types.ErrNotAnAncestor)
}

// Tip 读取主链链尖，尚未初始化时返回 (nil, nil)
func (s *Store) Tip(ctx context.Context) (*types.TipInfo, error) {
	value, err := s.kv.Get(ctx, []byte(tipKey))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	height, hash, err := decodeTip(value)
	if err != nil {
		return nil, fmt.Errorf("链尖记录损坏: %w", types.ErrCorruptedState)
	}

	meta, err := s.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("链尖 %s 缺少元数据: %w", types.ShortHash(hash), types.ErrCorruptedState)
	}

	return &types.TipInfo{
		Hash:   hash,
		Height: height,
		Work:   new(big.Int).Set(meta.CumulativeWork),
	}, nil
}

// MainChainHash 查询主链指定高度的区块哈希
func (s *Store) MainChainHash(ctx context.Context, height uint64) (types.Hash, bool, error) {
	value, err := s.kv.Get(ctx, heightKey(height))
	if err != nil {
		return types.ZeroHash, false, err
	}
	if value == nil {
		return types.ZeroHash, false, nil
	}
	hash, err := types.NewHashFromBytes(value)
	if err != nil {
		return types.ZeroHash, false, err
	}
	return hash, true, nil
}

// IsOnMainChain 判断区块是否位于当前主链
//
// 未登记的区块直接返回 false。
func (s *Store) IsOnMainChain(ctx context.Context, hash types.Hash) (bool, error) {
	meta, err := s.Get(ctx, hash)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, nil
	}
	mainHash, ok, err := s.MainChainHash(ctx, meta.Height)
	if err != nil {
		return false, err
	}
	return ok && mainHash == hash, nil
}

// ExtendMainChain 主链快速路径：把新区块追加为链尖
//
// 高度索引与链尖记录在同一事务内写入。
func (s *Store) ExtendMainChain(ctx context.Context, meta *types.BlockMetadata) error {
	return s.kv.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.Set(heightKey(meta.Height), meta.Hash[:]); err != nil {
			return err
		}
		return tx.Set([]byte(tipKey), encodeTip(meta.Height, meta.Hash))
	})
}

// SwitchMainChain 重组提交：原子切换主链索引
//
// 一次事务内完成三件事：
// 1. 覆写 (forkHeight, newTipHeight] 的高度索引为新链区块
// 2. 删除新链尖之上遗留的旧链高度索引
// 3. 更新链尖记录
// connected 按高度升序排列，末位为新链尖。
func (s *Store) SwitchMainChain(ctx context.Context, oldTipHeight uint64, connected []*types.BlockMetadata) error {
	if len(connected) == 0 {
		return fmt.Errorf("主链切换需要至少一个新区块")
	}
	newTip := connected[len(connected)-1]

	err := s.kv.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, meta := range connected {
			if err := tx.Set(heightKey(meta.Height), meta.Hash[:]); err != nil {
				return err
			}
		}
		for height := newTip.Height + 1; height <= oldTipHeight; height++ {
			if err := tx.Delete(heightKey(height)); err != nil {
				return err
			}
		}
		return tx.Set([]byte(tipKey), encodeTip(newTip.Height, newTip.Hash))
	})
	if err != nil {
		return fmt.Errorf("主链索引切换失败: %w", err)
	}

	s.logger.Infof("主链索引已切换 newTip=%s height=%d", types.ShortHash(newTip.Hash), newTip.Height)
	return nil
}

// PutBlock 持久化区块原文
//
// 重组断开旧链时需要取回完整区块调用账本回滚，
// 因此已接入区块的原文与元数据一样长期保留。
func (s *Store) PutBlock(ctx context.Context, block *types.Block) error {
	header := block.Header.Serialize()
	value := make([]byte, 0, len(header)+len(block.Payload))
	value = append(value, header...)
	value = append(value, block.Payload...)
	return s.kv.Set(ctx, blockKey(block.Hash()), value)
}

// GetBlock 取回区块原文，不存在时返回 (nil, nil)
func (s *Store) GetBlock(ctx context.Context, hash types.Hash) (*types.Block, error) {
	value, err := s.kv.Get(ctx, blockKey(hash))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	if len(value) < types.HeaderSize {
		return nil, fmt.Errorf("区块原文损坏 hash=%s: %w", types.ShortHash(hash), types.ErrCorruptedState)
	}

	header, err := types.DeserializeBlockHeader(value[:types.HeaderSize])
	if err != nil {
		return nil, fmt.Errorf("区块头解析失败 hash=%s: %w", types.ShortHash(hash), types.ErrCorruptedState)
	}

	block := &types.Block{Header: header}
	if len(value) > types.HeaderSize {
		block.Payload = append([]byte(nil), value[types.HeaderSize:]...)
	}
	return block, nil
}

func (s *Store) fillCache(hash types.Hash, value []byte) {
	if err := s.cache.Set(hash.String(), value); err != nil {
		s.logger.Debugf("元数据缓存写入失败 hash=%s err=%v", types.ShortHash(hash), err)
	}
}
