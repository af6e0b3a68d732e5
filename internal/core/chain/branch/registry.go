// Package branch 实现分支登记表
//
// 🔍 **分支登记表 (Branch Registry)**
//
// 跟踪所有已知链尖及其累计工作量，回答"当前最优链尖是谁"：
//   - RegisterOrUpdate：分支延伸时以新链尖替换旧链尖，分叉时新增分支
//   - BestTip：累计工作量最大者胜出；在位主链尖具有平局优先权，
//     挑战者必须严格超过才会触发切换
//   - Retire：重组落定后摘除被取代的分支记录
//
// 💾 链尖集合持久化在 KVStore 中（state:chain:tips:{hash}），
// 重启后通过 Load 恢复，避免丢失侧链视图。
package branch

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/types"
)

// tipKeyPrefix 链尖持久化键前缀
const tipKeyPrefix = "state:chain:tips:"

// tipEntry 登记表内部条目
type tipEntry struct {
	work *big.Int
	// seq 登记序号，平局时先登记者优先
	seq uint64
}

// tipRecord 持久化形态
type tipRecord struct {
	Work string `json:"work"`
	Seq  uint64 `json:"seq"`
}

// Registry 分支登记表
type Registry struct {
	mu sync.RWMutex

	kv     storage.KVStore
	logger log.Logger

	tips    map[types.Hash]*tipEntry
	mainTip types.Hash
	nextSeq uint64
}

// NewRegistry 创建分支登记表
func NewRegistry(kv storage.KVStore, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Registry{
		kv:     kv,
		logger: logger,
		tips:   make(map[types.Hash]*tipEntry),
	}
}

// Load 从存储恢复链尖集合
//
// mainTip 为当前主链尖（来自链尖记录），ZeroHash 表示链未初始化。
func (r *Registry) Load(ctx context.Context, mainTip types.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.kv.PrefixScan(ctx, []byte(tipKeyPrefix))
	if err != nil {
		return fmt.Errorf("扫描链尖记录失败: %w", err)
	}

	for key, value := range entries {
		raw := strings.TrimPrefix(key, tipKeyPrefix)
		hash, err := types.NewHashFromString(raw)
		if err != nil {
			return fmt.Errorf("链尖键损坏 %q: %w", key, types.ErrCorruptedState)
		}

		var record tipRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return fmt.Errorf("链尖记录损坏 %s: %w", raw, types.ErrCorruptedState)
		}
		work, ok := new(big.Int).SetString(record.Work, 10)
		if !ok {
			return fmt.Errorf("链尖工作量损坏 %s: %w", raw, types.ErrCorruptedState)
		}

		r.tips[hash] = &tipEntry{work: work, seq: record.Seq}
		if record.Seq >= r.nextSeq {
			r.nextSeq = record.Seq + 1
		}
	}

	r.mainTip = mainTip
	r.logger.Infof("分支登记表已恢复 tips=%d main=%s", len(r.tips), types.ShortHash(mainTip))
	return nil
}

// RegisterOrUpdate 登记或更新一个分支
//
// parentHash 是新链尖的父区块：若父区块本身是已登记链尖，
// 说明该分支在延伸，旧链尖记录被新链尖替换（主链身份随之转移）；
// 否则这是一条从链中部分叉出来的新分支。
func (r *Registry) RegisterOrUpdate(ctx context.Context, parentHash, tipHash types.Hash, work *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var replaced *types.Hash
	if _, exists := r.tips[parentHash]; exists {
		replaced = &parentHash
	}

	record := tipRecord{Work: work.Text(10), Seq: r.nextSeq}
	value, err := json.Marshal(&record)
	if err != nil {
		return err
	}

	err = r.kv.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if replaced != nil {
			if err := tx.Delete(tipStorageKey(*replaced)); err != nil {
				return err
			}
		}
		return tx.Set(tipStorageKey(tipHash), value)
	})
	if err != nil {
		return fmt.Errorf("持久化链尖失败: %w", err)
	}

	if replaced != nil {
		delete(r.tips, *replaced)
		if r.mainTip == *replaced {
			r.mainTip = tipHash
		}
	}
	r.tips[tipHash] = &tipEntry{work: new(big.Int).Set(work), seq: r.nextSeq}
	r.nextSeq++
	return nil
}

// BestTip 返回累计工作量最大的链尖
//
// 平局规则（按优先级）：
// 1. 在位主链尖不会被工作量相等的挑战者取代
// 2. 先登记的分支优先
// 3. 哈希字典序较小者优先
// 链未登记任何分支时返回 (BranchTip{}, false)。
func (r *Registry) BestTip() (types.BranchTip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bestHash types.Hash
	var best *tipEntry
	for hash, e := range r.tips {
		if best == nil || r.betterLocked(hash, e, bestHash, best) {
			bestHash = hash
			best = e
		}
	}
	if best == nil {
		return types.BranchTip{}, false
	}
	return types.BranchTip{
		Hash:   bestHash,
		Work:   new(big.Int).Set(best.work),
		IsMain: bestHash == r.mainTip,
	}, true
}

// betterLocked 判断候选 a 是否优于现任最优 b
func (r *Registry) betterLocked(aHash types.Hash, a *tipEntry, bHash types.Hash, b *tipEntry) bool {
	switch a.work.Cmp(b.work) {
	case 1:
		return true
	case -1:
		return false
	}
	// 工作量相等：在位者优先
	if bHash == r.mainTip {
		return false
	}
	if aHash == r.mainTip {
		return true
	}
	if a.seq != b.seq {
		return a.seq < b.seq
	}
	return aHash.String() < bHash.String()
}

// SetMain 标记主链尖（快速路径延伸或重组提交后调用）
func (r *Registry) SetMain(tipHash types.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mainTip = tipHash
}

// MainTip 返回当前主链尖
func (r *Registry) MainTip() types.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mainTip
}

// Retire 摘除被取代的分支记录
//
// 区块元数据不受影响，只移除"活跃链尖"的簿记。
func (r *Registry) Retire(ctx context.Context, tipHash types.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tips[tipHash]; !exists {
		return nil
	}
	if err := r.kv.Delete(ctx, tipStorageKey(tipHash)); err != nil {
		return fmt.Errorf("删除链尖记录失败: %w", err)
	}
	delete(r.tips, tipHash)
	if r.mainTip == tipHash {
		r.mainTip = types.ZeroHash
	}
	return nil
}

// Tips 返回全部链尖快照，按工作量降序排列
func (r *Registry) Tips() []types.BranchTip {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.BranchTip, 0, len(r.tips))
	for hash, e := range r.tips {
		out = append(out, types.BranchTip{
			Hash:   hash,
			Work:   new(big.Int).Set(e.work),
			IsMain: hash == r.mainTip,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Work.Cmp(out[j].Work); cmp != 0 {
			return cmp > 0
		}
		return out[i].Hash.String() < out[j].Hash.String()
	})
	return out
}

// Has 检查哈希是否为已登记链尖
func (r *Registry) Has(tipHash types.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tips[tipHash]
	return exists
}

func tipStorageKey(hash types.Hash) []byte {
	return []byte(tipKeyPrefix + hash.String())
}
