// Package orphan 实现孤块池
//
// 🔁 **孤块池 (Orphan Pool)**
//
// 暂存父区块尚未到达的区块，按缺失的父哈希索引：
// - Store：入池；容量满时先驱逐最不可能再被用到的条目
// - TakeChildrenOf：父区块到达后取走并移除全部等待者，驱动级联接入
// - EvictExpired：按存活时间清理，由编排器定时调用而非写路径内联
//
// ⚠️ 池内区块与元数据存储互斥：一旦接入成功必须先从池中取出。
package orphan

import (
	"sync"
	"time"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/types"
)

// entry 池内条目
type entry struct {
	block      *types.Block
	parentHash types.Hash
	receivedAt time.Time
}

// Pool 孤块池
//
// 所有操作持有内部互斥锁，调用方无需额外同步。
type Pool struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	byHash   map[types.Hash]*entry
	byParent map[types.Hash][]types.Hash

	logger log.Logger
	now    func() time.Time
}

// NewPool 创建孤块池
func NewPool(capacity int, ttl time.Duration, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Pool{
		capacity: capacity,
		ttl:      ttl,
		byHash:   make(map[types.Hash]*entry),
		byParent: make(map[types.Hash][]types.Hash),
		logger:   logger,
		now:      time.Now,
	}
}

// Store 将区块放入孤块池
//
// 返回值表示是否实际入池（重复区块返回 false）。
// 容量已满时先驱逐高度最低的条目，同高度取入池最早者——
// 低于主链越多的区块越不可能再被接入。
func (p *Pool) Store(block *types.Block) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := block.Header.BlockHash()
	if _, exists := p.byHash[hash]; exists {
		return false
	}

	if len(p.byHash) >= p.capacity {
		p.evictWorstLocked()
	}

	parentHash := block.Header.PreviousHash
	p.byHash[hash] = &entry{
		block:      block,
		parentHash: parentHash,
		receivedAt: p.now(),
	}
	p.byParent[parentHash] = append(p.byParent[parentHash], hash)

	p.logger.Debugf("孤块入池 hash=%s missingParent=%s size=%d",
		types.ShortHash(hash), types.ShortHash(parentHash), len(p.byHash))
	return true
}

// Has 检查区块是否在池中
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, exists := p.byHash[hash]
	return exists
}

// Size 返回池内条目数
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHash)
}

// TakeChildrenOf 取走所有等待 parentHash 的孤块
//
// 条目被同时从两个索引中移除，调用方负责逐个尝试接入。
func (p *Pool) TakeChildrenOf(parentHash types.Hash) []*types.Block {
	p.mu.Lock()
	defer p.mu.Unlock()

	hashes := p.byParent[parentHash]
	if len(hashes) == 0 {
		return nil
	}
	delete(p.byParent, parentHash)

	blocks := make([]*types.Block, 0, len(hashes))
	for _, hash := range hashes {
		if e, exists := p.byHash[hash]; exists {
			blocks = append(blocks, e.block)
			delete(p.byHash, hash)
		}
	}
	return blocks
}

// EvictExpired 清理超过存活时间的条目，返回被驱逐的区块哈希
func (p *Pool) EvictExpired() []types.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := p.now().Add(-p.ttl)
	var evicted []types.Hash
	for hash, e := range p.byHash {
		if e.receivedAt.Before(deadline) {
			p.removeLocked(hash, e)
			evicted = append(evicted, hash)
		}
	}

	if len(evicted) > 0 {
		p.logger.Infof("孤块池过期清理 evicted=%d remaining=%d", len(evicted), len(p.byHash))
	}
	return evicted
}

// evictWorstLocked 容量驱逐：高度最低优先，同高度取最早入池者
func (p *Pool) evictWorstLocked() {
	var victimHash types.Hash
	var victim *entry
	for hash, e := range p.byHash {
		if victim == nil ||
			e.block.Header.Height < victim.block.Header.Height ||
			(e.block.Header.Height == victim.block.Header.Height && e.receivedAt.Before(victim.receivedAt)) {
			victimHash = hash
			victim = e
		}
	}
	if victim == nil {
		return
	}

	p.removeLocked(victimHash, victim)
	p.logger.Warnf("孤块池已满，驱逐 hash=%s height=%d",
		types.ShortHash(victimHash), victim.block.Header.Height)
}

// removeLocked 从两个索引中移除条目
func (p *Pool) removeLocked(hash types.Hash, e *entry) {
	delete(p.byHash, hash)

	siblings := p.byParent[e.parentHash]
	for i, sibling := range siblings {
		if sibling == hash {
			p.byParent[e.parentHash] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(p.byParent[e.parentHash]) == 0 {
		delete(p.byParent, e.parentHash)
	}
}
