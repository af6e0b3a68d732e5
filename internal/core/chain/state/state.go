// Package state 实现链状态编排器
//
// 🔗 **链状态编排器 (Chain State Orchestrator)**
//
// 节点内所有链状态变更的唯一串行点，持有并协调：
// 元数据存储、孤块池、分支登记表、重组器、回滚记录存储。
//
// 🎯 **提交管线**
// 1. 写门闸检查：链已停写则直接拒绝
// 2. 幂等检查：已登记/已在孤块池的区块为空操作
// 3. 父区块未知：入孤块池并发布孤块事件
// 4. 外部验证：在进入临界区之前完成（昂贵的密码学工作不占锁）
// 5. 临界区内：登记元数据 → 三路分派
//   - 延伸主链尖且更重：快速路径，直接应用
//   - 更重但不延伸主链尖：走重组器
//   - 不更重：登记为侧链
//
// 6. 级联：取出等待本区块的孤块，递归重複上述流程
//
// ⚠️ 平局规则：候选分支必须**严格**超过主链工作量才触发切换，
// 工作量相等时在位主链保持不变。
package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chaincfg "github.com/obelisk/v1/internal/config/chain"
	"github.com/obelisk/v1/internal/core/chain/branch"
	"github.com/obelisk/v1/internal/core/chain/index"
	"github.com/obelisk/v1/internal/core/chain/orphan"
	"github.com/obelisk/v1/internal/core/chain/reorg"
	"github.com/obelisk/v1/internal/core/chain/undo"
	"github.com/obelisk/v1/internal/core/chain/work"
	chainIface "github.com/obelisk/v1/pkg/interfaces/chain"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/event"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/storage"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/writegate"
	"github.com/obelisk/v1/pkg/interfaces/ledger"
	"github.com/obelisk/v1/pkg/types"
)

// State 链状态编排器
type State struct {
	// mu 单写者锁：区块插入、孤块级联、重组互斥执行
	mu sync.Mutex

	options   *chaincfg.ChainOptions
	metaStore *index.Store
	orphans   *orphan.Pool
	branches  *branch.Registry
	undoStore *undo.Store
	reorgExec *reorg.Reorganizer

	validator ledger.BlockValidator
	ledger    ledger.Ledger
	gate      writegate.WriteGate
	bus       event.EventBus
	logger    log.Logger
	metrics   *metricsSet

	// reorging 标记重组进行中（仅用于状态描述）
	reorging bool

	evictStop chan struct{}
	evictDone chan struct{}
}

// 编译时检查
var _ chainIface.ChainState = (*State)(nil)

// Deps 编排器依赖
type Deps struct {
	Config    *chaincfg.Config
	KV        storage.KVStore
	Validator ledger.BlockValidator
	Ledger    ledger.Ledger
	Gate      writegate.WriteGate
	Bus       event.EventBus
	Registry  prometheus.Registerer
	Logger    log.Logger
}

// NewState 创建链状态编排器
//
// 构造只做装配，不触碰存储；启动时调用 Bootstrap 完成
// 创世落库或既有状态恢复。
func NewState(deps Deps) (*State, error) {
	if deps.Config == nil || deps.KV == nil {
		return nil, fmt.Errorf("链状态编排器缺少配置或存储依赖")
	}
	if deps.Validator == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("链状态编排器缺少验证器或账本协作者")
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, fmt.Errorf("链配置无效: %w", err)
	}
	if deps.Gate == nil {
		deps.Gate = writegate.Default()
	}
	if deps.Logger == nil {
		deps.Logger = log.NewNopLogger()
	}

	options := deps.Config.GetOptions()

	metaStore, err := index.NewStore(deps.KV, deps.Logger)
	if err != nil {
		return nil, err
	}
	undoStore := undo.NewStore(deps.KV, deps.Logger)
	reorgExec, err := reorg.NewReorganizer(
		metaStore, undoStore, deps.Ledger, deps.Gate, options.MaxReorgDepth, deps.Logger)
	if err != nil {
		return nil, err
	}

	return &State{
		options:   options,
		metaStore: metaStore,
		orphans:   orphan.NewPool(options.OrphanPoolCapacity, options.OrphanTTL, deps.Logger),
		branches:  branch.NewRegistry(deps.KV, deps.Logger),
		undoStore: undoStore,
		reorgExec: reorgExec,
		validator: deps.Validator,
		ledger:    deps.Ledger,
		gate:      deps.Gate,
		bus:       deps.Bus,
		logger:    deps.Logger,
		metrics:   newMetrics(deps.Registry),
		evictStop: make(chan struct{}),
		evictDone: make(chan struct{}),
	}, nil
}

// Bootstrap 启动初始化
//
// 链尖已存在时恢复分支登记表；否则按配置构造创世区块，
// 经账本应用后落库为高度 0 的主链。
func (s *State) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, err := s.metaStore.Tip(ctx)
	if err != nil {
		return err
	}
	if tip != nil {
		if err := s.branches.Load(ctx, tip.Hash); err != nil {
			return err
		}
		// 链尖记录与登记表可能在崩溃时不同步：主链尖缺席时补登记
		if !s.branches.Has(tip.Hash) {
			meta, err := s.metaStore.Get(ctx, tip.Hash)
			if err != nil {
				return err
			}
			if meta == nil {
				return fmt.Errorf("主链尖元数据缺失 %s: %w", types.ShortHash(tip.Hash), types.ErrCorruptedState)
			}
			if err := s.branches.RegisterOrUpdate(ctx, meta.ParentHash, meta.Hash, meta.CumulativeWork); err != nil {
				return err
			}
			s.logger.Warnf("主链尖登记缺失，已补录 tip=%s", types.ShortHash(tip.Hash))
		}
		// 登记表里存在更重的侧链尖说明上次重组未完成，下次该分支
		// 延伸时会重新触发切换
		if best, ok := s.branches.BestTip(); ok &&
			best.Hash != s.branches.MainTip() && best.Work.Cmp(tip.Work) > 0 {
			s.logger.Warnf("检测到工作量更重的侧链 tip=%s main=%s",
				types.ShortHash(best.Hash), types.ShortHash(s.branches.MainTip()))
		}
		s.logger.Infof("链状态已恢复 tip=%s height=%d", types.ShortHash(tip.Hash), tip.Height)
		return nil
	}

	genesis := &types.Block{
		Header: &types.BlockHeader{
			Version:      s.options.Genesis.Version,
			Height:       0,
			PreviousHash: types.ZeroHash,
			Timestamp:    s.options.Genesis.Timestamp,
			Bits:         s.options.Genesis.Bits,
			Nonce:        s.options.Genesis.Nonce,
		},
	}
	genesisWork := work.CalcWork(genesis.Header.Bits)

	meta, err := s.metaStore.Insert(ctx, genesis.Hash(), types.ZeroHash, genesisWork)
	if err != nil {
		return fmt.Errorf("创世落库失败: %w", err)
	}
	if err := s.metaStore.PutBlock(ctx, genesis); err != nil {
		return err
	}

	record, err := s.ledger.Apply(ctx, genesis)
	if err != nil {
		return fmt.Errorf("创世账本应用失败: %w", err)
	}
	if err := s.undoStore.Put(ctx, record); err != nil {
		return err
	}
	if err := s.metaStore.ExtendMainChain(ctx, meta); err != nil {
		return err
	}
	if err := s.branches.RegisterOrUpdate(ctx, types.ZeroHash, meta.Hash, meta.CumulativeWork); err != nil {
		return err
	}
	s.branches.SetMain(meta.Hash)

	s.logger.Infof("创世区块已初始化 hash=%s", types.ShortHash(meta.Hash))
	return nil
}

// SubmitBlock 提交区块（见包注释中的管线说明）
func (s *State) SubmitBlock(ctx context.Context, block *types.Block) (*types.SubmitResult, error) {
	if err := s.checkWritable(); err != nil {
		return nil, err
	}

	hash := block.Hash()

	// 幂等检查与父区块查询都是只读操作，临界区外完成
	if known, err := s.metaStore.Has(ctx, hash); err != nil {
		return nil, err
	} else if known {
		return &types.SubmitResult{Status: types.SubmitStatusDuplicate, Hash: hash, Height: block.Header.Height}, nil
	}
	if s.orphans.Has(hash) {
		return &types.SubmitResult{Status: types.SubmitStatusDuplicate, Hash: hash, Height: block.Header.Height}, nil
	}

	parentMeta, err := s.metaStore.Get(ctx, block.Header.PreviousHash)
	if err != nil {
		return nil, err
	}
	if parentMeta == nil {
		result, stored, err := s.storeOrphan(ctx, block)
		if err != nil {
			return nil, err
		}
		if stored {
			return result, nil
		}
		// 父区块在检查与入池之间到达，重新走接入路径
		parentMeta, err = s.metaStore.Get(ctx, block.Header.PreviousHash)
		if err != nil {
			return nil, err
		}
		if parentMeta == nil {
			return nil, fmt.Errorf("父区块 %s 再次缺失: %w",
				types.ShortHash(block.Header.PreviousHash), types.ErrCorruptedState)
		}
	}

	// 昂贵的结构/签名/PoW 校验在锁外执行
	blockWork, err := s.validator.Validate(ctx, block, parentMeta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBlock, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkWritable(); err != nil {
		return nil, err
	}
	// 等锁期间可能已被级联接入
	if known, err := s.metaStore.Has(ctx, hash); err != nil {
		return nil, err
	} else if known {
		return &types.SubmitResult{Status: types.SubmitStatusDuplicate, Hash: hash, Height: block.Header.Height}, nil
	}

	result, err := s.connectLocked(ctx, block, parentMeta, blockWork)
	if err != nil {
		return nil, err
	}

	if err := s.cascadeLocked(ctx, hash); err != nil {
		return nil, err
	}

	s.refreshGauges(ctx)
	return result, nil
}

// connectLocked 单个区块的接入分派（调用方持锁）
func (s *State) connectLocked(ctx context.Context, block *types.Block, parentMeta *types.BlockMetadata, blockWork *big.Int) (*types.SubmitResult, error) {
	hash := block.Hash()
	parentHash := parentMeta.Hash

	// 父区块已有子区块：本次插入制造了一个新分叉
	isFork := len(parentMeta.Children) > 0

	meta, err := s.metaStore.Insert(ctx, hash, parentHash, blockWork)
	if err != nil {
		return nil, err
	}
	if err := s.metaStore.PutBlock(ctx, block); err != nil {
		return nil, err
	}
	s.metrics.blockAccepted()
	if isFork {
		s.metrics.forkObserved()
	}

	tip, err := s.metaStore.Tip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, fmt.Errorf("主链尖缺失: %w", types.ErrCorruptedState)
	}

	// 严格大于才挑战主链；相等时在位者保持
	if meta.CumulativeWork.Cmp(tip.Work) <= 0 {
		if err := s.branches.RegisterOrUpdate(ctx, parentHash, hash, meta.CumulativeWork); err != nil {
			return nil, err
		}
		s.logger.Debugf("侧链区块 hash=%s height=%d", types.ShortHash(hash), meta.Height)
		return &types.SubmitResult{Status: types.SubmitStatusSideChain, Hash: hash, Height: meta.Height}, nil
	}

	if parentHash == tip.Hash {
		return s.extendTipLocked(ctx, block, meta)
	}
	return s.reorganizeLocked(ctx, meta)
}

// extendTipLocked 快速路径：新区块直接延伸主链尖
func (s *State) extendTipLocked(ctx context.Context, block *types.Block, meta *types.BlockMetadata) (*types.SubmitResult, error) {
	record, err := s.ledger.Apply(ctx, block)
	if err != nil {
		// 结构合法但账本拒绝：元数据保留（后代可再尝试），不登记为链尖
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBlock, err)
	}
	if err := s.undoStore.Put(ctx, record); err != nil {
		return nil, err
	}
	if err := s.metaStore.ExtendMainChain(ctx, meta); err != nil {
		return nil, err
	}
	if err := s.branches.RegisterOrUpdate(ctx, meta.ParentHash, meta.Hash, meta.CumulativeWork); err != nil {
		return nil, err
	}
	s.branches.SetMain(meta.Hash)

	s.publish(types.EventTypeBlockConnected, ctx, types.BlockConnectedEvent{
		Hash:   meta.Hash,
		Height: meta.Height,
	})
	s.logger.Infof("主链延伸 hash=%s height=%d", types.ShortHash(meta.Hash), meta.Height)

	return &types.SubmitResult{Status: types.SubmitStatusConnected, Hash: meta.Hash, Height: meta.Height}, nil
}

// reorganizeLocked 候选分支更重：执行主链切换
func (s *State) reorganizeLocked(ctx context.Context, meta *types.BlockMetadata) (*types.SubmitResult, error) {
	// 候选分支先登记（即使切换失败它也是真实存在的侧链）
	if err := s.branches.RegisterOrUpdate(ctx, meta.ParentHash, meta.Hash, meta.CumulativeWork); err != nil {
		return nil, err
	}

	s.reorging = true
	summary, err := s.reorgExec.Execute(ctx, meta.Hash)
	s.reorging = false

	if err != nil {
		var reorgErr *reorg.Error
		if errors.As(err, &reorgErr) {
			switch reorgErr.Class {
			case reorg.ClassAborted:
				s.metrics.reorgAborted()
			case reorg.ClassFatal:
				s.publish(types.EventTypeChainHalted, ctx, types.ChainHaltedEvent{Reason: reorgErr.Error()})
			}
		}
		return nil, err
	}

	// 旧链尖退役，主链身份移交
	if err := s.branches.Retire(ctx, summary.OldTip); err != nil {
		return nil, err
	}
	s.branches.SetMain(summary.NewTip)
	s.metrics.reorgExecuted(len(summary.Disconnected))

	s.publish(types.EventTypeChainReorganized, ctx, types.ChainReorganizedEvent{
		ForkHeight:   summary.ForkHeight,
		OldTip:       summary.OldTip,
		NewTip:       summary.NewTip,
		Disconnected: summary.Disconnected,
		Connected:    summary.Connected,
	})
	s.logger.Infof("链重组完成 fork=%d disconnected=%d connected=%d newTip=%s",
		summary.ForkHeight, len(summary.Disconnected), len(summary.Connected),
		types.ShortHash(summary.NewTip))

	return &types.SubmitResult{
		Status: types.SubmitStatusReorganized,
		Hash:   meta.Hash,
		Height: meta.Height,
		Reorg:  summary,
	}, nil
}

// cascadeLocked 级联附加：递归接入等待已接入区块的孤块
//
// 以队列驱动，避免深递归。单个孤块的失败（验证失败、重组被拒或
// 中止）只记录日志，不中断其余孤块的处理，更不能覆盖提交者自身
// 已经成功的结果；失败的孤块若已写入元数据存储，其后代照常级联。
// 只有致命（链已停写）或存储损坏类错误才向上传播。
func (s *State) cascadeLocked(ctx context.Context, parentHash types.Hash) error {
	queue := []types.Hash{parentHash}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, block := range s.orphans.TakeChildrenOf(parent) {
			hash := block.Hash()

			parentMeta, err := s.metaStore.Get(ctx, parent)
			if err != nil {
				return err
			}
			if parentMeta == nil {
				return fmt.Errorf("级联父区块缺失 %s: %w", types.ShortHash(parent), types.ErrCorruptedState)
			}

			blockWork, err := s.validator.Validate(ctx, block, parentMeta)
			if err != nil {
				s.logger.Warnf("级联孤块验证失败，丢弃 hash=%s: %v", types.ShortHash(hash), err)
				continue
			}

			if _, err := s.connectLocked(ctx, block, parentMeta, blockWork); err != nil {
				if s.isFatalCascadeErr(err) {
					return err
				}
				s.logger.Warnf("级联孤块接入失败 hash=%s: %v", types.ShortHash(hash), err)
				// 区块可能已入库（如重组中止前的登记）：其后代仍可接续级联
				if known, hErr := s.metaStore.Has(ctx, hash); hErr == nil && known {
					queue = append(queue, hash)
				}
				continue
			}
			queue = append(queue, hash)
		}
	}
	return nil
}

// isFatalCascadeErr 判断级联中的错误是否必须中断整个级联
func (s *State) isFatalCascadeErr(err error) bool {
	var reorgErr *reorg.Error
	if errors.As(err, &reorgErr) && reorgErr.Class == reorg.ClassFatal {
		return true
	}
	return errors.Is(err, types.ErrCorruptedState) || errors.Is(err, types.ErrChainHalted)
}

// storeOrphan 父区块未知：入孤块池
//
// 在临界区内复核父区块仍然缺失后才入池，封死"父区块在检查与
// 入池之间完成级联"导致孤块滞留的窗口。父区块已到达时返回
// stored=false，由调用方重走接入路径。
func (s *State) storeOrphan(ctx context.Context, block *types.Block) (*types.SubmitResult, bool, error) {
	hash := block.Hash()
	missing := block.Header.PreviousHash

	s.mu.Lock()
	defer s.mu.Unlock()

	if known, err := s.metaStore.Has(ctx, missing); err != nil {
		return nil, false, err
	} else if known {
		return nil, false, nil
	}

	if s.orphans.Store(block) {
		s.metrics.orphanStored()
		s.publish(types.EventTypeBlockOrphaned, ctx, types.BlockOrphanedEvent{
			Hash:          hash,
			MissingParent: missing,
		})
		s.logger.Infof("孤块等待父区块 hash=%s missing=%s", types.ShortHash(hash), types.ShortHash(missing))
	}

	return &types.SubmitResult{
		Status: types.SubmitStatusOrphaned,
		Hash:   hash,
		Height: block.Header.Height,
	}, true, nil
}

// CurrentTip 返回当前主链链尖
func (s *State) CurrentTip(ctx context.Context) (*types.TipInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, err := s.metaStore.Tip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, types.ErrBlockNotFound
	}
	return tip, nil
}

// GetChainInfo 返回链综合信息
func (s *State) GetChainInfo(ctx context.Context) (*types.ChainInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, err := s.metaStore.Tip(ctx)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, types.ErrBlockNotFound
	}

	info := &types.ChainInfo{
		Height:         tip.Height,
		BestBlockHash:  tip.Hash,
		CumulativeWork: tip.Work,
		BranchCount:    len(s.branches.Tips()),
		OrphanCount:    s.orphans.Size(),
	}

	switch {
	case s.gate.IsReadOnly():
		info.Status = "halted"
	case s.reorging:
		info.Status = "reorganizing"
	default:
		info.Status = "normal"
		info.IsReady = true
	}

	if block, err := s.metaStore.GetBlock(ctx, tip.Hash); err == nil && block != nil {
		info.LastBlockTime = block.Header.Timestamp
	}
	return info, nil
}

// GetBranchTips 返回全部分支链尖，按工作量降序
func (s *State) GetBranchTips(_ context.Context) ([]types.BranchTip, error) {
	return s.branches.Tips(), nil
}

// IsOnMainChain 判断区块是否在当前主链上
func (s *State) IsOnMainChain(ctx context.Context, hash types.Hash) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.metaStore.Get(ctx, hash)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, types.ErrBlockNotFound
	}
	return s.metaStore.IsOnMainChain(ctx, hash)
}

// GetChainMetrics 返回指标快照
func (s *State) GetChainMetrics(_ context.Context) (*types.ChainMetrics, error) {
	return s.metrics.export(s.orphans.Size()), nil
}

// RunMaintenance 周期维护循环（孤块过期清理 + 回滚记录窗口裁剪）
//
// 由生命周期管理启动，StopMaintenance 退出。清理与写路径解耦，
// 不在热插入路径上增加延迟。
func (s *State) RunMaintenance(ctx context.Context) {
	defer close(s.evictDone)

	ticker := time.NewTicker(s.options.OrphanEvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.evictStop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maintain(ctx)
		}
	}
}

// StopMaintenance 停止维护循环并等待退出
func (s *State) StopMaintenance() {
	close(s.evictStop)
	<-s.evictDone
}

// Close 释放编排器持有的进程内资源（元数据读缓存）
//
// 不触碰 KVStore：其生命周期由存储模块管理。
func (s *State) Close() error {
	return s.metaStore.Close()
}

func (s *State) maintain(ctx context.Context) {
	evicted := s.orphans.EvictExpired()
	if len(evicted) > 0 {
		s.logger.Debugf("维护循环驱逐孤块 count=%d", len(evicted))
	}

	tip, err := s.metaStore.Tip(ctx)
	if err != nil || tip == nil {
		return
	}
	if tip.Height > s.options.UndoKeepWindow {
		if _, err := s.undoStore.PruneRetired(ctx, tip.Height-s.options.UndoKeepWindow); err != nil {
			s.logger.Warnf("回滚记录裁剪失败: %v", err)
		}
	}
	s.refreshGauges(ctx)
}

// checkWritable 写门闸检查
func (s *State) checkWritable() error {
	if s.gate.IsReadOnly() {
		if reason := s.gate.Reason(); reason != nil {
			return fmt.Errorf("%w: %v", types.ErrChainHalted, reason)
		}
		return types.ErrChainHalted
	}
	return nil
}

// publish 发布事件（总线未注入时静默跳过）
func (s *State) publish(eventType types.EventType, ctx context.Context, data interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, ctx, data)
}

func (s *State) refreshGauges(ctx context.Context) {
	tip, err := s.metaStore.Tip(ctx)
	if err != nil || tip == nil {
		return
	}
	s.metrics.setGauges(tip.Height, len(s.branches.Tips()), s.orphans.Size())
}
