package reorg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/obelisk/v1/internal/core/chain/index"
	"github.com/obelisk/v1/internal/core/chain/undo"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/log"
	"github.com/obelisk/v1/pkg/interfaces/infrastructure/writegate"
	"github.com/obelisk/v1/pkg/interfaces/ledger"
	"github.com/obelisk/v1/pkg/types"
)

// Reorganizer 链重组器
//
// 由链状态编排器在单写者临界区内调用，自身不加锁。
type Reorganizer struct {
	metaStore *index.Store
	undoStore *undo.Store
	ledger    ledger.Ledger
	gate      writegate.WriteGate
	logger    log.Logger

	maxDepth int
}

// NewReorganizer 创建链重组器
func NewReorganizer(
	metaStore *index.Store,
	undoStore *undo.Store,
	ldg ledger.Ledger,
	gate writegate.WriteGate,
	maxDepth uint32,
	logger log.Logger,
) (*Reorganizer, error) {
	if metaStore == nil || undoStore == nil || ldg == nil {
		return nil, fmt.Errorf("重组器依赖不完整")
	}
	if gate == nil {
		gate = writegate.Default()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Reorganizer{
		metaStore: metaStore,
		undoStore: undoStore,
		ledger:    ldg,
		gate:      gate,
		logger:    logger,
		maxDepth:  int(maxDepth),
	}, nil
}

// plan 预检通过后的重组执行计划
//
// 物化全部区块原文与回滚记录，保证进入断开阶段后
// 不再出现"读不到数据"这类可拒绝的失败。
type plan struct {
	session    string
	forkHeight uint64
	oldTip     *types.BlockMetadata
	newTip     *types.BlockMetadata

	// detach 自旧链尖向分叉点逆序
	detach     []*types.BlockMetadata
	detachBlk  []*types.Block
	detachUndo []*types.UndoRecord

	// attach 自分叉点向新链尖正序
	attach    []*types.BlockMetadata
	attachBlk []*types.Block
}

// Execute 把主链切换到 candidateTip
//
// 前置条件（由调用方保证）：candidateTip 已在元数据存储中登记，
// 且其累计工作量严格超过当前主链尖。
// 返回的摘要描述了断开与接入的完整序列，供事件发布使用。
func (r *Reorganizer) Execute(ctx context.Context, candidateTip types.Hash) (*types.ReorgSummary, error) {
	session := uuid.New().String()
	logger := r.logger.With("session", session)

	p, err := r.prepare(ctx, session, candidateTip)
	if err != nil {
		return nil, err
	}

	logger.Infof("开始重组 oldTip=%s newTip=%s fork=%d disconnect=%d connect=%d",
		types.ShortHash(p.oldTip.Hash), types.ShortHash(p.newTip.Hash),
		p.forkHeight, len(p.detach), len(p.attach))

	if err := r.disconnect(ctx, p); err != nil {
		return nil, err
	}

	newUndos, err := r.connect(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := r.commit(ctx, p, newUndos); err != nil {
		return nil, err
	}

	logger.Infof("重组完成 newTip=%s height=%d", types.ShortHash(p.newTip.Hash), p.newTip.Height)

	summary := &types.ReorgSummary{
		ForkHeight:   p.forkHeight,
		OldTip:       p.oldTip.Hash,
		NewTip:       p.newTip.Hash,
		Disconnected: hashesOf(p.detach),
		Connected:    hashesOf(p.attach),
	}
	return summary, nil
}

// prepare 分叉点查找 + 路径物化 + 结构预检
//
// 本阶段只读，任何失败都以 rejected 返回，链状态不变。
func (r *Reorganizer) prepare(ctx context.Context, session string, candidateTip types.Hash) (*plan, error) {
	reject := func(err error) (*plan, error) {
		return nil, newError(session, PhasePrepare, ClassRejected, err)
	}

	tip, err := r.metaStore.Tip(ctx)
	if err != nil {
		return reject(err)
	}
	if tip == nil {
		return reject(fmt.Errorf("主链尖缺失: %w", types.ErrCorruptedState))
	}

	oldTip, err := r.metaStore.Get(ctx, tip.Hash)
	if err != nil {
		return reject(err)
	}
	newTip, err := r.metaStore.Get(ctx, candidateTip)
	if err != nil {
		return reject(err)
	}
	if oldTip == nil || newTip == nil {
		return reject(fmt.Errorf("链尖元数据缺失: %w", types.ErrCorruptedState))
	}

	fork, err := r.findForkPoint(ctx, oldTip, newTip)
	if err != nil {
		return reject(err)
	}

	detach, err := r.metaStore.PathToAncestor(ctx, oldTip.Hash, fork.Hash, r.maxDepth+1)
	if err != nil {
		return reject(err)
	}
	attachDesc, err := r.metaStore.PathToAncestor(ctx, newTip.Hash, fork.Hash, 0)
	if err != nil {
		return reject(err)
	}

	// 候选路径升序排列并做结构预检：父链接与高度连续性
	attach := make([]*types.BlockMetadata, 0, len(attachDesc))
	for i := len(attachDesc) - 1; i >= 0; i-- {
		attach = append(attach, attachDesc[i])
	}
	prevHash, prevHeight := fork.Hash, fork.Height
	for _, meta := range attach {
		if meta.ParentHash != prevHash || meta.Height != prevHeight+1 {
			return reject(fmt.Errorf("候选路径结构损坏 at=%s: %w",
				types.ShortHash(meta.Hash), types.ErrCorruptedState))
		}
		prevHash, prevHeight = meta.Hash, meta.Height
	}

	p := &plan{
		session:    session,
		forkHeight: fork.Height,
		oldTip:     oldTip,
		newTip:     newTip,
		detach:     detach,
		attach:     attach,
	}

	// 物化区块原文与回滚记录，进入写阶段前消灭所有可预见的读失败
	for _, meta := range detach {
		block, err := r.metaStore.GetBlock(ctx, meta.Hash)
		if err != nil {
			return reject(err)
		}
		if block == nil {
			return reject(fmt.Errorf("旧链区块原文缺失 %s: %w", types.ShortHash(meta.Hash), types.ErrCorruptedState))
		}
		record, err := r.undoStore.Get(ctx, meta.Hash)
		if err != nil {
			return reject(err)
		}
		if record == nil {
			return reject(fmt.Errorf("旧链回滚记录缺失 %s: %w", types.ShortHash(meta.Hash), types.ErrCorruptedState))
		}
		p.detachBlk = append(p.detachBlk, block)
		p.detachUndo = append(p.detachUndo, record)
	}
	for _, meta := range attach {
		block, err := r.metaStore.GetBlock(ctx, meta.Hash)
		if err != nil {
			return reject(err)
		}
		if block == nil {
			return reject(fmt.Errorf("候选区块原文缺失 %s: %w", types.ShortHash(meta.Hash), types.ErrCorruptedState))
		}
		p.attachBlk = append(p.attachBlk, block)
	}

	return p, nil
}

// findForkPoint 双向回溯找公共祖先
//
// 回溯深度以旧链侧（需要断开的区块数）计量，超过 maxDepth
// 时返回 ErrReorgDepthExceeded——候选分支的接入长度不设限。
func (r *Reorganizer) findForkPoint(ctx context.Context, oldTip, newTip *types.BlockMetadata) (*types.BlockMetadata, error) {
	a, b := newTip, oldTip

	walk := func(meta *types.BlockMetadata) (*types.BlockMetadata, error) {
		parent, err := r.metaStore.Get(ctx, meta.ParentHash)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("回溯断裂 at=%s: %w", types.ShortHash(meta.Hash), types.ErrCorruptedState)
		}
		return parent, nil
	}

	// 候选侧先对齐到主链高度
	var err error
	for a.Height > b.Height {
		if a, err = walk(a); err != nil {
			return nil, err
		}
	}

	steps := 0
	descend := func() error {
		steps++
		if steps > r.maxDepth {
			return fmt.Errorf("分叉点深度超过 %d: %w", r.maxDepth, types.ErrReorgDepthExceeded)
		}
		b, err = walk(b)
		return err
	}

	for b.Height > a.Height {
		if err := descend(); err != nil {
			return nil, err
		}
	}
	for a.Hash != b.Hash {
		if err := descend(); err != nil {
			return nil, err
		}
		if a, err = walk(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// disconnect 自旧链尖逆序回滚账本
//
// 任何一次 undo 失败都说明回滚记录或账本状态已损坏，
// 属于致命错误：触发写门闸停写，不做恢复尝试。
func (r *Reorganizer) disconnect(ctx context.Context, p *plan) error {
	for i, meta := range p.detach {
		if err := r.ledger.Undo(ctx, p.detachBlk[i], p.detachUndo[i]); err != nil {
			fatal := fmt.Errorf("账本回滚失败 block=%s: %w", types.ShortHash(meta.Hash), err)
			r.halt(fatal)
			return newError(p.session, PhaseDisconnect, ClassFatal, fatal)
		}
		r.logger.Debugf("已断开 block=%s height=%d", types.ShortHash(meta.Hash), meta.Height)
	}
	return nil
}

// connect 自分叉点正序应用新链
//
// 某一块应用失败时中止重组：先撤销本次已应用的新链前缀，
// 再按正序重放旧链，恢复失败升级为致命错误。
func (r *Reorganizer) connect(ctx context.Context, p *plan) ([]*types.UndoRecord, error) {
	applied := make([]*types.UndoRecord, 0, len(p.attach))

	for i, meta := range p.attach {
		record, err := r.ledger.Apply(ctx, p.attachBlk[i])
		if err != nil {
			applyErr := fmt.Errorf("账本应用失败 block=%s: %w", types.ShortHash(meta.Hash), err)
			r.logger.Warnf("重组中止，恢复旧链: %v", applyErr)
			if restoreErr := r.restore(ctx, p, applied); restoreErr != nil {
				return nil, restoreErr
			}
			return nil, newError(p.session, PhaseConnect, ClassAborted, applyErr)
		}
		applied = append(applied, record)
		r.logger.Debugf("已接入 block=%s height=%d", types.ShortHash(meta.Hash), meta.Height)
	}
	return applied, nil
}

// restore 中止路径：撤销新链前缀，按正序重放旧链
//
// 成功后外界观察到的账本与重组前逐字节一致；
// 本路径上的任何失败都意味着状态不一致，必须停写。
func (r *Reorganizer) restore(ctx context.Context, p *plan, applied []*types.UndoRecord) error {
	for i := len(applied) - 1; i >= 0; i-- {
		if err := r.ledger.Undo(ctx, p.attachBlk[i], applied[i]); err != nil {
			fatal := fmt.Errorf("恢复时撤销新链失败 block=%s: %w",
				types.ShortHash(p.attach[i].Hash), err)
			r.halt(fatal)
			return newError(p.session, PhaseRestore, ClassFatal, fatal)
		}
	}

	// 旧链按正序（分叉点向上）重放，产生的新回滚记录覆盖旧记录
	for i := len(p.detach) - 1; i >= 0; i-- {
		record, err := r.ledger.Apply(ctx, p.detachBlk[i])
		if err != nil {
			fatal := fmt.Errorf("恢复时重放旧链失败 block=%s: %w",
				types.ShortHash(p.detach[i].Hash), err)
			r.halt(fatal)
			return newError(p.session, PhaseRestore, ClassFatal, fatal)
		}
		if err := r.undoStore.Put(ctx, record); err != nil {
			fatal := fmt.Errorf("恢复时写回滚记录失败: %w", err)
			r.halt(fatal)
			return newError(p.session, PhaseRestore, ClassFatal, fatal)
		}
	}
	return nil
}

// commit 持久化切换结果
//
// 主链索引切换是单事务原子操作；回滚记录与退役标记的写入
// 失败视为致命（索引与账本已指向新链，不能再回头）。
func (r *Reorganizer) commit(ctx context.Context, p *plan, newUndos []*types.UndoRecord) error {
	fail := func(err error) error {
		r.halt(err)
		return newError(p.session, PhaseCommit, ClassFatal, err)
	}

	for _, record := range newUndos {
		if err := r.undoStore.Put(ctx, record); err != nil {
			return fail(fmt.Errorf("写入新链回滚记录失败: %w", err))
		}
	}
	// 新链区块若曾被断开过，撤销其退役标记
	for _, meta := range p.attach {
		if err := r.undoStore.Reinstate(ctx, meta.Hash, meta.Height); err != nil {
			return fail(fmt.Errorf("撤销退役标记失败: %w", err))
		}
	}
	for _, meta := range p.detach {
		if err := r.undoStore.MarkRetired(ctx, meta.Hash, meta.Height); err != nil {
			return fail(fmt.Errorf("登记退役标记失败: %w", err))
		}
	}

	if err := r.metaStore.SwitchMainChain(ctx, p.oldTip.Height, p.attach); err != nil {
		return fail(err)
	}
	return nil
}

// halt 进入只读模式
func (r *Reorganizer) halt(reason error) {
	r.gate.EnterReadOnly(reason)
	r.logger.Errorf("链写入已停止: %v", reason)
}

func hashesOf(metas []*types.BlockMetadata) []types.Hash {
	out := make([]types.Hash, 0, len(metas))
	for _, meta := range metas {
		out = append(out, meta.Hash)
	}
	return out
}
