package state

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/obelisk/v1/pkg/types"
)

// metricsSet 链状态指标
//
// 对外暴露两套视图：Prometheus 采集器（运维侧）与
// ChainMetrics 快照（GetChainMetrics 查询）。
type metricsSet struct {
	mu       sync.Mutex
	snapshot types.ChainMetrics
	// depthSum 用于计算平均重组深度
	depthSum uint64

	chainHeight    prometheus.Gauge
	branchCount    prometheus.Gauge
	orphanPoolSize prometheus.Gauge
	blocksTotal    prometheus.Counter
	orphansTotal   prometheus.Counter
	forksTotal     prometheus.Counter
	reorgsTotal    prometheus.Counter
	reorgsAborted  prometheus.Counter
	reorgDepthHist prometheus.Histogram
}

// newMetrics 创建指标集并注册到 reg（nil 时只保留快照统计）
func newMetrics(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		chainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "height",
			Help: "当前主链高度",
		}),
		branchCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "branch_count",
			Help: "已知分支链尖数量",
		}),
		orphanPoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "orphan_pool_size",
			Help: "孤块池当前大小",
		}),
		blocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "blocks_accepted_total",
			Help: "已接受区块总数（含侧链）",
		}),
		orphansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "orphans_total",
			Help: "进入孤块池的区块总数",
		}),
		forksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "forks_total",
			Help: "观测到的分叉次数",
		}),
		reorgsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "reorgs_total",
			Help: "已执行的重组次数",
		}),
		reorgsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "reorgs_aborted_total",
			Help: "中止并成功回退的重组次数",
		}),
		reorgDepthHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "obelisk", Subsystem: "chain", Name: "reorg_depth",
			Help:    "重组断开深度分布",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.chainHeight, m.branchCount, m.orphanPoolSize,
			m.blocksTotal, m.orphansTotal, m.forksTotal,
			m.reorgsTotal, m.reorgsAborted, m.reorgDepthHist,
		)
	}
	return m
}

func (m *metricsSet) blockAccepted() {
	m.mu.Lock()
	m.snapshot.TotalBlocks++
	m.mu.Unlock()
	m.blocksTotal.Inc()
}

func (m *metricsSet) orphanStored() {
	m.mu.Lock()
	m.snapshot.TotalOrphans++
	m.mu.Unlock()
	m.orphansTotal.Inc()
}

func (m *metricsSet) forkObserved() {
	m.mu.Lock()
	m.snapshot.TotalForks++
	m.mu.Unlock()
	m.forksTotal.Inc()
}

func (m *metricsSet) reorgExecuted(depth int) {
	m.mu.Lock()
	m.snapshot.TotalReorgs++
	m.depthSum += uint64(depth)
	if uint32(depth) > m.snapshot.MaxReorgDepth {
		m.snapshot.MaxReorgDepth = uint32(depth)
	}
	m.snapshot.AvgReorgDepth = float64(m.depthSum) / float64(m.snapshot.TotalReorgs)
	m.mu.Unlock()

	m.reorgsTotal.Inc()
	m.reorgDepthHist.Observe(float64(depth))
}

func (m *metricsSet) reorgAborted() {
	m.mu.Lock()
	m.snapshot.AbortedReorgs++
	m.mu.Unlock()
	m.reorgsAborted.Inc()
}

func (m *metricsSet) setGauges(height uint64, branches, orphans int) {
	m.chainHeight.Set(float64(height))
	m.branchCount.Set(float64(branches))
	m.orphanPoolSize.Set(float64(orphans))
}

// export 返回快照副本
func (m *metricsSet) export(orphanPoolSize int) *types.ChainMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snapshot
	out.OrphanPoolSize = orphanPoolSize
	return &out
}
