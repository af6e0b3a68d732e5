// Package writegate 提供全局写门闸接口，用于控制系统级写操作。
//
// WriteGate 是基础设施层组件，提供横切关注点的写控制能力：
//   - 只读模式（ReadOnly）：系统级故障保护，禁止所有链状态写操作
//
// 设计原则：
//   - 接口抽象：使用方依赖接口，不依赖具体实现
//   - 全局单例：通过 Default() 获取全局实例
//   - 多实例支持：测试场景可创建独立实例
//
// 典型场景：账本 undo 失败说明回滚记录或账本状态已损坏，继续写入
// 有静默损坏账本的风险，此时由重组器调用 EnterReadOnly 停写，
// 等待外部恢复（从检查点重同步）。
package writegate

import (
	"sync"
)

// WriteGate 全局写门闸接口
type WriteGate interface {
	// EnterReadOnly 进入只读模式，记录原因。
	// 幂等：重复调用保留最早的原因。
	EnterReadOnly(reason error)

	// IsReadOnly 返回当前是否处于只读模式。
	IsReadOnly() bool

	// Reason 返回进入只读模式的原因（未进入时为 nil）。
	Reason() error
}

// gate WriteGate 的默认实现
type gate struct {
	mu     sync.RWMutex
	locked bool
	reason error
}

// New 创建独立的 WriteGate 实例（测试场景使用）。
func New() WriteGate {
	return &gate{}
}

func (g *gate) EnterReadOnly(reason error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked {
		return
	}
	g.locked = true
	g.reason = reason
}

func (g *gate) IsReadOnly() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.locked
}

func (g *gate) Reason() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reason
}

var (
	defaultGate     WriteGate
	defaultGateOnce sync.Once
)

// Default 返回全局写门闸单例。
func Default() WriteGate {
	defaultGateOnce.Do(func() {
		defaultGate = New()
	})
	return defaultGate
}
