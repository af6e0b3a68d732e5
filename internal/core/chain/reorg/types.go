// Package reorg 实现链重组器
//
// 🔁 **链重组器 (Reorganizer)**
//
// 当候选分支的累计工作量严格超过主链时，执行主链切换：
// 找分叉点 → 结构预检 → 断开旧链 → 接入新链 → 原子提交。
// 接入失败走恢复路径，把旧链精确恢复；回滚失败是致命错误，
// 触发全局写门闸进入只读模式。
package reorg

import "fmt"

// Phase 重组阶段
type Phase string

const (
	// PhasePrepare 准备阶段：分叉点查找、路径物化、结构预检
	PhasePrepare Phase = "prepare"

	// PhaseDisconnect 断开阶段：自旧链尖逆序回滚账本
	PhaseDisconnect Phase = "disconnect"

	// PhaseConnect 接入阶段：自分叉点正序应用新链
	PhaseConnect Phase = "connect"

	// PhaseRestore 恢复阶段：接入失败后重放旧链
	PhaseRestore Phase = "restore"

	// PhaseCommit 提交阶段：原子切换主链索引
	PhaseCommit Phase = "commit"
)

// ErrorClass 重组错误分类
type ErrorClass string

const (
	// ClassRejected 重组被拒绝，链状态未发生任何变化
	ClassRejected ErrorClass = "rejected"

	// ClassAborted 重组中止，旧主链已完整恢复
	ClassAborted ErrorClass = "aborted"

	// ClassFatal 致命错误，链状态可能不一致，写入已停止
	ClassFatal ErrorClass = "fatal"
)

// Error 重组错误
//
// Session 标识一次重组会话，与日志关联；Class 告知调用方
// 链状态的确定性结论：rejected/aborted 状态一致，fatal 必须停写。
type Error struct {
	Session string
	Phase   Phase
	Class   ErrorClass
	Err     error
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("重组%s(session=%s phase=%s): %v", e.Class, e.Session, e.Phase, e.Err)
}

// Unwrap 支持 errors.Is/As 穿透到底层错误
func (e *Error) Unwrap() error {
	return e.Err
}

// newError 构造重组错误
func newError(session string, phase Phase, class ErrorClass, err error) *Error {
	return &Error{Session: session, Phase: phase, Class: class, Err: err}
}
