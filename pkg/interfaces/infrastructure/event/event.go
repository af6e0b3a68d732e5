// Package event 提供系统的事件总线接口定义
//
// 🎯 **事件总线系统 (Event Bus System)**
//
// 本文件定义了系统的事件总线接口，支持：
// - 标准事件订阅和发布
// - 异步事件处理
// - 事件回调检查
//
// 链状态核心只作为生产者使用事件总线：发布区块连接、孤块、
// 链重组等事件；不依赖任何订阅方的消费结果。
package event

import "github.com/obelisk/v1/pkg/types"

// 兼容别名
type EventType = types.EventType

// EventBus 事件总线接口
//
// 约定：Publish 的参数顺序为 args[0]=ctx（可为 nil），args[1]=事件数据。
type EventBus interface {
	// Subscribe 订阅事件（同步回调）
	Subscribe(eventType EventType, handler interface{}) error

	// SubscribeAsync 异步订阅事件
	//
	// transactional 为 true 时，同一订阅者的回调串行执行。
	SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error

	// SubscribeOnce 一次性订阅事件
	SubscribeOnce(eventType EventType, handler interface{}) error

	// Publish 发布事件
	Publish(eventType EventType, args ...interface{})

	// Unsubscribe 取消订阅
	Unsubscribe(eventType EventType, handler interface{}) error

	// WaitAsync 等待所有异步处理完成
	WaitAsync()

	// HasCallback 检查指定事件类型是否有订阅者
	HasCallback(eventType EventType) bool
}
