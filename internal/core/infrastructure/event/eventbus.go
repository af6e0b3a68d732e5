// Package event 提供基于asaskevich/EventBus的事件总线实现
package event

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/obelisk/v1/pkg/interfaces/infrastructure/event"
)

// EventBus 是基于asaskevich/EventBus的实现
//
// 约定：Publish 的参数顺序为 args[0]=ctx（可为 nil），args[1]=事件数据。
// 链状态核心只作为生产者使用；订阅方（P2P 广播、钱包同步）自行决定
// 同步/异步消费方式。
type EventBus struct {
	bus evbus.Bus // 底层事件总线
}

// New 创建事件总线
func New() event.EventBus {
	return &EventBus{
		bus: evbus.New(),
	}
}

// Subscribe 订阅事件（同步回调）
func (b *EventBus) Subscribe(eventType event.EventType, handler interface{}) error {
	return b.bus.Subscribe(string(eventType), handler)
}

// SubscribeAsync 异步订阅事件
func (b *EventBus) SubscribeAsync(eventType event.EventType, handler interface{}, transactional bool) error {
	return b.bus.SubscribeAsync(string(eventType), handler, transactional)
}

// SubscribeOnce 一次性订阅事件
func (b *EventBus) SubscribeOnce(eventType event.EventType, handler interface{}) error {
	return b.bus.SubscribeOnce(string(eventType), handler)
}

// Publish 发布事件
func (b *EventBus) Publish(eventType event.EventType, args ...interface{}) {
	b.bus.Publish(string(eventType), args...)
}

// Unsubscribe 取消订阅
func (b *EventBus) Unsubscribe(eventType event.EventType, handler interface{}) error {
	return b.bus.Unsubscribe(string(eventType), handler)
}

// WaitAsync 等待所有异步处理完成
func (b *EventBus) WaitAsync() {
	b.bus.WaitAsync()
}

// HasCallback 检查指定事件类型是否有订阅者
func (b *EventBus) HasCallback(eventType event.EventType) bool {
	return b.bus.HasCallback(string(eventType))
}

// 编译时检查
var _ event.EventBus = (*EventBus)(nil)
