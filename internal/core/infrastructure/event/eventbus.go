// 基于asaskevich/EventBus的事件总线实现

package event

import (
	"fmt"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	eventIface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/event"
)

// EventBus 是对 asaskevich/EventBus 的轻量封装，附带发布计数
type EventBus struct {
	bus       evbus.Bus
	published atomic.Uint64
}

// New 创建事件总线实例
func New() eventIface.EventBus {
	return &EventBus{bus: evbus.New()}
}

// Subscribe 同步订阅
func (eb *EventBus) Subscribe(eventType EventType, handler interface{}) error {
	if err := eb.bus.Subscribe(string(eventType), handler); err != nil {
		return fmt.Errorf("subscribe %s: %w", eventType, err)
	}
	return nil
}

// SubscribeAsync 异步订阅；transactional 为 true 时同一主题的回调串行执行
func (eb *EventBus) SubscribeAsync(eventType EventType, handler interface{}, transactional bool) error {
	if err := eb.bus.SubscribeAsync(string(eventType), handler, transactional); err != nil {
		return fmt.Errorf("subscribe async %s: %w", eventType, err)
	}
	return nil
}

// Publish 发布事件
func (eb *EventBus) Publish(eventType EventType, args ...interface{}) {
	eb.published.Add(1)
	eb.bus.Publish(string(eventType), args...)
}

// Unsubscribe 取消订阅
func (eb *EventBus) Unsubscribe(eventType EventType, handler interface{}) error {
	if err := eb.bus.Unsubscribe(string(eventType), handler); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", eventType, err)
	}
	return nil
}

// WaitAsync 等待所有异步回调完成
func (eb *EventBus) WaitAsync() {
	eb.bus.WaitAsync()
}

// HasCallback 是否存在订阅者
func (eb *EventBus) HasCallback(eventType EventType) bool {
	return eb.bus.HasCallback(string(eventType))
}

// Published 已发布的事件总数
func (eb *EventBus) Published() uint64 {
	return eb.published.Load()
}
