package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/types"
)

// 订阅推送使用的方法名
const subscriptionMethod = "eth_subscription"

// 错误对象缺省字段时的默认值
const (
	defaultNotificationErrorCode    = 0
	defaultNotificationErrorMessage = "UNKNOWN ERROR"
)

// Notification WebSocket 推送的订阅事件
type Notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result,omitempty"`
	ID           *int            `json:"id,omitempty"`
	Error        json.RawMessage `json:"error,omitempty"`
}

// ExtractError 解析推送中的错误对象；没有错误时返回 nil
//
// 缺失的字段取默认值：code 0，message "UNKNOWN ERROR"。
func (n *Notification) ExtractError() *rpc.RPCError {
	if len(n.Error) == 0 || string(n.Error) == "null" {
		return nil
	}
	var obj struct {
		Code    *int            `json:"code"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	out := &rpc.RPCError{
		Code:    defaultNotificationErrorCode,
		Message: defaultNotificationErrorMessage,
	}
	if err := json.Unmarshal(n.Error, &obj); err != nil {
		out.Data = n.Error
		return out
	}
	if obj.Code != nil {
		out.Code = *obj.Code
	}
	if obj.Message != nil {
		out.Message = *obj.Message
	}
	out.Data = obj.Data
	return out
}

// StringResult 结果为字符串时返回其文本（例如 newPendingTransactions 的交易哈希）
func (n *Notification) StringResult() (string, error) {
	var s string
	if err := json.Unmarshal(n.Result, &s); err != nil {
		return "", fmt.Errorf("notification result is not a string: %w", err)
	}
	return s, nil
}

// BlockResult 将结果解析为区块头（newHeads）
func (n *Notification) BlockResult() (*types.Block, error) {
	var b types.Block
	if err := json.Unmarshal(n.Result, &b); err != nil {
		return nil, fmt.Errorf("notification result is not a block: %w", err)
	}
	return &b, nil
}

// Subscription 单个订阅 id 的推送流
type Subscription struct {
	id     string
	events chan Notification
	errs   chan error

	mu      sync.Mutex
	closed  bool
	dropped int
	detach  func()
}

func newSubscription(id string, buffer int, detach func()) *Subscription {
	return &Subscription{
		id:     id,
		events: make(chan Notification, buffer),
		errs:   make(chan error, 1),
		detach: detach,
	}
}

// ID 订阅 id
func (s *Subscription) ID() string {
	return s.id
}

// Notifications 推送事件
func (s *Subscription) Notifications() <-chan Notification {
	return s.events
}

// Err 连接断开时收到一次错误
func (s *Subscription) Err() <-chan error {
	return s.errs
}

// Close 停止接收推送；不会向节点发送 eth_unsubscribe
func (s *Subscription) Close() {
	if s.detach != nil {
		s.detach()
	}
}

// Dropped 因缓冲已满被丢弃的推送数
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// push 非阻塞投递；缓冲已满时丢弃并返回 false，已关闭时静默忽略
func (s *Subscription) push(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- n:
		return true
	default:
		s.dropped++
		return false
	}
}

// terminate 由连接在注销订阅后调用，关闭全部通道
func (s *Subscription) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		s.errs <- err
	}
	close(s.events)
	close(s.errs)
}
