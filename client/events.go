package client

import (
	"github.com/weisyn/batchrpc/client/core/rpc"
	eventIface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/event"
)

// 批次生命周期事件
const (
	// EventItemCompleted 单个响应被成功路由，负载 *ItemCompletedEvent
	EventItemCompleted eventIface.EventType = "rpc:item_completed"
	// EventProtocolViolation 未匹配 id 或重复响应，负载 *ProtocolViolationEvent
	EventProtocolViolation eventIface.EventType = "rpc:protocol_violation"
	// EventBatchFailed 传输失败并已执行升级策略，负载 *BatchFailedEvent
	EventBatchFailed eventIface.EventType = "rpc:batch_failed"
)

// ItemCompletedEvent 单个调用完成
type ItemCompletedEvent struct {
	TraceID  string
	Response rpc.ItemResponse
}

// ProtocolViolationEvent 协议违规
type ProtocolViolationEvent struct {
	TraceID string
	Err     error
}

// BatchFailedEvent 批次传输失败
type BatchFailedEvent struct {
	TraceID string
	Size    int
	Err     error
}
