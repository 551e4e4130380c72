// 事件类型定义

package event

import eventIface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/event"

// EventType 事件类型
type EventType = eventIface.EventType

// 业务特定的事件类型由各自模块定义（例如 client 包中的 RPC 生命周期事件），
// 基础设施层只提供总线本身
