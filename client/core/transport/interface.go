// Package transport 提供批量 JSON-RPC 请求的传输实现
//
// 传输层只负责把整个批次发出去并把收到的每条响应交回；
// 响应与调用的对应关系由 rpc.Router 按 id 处理。
package transport

import (
	"context"

	"github.com/weisyn/batchrpc/client/core/rpc"
)

// Transport 批量请求的传输协作方
type Transport interface {
	// Send 发送整个批次，每收到一条响应就写入 sink
	//
	// 返回非 nil 错误表示整个交换失败；失败前已写入 sink 的响应仍然有效。
	// Send 返回后不得再写入 sink，sink 由调用方关闭。sink 可以无缓冲，
	// 调用方不读取时 Send 只阻塞到 ctx 结束，不影响同一连接上的其他批次。
	Send(ctx context.Context, requests []rpc.Request, sink chan<- rpc.Envelope) error

	// Close 释放连接
	Close() error
}
