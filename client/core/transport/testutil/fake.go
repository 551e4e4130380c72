// Package testutil 提供用于测试的脚本化传输
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/weisyn/batchrpc/client/core/rpc"
)

// ErrHold Handler 返回它时，Send 交付响应后阻塞到 ctx 结束
var ErrHold = errors.New("testutil: hold until context done")

// Handler 决定一次 Send 交付哪些响应以及最终返回的错误
//
// 返回的响应按顺序写入 sink，然后 Send 返回 err。
type Handler func(ctx context.Context, requests []rpc.Request) ([]rpc.Envelope, error)

// Transport 内存传输，记录每次收到的请求
type Transport struct {
	handler Handler

	mu     sync.Mutex
	sent   [][]rpc.Request
	closed bool
}

// New 创建脚本化传输
func New(handler Handler) *Transport {
	return &Transport{handler: handler}
}

// Send 实现 transport.Transport
func (t *Transport) Send(ctx context.Context, requests []rpc.Request, sink chan<- rpc.Envelope) error {
	t.mu.Lock()
	copied := make([]rpc.Request, len(requests))
	copy(copied, requests)
	t.sent = append(t.sent, copied)
	t.mu.Unlock()

	envs, err := t.handler(ctx, requests)
	for _, env := range envs {
		select {
		case sink <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if errors.Is(err, ErrHold) {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

// Close 实现 transport.Transport
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed 是否已关闭
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Sent 每次 Send 收到的请求
func (t *Transport) Sent() [][]rpc.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]rpc.Request, len(t.sent))
	copy(out, t.sent)
	return out
}

// Reply 对每个请求调用 fn 生成响应
func Reply(fn func(req rpc.Request) rpc.Envelope) Handler {
	return func(_ context.Context, requests []rpc.Request) ([]rpc.Envelope, error) {
		out := make([]rpc.Envelope, 0, len(requests))
		for _, req := range requests {
			out = append(out, fn(req))
		}
		return out, nil
	}
}

// Results 按方法名返回固定结果；未知方法返回 method not found
func Results(byMethod map[string]any) Handler {
	return Reply(func(req rpc.Request) rpc.Envelope {
		v, ok := byMethod[req.Method]
		if !ok {
			return rpc.NewErrorEnvelope(req.ID, rpc.CodeMethodNotFound, "the method "+req.Method+" does not exist")
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return rpc.NewErrorEnvelope(req.ID, rpc.CodeInternalError, err.Error())
		}
		return rpc.NewResultEnvelope(req.ID, raw)
	})
}

// Reversed 以相反顺序交付 h 的响应
func Reversed(h Handler) Handler {
	return func(ctx context.Context, requests []rpc.Request) ([]rpc.Envelope, error) {
		envs, err := h(ctx, requests)
		for i, j := 0, len(envs)-1; i < j; i, j = i+1, j-1 {
			envs[i], envs[j] = envs[j], envs[i]
		}
		return envs, err
	}
}

// Partial 只交付 h 的前 k 条响应，然后以 err 失败
func Partial(k int, err error, h Handler) Handler {
	return func(ctx context.Context, requests []rpc.Request) ([]rpc.Envelope, error) {
		envs, _ := h(ctx, requests)
		if k < len(envs) {
			envs = envs[:k]
		}
		return envs, err
	}
}

// Fail 不交付任何响应，直接以 err 失败
func Fail(err error) Handler {
	return func(context.Context, []rpc.Request) ([]rpc.Envelope, error) {
		return nil, err
	}
}

// Extra 在 h 的响应之后追加额外响应（用于构造未知 id、重复响应）
func Extra(h Handler, extra ...rpc.Envelope) Handler {
	return func(ctx context.Context, requests []rpc.Request) ([]rpc.Envelope, error) {
		envs, err := h(ctx, requests)
		return append(envs, extra...), err
	}
}

// Block 交付 h 的响应后一直阻塞到 ctx 结束
func Block(h Handler) Handler {
	return func(ctx context.Context, requests []rpc.Request) ([]rpc.Envelope, error) {
		envs, _ := h(ctx, requests)
		return envs, ErrHold
	}
}
