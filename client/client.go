// Package client 提供批量 JSON-RPC 客户端门面
//
// Client 负责把批次封存、交给传输层发送、按 id 路由每条响应，
// 并在传输失败时交给 FailureEscalator 处理仍挂起的调用。
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/client/core/transport"
	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	eventIface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// Client 批量 RPC 客户端
type Client struct {
	transport transport.Transport
	escalator rpc.FailureEscalator
	logger    log.Logger
	metrics   *Metrics
	bus       eventIface.EventBus
	timeout   time.Duration
}

// Option 客户端配置项
type Option func(*Client)

// WithEscalator 替换批次级失败策略（默认 rpc.FailPending）
func WithEscalator(e rpc.FailureEscalator) Option {
	return func(c *Client) {
		c.escalator = e
	}
}

// WithLogger 设置日志记录器
func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithEventBus 设置事件总线，批次生命周期事件会发布到总线上
func WithEventBus(bus eventIface.EventBus) Option {
	return func(c *Client) {
		c.bus = bus
	}
}

// WithTimeout 每个批次的超时，0 表示只受调用方 ctx 控制
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New 使用给定传输创建客户端
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{transport: t}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logimpl.NewModuleLogger(c.logger, "client")
	if c.escalator == nil {
		c.escalator = rpc.NewFailPending(c.logger)
	}
	return c
}

// NewHTTP 创建使用 HTTP 传输的客户端
func NewHTTP(endpoint string, opts ...Option) *Client {
	return New(transport.NewHTTPTransport(endpoint), opts...)
}

// Transport 底层传输
func (c *Client) Transport() transport.Transport {
	return c.transport
}

// Close 关闭底层传输
func (c *Client) Close() error {
	return c.transport.Close()
}

// ExecuteCalls 把一组调用放进新批次并执行
func (c *Client) ExecuteCalls(ctx context.Context, calls ...rpc.Descriptor) (*Execution, error) {
	b := rpc.NewBatch()
	for _, call := range calls {
		if _, err := b.AddCall(call); err != nil {
			return nil, err
		}
	}
	return c.Execute(ctx, b)
}

// Execute 封存并发送批次，立即返回执行句柄
//
// 批次为空或已封存时返回错误且不接触传输层。发送与路由在后台进行，
// 通过 Execution 观察结果；每个 Slot 最终都会进入终态。
func (c *Client) Execute(ctx context.Context, b *rpc.Batch) (*Execution, error) {
	requests, err := b.Seal()
	if err != nil {
		return nil, err
	}
	exec := &Execution{
		batch:     b,
		responses: make(chan rpc.ItemResponse, len(requests)),
		done:      make(chan struct{}),
	}
	go c.run(ctx, exec, requests)
	return exec, nil
}

// run 发送任务与路由任务并行，二者都结束后才执行升级策略与终结步骤
func (c *Client) run(ctx context.Context, exec *Execution, requests []rpc.Request) {
	start := time.Now()
	b := exec.batch
	logger := c.logger.With("batch", b.TraceID(), "size", len(requests))
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	registry, err := b.Registry()
	if err != nil {
		// Execute 已封存批次，这里不会发生
		logger.Errorf("批次注册表不可用: %v", err)
		return
	}
	router := rpc.NewRouter(registry, logger, func(r rpc.ItemResponse) {
		exec.responses <- r
		c.publish(EventItemCompleted, &ItemCompletedEvent{TraceID: b.TraceID(), Response: r})
	})

	sink := make(chan rpc.Envelope, len(requests))
	var g errgroup.Group
	g.Go(func() error {
		defer close(sink)
		return c.transport.Send(ctx, requests, sink)
	})
	g.Go(func() error {
		for env := range sink {
			if err := router.Route(env); err != nil {
				exec.addViolation(err)
				c.metrics.observeViolation(err)
				c.publish(EventProtocolViolation, &ProtocolViolationEvent{TraceID: b.TraceID(), Err: err})
			}
		}
		return nil
	})
	sendErr := g.Wait()

	if sendErr == nil {
		if pending := b.Pending(); pending > 0 {
			sendErr = fmt.Errorf("%w: %d of %d calls", rpc.ErrMissingResponses, pending, len(requests))
		}
	}
	if sendErr != nil {
		exec.err = c.escalator.Escalate(b, sendErr)
		c.publish(EventBatchFailed, &BatchFailedEvent{TraceID: b.TraceID(), Size: len(requests), Err: sendErr})
	}

	b.Close()
	close(exec.responses)
	c.metrics.observeBatch(b, exec.err, time.Since(start))
	if exec.err != nil {
		logger.Warnf("批次传输失败: %v", exec.err)
	} else {
		logger.Debugf("批次完成，耗时 %s", time.Since(start))
	}
	close(exec.done)
}

func (c *Client) publish(topic eventIface.EventType, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(topic, payload)
}

// Execution 一次批次执行的聚合观察句柄
type Execution struct {
	batch     *rpc.Batch
	responses chan rpc.ItemResponse
	done      chan struct{}
	err       error

	mu         sync.Mutex
	violations error
}

// Batch 被执行的批次
func (e *Execution) Batch() *rpc.Batch {
	return e.batch
}

// TraceID 批次追踪 id
func (e *Execution) TraceID() string {
	return e.batch.TraceID()
}

// Responses 每个成功路由的响应一条；全部处理完毕后关闭
//
// 通道缓冲为批次大小，不读取也不会阻塞路由。
func (e *Execution) Responses() <-chan rpc.ItemResponse {
	return e.responses
}

// Done 执行结束（包括升级策略与终结步骤）时关闭
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait 等待执行结束，返回批次级错误（传输失败时为 *rpc.TransportError）
func (e *Execution) Wait() error {
	<-e.done
	return e.err
}

// WaitContext 同 Wait，ctx 结束时提前返回 ctx.Err()；批次本身不受影响
func (e *Execution) WaitContext(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Violations 路由过程中的协议违规（未匹配 id、重复响应），用 multierr 聚合
func (e *Execution) Violations() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violations
}

func (e *Execution) addViolation(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.violations = multierr.Append(e.violations, err)
}

// Execute 单调用便捷方法：把 call 放进大小为 1 的批次并等待结果
//
// 返回 (值, true, nil) 表示成功；服务端错误或形状不符时返回对应错误；
// 传输失败时返回 (零值, false, nil)，传输错误只交给 Slot 自己的观察者；
// 自定义升级策略未处理而被放弃的调用同样视为传输失败。
func Execute[JS, RES any](ctx context.Context, c *Client, call *rpc.Call[JS, RES]) (RES, bool, error) {
	var zero RES
	slot, exec, err := ExecuteObserved(ctx, c, call)
	if err != nil {
		return zero, false, err
	}
	batchErr := exec.Wait()
	value, err := slot.Outcome()
	if err != nil {
		if rpc.IsTransportError(err) || (batchErr != nil && (errors.Is(err, batchErr) || errors.Is(err, rpc.ErrBatchAbandoned))) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return value, true, nil
}

// ExecuteObserved 同 Execute 但立即返回 Slot 与执行句柄，调用方自行观察
func ExecuteObserved[JS, RES any](ctx context.Context, c *Client, call *rpc.Call[JS, RES]) (*rpc.Slot[JS, RES], *Execution, error) {
	b := rpc.NewBatch()
	slot, err := rpc.Add(b, call)
	if err != nil {
		return nil, nil, err
	}
	exec, err := c.Execute(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return slot, exec, nil
}
