package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// ErrClosed 连接已关闭
var ErrClosed = errors.New("transport: connection closed")

// WebSocketTransport 在一条长连接上发送批次并接收订阅推送
//
// 同一连接上可并发有多个批次，因此发送前把批次内 id 映射为连接内唯一的线上 id，
// 收到响应后再还原为批次内 id。
type WebSocketTransport struct {
	endpoint string
	conn     *websocket.Conn
	logger   log.Logger
	buffer   int

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]inflight
	subs    map[string]*Subscription

	readDone  chan struct{}
	readErr   error
	closeOnce sync.Once
	closing   chan struct{}
}

// inflight 线上 id 对应的批次与批次内 id
type inflight struct {
	batch   *wsBatch
	localID int
}

// wsBatch 一次 Send 的投递状态
type wsBatch struct {
	mu        sync.Mutex
	sink      chan<- rpc.Envelope
	remaining int
	closed    bool
	err       error
	done      chan struct{}

	// 正在写 sink 的投递数；Send 返回前等待其归零
	sending sync.WaitGroup
}

// deliver 投递一条响应；批次已结束或连接关闭时丢弃
//
// 写 sink 时不持有锁，sink 满时只阻塞到批次结束，不会卡住整条连接。
func (b *wsBatch) deliver(env rpc.Envelope, closing <-chan struct{}) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.sending.Add(1)
	b.mu.Unlock()
	defer b.sending.Done()

	select {
	case b.sink <- env:
	case <-b.done:
		return false
	case <-closing:
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining--
	if b.remaining == 0 && !b.closed {
		b.closed = true
		close(b.done)
	}
	return true
}

// abort 停止投递
func (b *wsBatch) abort() {
	b.abortWith(nil)
}

// abortWith 以 err 结束批次，Send 返回该错误
func (b *wsBatch) abortWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.err = err
		close(b.done)
	}
}

func (b *wsBatch) result() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// wsMessage 连接上收到的单条消息：响应或订阅推送
type wsMessage struct {
	rpc.Envelope
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// wireRequest 线上请求，id 为连接内唯一值
type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// DialWebSocket 建立 WebSocket 连接并启动读循环
func DialWebSocket(ctx context.Context, endpoint string, opts ...Option) (*WebSocketTransport, error) {
	o := buildOptions(opts)
	dialer := websocket.Dialer{
		HandshakeTimeout: o.handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, o.header)
	if resp != nil && resp.Body != nil {
		defer func() {
			if err := resp.Body.Close(); err != nil {
				o.logger.Warnf("关闭握手响应体失败: %v", err)
			}
		}()
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	t := &WebSocketTransport{
		endpoint: endpoint,
		conn:     conn,
		logger:   o.logger,
		buffer:   o.notificationBuffer,
		pending:  make(map[uint64]inflight),
		subs:     make(map[string]*Subscription),
		readDone: make(chan struct{}),
		closing:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Endpoint 目标地址
func (t *WebSocketTransport) Endpoint() string {
	return t.endpoint
}

// Send 实现 Transport：等待批次内每个请求都收到响应，或 ctx 结束，或连接断开
func (t *WebSocketTransport) Send(ctx context.Context, requests []rpc.Request, sink chan<- rpc.Envelope) error {
	if len(requests) == 0 {
		return nil
	}
	batch := &wsBatch{
		sink:      sink,
		remaining: len(requests),
		done:      make(chan struct{}),
	}

	wire := make([]wireRequest, len(requests))
	wireIDs := make([]uint64, len(requests))
	t.mu.Lock()
	if t.readErr != nil {
		err := t.readErr
		t.mu.Unlock()
		return err
	}
	for i, req := range requests {
		t.nextID++
		wireIDs[i] = t.nextID
		t.pending[t.nextID] = inflight{batch: batch, localID: req.ID}
		wire[i] = wireRequest{JSONRPC: req.JSONRPC, ID: t.nextID, Method: req.Method, Params: req.Params}
	}
	t.mu.Unlock()

	defer func() {
		batch.abort()
		batch.sending.Wait()
		t.mu.Lock()
		for _, id := range wireIDs {
			delete(t.pending, id)
		}
		t.mu.Unlock()
	}()

	if err := t.write(ctx, wire); err != nil {
		return err
	}

	select {
	case <-batch.done:
		return batch.result()
	case <-ctx.Done():
		return ctx.Err()
	case <-t.readDone:
		// 连接断开前可能刚好收齐
		select {
		case <-batch.done:
			return batch.result()
		default:
		}
		return t.readErr
	}
}

func (t *WebSocketTransport) write(ctx context.Context, v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
		defer func() { _ = t.conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := t.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Listen 注册订阅 id 的推送接收者
//
// 订阅 id 来自 eth_subscribe 调用的结果；注册之前到达的推送会被丢弃。
func (t *WebSocketTransport) Listen(subscriptionID string) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	if _, exists := t.subs[subscriptionID]; exists {
		return nil, fmt.Errorf("subscription %s already has a listener", subscriptionID)
	}
	sub := newSubscription(subscriptionID, t.buffer, func() { t.detach(subscriptionID, nil) })
	t.subs[subscriptionID] = sub
	return sub, nil
}

func (t *WebSocketTransport) detach(subscriptionID string, err error) {
	t.mu.Lock()
	sub, ok := t.subs[subscriptionID]
	delete(t.subs, subscriptionID)
	t.mu.Unlock()
	if ok {
		sub.terminate(err)
	}
}

// readLoop 唯一的读循环：分派批次响应与订阅推送
func (t *WebSocketTransport) readLoop() {
	var loopErr error
	defer func() {
		t.mu.Lock()
		t.readErr = loopErr
		subs := t.subs
		t.subs = make(map[string]*Subscription)
		t.mu.Unlock()
		close(t.readDone)
		for _, sub := range subs {
			sub.terminate(loopErr)
		}
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closing:
				loopErr = ErrClosed
			default:
				loopErr = fmt.Errorf("websocket read: %w", err)
			}
			return
		}
		t.dispatch(data)
	}
}

func (t *WebSocketTransport) dispatch(data []byte) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return
	}
	if data[0] == '[' {
		var msgs []wsMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			t.logger.Warnf("丢弃无法解析的批次响应: %v", err)
			return
		}
		for i := range msgs {
			t.handle(&msgs[i])
		}
		return
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.logger.Warnf("丢弃无法解析的消息: %v", err)
		return
	}
	t.handle(&msg)
}

func (t *WebSocketTransport) handle(msg *wsMessage) {
	if msg.Method == subscriptionMethod {
		t.notify(msg.Params)
		return
	}

	wireID, err := strconv.ParseUint(string(bytes.TrimSpace(msg.ID)), 10, 64)
	if err != nil {
		if msg.Error != nil {
			t.logger.Warnf("节点返回无 id 的错误 code=%d message=%s", msg.Error.Code, msg.Error.Message)
			t.rejectInflight(fmt.Errorf("batch rejected: %w", &rpc.RPCError{
				Code:    msg.Error.Code,
				Message: msg.Error.Message,
				Data:    msg.Error.Data,
			}))
			return
		}
		t.logger.Warnf("丢弃无法识别 id 的响应: %s", msg.ID)
		return
	}

	t.mu.Lock()
	target, ok := t.pending[wireID]
	delete(t.pending, wireID)
	t.mu.Unlock()
	if !ok {
		t.logger.Warnf("线上 id %d 没有等待中的请求", wireID)
		return
	}

	env := msg.Envelope
	env.ID = rpc.IDBytes(target.localID)
	target.batch.deliver(env, t.closing)
}

// rejectInflight 无 id 的错误无法归属到具体批次，所有等待中的批次都以 err 结束
func (t *WebSocketTransport) rejectInflight(err error) {
	t.mu.Lock()
	batches := make(map[*wsBatch]struct{})
	for _, target := range t.pending {
		batches[target.batch] = struct{}{}
	}
	t.mu.Unlock()
	for b := range batches {
		b.abortWith(err)
	}
}

func (t *WebSocketTransport) notify(params json.RawMessage) {
	var n Notification
	if err := json.Unmarshal(params, &n); err != nil {
		t.logger.Warnf("丢弃无法解析的订阅推送: %v", err)
		return
	}
	t.mu.Lock()
	sub, ok := t.subs[n.Subscription]
	t.mu.Unlock()
	if !ok {
		t.logger.Debugf("订阅 %s 没有接收者，丢弃推送", n.Subscription)
		return
	}
	if !sub.push(n) {
		t.logger.Warnf("订阅 %s 推送缓冲已满，丢弃推送", n.Subscription)
	}
}

// Close 关闭连接并等待读循环退出
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closing)
		t.writeMu.Lock()
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
		<-t.readDone
	})
	return err
}
