package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/batchrpc/client/core/rpc"
)

// wsNode 模拟节点：按方法名决定行为
type wsNode struct {
	t       *testing.T
	mu      sync.Mutex
	wireIDs []uint64
}

func (n *wsNode) handler() http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var reqs []wireRequest
			if err := conn.ReadJSON(&reqs); err != nil {
				return
			}
			// 整个批次被拒绝：错误对象不带 id
			if len(reqs) > 0 && reqs[0].Method == "test_reject" {
				_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": nil,
					"error": map[string]any{"code": -32600, "message": "invalid request"}})
				continue
			}
			var out []map[string]any
			for i := len(reqs) - 1; i >= 0; i-- {
				req := reqs[i]
				n.mu.Lock()
				n.wireIDs = append(n.wireIDs, req.ID)
				n.mu.Unlock()
				switch req.Method {
				case "test_drop":
					return
				case "test_ignore":
					continue
				case "eth_subscribe":
					out = append(out, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0xabc"})
				case "test_trigger":
					_ = conn.WriteJSON(map[string]any{
						"jsonrpc": "2.0",
						"method":  subscriptionMethod,
						"params": map[string]any{
							"subscription": "0xabc",
							"result":       "0xdeadbeef",
						},
					})
					out = append(out, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
				case "test_error":
					out = append(out, map[string]any{"jsonrpc": "2.0", "id": req.ID,
						"error": map[string]any{"code": -32000, "message": "nope"}})
				default:
					out = append(out, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": req.Method})
				}
			}
			if len(out) > 0 {
				_ = conn.WriteJSON(out)
			}
		}
	})
}

func dialNode(t *testing.T) (*WebSocketTransport, *wsNode) {
	t.Helper()
	node := &wsNode{t: t}
	server := httptest.NewServer(node.handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	tr, err := DialWebSocket(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, node
}

func TestWebSocketTransport_RemapsIDs(t *testing.T) {
	tr, node := dialNode(t)

	for round := 0; round < 2; round++ {
		sink := make(chan rpc.Envelope, 3)
		require.NoError(t, tr.Send(context.Background(), testRequests("a", "b", "test_error"), sink))

		byID := map[int]rpc.Envelope{}
		for _, env := range collect(sink) {
			id, err := env.IntID()
			require.NoError(t, err)
			byID[id] = env
		}
		require.Len(t, byID, 3)
		assert.JSONEq(t, `"a"`, string(byID[0].Result))
		assert.JSONEq(t, `"b"`, string(byID[1].Result))
		require.NotNil(t, byID[2].Error)
		assert.Equal(t, -32000, byID[2].Error.Code)
	}

	// 线上 id 在连接内唯一
	node.mu.Lock()
	defer node.mu.Unlock()
	seen := map[uint64]bool{}
	for _, id := range node.wireIDs {
		assert.False(t, seen[id], "wire id %d reused", id)
		seen[id] = true
	}
	assert.Len(t, seen, 6)
}

func TestWebSocketTransport_Subscription(t *testing.T) {
	tr, _ := dialNode(t)

	sink := make(chan rpc.Envelope, 1)
	require.NoError(t, tr.Send(context.Background(), testRequests("eth_subscribe"), sink))
	envs := collect(sink)
	require.Len(t, envs, 1)
	var subID string
	require.NoError(t, json.Unmarshal(envs[0].Result, &subID))

	sub, err := tr.Listen(subID)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", sub.ID())
	_, err = tr.Listen(subID)
	assert.Error(t, err, "同一订阅不能重复注册")

	require.NoError(t, tr.Send(context.Background(), testRequests("test_trigger"), make(chan rpc.Envelope, 1)))

	select {
	case n := <-sub.Notifications():
		assert.Equal(t, "0xabc", n.Subscription)
		s, err := n.StringResult()
		require.NoError(t, err)
		assert.Equal(t, "0xdeadbeef", s)
		assert.Nil(t, n.ExtractError())
	case <-time.After(2 * time.Second):
		t.Fatal("未收到订阅推送")
	}

	sub.Close()
	_, open := <-sub.Notifications()
	assert.False(t, open)
}

func TestWebSocketTransport_ConnectionDrop(t *testing.T) {
	tr, _ := dialNode(t)
	sub, err := tr.Listen("0xabc")
	require.NoError(t, err)

	sink := make(chan rpc.Envelope, 2)
	err = tr.Send(context.Background(), testRequests("a", "test_drop"), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket read")
	assert.Empty(t, collect(sink))

	select {
	case err := <-sub.Err():
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("订阅未收到断线错误")
	}

	// 断线后的发送立即失败
	assert.Error(t, tr.Send(context.Background(), testRequests("a"), make(chan rpc.Envelope, 1)))
	_, err = tr.Listen("0xdef")
	assert.Error(t, err)
}

func TestWebSocketTransport_ContextCancel(t *testing.T) {
	tr, _ := dialNode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sink := make(chan rpc.Envelope, 2)
	err := tr.Send(ctx, testRequests("a", "test_ignore"), sink)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 已收到的响应保留，之后不再写入 sink
	envs := collect(sink)
	assert.LessOrEqual(t, len(envs), 1)
}

func TestWebSocketTransport_BatchRejected(t *testing.T) {
	tr, _ := dialNode(t)

	errCh := make(chan error, 1)
	sink := make(chan rpc.Envelope, 2)
	go func() {
		errCh <- tr.Send(context.Background(), testRequests("test_reject", "a"), sink)
	}()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch rejected")
		var rpcErr *rpc.RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, rpc.CodeInvalidRequest, rpcErr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("被拒绝的批次没有结束")
	}
	assert.Empty(t, collect(sink))

	// 连接仍然可用
	next := make(chan rpc.Envelope, 1)
	require.NoError(t, tr.Send(context.Background(), testRequests("a"), next))
	assert.Len(t, collect(next), 1)
}

func TestWebSocketTransport_UnreadSinkDoesNotStallConnection(t *testing.T) {
	tr, _ := dialNode(t)

	// 无缓冲且无人读取的 sink
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	stalled := make(chan rpc.Envelope)
	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Send(ctx, testRequests("a", "b"), stalled)
	}()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Send 被未读取的 sink 卡住")
	}

	// 读循环没有被卡住，后续批次照常完成
	sink := make(chan rpc.Envelope, 1)
	require.NoError(t, tr.Send(context.Background(), testRequests("c"), sink))
	envs := collect(sink)
	require.Len(t, envs, 1)
	assert.JSONEq(t, `"c"`, string(envs[0].Result))
}

func TestWebSocketTransport_Close(t *testing.T) {
	tr, _ := dialNode(t)
	require.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())

	err := tr.Send(context.Background(), testRequests("a"), make(chan rpc.Envelope, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDialWebSocket_Refused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	_, err := DialWebSocket(context.Background(), url)
	assert.Error(t, err)
}
