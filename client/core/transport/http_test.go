package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/batchrpc/client/core/rpc"
)

func testRequests(methods ...string) []rpc.Request {
	reqs := make([]rpc.Request, len(methods))
	for i, m := range methods {
		reqs[i] = rpc.Request{JSONRPC: rpc.Version, ID: i, Method: m, Params: []any{}}
	}
	return reqs
}

func collect(sink chan rpc.Envelope) []rpc.Envelope {
	close(sink)
	var out []rpc.Envelope
	for env := range sink {
		out = append(out, env)
	}
	return out
}

func TestHTTPTransport_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))

		var reqs []rpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))

		// 逆序返回
		out := make([]rpc.Envelope, 0, len(reqs))
		for i := len(reqs) - 1; i >= 0; i-- {
			raw, _ := json.Marshal(reqs[i].Method)
			out = append(out, rpc.NewResultEnvelope(reqs[i].ID, raw))
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer server.Close()

	tr := NewHTTPTransport(server.URL, WithHeader("X-Api-Key", "secret"), WithTimeout(5*time.Second))
	defer tr.Close()
	assert.Equal(t, server.URL, tr.Endpoint())

	sink := make(chan rpc.Envelope, 3)
	require.NoError(t, tr.Send(context.Background(), testRequests("a", "b", "c"), sink))

	envs := collect(sink)
	require.Len(t, envs, 3)
	id, err := envs[0].IntID()
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.JSONEq(t, `"c"`, string(envs[0].Result))
}

func TestHTTPTransport_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		delivered int
		contains  string
	}{
		{name: "非2xx状态", status: http.StatusBadGateway, body: "upstream down", contains: "http status 502: upstream down"},
		{name: "数组中途损坏", status: http.StatusOK, body: `[{"jsonrpc":"2.0","id":0,"result":"0x1"}, {"id":1,`, delivered: 1, contains: "decode response 1"},
		{name: "批次被拒绝", status: http.StatusOK, body: `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"invalid request"}}`, contains: "batch rejected"},
		{name: "无id对象", status: http.StatusOK, body: `{"jsonrpc":"2.0"}`, contains: "without id"},
		{name: "非JSON", status: http.StatusOK, body: `<html>`, contains: "malformed batch reply"},
		{name: "空响应体", status: http.StatusOK, body: ``, contains: "read batch reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			sink := make(chan rpc.Envelope, 2)
			err := NewHTTPTransport(server.URL).Send(context.Background(), testRequests("a", "b"), sink)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Len(t, collect(sink), tt.delivered)
		})
	}
}

func TestHTTPTransport_BatchRejectedCarriesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32005,"message":"rate limited"}}`))
	}))
	defer server.Close()

	err := NewHTTPTransport(server.URL).Send(context.Background(), testRequests("a"), make(chan rpc.Envelope, 1))
	var rpcErr *rpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32005, rpcErr.Code)
}

func TestHTTPTransport_UnwrappedSingleResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(` {"jsonrpc":"2.0","id":0,"result":"0x2a"}`))
	}))
	defer server.Close()

	sink := make(chan rpc.Envelope, 1)
	require.NoError(t, NewHTTPTransport(server.URL).Send(context.Background(), testRequests("eth_blockNumber"), sink))
	envs := collect(sink)
	require.Len(t, envs, 1)
	assert.JSONEq(t, `"0x2a"`, string(envs[0].Result))
}

func TestHTTPTransport_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewHTTPTransport(server.URL).Send(ctx, testRequests("a"), make(chan rpc.Envelope, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewHTTPTransport(url).Send(context.Background(), testRequests("a"), make(chan rpc.Envelope, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http request")
}
