package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// 非 2xx 响应时最多读取的响应体字节数
const maxErrorBody = 512

// HTTPTransport 通过单次 HTTP POST 发送批次
type HTTPTransport struct {
	endpoint   string
	httpClient *http.Client
	header     http.Header
	logger     log.Logger
}

// NewHTTPTransport 创建 HTTP 传输
func NewHTTPTransport(endpoint string, opts ...Option) *HTTPTransport {
	o := buildOptions(opts)
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: o.timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPTransport{
		endpoint:   endpoint,
		httpClient: httpClient,
		header:     o.header,
		logger:     o.logger,
	}
}

// Endpoint 目标地址
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Send 实现 Transport
//
// 响应数组按流式解码，每解出一条就交给 sink；数组中途损坏时已交付的响应保持有效。
func (t *HTTPTransport) Send(ctx context.Context, requests []rpc.Request, sink chan<- rpc.Envelope) error {
	body, err := json.Marshal(requests)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	for k, vs := range t.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warnf("关闭响应体失败: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	delivered, err := decodeReply(ctx, bufio.NewReader(resp.Body), sink)
	t.logger.Debugf("批次响应已解码 requests=%d delivered=%d", len(requests), delivered)
	return err
}

// decodeReply 解码批次响应并逐条投递，返回已投递条数
func decodeReply(ctx context.Context, r *bufio.Reader, sink chan<- rpc.Envelope) (int, error) {
	first, err := peekNonSpace(r)
	if err != nil {
		return 0, fmt.Errorf("read batch reply: %w", err)
	}

	// 单个对象：整个批次被拒绝，或服务端把单元素批次展开成了对象
	if first == '{' {
		var env rpc.Envelope
		if err := json.NewDecoder(r).Decode(&env); err != nil {
			return 0, fmt.Errorf("decode reply object: %w", err)
		}
		if _, idErr := env.IntID(); idErr != nil {
			if env.Error != nil {
				return 0, fmt.Errorf("batch rejected: %w", &rpc.RPCError{
					Code:    env.Error.Code,
					Message: env.Error.Message,
					Data:    env.Error.Data,
				})
			}
			return 0, fmt.Errorf("unexpected reply object without id")
		}
		if err := deliver(ctx, sink, env); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if first != '[' {
		return 0, fmt.Errorf("malformed batch reply: unexpected %q", first)
	}

	dec := json.NewDecoder(r)
	if _, err := dec.Token(); err != nil {
		return 0, fmt.Errorf("decode batch reply: %w", err)
	}
	delivered := 0
	for dec.More() {
		var env rpc.Envelope
		if err := dec.Decode(&env); err != nil {
			return delivered, fmt.Errorf("decode response %d: %w", delivered, err)
		}
		if err := deliver(ctx, sink, env); err != nil {
			return delivered, err
		}
		delivered++
	}
	if _, err := dec.Token(); err != nil {
		return delivered, fmt.Errorf("decode batch reply end: %w", err)
	}
	return delivered, nil
}

func deliver(ctx context.Context, sink chan<- rpc.Envelope, env rpc.Envelope) error {
	select {
	case sink <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

// Close 释放空闲连接
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}
