package transport

import (
	"net/http"
	"time"

	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	// 单条订阅的推送缓冲
	defaultNotificationBuffer = 100
)

type options struct {
	timeout            time.Duration
	handshakeTimeout   time.Duration
	httpClient         *http.Client
	header             http.Header
	logger             log.Logger
	notificationBuffer int
}

// Option 传输配置项
type Option func(*options)

// WithTimeout 单次 HTTP 交换的超时（仅在未提供 http.Client 时生效）
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHandshakeTimeout WebSocket 握手超时
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.handshakeTimeout = d
		}
	}
}

// WithHTTPClient 使用自定义 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithHeader 附加请求头（HTTP 请求与 WebSocket 握手都会携带）
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.header.Add(key, value)
	}
}

// WithLogger 设置日志记录器
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNotificationBuffer 订阅推送通道的缓冲大小
func WithNotificationBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.notificationBuffer = n
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		timeout:            defaultTimeout,
		handshakeTimeout:   defaultHandshakeTimeout,
		header:             make(http.Header),
		notificationBuffer: defaultNotificationBuffer,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logimpl.NewModuleLogger(o.logger, "transport")
	return o
}
