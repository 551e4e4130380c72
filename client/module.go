package client

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/weisyn/batchrpc/client/core/config"
	"github.com/weisyn/batchrpc/client/core/transport"
	logconfig "github.com/weisyn/batchrpc/internal/config/log"
	"github.com/weisyn/batchrpc/internal/core/infrastructure/event"
	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	"github.com/weisyn/batchrpc/internal/core/infrastructure/metrics"
	eventIface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/event"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// ModuleParams 客户端模块的依赖参数
type ModuleParams struct {
	fx.In

	Config     *config.Config
	Logger     log.Logger            `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
	Bus        eventIface.EventBus   `optional:"true"`
}

// Module 返回客户端模块：传输、指标与 Client
func Module() fx.Option {
	return fx.Module("client",
		fx.Provide(
			ProvideTransport,
			ProvideMetrics,
			ProvideClient,
		),
	)
}

// Options 组合完整应用：配置、日志、事件总线、指标与客户端模块
func Options(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			func(c *config.Config) *logconfig.LogOptions { return c.Log },
			fx.Annotate(
				func(c *config.Config) string { return c.MetricsAddr },
				fx.ResultTags(`name:"metrics_addr"`),
			),
		),
		logimpl.Module(),
		event.Module(),
		metrics.Module(),
		Module(),
	)
}

// ProvideTransport 按配置创建传输：有 HTTP 地址时使用 HTTP，否则使用 WebSocket
func ProvideTransport(lc fx.Lifecycle, p ModuleParams) (transport.Transport, error) {
	opts := []transport.Option{
		transport.WithLogger(p.Logger),
		transport.WithTimeout(p.Config.Timeout.Std()),
	}

	var t transport.Transport
	switch {
	case p.Config.Endpoint != "":
		t = transport.NewHTTPTransport(p.Config.Endpoint, opts...)
	case p.Config.WSEndpoint != "":
		ws, err := transport.DialWebSocket(context.Background(), p.Config.WSEndpoint, opts...)
		if err != nil {
			return nil, err
		}
		t = ws
	default:
		return nil, fmt.Errorf("client: no endpoint configured")
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return t.Close()
		},
	})
	return t, nil
}

// ProvideMetrics 创建指标；未提供 Registerer 时不注册
func ProvideMetrics(p ModuleParams) (*Metrics, error) {
	return NewMetrics(p.Registerer)
}

// ClientParams Client 的依赖参数
type ClientParams struct {
	fx.In

	Config    *config.Config
	Transport transport.Transport
	Metrics   *Metrics
	Logger    log.Logger          `optional:"true"`
	Bus       eventIface.EventBus `optional:"true"`
}

// ProvideClient 创建 Client
func ProvideClient(p ClientParams) *Client {
	return New(p.Transport,
		WithLogger(p.Logger),
		WithMetrics(p.Metrics),
		WithEventBus(p.Bus),
		WithTimeout(p.Config.Timeout.Std()),
	)
}
