package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// ModuleParams 指标模块的依赖参数
type ModuleParams struct {
	fx.In

	// 监听地址，为空时不启动 HTTP 服务
	Addr   string     `name:"metrics_addr" optional:"true"`
	Logger log.Logger `optional:"true"`
}

// Module 返回指标模块：提供注册表（作为 Registerer 与 Gatherer）并管理 HTTP 服务的生命周期
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			NewRegistry,
			func(r *prometheus.Registry) prometheus.Registerer { return r },
			func(r *prometheus.Registry) prometheus.Gatherer { return r },
			ProvideServer,
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Server) {
			lc.Append(fx.Hook{OnStart: s.Start, OnStop: s.Stop})
		}),
	)
}

// ProvideServer 创建指标服务
func ProvideServer(p ModuleParams, g prometheus.Gatherer) *Server {
	return NewServer(p.Addr, g, p.Logger)
}
