package event

import (
	eventIface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/event"
	"go.uber.org/fx"
)

// Module 返回事件总线模块
func Module() fx.Option {
	return fx.Module("event",
		fx.Provide(func() eventIface.EventBus { return New() }),
	)
}
