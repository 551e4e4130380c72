package log

import (
	"fmt"

	logconfig "github.com/weisyn/batchrpc/internal/config/log"
	logInterface "github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
	"go.uber.org/fx"
)

// ModuleParams 定义日志模块的依赖参数
type ModuleParams struct {
	fx.In

	Options *logconfig.LogOptions `optional:"true"`
}

// Module 返回日志模块
func Module() fx.Option {
	return fx.Module("log",
		fx.Provide(ProvideLogger),
	)
}

// ProvideLogger 根据配置初始化日志记录器并设为全局记录器
func ProvideLogger(params ModuleParams) (logInterface.Logger, error) {
	logger, err := New(logconfig.New(params.Options))
	if err != nil {
		return nil, fmt.Errorf("根据用户配置创建日志记录器失败: %w", err)
	}
	SetLogger(logger)
	return logger, nil
}

// NewModuleLogger 创建带 module 字段的 logger
func NewModuleLogger(baseLogger logInterface.Logger, module string) logInterface.Logger {
	if baseLogger == nil {
		baseLogger = NewNopLogger()
	}
	return baseLogger.With("module", module)
}
