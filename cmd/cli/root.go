package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weisyn/batchrpc/client"
	"github.com/weisyn/batchrpc/client/core/config"
	"github.com/weisyn/batchrpc/client/core/output"
	"github.com/weisyn/batchrpc/client/core/transport"
	logconfig "github.com/weisyn/batchrpc/internal/config/log"
	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	"github.com/weisyn/batchrpc/internal/core/infrastructure/metrics"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath   string        // 配置文件
	Endpoint     string        // HTTP 地址，覆盖配置文件
	WSEndpoint   string        // WebSocket 地址，覆盖配置文件
	OutputFormat string        // 输出格式
	Timeout      time.Duration // 批次超时，覆盖配置文件
	MetricsAddr  string        // 指标监听地址，覆盖配置文件
	Silent       bool          // 静默模式
	Verbose      bool          // 详细模式
}

var (
	globalFlags GlobalFlags
	cfg         *config.Config
	formatter   *output.Formatter
	logger      log.Logger

	clientMetrics *client.Metrics
	metricsServer *metrics.Server
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "batchrpc",
	Short: "批量 JSON-RPC 命令行客户端",
	Long: `batchrpc - 以单个批次向以太坊兼容节点发送多个 JSON-RPC 调用

每个调用的结果按 id 路由回各自的调用，与节点回复的顺序无关；
单个调用的服务端错误不影响同批次其他调用。

配置优先级: 命令行标志 > BATCHRPC_ENDPOINT > 配置文件 > 默认值`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(globalFlags.OutputFormat)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, os.Stdout)
		formatter.SetSilent(globalFlags.Silent)

		cfg, err = loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err = logimpl.New(logconfig.New(cfg.Log))
		if err != nil {
			return fmt.Errorf("初始化日志: %w", err)
		}
		logimpl.SetLogger(logger)

		if cfg.MetricsAddr != "" {
			reg := metrics.NewRegistry()
			if clientMetrics, err = client.NewMetrics(reg); err != nil {
				return err
			}
			metricsServer = metrics.NewServer(cfg.MetricsAddr, reg, logger)
			if err := metricsServer.Start(cmd.Context()); err != nil {
				return err
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(ctx)
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute 执行根命令
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&globalFlags.ConfigPath, "config", "c", "", "配置文件 (.json|.yaml)")
	flags.StringVarP(&globalFlags.Endpoint, "endpoint", "e", "", "HTTP JSON-RPC 地址")
	flags.StringVar(&globalFlags.WSEndpoint, "ws-endpoint", "", "WebSocket 地址 (订阅需要)")
	flags.StringVarP(&globalFlags.OutputFormat, "output", "o", "json", "输出格式: json|pretty|table|text")
	flags.DurationVar(&globalFlags.Timeout, "timeout", 0, "单个批次的超时 (默认取配置文件)")
	flags.StringVar(&globalFlags.MetricsAddr, "metrics-addr", "", "Prometheus 指标监听地址，例如 127.0.0.1:9100")
	flags.BoolVar(&globalFlags.Silent, "silent", false, "静默模式 (不输出结果)")
	flags.BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig 读取配置文件并叠加环境变量与命令行标志
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		c   *config.Config
		err error
	)
	if globalFlags.ConfigPath != "" {
		c, err = config.Load(globalFlags.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		c = config.DefaultConfig()
		c.ApplyEnv()
	}

	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		c.Endpoint = globalFlags.Endpoint
	}
	if flags.Changed("ws-endpoint") {
		c.WSEndpoint = globalFlags.WSEndpoint
	}
	if flags.Changed("timeout") {
		c.Timeout = config.Duration(globalFlags.Timeout)
	}
	if flags.Changed("metrics-addr") {
		c.MetricsAddr = globalFlags.MetricsAddr
	}
	if c.Log == nil {
		c.Log = logconfig.DefaultOptions()
	}
	// CLI 默认只输出警告以上，避免干扰结果
	c.Log.Level = "warn"
	if globalFlags.Verbose {
		c.Log.Level = "debug"
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// getClient 按配置创建 HTTP 客户端
func getClient() (*client.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("未配置 HTTP 地址，请使用 --endpoint 或配置文件")
	}
	t := transport.NewHTTPTransport(cfg.Endpoint,
		transport.WithLogger(logger),
		transport.WithTimeout(cfg.Timeout.Std()),
	)
	return newClient(t), nil
}

// getWSClient 按配置创建 WebSocket 客户端
func getWSClient(ctx context.Context) (*client.Client, *transport.WebSocketTransport, error) {
	if cfg.WSEndpoint == "" {
		return nil, nil, fmt.Errorf("未配置 WebSocket 地址，订阅功能需要 --ws-endpoint")
	}
	ws, err := transport.DialWebSocket(ctx, cfg.WSEndpoint,
		transport.WithLogger(logger),
		transport.WithTimeout(cfg.Timeout.Std()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("连接 WebSocket 失败: %w", err)
	}
	return newClient(ws), ws, nil
}

func newClient(t transport.Transport) *client.Client {
	return client.New(t,
		client.WithLogger(logger),
		client.WithTimeout(cfg.Timeout.Std()),
		client.WithMetrics(clientMetrics),
	)
}

// closeClient 关闭客户端，失败时只打印警告
func closeClient(c *client.Client) {
	if err := c.Close(); err != nil {
		formatter.PrintWarning(fmt.Sprintf("关闭客户端失败: %v", err))
	}
}
