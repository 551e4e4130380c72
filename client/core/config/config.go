// Package config 提供批量 RPC 客户端的配置文件
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	logconfig "github.com/weisyn/batchrpc/internal/config/log"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// 默认值
const (
	DefaultEndpoint = "http://127.0.0.1:8545"
	DefaultTimeout  = 30 * time.Second

	// EnvEndpoint 覆盖配置文件中 endpoint 的环境变量
	EnvEndpoint = "BATCHRPC_ENDPOINT"
)

// Config 客户端配置
type Config struct {
	// HTTP JSON-RPC 地址
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// WebSocket 地址（订阅需要）
	WSEndpoint string `json:"ws_endpoint,omitempty" yaml:"ws_endpoint,omitempty"`

	// 单个批次的超时
	Timeout Duration `json:"timeout" yaml:"timeout"`

	// Prometheus /metrics 监听地址，为空时不启动
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	Log *logconfig.LogOptions `json:"log,omitempty" yaml:"log,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Timeout:  Duration(DefaultTimeout),
		Log:      logconfig.DefaultOptions(),
	}
}

// Load 加载配置文件：.yaml/.yml 按 YAML 解析，其余按 JSON 解析
//
// 文件中缺省的字段保留默认值；环境变量 BATCHRPC_ENDPOINT 优先于文件。
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if isYAML(path) {
			err = yaml.Unmarshal(data, cfg)
		} else {
			err = json.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv 应用环境变量覆盖
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvEndpoint)); v != "" {
		c.Endpoint = v
	}
}

// Save 保存配置，格式由扩展名决定
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Endpoint == "" && c.WSEndpoint == "" {
		return fmt.Errorf("config: endpoint or ws_endpoint is required")
	}
	if c.Endpoint != "" {
		if err := checkURL(c.Endpoint, "http", "https"); err != nil {
			return fmt.Errorf("config: endpoint: %w", err)
		}
	}
	if c.WSEndpoint != "" {
		if err := checkURL(c.WSEndpoint, "ws", "wss"); err != nil {
			return fmt.Errorf("config: ws_endpoint: %w", err)
		}
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("config: metrics_addr: %w", err)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	if c.Log != nil && c.Log.Level != "" {
		if !log.LogLevel(c.Log.Level).Valid() {
			return fmt.Errorf("config: unknown log level %q", c.Log.Level)
		}
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("missing host in %q", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
