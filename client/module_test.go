package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/config"
	"github.com/weisyn/batchrpc/client/core/rpc"
	logconfig "github.com/weisyn/batchrpc/internal/config/log"
)

// chainNode 以 JSON 数组回复每个批次，结果按方法名固定
func chainNode(t *testing.T) *httptest.Server {
	results := map[string]json.RawMessage{
		"eth_chainId":     json.RawMessage(`"0x1"`),
		"eth_blockNumber": json.RawMessage(`"0x10"`),
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqs []rpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqs))
		out := make([]rpc.Envelope, 0, len(reqs))
		// 逆序回复
		for i := len(reqs) - 1; i >= 0; i-- {
			out = append(out, rpc.NewResultEnvelope(reqs[i].ID, results[reqs[i].Method]))
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(out))
	}))
}

func TestModule_HTTP(t *testing.T) {
	srv := chainNode(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.Log = &logconfig.LogOptions{Level: "error"}

	var c *Client
	var m *Metrics
	var reg *prometheus.Registry
	app := fxtest.New(t,
		Options(cfg),
		fx.Populate(&c, &m, &reg),
	)
	app.RequireStart()

	b := rpc.NewBatch()
	chainID := rpc.MustAdd(b, commands.ChainID())
	head := rpc.MustAdd(b, commands.BlockNumber())
	exec, err := c.Execute(context.Background(), b)
	require.NoError(t, err)
	require.NoError(t, exec.Wait())

	id, err := chainID.Outcome()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())
	n, err := head.Outcome()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues(outcomeCompleted)))
	count, err := testutil.GatherAndCount(reg, "batchrpc_client_batches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	app.RequireStop()
}

func TestModule_NoEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoint = ""
	cfg.WSEndpoint = ""

	app := fx.New(Options(cfg), fx.Invoke(func(*Client) {}), fx.NopLogger)
	assert.Error(t, app.Err())
}
