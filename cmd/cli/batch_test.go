package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/batchrpc/client"
	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/rpc"
	fake "github.com/weisyn/batchrpc/client/core/transport/testutil"
)

func TestParseParam(t *testing.T) {
	assert.Equal(t, "latest", parseParam("latest"))
	assert.Equal(t, "0x10", parseParam(`"0x10"`))
	assert.Equal(t, false, parseParam("false"))
	assert.Equal(t, float64(3), parseParam("3"))
	assert.Equal(t, map[string]any{"to": "0x1"}, parseParam(`{"to":"0x1"}`))
}

func TestReadBatchFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "calls.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"method": "eth_chainId"},
		{"method": "eth_getBalance", "params": ["0x0000000000000000000000000000000000000001", "latest"]}
	]`), 0600))
	calls, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "eth_getBalance", calls[1].Method())
	assert.Len(t, calls[1].Params(), 2)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0600))
	_, err = readBatchFile(empty)
	assert.ErrorIs(t, err, rpc.ErrEmptyBatch)

	noMethod := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(noMethod, []byte(`[{"params": []}]`), 0600))
	_, err = readBatchFile(noMethod)
	assert.Error(t, err)
}

func TestBatchRows(t *testing.T) {
	tr := fake.New(fake.Results(map[string]any{"eth_chainId": "0x1"}))
	c := client.New(tr)

	b := rpc.NewBatch()
	rpc.MustAdd(b, commands.ChainID())
	rpc.MustAdd(b, commands.Raw("eth_missing"))
	exec, err := c.Execute(context.Background(), b)
	require.NoError(t, err)
	require.NoError(t, exec.Wait())

	rows := batchRows(b)
	require.Len(t, rows, 2)
	assert.Equal(t, "eth_chainId", rows[0].Method)
	assert.Empty(t, rows[0].Error)
	data, err := json.Marshal(rows[0].Result)
	require.NoError(t, err)
	assert.Equal(t, `1`, string(data))

	assert.Equal(t, 1, rows[1].ID)
	assert.Contains(t, rows[1].Error, "eth_missing")
}
