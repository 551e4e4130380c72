package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "pretty": FormatPretty, " table ": FormatTable, "text": FormatText} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestFormatter_Print(t *testing.T) {
	data := map[string]interface{}{"height": 16, "chain": "0x1"}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON, &buf).Print(data))
	assert.JSONEq(t, `{"height":16,"chain":"0x1"}`, buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(FormatPretty, &buf).Print(data))
	assert.Contains(t, buf.String(), "\n  \"chain\": \"0x1\"")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatTable, &buf).Print(data))
	assert.Equal(t, "KEY     VALUE\nchain   0x1\nheight  16\n", buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(FormatText, &buf).Print(big.NewInt(42)))
	assert.Equal(t, "42\n", buf.String())
}

func TestFormatter_PrintBatch(t *testing.T) {
	rows := []BatchRow{
		{ID: 1, Method: "eth_blockNumber", Result: uint64(16)},
		{ID: 0, Method: "web3_clientVersion", Result: "Geth/v1.15.11"},
		{ID: 2, Method: "eth_foo", Error: "JSON-RPC error -32601: not found"},
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatText, &buf).PrintBatch(rows))
	assert.Equal(t, "web3_clientVersion: Geth/v1.15.11\neth_blockNumber: 16\neth_foo: error: JSON-RPC error -32601: not found\n", buf.String())

	buf.Reset()
	require.NoError(t, NewFormatter(FormatJSON, &buf).PrintBatch(rows))
	var decoded []BatchRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, 0, decoded[0].ID)
	assert.Equal(t, "eth_foo", decoded[2].Method)

	buf.Reset()
	require.NoError(t, NewFormatter(FormatTable, &buf).PrintBatch(rows))
	assert.Contains(t, buf.String(), "ID  METHOD")
	assert.Contains(t, buf.String(), "0   web3_clientVersion  Geth/v1.15.11")
}

func TestFormatter_SilentAndLogs(t *testing.T) {
	var out, logs bytes.Buffer
	f := NewFormatter(FormatJSON, &out)
	f.SetLogWriter(&logs)

	f.PrintInfo("connecting")
	f.PrintWarning("slow")
	f.SetSilent(true)
	f.PrintInfo("hidden")
	require.NoError(t, f.Print("ignored"))
	f.PrintError(errors.New("boom"))

	assert.Empty(t, out.String())
	assert.Contains(t, logs.String(), "connecting")
	assert.Contains(t, logs.String(), "slow")
	assert.NotContains(t, logs.String(), "hidden")
	assert.Contains(t, logs.String(), "Error: boom")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "-", formatValue(nil))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, `{"a":1}`, formatValue(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, `[1,2]`, formatValue([]int{1, 2}))
}
