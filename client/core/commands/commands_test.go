package commands_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/batchrpc/client/core/commands"
	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/types"
)

// route 把 raw 作为第 id 个调用的结果路由
func route(t *testing.T, b *rpc.Batch, id int, raw string) {
	t.Helper()
	reg, err := b.Registry()
	require.NoError(t, err)
	require.NoError(t, rpc.NewRouter(reg, nil, nil).Route(rpc.NewResultEnvelope(id, json.RawMessage(raw))))
}

func TestCommands_ChainInfoBatch(t *testing.T) {
	b := rpc.NewBatch()
	version := rpc.MustAdd(b, commands.ClientVersion())
	height := rpc.MustAdd(b, commands.BlockNumber())
	chainID := rpc.MustAdd(b, commands.ChainID())
	gasPrice := rpc.MustAdd(b, commands.GasPrice())
	syncing := rpc.MustAdd(b, commands.Syncing())
	peers := rpc.MustAdd(b, commands.NetPeerCount())

	reqs, err := b.Seal()
	require.NoError(t, err)
	methods := make([]string, len(reqs))
	for i, r := range reqs {
		methods[i] = r.Method
	}
	assert.Equal(t, []string{"web3_clientVersion", "eth_blockNumber", "eth_chainId", "eth_gasPrice", "eth_syncing", "net_peerCount"}, methods)

	route(t, b, 5, `"0x19"`)
	route(t, b, 4, `false`)
	route(t, b, 3, `"0x3b9aca00"`)
	route(t, b, 2, `"0x1"`)
	route(t, b, 1, `"0x4b7"`)
	route(t, b, 0, `"Geth/v1.15.11"`)

	v, err := version.Outcome()
	require.NoError(t, err)
	assert.Equal(t, "Geth/v1.15.11", v)

	h, _ := height.Outcome()
	assert.Equal(t, uint64(1207), h)

	id, _ := chainID.Outcome()
	assert.Equal(t, 0, id.Cmp(big.NewInt(1)))

	price, _ := gasPrice.Outcome()
	assert.Equal(t, 0, price.Int().Cmp(types.GWei))

	s, _ := syncing.Outcome()
	assert.False(t, s.Syncing)

	n, _ := peers.Outcome()
	assert.Equal(t, uint64(25), n)
}

func TestCommands_AccountParams(t *testing.T) {
	addr := common.HexToAddress("0x407d73d8a49eeb85d32cf465507dd71d507100c1")

	balance := commands.GetBalance(addr, types.Latest)
	raw, err := json.Marshal(balance.Params())
	require.NoError(t, err)
	assert.JSONEq(t, `["0x407d73d8a49eeb85d32cf465507dd71d507100c1","latest"]`, string(raw))

	nonce := commands.GetTransactionCount(addr, types.BlockNumber(16))
	raw, err = json.Marshal(nonce.Params())
	require.NoError(t, err)
	assert.JSONEq(t, `["0x407d73d8a49eeb85d32cf465507dd71d507100c1","0x10"]`, string(raw))

	data := append(commands.Selector("balanceOf(address)"), common.LeftPadBytes(addr.Bytes(), 32)...)
	call := commands.Call(commands.CallMsg{To: addr, Data: data}, types.Latest)
	raw, err = json.Marshal(call.Params())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"data":"0x70a08231`)
	assert.NotContains(t, string(raw), `"from"`)
}

func TestCommands_Selector(t *testing.T) {
	assert.Equal(t, "0xa9059cbb", hexutil.Encode(commands.Selector("transfer(address,uint256)")))
	assert.Equal(t, "0x70a08231", hexutil.Encode(commands.Selector("balanceOf(address)")))
}

func TestCommands_BlockAndNull(t *testing.T) {
	b := rpc.NewBatch()
	found := rpc.MustAdd(b, commands.GetBlockByNumber(types.Latest, false))
	missing := rpc.MustAdd(b, commands.GetBlockByNumber(types.BlockNumber(1<<40), false))
	_, err := b.Seal()
	require.NoError(t, err)

	route(t, b, 0, `{"number":"0x10","hash":"0x00000000000000000000000000000000000000000000000000000000000000aa","transactions":[]}`)
	route(t, b, 1, `null`)

	block, err := found.Outcome()
	require.NoError(t, err)
	assert.Equal(t, uint64(16), uint64(block.Number))

	none, err := missing.Outcome()
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCommands_SchemaMismatch(t *testing.T) {
	b := rpc.NewBatch()
	height := rpc.MustAdd(b, commands.BlockNumber())
	_, err := b.Seal()
	require.NoError(t, err)

	// 十进制数字不是合法的十六进制数量
	route(t, b, 0, `1207`)
	_, err = height.Outcome()
	var sme *rpc.SchemaMismatchError
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, "eth_blockNumber", sme.Method)
	assert.Equal(t, "hexutil.Uint64", sme.Expected)
}

func TestCommands_SubscribeAndRaw(t *testing.T) {
	sub := commands.Subscribe(commands.SubscribeLogs, map[string]any{"address": "0x1"})
	assert.Equal(t, "eth_subscribe", sub.Method())
	assert.Equal(t, []any{"logs", map[string]any{"address": "0x1"}}, sub.Params())

	assert.Equal(t, []any{"0xabc"}, commands.Unsubscribe("0xabc").Params())

	b := rpc.NewBatch()
	raw := rpc.MustAdd(b, commands.Raw("debug_custom", 1, "two"))
	_, err := b.Seal()
	require.NoError(t, err)
	route(t, b, 0, `{"any":["shape"]}`)

	v, err := raw.Outcome()
	require.NoError(t, err)
	assert.JSONEq(t, `{"any":["shape"]}`, string(v))
}
