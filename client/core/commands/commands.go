// Package commands 提供常用 web3_/net_/eth_ 方法的调用描述
//
// 每个函数只构造 rpc.Call，不发起网络请求；多个调用可放进同一个批次。
package commands

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/batchrpc/client/core/rpc"
	"github.com/weisyn/batchrpc/pkg/types"
)

// ===== web3 / net =====

// ClientVersion web3_clientVersion
func ClientVersion() *rpc.Call[string, string] {
	return rpc.NewDirectCall[string]("web3_clientVersion")
}

// Sha3 web3_sha3
func Sha3(data []byte) *rpc.Call[common.Hash, common.Hash] {
	return rpc.NewDirectCall[common.Hash]("web3_sha3", hexutil.Bytes(data))
}

// NetVersion net_version
func NetVersion() *rpc.Call[string, string] {
	return rpc.NewDirectCall[string]("net_version")
}

// NetListening net_listening
func NetListening() *rpc.Call[bool, bool] {
	return rpc.NewDirectCall[bool]("net_listening")
}

// NetPeerCount net_peerCount
func NetPeerCount() *rpc.Call[hexutil.Uint64, uint64] {
	return rpc.NewCall("net_peerCount", quantity)
}

// ===== eth 链信息 =====

// BlockNumber eth_blockNumber
func BlockNumber() *rpc.Call[hexutil.Uint64, uint64] {
	return rpc.NewCall("eth_blockNumber", quantity)
}

// ChainID eth_chainId
func ChainID() *rpc.Call[hexutil.Big, *big.Int] {
	return rpc.NewCall("eth_chainId", bigQuantity)
}

// GasPrice eth_gasPrice
func GasPrice() *rpc.Call[types.Wei, *types.Wei] {
	return rpc.NewCall("eth_gasPrice", wei)
}

// Syncing eth_syncing
func Syncing() *rpc.Call[types.SyncStatus, types.SyncStatus] {
	return rpc.NewDirectCall[types.SyncStatus]("eth_syncing")
}

// ===== eth 状态 =====

// GetBalance eth_getBalance
func GetBalance(addr common.Address, tag types.BlockTag) *rpc.Call[types.Wei, *types.Wei] {
	return rpc.NewCall("eth_getBalance", wei, addr, tag)
}

// GetTransactionCount eth_getTransactionCount
func GetTransactionCount(addr common.Address, tag types.BlockTag) *rpc.Call[hexutil.Uint64, uint64] {
	return rpc.NewCall("eth_getTransactionCount", quantity, addr, tag)
}

// GetCode eth_getCode
func GetCode(addr common.Address, tag types.BlockTag) *rpc.Call[hexutil.Bytes, []byte] {
	return rpc.NewCall("eth_getCode", bytesResult, addr, tag)
}

// GetBlockByNumber eth_getBlockByNumber；区块不存在时结果为 nil
func GetBlockByNumber(tag types.BlockTag, fullTx bool) *rpc.Call[types.Block, *types.Block] {
	return rpc.NewCall("eth_getBlockByNumber", func(b types.Block) (*types.Block, error) {
		return &b, nil
	}, tag, fullTx)
}

// CallMsg eth_call 的调用参数
type CallMsg struct {
	From *common.Address `json:"from,omitempty"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data,omitempty"`
}

// Call eth_call
func Call(msg CallMsg, tag types.BlockTag) *rpc.Call[hexutil.Bytes, []byte] {
	return rpc.NewCall("eth_call", bytesResult, msg, tag)
}

// Selector 函数签名的 4 字节选择器，例如 "balanceOf(address)"
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// ===== 订阅（仅 WebSocket） =====

// 订阅类型
const (
	SubscribeNewHeads               = "newHeads"
	SubscribeNewPendingTransactions = "newPendingTransactions"
	SubscribeLogs                   = "logs"
)

// Subscribe eth_subscribe，结果为订阅 id
func Subscribe(kind string, args ...any) *rpc.Call[string, string] {
	params := append([]any{kind}, args...)
	return rpc.NewDirectCall[string]("eth_subscribe", params...)
}

// Unsubscribe eth_unsubscribe
func Unsubscribe(subscriptionID string) *rpc.Call[bool, bool] {
	return rpc.NewDirectCall[bool]("eth_unsubscribe", subscriptionID)
}

// ===== 任意方法 =====

// Raw 任意方法，结果保持原始 JSON
func Raw(method string, params ...any) *rpc.Call[json.RawMessage, json.RawMessage] {
	return rpc.NewDirectCall[json.RawMessage](method, params...)
}

// ===== 结果转换 =====

func quantity(v hexutil.Uint64) (uint64, error) {
	return uint64(v), nil
}

func bigQuantity(v hexutil.Big) (*big.Int, error) {
	return v.ToInt(), nil
}

func wei(w types.Wei) (*types.Wei, error) {
	return &w, nil
}

func bytesResult(b hexutil.Bytes) ([]byte, error) {
	return b, nil
}
