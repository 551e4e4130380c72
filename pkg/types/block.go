package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockTag 区块参数：命名标签或十六进制高度
type BlockTag string

// 命名标签
const (
	Latest    BlockTag = "latest"
	Pending   BlockTag = "pending"
	Earliest  BlockTag = "earliest"
	Safe      BlockTag = "safe"
	Finalized BlockTag = "finalized"
)

// BlockNumber 指定高度的区块参数
func BlockNumber(n uint64) BlockTag {
	return BlockTag(hexutil.EncodeUint64(n))
}

// ParseBlockTag 解析命令行输入：命名标签、十进制或 0x 十六进制高度
func ParseBlockTag(s string) (BlockTag, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch BlockTag(s) {
	case Latest, Pending, Earliest, Safe, Finalized:
		return BlockTag(s), nil
	case "":
		return Latest, nil
	}
	if strings.HasPrefix(s, "0x") {
		n, err := hexutil.DecodeUint64(s)
		if err != nil {
			return "", fmt.Errorf("invalid block tag %q: %w", s, err)
		}
		return BlockNumber(n), nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid block tag %q", s)
	}
	return BlockNumber(n), nil
}

// Block 区块头的常用字段子集
type Block struct {
	Number       hexutil.Uint64    `json:"number"`
	Hash         common.Hash       `json:"hash"`
	ParentHash   common.Hash       `json:"parentHash"`
	Miner        common.Address    `json:"miner"`
	Timestamp    hexutil.Uint64    `json:"timestamp"`
	GasLimit     hexutil.Uint64    `json:"gasLimit"`
	GasUsed      hexutil.Uint64    `json:"gasUsed"`
	BaseFee      *Wei              `json:"baseFeePerGas,omitempty"`
	Transactions []json.RawMessage `json:"transactions"`
}

// TxCount 交易数量（哈希列表或完整交易均可）
func (b *Block) TxCount() int {
	return len(b.Transactions)
}

// TxHashes 交易哈希列表；返回完整交易时从对象中取 hash 字段
func (b *Block) TxHashes() ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(b.Transactions))
	for i, raw := range b.Transactions {
		var h common.Hash
		if err := json.Unmarshal(raw, &h); err == nil {
			hashes = append(hashes, h)
			continue
		}
		var tx struct {
			Hash common.Hash `json:"hash"`
		}
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		hashes = append(hashes, tx.Hash)
	}
	return hashes, nil
}
