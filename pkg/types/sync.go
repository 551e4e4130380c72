package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SyncStatus eth_syncing 的结果：节点未同步时返回 false，否则返回进度对象
type SyncStatus struct {
	Syncing       bool
	StartingBlock uint64
	CurrentBlock  uint64
	HighestBlock  uint64
}

type syncProgress struct {
	StartingBlock hexutil.Uint64 `json:"startingBlock"`
	CurrentBlock  hexutil.Uint64 `json:"currentBlock"`
	HighestBlock  hexutil.Uint64 `json:"highestBlock"`
}

// Remaining 剩余区块数
func (s SyncStatus) Remaining() uint64 {
	if !s.Syncing || s.HighestBlock < s.CurrentBlock {
		return 0
	}
	return s.HighestBlock - s.CurrentBlock
}

// UnmarshalJSON 实现 json.Unmarshaler
func (s *SyncStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("false")) {
		*s = SyncStatus{}
		return nil
	}
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("unexpected syncing value %s", data)
	}
	var p syncProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode sync progress: %w", err)
	}
	*s = SyncStatus{
		Syncing:       true,
		StartingBlock: uint64(p.StartingBlock),
		CurrentBlock:  uint64(p.CurrentBlock),
		HighestBlock:  uint64(p.HighestBlock),
	}
	return nil
}

// MarshalJSON 实现 json.Marshaler，与节点返回的形状一致
func (s SyncStatus) MarshalJSON() ([]byte, error) {
	if !s.Syncing {
		return []byte("false"), nil
	}
	return json.Marshal(syncProgress{
		StartingBlock: hexutil.Uint64(s.StartingBlock),
		CurrentBlock:  hexutil.Uint64(s.CurrentBlock),
		HighestBlock:  hexutil.Uint64(s.HighestBlock),
	})
}
