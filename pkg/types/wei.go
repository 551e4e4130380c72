// Package types 提供 JSON-RPC 客户端使用的链上值类型
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// 常用单位（以 wei 计）
var (
	GWei  = big.NewInt(1_000_000_000)
	Ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// Wei 以 wei 为单位的金额，JSON 中为 0x 前缀的十六进制数量，nil 编码为 null
type Wei struct {
	v *big.Int
}

// NewWei 从 big.Int 创建（复制）
func NewWei(v *big.Int) *Wei {
	if v == nil {
		return &Wei{v: new(big.Int)}
	}
	return &Wei{v: new(big.Int).Set(v)}
}

// WeiFromUint64 从 uint64 创建
func WeiFromUint64(v uint64) *Wei {
	return &Wei{v: new(big.Int).SetUint64(v)}
}

// ParseWei 解析十六进制数量（0x...）
func ParseWei(hex string) (*Wei, error) {
	v, err := hexutil.DecodeBig(hex)
	if err != nil {
		return nil, fmt.Errorf("parse wei %q: %w", hex, err)
	}
	return &Wei{v: v}, nil
}

// Int 返回副本
func (w *Wei) Int() *big.Int {
	if w == nil || w.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(w.v)
}

// Hex 十六进制表示
func (w *Wei) Hex() string {
	return hexutil.EncodeBig(w.Int())
}

// String 十进制表示
func (w *Wei) String() string {
	return w.Int().String()
}

// Ether 以 ether 为单位的十进制文本（保留 18 位精度，去掉末尾 0）
func (w *Wei) Ether() string {
	r := new(big.Rat).SetFrac(w.Int(), Ether)
	s := r.FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Cmp 比较大小
func (w *Wei) Cmp(other *Wei) int {
	return w.Int().Cmp(other.Int())
}

// MarshalJSON 实现 json.Marshaler
func (w *Wei) MarshalJSON() ([]byte, error) {
	if w == nil || w.v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(w.Hex())
}

// UnmarshalJSON 实现 json.Unmarshaler
func (w *Wei) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		w.v = nil
		return nil
	}
	var b hexutil.Big
	if err := b.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode wei: %w", err)
	}
	w.v = b.ToInt()
	return nil
}
