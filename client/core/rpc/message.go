package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Version JSON-RPC 协议版本
const Version = "2.0"

// Request JSON-RPC 2.0 请求，批次中每个 Slot 对应一条
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// ErrorObject JSON-RPC 2.0 错误对象
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope 传输层交回的单条响应
//
// Result 缺失与 null 都表示无返回值的成功；Error 非空表示该调用失败。
type Envelope struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// NewResultEnvelope 构造成功响应（主要用于测试和传输层）
func NewResultEnvelope(id int, result json.RawMessage) Envelope {
	return Envelope{JSONRPC: Version, ID: IDBytes(id), Result: result}
}

// NewErrorEnvelope 构造错误响应
func NewErrorEnvelope(id int, code int, message string) Envelope {
	return Envelope{JSONRPC: Version, ID: IDBytes(id), Error: &ErrorObject{Code: code, Message: message}}
}

// IDBytes 将批次内 id 编码为 JSON
func IDBytes(id int) json.RawMessage {
	return json.RawMessage(strconv.Itoa(id))
}

// IntID 解析整数 id；id 缺失、为 null 或不是整数时返回错误
func (e *Envelope) IntID() (int, error) {
	raw := bytes.TrimSpace(e.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing id")
	}
	id, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("non-integer id %s: %w", raw, err)
	}
	return id, nil
}

// HasResult 是否携带非 null 的 result
func (e *Envelope) HasResult() bool {
	return !isNullRaw(e.Result)
}

func isNullRaw(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
