package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// 契约类错误（调用方或实现逻辑错误）
var (
	// ErrSlotTerminal Slot 已进入终态，再次 Complete/Fail 属于契约违规
	ErrSlotTerminal = errors.New("rpc: slot already terminal")
	// ErrBatchSealed 批次已封存，不能再添加调用
	ErrBatchSealed = errors.New("rpc: batch already sealed")
	// ErrBatchNotSealed 批次尚未封存
	ErrBatchNotSealed = errors.New("rpc: batch not sealed")
	// ErrEmptyBatch 空批次不会发送
	ErrEmptyBatch = errors.New("rpc: empty batch")
	// ErrBatchAbandoned 批次未发送即被关闭，挂起的 Slot 以此错误结束
	ErrBatchAbandoned = errors.New("rpc: batch abandoned before completion")
	// ErrMissingResponses 传输正常结束但部分调用没有收到响应
	ErrMissingResponses = errors.New("rpc: transport finished without answering every call")
)

// 标准JSON-RPC 2.0错误码
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPCError 服务端针对单个调用返回的错误对象，只影响对应的 Slot
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
	// Method 发起该调用的方法名（响应中不携带，由路由时补全）
	Method string
}

func (e *RPCError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("JSON-RPC error %d: %s (method %s)", e.Code, e.Message, e.Method)
	}
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// TransportError 整个批次的交换失败，由 FailureEscalator 扩散到所有挂起的 Slot
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc transport: %v", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError 包装传输层错误；已是 TransportError 时原样返回
func NewTransportError(cause error) *TransportError {
	var te *TransportError
	if errors.As(cause, &te) {
		return te
	}
	return &TransportError{Cause: cause}
}

// SchemaMismatchError 响应的原始值与调用声明的形状不符，或转换函数拒绝了该值
type SchemaMismatchError struct {
	Method   string
	Expected string
	Raw      json.RawMessage
	Cause    error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("rpc schema mismatch for %s: expected %s: %v", e.Method, e.Expected, e.Cause)
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Cause
}

// UnmatchedIDError 响应的 id 在注册表中没有对应的 Slot（协议违规）
type UnmatchedIDError struct {
	ID json.RawMessage
}

func (e *UnmatchedIDError) Error() string {
	id := string(e.ID)
	if id == "" {
		id = "<absent>"
	}
	return fmt.Sprintf("rpc: response id %s has no matching call", id)
}

// DuplicateResponseError 同一个 id 收到了第二个响应，保留第一个结果
type DuplicateResponseError struct {
	ID     int
	Method string
}

func (e *DuplicateResponseError) Error() string {
	return fmt.Sprintf("rpc: duplicate response for id %d (method %s)", e.ID, e.Method)
}

func (e *DuplicateResponseError) Unwrap() error {
	return ErrSlotTerminal
}

// IsTransportError 判断错误是否来自传输层扩散
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsServerError 判断错误是否为服务端返回的错误对象
func IsServerError(err error) bool {
	var re *RPCError
	return errors.As(err, &re)
}
