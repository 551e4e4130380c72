// Package rpc 实现 JSON-RPC 批量调用的客户端核心
//
// 🎯 **核心组件**
// - Call：不可变的单次调用描述（方法、参数、期望的原始形状、结果转换）
// - Slot：绑定到 Call 的完成状态机，调用方通过它观察结果
// - Batch：有序的 Slot 集合，创建时分配批次内 id
// - Registry：封存时构建的 id → Slot 查找表
// - Router：按 id 将响应分派到 Slot
// - FailureEscalator：传输层失败时让所有挂起的 Slot 以同一错误结束
package rpc

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Converter 将原始形状 JS 转换为调用方的结果类型 RES
type Converter[JS, RES any] func(JS) (RES, error)

// Descriptor 批次可接受的调用描述（类型擦除视图）
type Descriptor interface {
	// Method 返回 JSON-RPC 方法名
	Method() string
	// Params 返回有序参数列表（副本）
	Params() []any
	// ExpectedShape 返回期望的原始结果类型名称
	ExpectedShape() string

	newItem(id int) Item
}

// Call 单次远程调用的不可变描述
type Call[JS, RES any] struct {
	method    string
	params    []any
	converter Converter[JS, RES]
}

// NewCall 创建调用描述，converter 为 nil 时要求 JS 与 RES 为同一类型
func NewCall[JS, RES any](method string, converter Converter[JS, RES], params ...any) *Call[JS, RES] {
	if converter == nil {
		converter = identityConverter[JS, RES]
	}
	copied := make([]any, len(params))
	copy(copied, params)
	return &Call[JS, RES]{
		method:    method,
		params:    copied,
		converter: converter,
	}
}

// NewDirectCall 创建原始形状即结果类型的调用描述
func NewDirectCall[T any](method string, params ...any) *Call[T, T] {
	return NewCall[T, T](method, func(v T) (T, error) { return v, nil }, params...)
}

func identityConverter[JS, RES any](v JS) (RES, error) {
	if out, ok := any(v).(RES); ok {
		return out, nil
	}
	var zero RES
	return zero, fmt.Errorf("no converter from %T to %T", v, zero)
}

// Method 返回方法名
func (c *Call[JS, RES]) Method() string {
	return c.method
}

// Params 返回参数副本
func (c *Call[JS, RES]) Params() []any {
	out := make([]any, len(c.params))
	copy(out, c.params)
	return out
}

// ExpectedShape 返回期望的原始形状
func (c *Call[JS, RES]) ExpectedShape() string {
	return reflect.TypeOf((*JS)(nil)).Elem().String()
}

// Equal 结构相等：方法名与参数相同
func (c *Call[JS, RES]) Equal(other *Call[JS, RES]) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.method == other.method && reflect.DeepEqual(c.params, other.params)
}

func (c *Call[JS, RES]) String() string {
	return fmt.Sprintf("%s%v", c.method, c.params)
}

// decode 校验原始值形状并应用转换函数
func (c *Call[JS, RES]) decode(raw json.RawMessage) (RES, error) {
	var js JS
	var zero RES
	if err := json.Unmarshal(raw, &js); err != nil {
		return zero, &SchemaMismatchError{
			Method:   c.method,
			Expected: c.ExpectedShape(),
			Raw:      raw,
			Cause:    err,
		}
	}
	res, err := c.converter(js)
	if err != nil {
		return zero, &SchemaMismatchError{
			Method:   c.method,
			Expected: c.ExpectedShape(),
			Raw:      raw,
			Cause:    err,
		}
	}
	return res, nil
}

func (c *Call[JS, RES]) newItem(id int) Item {
	return newSlot(id, c)
}
