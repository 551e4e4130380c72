package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// State Slot 状态
type State int

const (
	// StatePending 等待响应
	StatePending State = iota
	// StateCompleted 已成功完成
	StateCompleted
	// StateFailed 已失败
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome Slot 的终态结果
type Outcome[RES any] struct {
	Value RES
	Err   error
}

// Item 批次内 Slot 的类型擦除视图，供 Router / FailureEscalator 使用
type Item interface {
	// ID 批次内 id
	ID() int
	// Descriptor 所属调用
	Descriptor() Descriptor
	// State 当前状态
	State() State
	// Complete 以原始结果完成
	Complete(raw json.RawMessage) error
	// Fail 以错误结束
	Fail(err error) error
	// Result 终态的值与错误（值已类型擦除）
	Result() (any, error)
	// Close 运行终结步骤，且只运行一次
	Close()

	failIfPending(err error) bool
}

// Slot 绑定到单个 Call 的完成状态机
//
// Pending → Completed(value) 或 Pending → Failed(err)，两者均为终态；
// 终结步骤（Close）总是最后执行且只执行一次。
type Slot[JS, RES any] struct {
	id   int
	call *Call[JS, RES]

	mu        sync.Mutex
	state     State
	value     RES
	err       error
	done      chan struct{}
	observers []chan Outcome[RES]

	finalizeOnce sync.Once
	finalizers   []func(State)
}

func newSlot[JS, RES any](id int, call *Call[JS, RES]) *Slot[JS, RES] {
	return &Slot[JS, RES]{
		id:    id,
		call:  call,
		state: StatePending,
		done:  make(chan struct{}),
	}
}

// ID 批次内 id
func (s *Slot[JS, RES]) ID() int {
	return s.id
}

// Call 返回调用描述
func (s *Slot[JS, RES]) Call() *Call[JS, RES] {
	return s.call
}

// Descriptor 返回类型擦除的调用描述
func (s *Slot[JS, RES]) Descriptor() Descriptor {
	return s.call
}

// State 当前状态
func (s *Slot[JS, RES]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Complete 以原始结果完成 Slot
//
// raw 缺失或为 null 时直接以零值成功，不做转换；形状不符时 Slot 以
// SchemaMismatchError 失败。Slot 已是终态时返回 ErrSlotTerminal。
func (s *Slot[JS, RES]) Complete(raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		return ErrSlotTerminal
	}
	if isNullRaw(raw) {
		var zero RES
		s.resolveLocked(StateCompleted, zero, nil)
		return nil
	}
	value, err := s.call.decode(raw)
	if err != nil {
		s.resolveLocked(StateFailed, value, err)
		return nil
	}
	s.resolveLocked(StateCompleted, value, nil)
	return nil
}

// Fail 以错误结束 Slot；已是终态时返回 ErrSlotTerminal
func (s *Slot[JS, RES]) Fail(err error) error {
	if err == nil {
		return fmt.Errorf("rpc: fail slot %d with nil error", s.id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		return ErrSlotTerminal
	}
	var zero RES
	s.resolveLocked(StateFailed, zero, err)
	return nil
}

// failIfPending 仅在挂起时失败，用于扩散传输错误
func (s *Slot[JS, RES]) failIfPending(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		return false
	}
	var zero RES
	s.resolveLocked(StateFailed, zero, err)
	return true
}

func (s *Slot[JS, RES]) resolveLocked(state State, value RES, err error) {
	s.state = state
	s.value = value
	s.err = err
	outcome := Outcome[RES]{Value: value, Err: err}
	for _, ch := range s.observers {
		ch <- outcome
		close(ch)
	}
	s.observers = nil
	close(s.done)
}

// Observe 返回一个在终态时收到结果的通道（缓冲为 1，之后关闭）
//
// 可在终态前后任意次调用，每个观察者看到同一结果。
func (s *Slot[JS, RES]) Observe() <-chan Outcome[RES] {
	ch := make(chan Outcome[RES], 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		ch <- Outcome[RES]{Value: s.value, Err: s.err}
		close(ch)
		return ch
	}
	s.observers = append(s.observers, ch)
	return ch
}

// Done 终态时关闭
func (s *Slot[JS, RES]) Done() <-chan struct{} {
	return s.done
}

// Wait 阻塞直到终态或 ctx 结束
func (s *Slot[JS, RES]) Wait(ctx context.Context) (RES, error) {
	select {
	case <-s.done:
		return s.Outcome()
	case <-ctx.Done():
		var zero RES
		return zero, ctx.Err()
	}
}

// Outcome 当前结果；挂起时 err 为 nil 且值为零值
func (s *Slot[JS, RES]) Outcome() (RES, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.err
}

// Result 类型擦除的结果
func (s *Slot[JS, RES]) Result() (any, error) {
	value, err := s.Outcome()
	return value, err
}

// OnFinalize 注册终结回调，回调收到执行终结时的状态
func (s *Slot[JS, RES]) OnFinalize(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizers = append(s.finalizers, fn)
}

// Close 执行终结步骤，多次调用只生效一次
func (s *Slot[JS, RES]) Close() {
	s.finalizeOnce.Do(func() {
		s.mu.Lock()
		state := s.state
		finalizers := s.finalizers
		s.finalizers = nil
		s.mu.Unlock()
		for _, fn := range finalizers {
			fn(state)
		}
	})
}
