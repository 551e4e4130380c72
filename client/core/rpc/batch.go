package rpc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Batch 一次线上交换所包含的有序 Slot 集合
//
// id 在批次内从 0 开始单调分配；Seal 之后不再接受新的调用，
// 一个 Batch 只发送一次。
type Batch struct {
	traceID string

	mu       sync.Mutex
	items    []Item
	nextID   int
	sealed   bool
	registry *Registry
	closed   bool
}

// NewBatch 创建空批次
func NewBatch() *Batch {
	return &Batch{
		traceID: uuid.NewString(),
	}
}

// TraceID 批次追踪 id（仅用于日志与事件）
func (b *Batch) TraceID() string {
	return b.traceID
}

// Add 添加一个带类型的调用并返回其 Slot
func Add[JS, RES any](b *Batch, call *Call[JS, RES]) (*Slot[JS, RES], error) {
	item, err := b.AddCall(call)
	if err != nil {
		return nil, err
	}
	return item.(*Slot[JS, RES]), nil
}

// MustAdd 同 Add，批次已封存时 panic
func MustAdd[JS, RES any](b *Batch, call *Call[JS, RES]) *Slot[JS, RES] {
	slot, err := Add(b, call)
	if err != nil {
		panic(err)
	}
	return slot
}

// AddCall 添加类型擦除的调用描述
func (b *Batch) AddCall(d Descriptor) (Item, error) {
	if d == nil {
		return nil, fmt.Errorf("rpc: nil call descriptor")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, ErrBatchSealed
	}
	item := d.newItem(b.nextID)
	b.nextID++
	b.items = append(b.items, item)
	return item, nil
}

// Seal 冻结 id 集合，按 id 顺序生成请求列表并构建注册表
func (b *Batch) Seal() ([]Request, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, ErrBatchSealed
	}
	if len(b.items) == 0 {
		return nil, ErrEmptyBatch
	}
	b.sealed = true
	b.registry = newRegistry(b.items)

	requests := make([]Request, 0, len(b.items))
	for _, item := range b.items {
		d := item.Descriptor()
		requests = append(requests, Request{
			JSONRPC: Version,
			ID:      item.ID(),
			Method:  d.Method(),
			Params:  d.Params(),
		})
	}
	return requests, nil
}

// Sealed 是否已封存
func (b *Batch) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// Registry 返回封存时构建的注册表；未封存时返回 ErrBatchNotSealed
func (b *Batch) Registry() (*Registry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sealed {
		return nil, ErrBatchNotSealed
	}
	return b.registry, nil
}

// Items 返回全部 Slot（按 id 顺序的副本），与分派状态无关
func (b *Batch) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Item, len(b.items))
	copy(out, b.items)
	return out
}

// Len 当前调用数
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Pending 仍处于挂起状态的 Slot 数
func (b *Batch) Pending() int {
	n := 0
	for _, item := range b.Items() {
		if item.State() == StatePending {
			n++
		}
	}
	return n
}

// Close 结束批次：挂起的 Slot 以 ErrBatchAbandoned 失败，然后逐个执行终结步骤
func (b *Batch) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.sealed = true
	items := make([]Item, len(b.items))
	copy(items, b.items)
	b.mu.Unlock()

	for _, item := range items {
		item.failIfPending(ErrBatchAbandoned)
	}
	for _, item := range items {
		item.Close()
	}
}
