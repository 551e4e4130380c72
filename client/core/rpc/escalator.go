package rpc

import (
	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// FailureEscalator 批次级失败策略
//
// 仅在传输层本身失败时调用，每个批次最多一次；返回值是交给聚合观察者的错误。
type FailureEscalator interface {
	Escalate(b *Batch, cause error) error
}

// FailPending 默认策略：所有仍挂起的 Slot 以同一个 TransportError 失败，
// 已是终态的 Slot 保持不变
type FailPending struct {
	logger log.Logger
}

// NewFailPending 创建默认策略
func NewFailPending(logger log.Logger) *FailPending {
	if logger == nil {
		logger = logimpl.NewNopLogger()
	}
	return &FailPending{logger: logger}
}

// Escalate 实现 FailureEscalator
func (f *FailPending) Escalate(b *Batch, cause error) error {
	terr := NewTransportError(cause)
	failed := 0
	for _, item := range b.Items() {
		if item.failIfPending(terr) {
			failed++
		}
	}
	f.logger.Warnf("批次 %s 传输失败，%d 个挂起调用被标记失败: %v", b.TraceID(), failed, cause)
	return terr
}

// EscalatorFunc 函数适配器
type EscalatorFunc func(b *Batch, cause error) error

// Escalate 实现 FailureEscalator
func (f EscalatorFunc) Escalate(b *Batch, cause error) error {
	return f(b, cause)
}
