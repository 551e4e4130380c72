package rpc

import (
	"errors"

	logimpl "github.com/weisyn/batchrpc/internal/core/infrastructure/log"
	"github.com/weisyn/batchrpc/pkg/interfaces/infrastructure/log"
)

// ItemResponse 单个调用被路由后的聚合事件
type ItemResponse struct {
	ID    int
	Call  Descriptor
	Value any
	Err   error
}

// Router 按 id 将响应分派到对应的 Slot
//
// 路由只依赖 id，不依赖到达顺序；Route 永不 panic，协议违规以错误返回，
// 调用方可以继续路由后续响应。
type Router struct {
	registry *Registry
	logger   log.Logger
	onItem   func(ItemResponse)
}

// NewRouter 创建路由器；onItem 在每个成功路由的响应后调用，可为 nil
func NewRouter(registry *Registry, logger log.Logger, onItem func(ItemResponse)) *Router {
	if logger == nil {
		logger = logimpl.NewNopLogger()
	}
	return &Router{
		registry: registry,
		logger:   logger,
		onItem:   onItem,
	}
}

// Route 处理一条响应
//
// 返回 *UnmatchedIDError（id 无对应调用）或 *DuplicateResponseError
// （对应 Slot 已是终态）；其余情况返回 nil。
func (r *Router) Route(env Envelope) error {
	id, err := env.IntID()
	if err != nil {
		r.logger.Warnf("丢弃无法识别 id 的响应: %v", err)
		return &UnmatchedIDError{ID: env.ID}
	}
	item, ok := r.registry.Lookup(id)
	if !ok {
		r.logger.Warnf("响应 id %d 没有对应的调用", id)
		return &UnmatchedIDError{ID: env.ID}
	}

	method := item.Descriptor().Method()
	if env.Error != nil {
		err = item.Fail(&RPCError{
			Code:    env.Error.Code,
			Message: env.Error.Message,
			Data:    env.Error.Data,
			Method:  method,
		})
	} else {
		err = item.Complete(env.Result)
	}
	if errors.Is(err, ErrSlotTerminal) {
		r.logger.Warnf("重复响应 id=%d method=%s，保留首个结果", id, method)
		return &DuplicateResponseError{ID: id, Method: method}
	}
	if err != nil {
		return err
	}

	value, itemErr := item.Result()
	if r.onItem != nil {
		r.onItem(ItemResponse{
			ID:    id,
			Call:  item.Descriptor(),
			Value: value,
			Err:   itemErr,
		})
	}
	return nil
}
