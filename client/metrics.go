package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weisyn/batchrpc/client/core/rpc"
)

// 调用结果标签
const (
	outcomeCompleted      = "completed"
	outcomeServerError    = "server_error"
	outcomeSchemaMismatch = "schema_mismatch"
	outcomeTransportError = "transport_error"
	outcomeAbandoned      = "abandoned"
	outcomeOther          = "other"

	batchOutcomeOK     = "ok"
	batchOutcomeFailed = "transport_failed"

	violationUnmatched = "unmatched_id"
	violationDuplicate = "duplicate_response"
)

// Metrics 批量 RPC 的 Prometheus 指标；nil 时所有记录操作为空
type Metrics struct {
	batches    *prometheus.CounterVec
	calls      *prometheus.CounterVec
	violations *prometheus.CounterVec
	batchSize  prometheus.Histogram
	duration   prometheus.Histogram
}

// NewMetrics 创建指标并注册到 reg；reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchrpc",
			Subsystem: "client",
			Name:      "batches_total",
			Help:      "Batches executed, by outcome.",
		}, []string{"outcome"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchrpc",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Calls reaching a terminal state, by outcome.",
		}, []string{"outcome"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchrpc",
			Subsystem: "client",
			Name:      "protocol_violations_total",
			Help:      "Responses that could not be routed, by kind.",
		}, []string{"kind"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchrpc",
			Subsystem: "client",
			Name:      "batch_size",
			Help:      "Number of calls per batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchrpc",
			Subsystem: "client",
			Name:      "batch_duration_seconds",
			Help:      "Wall time from send to finalization of a batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.batches, m.calls, m.violations, m.batchSize, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeBatch(b *rpc.Batch, batchErr error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := batchOutcomeOK
	if batchErr != nil {
		outcome = batchOutcomeFailed
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.batchSize.Observe(float64(b.Len()))
	m.duration.Observe(elapsed.Seconds())
	for _, item := range b.Items() {
		_, err := item.Result()
		m.calls.WithLabelValues(callOutcome(err)).Inc()
	}
}

func (m *Metrics) observeViolation(err error) {
	if m == nil {
		return
	}
	var dup *rpc.DuplicateResponseError
	if errors.As(err, &dup) {
		m.violations.WithLabelValues(violationDuplicate).Inc()
		return
	}
	m.violations.WithLabelValues(violationUnmatched).Inc()
}

func callOutcome(err error) string {
	var sme *rpc.SchemaMismatchError
	switch {
	case err == nil:
		return outcomeCompleted
	case rpc.IsServerError(err):
		return outcomeServerError
	case errors.As(err, &sme):
		return outcomeSchemaMismatch
	case rpc.IsTransportError(err):
		return outcomeTransportError
	case errors.Is(err, rpc.ErrBatchAbandoned):
		return outcomeAbandoned
	default:
		return outcomeOther
	}
}
