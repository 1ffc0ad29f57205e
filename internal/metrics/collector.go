// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 交接指标
	handoffsTotal   *prometheus.CounterVec
	handoffDuration *prometheus.HistogramVec

	// 计划指标
	plansTotal   *prometheus.CounterVec
	planDuration *prometheus.HistogramVec
	planTimeouts *prometheus.CounterVec
	planHandoffs *prometheus.HistogramVec

	// 推理服务指标
	reasoningRequests *prometheus.CounterVec
	reasoningDuration *prometheus.HistogramVec
	reasoningTokens   *prometheus.CounterVec

	// 历史日志指标
	historyEntries    prometheus.Gauge
	historySinkErrors *prometheus.CounterVec

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector 创建指标收集器（注册到默认 Registry）
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
}

// NewCollectorWithRegistry 创建注册到指定 Registry 的指标收集器
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// 交接指标
	c.handoffsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Total number of executed handoffs",
		},
		[]string{"worker", "status"},
	)

	c.handoffDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handoff_duration_seconds",
			Help:      "Handoff execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	// 计划指标
	c.plansTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_total",
			Help:      "Total number of executed plans",
		},
		[]string{"strategy", "status"},
	)

	c.planDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_duration_seconds",
			Help:      "Plan execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"strategy"},
	)

	c.planTimeouts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_timeouts_total",
			Help:      "Total number of plans abandoned on timeout or cancellation",
		},
		[]string{"strategy", "reason"},
	)

	c.planHandoffs = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_handoffs",
			Help:      "Number of handoffs per plan",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
		[]string{"strategy"},
	)

	// 推理服务指标
	c.reasoningRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_requests_total",
			Help:      "Total number of reasoning service requests",
		},
		[]string{"model", "status"},
	)

	c.reasoningDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_request_duration_seconds",
			Help:      "Reasoning service request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	c.reasoningTokens = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_tokens_total",
			Help:      "Total number of tokens used",
		},
		[]string{"model", "type"}, // type: input, output
	)

	// 历史日志指标
	c.historyEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Number of entries in the coordinator history log",
		},
	)

	c.historySinkErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_sink_errors_total",
			Help:      "Total number of failed history mirror writes",
		},
		[]string{"sink"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔀 交接指标记录
// =============================================================================

// RecordHandoff 记录一次交接执行
func (c *Collector) RecordHandoff(worker, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.handoffsTotal.WithLabelValues(worker, status).Inc()
	c.handoffDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// =============================================================================
// 📋 计划指标记录
// =============================================================================

// RecordPlan 记录一次计划执行
func (c *Collector) RecordPlan(strategy, status string, handoffs int, duration time.Duration) {
	if c == nil {
		return
	}
	c.plansTotal.WithLabelValues(strategy, status).Inc()
	c.planDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	c.planHandoffs.WithLabelValues(strategy).Observe(float64(handoffs))
}

// RecordPlanTimeout 记录计划超时或取消
func (c *Collector) RecordPlanTimeout(strategy, reason string) {
	if c == nil {
		return
	}
	c.planTimeouts.WithLabelValues(strategy, reason).Inc()
}

// =============================================================================
// 🤖 推理服务指标记录
// =============================================================================

// RecordReasoningRequest 记录推理服务请求
func (c *Collector) RecordReasoningRequest(model, status string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.reasoningRequests.WithLabelValues(model, status).Inc()
	c.reasoningDuration.WithLabelValues(model).Observe(duration.Seconds())
	c.reasoningTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	c.reasoningTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// =============================================================================
// 🗂️ 历史日志指标记录
// =============================================================================

// SetHistoryEntries 更新历史日志条目数
func (c *Collector) SetHistoryEntries(n int) {
	if c == nil {
		return
	}
	c.historyEntries.Set(float64(n))
}

// RecordHistorySinkError 记录历史镜像写入失败
func (c *Collector) RecordHistorySinkError(sink string) {
	if c == nil {
		return
	}
	c.historySinkErrors.WithLabelValues(sink).Inc()
}

// Handler 返回暴露指标的 HTTP Handler
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
