// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "rag_answer"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// 准入闸门指标
	AdmissionWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for an admission permit",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5},
		},
		[]string{"class"},
	)

	AdmissionRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Total number of admission acquisitions that timed out",
		},
		[]string{"class"},
	)

	// 检索指标
	RetrievalSourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "source_duration_seconds",
			Help:      "Per-source retrieval duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"source"},
	)

	RetrievalSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "source_total",
			Help:      "Total number of per-source retrieval calls",
		},
		[]string{"source", "status"}, // status: ok/empty/error/timeout/overload
	)

	RetrievalCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "cache_total",
			Help:      "Embedding and outcome cache lookups",
		},
		[]string{"cache", "result"}, // cache: embedding/outcome, result: hit/miss
	)

	// LLM 指标
	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM call duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120},
		},
		[]string{"target"}, // target: generation/reranker/summarize/embedding
	)

	LLMCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_total",
			Help:      "Total number of LLM calls",
		},
		[]string{"target", "status"},
	)

	// 翻译指标
	TranslationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "translate",
			Name:      "total",
			Help:      "Total number of translation calls",
		},
		[]string{"direction", "status"}, // direction: in/out
	)

	// 辅助信号指标
	InsightTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "insight",
			Name:      "total",
			Help:      "Total number of auxiliary insight fetches",
		},
		[]string{"status"}, // status: accepted/rejected/error
	)

	// 会话指标
	SummarizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "summarization_total",
			Help:      "Total number of background session summarizations",
		},
		[]string{"status"},
	)

	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "active_requests",
			Help:      "Current number of in-flight chat requests",
		},
	)
)
