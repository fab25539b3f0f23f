package observability

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of measurements this core can record. Grounded on
// the teacher's pkg/observability.Metrics interface, trimmed to three
// concerns (no HTTP/gRPC/session KPIs — those belonged to hector's own
// server, which is out of scope). Only RecordToolExecution is called, by
// tool.Registry.Dispatch; the runner calls neither RecordStep nor
// RecordLLMCall.
type Metrics interface {
	RecordStep(ctx context.Context, duration time.Duration, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, promptTokens, completionTokens int, err error)
}

// NoopMetrics discards every measurement. It is the default so embedding
// the core never requires a Prometheus registry.
type NoopMetrics struct{}

func (NoopMetrics) RecordStep(context.Context, time.Duration, error)                            {}
func (NoopMetrics) RecordToolExecution(context.Context, string, time.Duration, error)            {}
func (NoopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error)         {}

var (
	globalMu      sync.RWMutex
	globalMetrics Metrics = NoopMetrics{}
)

// SetGlobalMetrics installs the process-wide metrics recorder used by
// components that are not explicitly wired with one.
func SetGlobalMetrics(m Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if m == nil {
		m = NoopMetrics{}
	}
	globalMetrics = m
}

// GlobalMetrics returns the currently installed metrics recorder.
func GlobalMetrics() Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// PrometheusMetrics implements Metrics directly on client_golang, the
// dependency the teacher's own ExecuteTool instrumentation uses.
type PrometheusMetrics struct {
	stepDuration   *prometheus.HistogramVec
	stepErrors     *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	toolErrors     *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	llmPromptToks  *prometheus.CounterVec
	llmCompleteToks *prometheus.CounterVec
	llmErrors      *prometheus.CounterVec
}

// NewPrometheusMetrics registers the runtime's metric families against reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentrt", Subsystem: "runner", Name: "step_duration_seconds",
			Help: "Duration of one reasoning-loop step.",
		}, nil),
		stepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Subsystem: "runner", Name: "step_errors_total",
			Help: "Steps that ended in a fatal error.",
		}, nil),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentrt", Subsystem: "tool", Name: "execution_duration_seconds",
			Help: "Duration of a single tool dispatch.",
		}, []string{"tool"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Subsystem: "tool", Name: "calls_total",
			Help: "Tool dispatches.",
		}, []string{"tool"}),
		toolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Subsystem: "tool", Name: "errors_total",
			Help: "Tool dispatches that returned an error.",
		}, []string{"tool"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentrt", Subsystem: "llm", Name: "call_duration_seconds",
			Help: "Duration of a single provider call.",
		}, []string{"model"}),
		llmPromptToks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Subsystem: "llm", Name: "prompt_tokens_total",
			Help: "Prompt tokens consumed.",
		}, []string{"model"}),
		llmCompleteToks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Subsystem: "llm", Name: "completion_tokens_total",
			Help: "Completion tokens produced.",
		}, []string{"model"}),
		llmErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentrt", Subsystem: "llm", Name: "errors_total",
			Help: "Provider calls that returned an error.",
		}, []string{"model"}),
	}

	reg.MustRegister(
		m.stepDuration, m.stepErrors,
		m.toolDuration, m.toolCalls, m.toolErrors,
		m.llmDuration, m.llmPromptToks, m.llmCompleteToks, m.llmErrors,
	)
	return m
}

func (m *PrometheusMetrics) RecordStep(_ context.Context, duration time.Duration, err error) {
	m.stepDuration.WithLabelValues().Observe(duration.Seconds())
	if err != nil {
		m.stepErrors.WithLabelValues().Inc()
	}
}

func (m *PrometheusMetrics) RecordToolExecution(_ context.Context, tool string, duration time.Duration, err error) {
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	m.toolCalls.WithLabelValues(tool).Inc()
	if err != nil {
		m.toolErrors.WithLabelValues(tool).Inc()
	}
}

func (m *PrometheusMetrics) RecordLLMCall(_ context.Context, model string, duration time.Duration, promptTokens, completionTokens int, err error) {
	m.llmDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.llmPromptToks.WithLabelValues(model).Add(float64(promptTokens))
	m.llmCompleteToks.WithLabelValues(model).Add(float64(completionTokens))
	if err != nil {
		m.llmErrors.WithLabelValues(model).Inc()
	}
}
