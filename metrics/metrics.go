// Package metrics records request, handler, model and guardrail metrics on a
// private Prometheus registry and exposes them in text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every collector name.
const Namespace = "agent_orchestrator"

// Recorder owns every collector. Construct one per process and pass it to
// the components that report through it. All methods are safe for
// concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	agentRequests   *prometheus.CounterVec
	agentDuration   *prometheus.HistogramVec
	llmRequests     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec
	llmTokens       *prometheus.CounterVec
	intents         *prometheus.CounterVec
	guardrail       *prometheus.CounterVec
	sideEffects     *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	memoryDegraded  prometheus.Gauge
}

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "requests_total",
				Help:      "Total number of orchestrator HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
			},
			[]string{"method", "route"},
		),
		agentRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "agent_requests_total",
				Help:      "Total number of handler invocations",
			},
			[]string{"agent_name", "status"},
		),
		agentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "agent_duration_seconds",
				Help:      "Handler latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"agent_name"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of language model calls",
			},
			[]string{"model", "status"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Language model call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"model"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "llm_tokens_total",
				Help:      "Estimated language model tokens",
			},
			[]string{"model", "kind"},
		),
		intents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "intent_total",
				Help:      "Classified intents",
			},
			[]string{"intent"},
		),
		guardrail: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "guardrail_total",
				Help:      "Guardrail review outcomes",
			},
			[]string{"result"},
		),
		sideEffects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "side_effects_total",
				Help:      "Detached side-effect tasks by outcome",
			},
			[]string{"task", "status"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "active_sessions",
				Help:      "Requests currently in flight",
			},
		),
		memoryDegraded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "memory_store_degraded",
				Help:      "1 while conversation memory is served from the in-process fallback",
			},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ObserveRequest(method, route, status string, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, status).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveAgent(name, status string, elapsed time.Duration) {
	r.agentRequests.WithLabelValues(name, status).Inc()
	r.agentDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveLLM(model, status string, elapsed time.Duration, promptTokens, completionTokens int) {
	r.llmRequests.WithLabelValues(model, status).Inc()
	r.llmDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if promptTokens > 0 {
		r.llmTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		r.llmTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

func (r *Recorder) ObserveIntent(intent string) {
	r.intents.WithLabelValues(intent).Inc()
}

func (r *Recorder) ObserveGuardrail(outcome string) {
	r.guardrail.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveSideEffect(task, status string) {
	r.sideEffects.WithLabelValues(task, status).Inc()
}

// RequestStarted and RequestFinished bracket an in-flight request.
func (r *Recorder) RequestStarted() { r.activeSessions.Inc() }

func (r *Recorder) RequestFinished() { r.activeSessions.Dec() }

// SetMemoryDegraded tracks the memory store's fallback state.
func (r *Recorder) SetMemoryDegraded(degraded bool) {
	if degraded {
		r.memoryDegraded.Set(1)
		return
	}
	r.memoryDegraded.Set(0)
}
