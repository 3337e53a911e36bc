package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mcpchat/internal/domain"
)

type PrometheusMetrics struct {
	providerConnects *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	queries          *prometheus.CounterVec
	queryRounds      prometheus.Histogram
	capabilities     *prometheus.GaugeVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		providerConnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpchat_provider_connects_total",
				Help: "Total number of provider connection attempts",
			},
			[]string{"provider", "status"},
		),
		modelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpchat_model_call_duration_seconds",
				Help:    "Latency of model completions in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "model", "status"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpchat_tool_calls_total",
				Help: "Total number of tool invocations dispatched",
			},
			[]string{"provider", "tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcpchat_tool_call_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "tool"},
		),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcpchat_queries_total",
				Help: "Total number of top-level queries resolved",
			},
			[]string{"status"},
		),
		queryRounds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mcpchat_query_model_rounds",
				Help:    "Model rounds needed to resolve a query",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 25},
			},
		),
		capabilities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcpchat_registered_capabilities",
				Help: "Current number of registered capabilities by kind",
			},
			[]string{"kind"},
		),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return string(domain.CallStatusError)
	}
	return string(domain.CallStatusSuccess)
}

func (p *PrometheusMetrics) ObserveProviderConnect(provider string, _ time.Duration, err error) {
	p.providerConnects.WithLabelValues(provider, statusLabel(err)).Inc()
}

func (p *PrometheusMetrics) ObserveModelCall(provider, model string, duration time.Duration, err error) {
	p.modelDuration.WithLabelValues(provider, model, statusLabel(err)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveToolCall(provider, tool string, status domain.CallStatus, duration time.Duration) {
	p.toolCalls.WithLabelValues(provider, tool, string(status)).Inc()
	if status == domain.CallStatusUnknown {
		return
	}
	p.toolDuration.WithLabelValues(provider, tool).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveQuery(rounds int, _ time.Duration, err error) {
	p.queries.WithLabelValues(statusLabel(err)).Inc()
	if rounds > 0 {
		p.queryRounds.Observe(float64(rounds))
	}
}

func (p *PrometheusMetrics) SetRegisteredCapabilities(kind string, count int) {
	p.capabilities.WithLabelValues(kind).Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
