// Package metrics exposes the module's Prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector owns every metric the chatbot emits. It satisfies llm.Observer.
type Collector struct {
	messages    *prometheus.CounterVec
	llmRequests *prometheus.CounterVec
	llmDuration *prometheus.HistogramVec
	planSteps   *prometheus.CounterVec
	sessions    prometheus.Gauge
}

// NewCollector registers the metrics on reg; nil uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallchat",
			Name:      "messages_total",
			Help:      "Messages processed, by classified intent and outcome.",
		}, []string{"intent", "status"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallchat",
			Name:      "llm_requests_total",
			Help:      "LLM completions requested, by provider and outcome.",
		}, []string{"provider", "status"}),
		llmDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mallchat",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		planSteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mallchat",
			Name:      "plan_steps_total",
			Help:      "Plan steps by agent and final status.",
		}, []string{"agent", "status"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mallchat",
			Name:      "active_sessions",
			Help:      "Sessions currently live in the store.",
		}),
	}
}

// RecordMessage counts one processed message.
func (c *Collector) RecordMessage(intent, status string) {
	c.messages.WithLabelValues(intent, status).Inc()
}

// ObserveLLMRequest implements llm.Observer.
func (c *Collector) ObserveLLMRequest(provider, status string, duration time.Duration) {
	c.llmRequests.WithLabelValues(provider, status).Inc()
	c.llmDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordPlanStep counts one executed (or skipped) plan step.
func (c *Collector) RecordPlanStep(agent, status string) {
	c.planSteps.WithLabelValues(agent, status).Inc()
}

// SetActiveSessions updates the live session gauge.
func (c *Collector) SetActiveSessions(n int) {
	c.sessions.Set(float64(n))
}
