// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicketsTriaged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "builddesk_tickets_triaged_total",
		Help: "Tickets classified, by category, priority and classification source",
	}, []string{"category", "priority", "source"})

	TriageDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "builddesk_triage_duration_seconds",
		Help:    "Time to analyze a single ticket end to end",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "builddesk_llm_requests_total",
		Help: "LLM calls by provider, operation and outcome",
	}, []string{"provider", "operation", "outcome"})

	LLMFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "builddesk_llm_fallbacks_total",
		Help: "Operations that fell back to deterministic output",
	}, []string{"operation"})

	KnowledgeBaseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "builddesk_kb_failures_total",
		Help: "Knowledge base lookups that failed during triage",
	})

	HealthScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "builddesk_project_health_score",
		Help: "Latest overall health score per project",
	}, []string{"project_id"})

	HealthDimensionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "builddesk_health_dimension_undefined_total",
		Help: "Dimensions excluded from scoring because their inputs were undefined",
	}, []string{"dimension"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "builddesk_http_requests_total",
		Help: "API requests by route and status code",
	}, []string{"route", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
