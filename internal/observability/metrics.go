package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/idea-service/internal/domain"
)

// Metrics holds Prometheus collectors for HTTP traffic and the idea workflow.
// All methods are safe on a nil receiver so collaborators may run without metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	ideasCreated      prometheus.Counter
	statusTransitions *prometheus.CounterVec
	assignments       prometheus.Counter
	updatesPosted     *prometheus.CounterVec
	statsCache        *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
}

// NewMetrics registers collectors with reg. Passing a fresh registry keeps tests isolated.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idea_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idea_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idea_http_errors_total",
			Help: "Error responses by code.",
		}, []string{"method", "route", "code"}),
		ideasCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idea_created_total",
			Help: "Ideas submitted by customers.",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idea_status_transitions_total",
			Help: "Idea status changes by from/to status.",
		}, []string{"from", "to"}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idea_assignments_total",
			Help: "Ideas assigned to developers.",
		}),
		updatesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idea_updates_posted_total",
			Help: "Updates appended to idea threads by author role.",
		}, []string{"role"}),
		statsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idea_stats_cache_total",
			Help: "Stats cache lookups by result (hit, miss, error, bypass).",
		}, []string{"result"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idea_webhook_deliveries_total",
			Help: "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.ideasCreated,
		m.statusTransitions,
		m.assignments,
		m.updatesPosted,
		m.statsCache,
		m.webhookDeliveries,
	)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, route, code).Inc()
}

func (m *Metrics) IdeaCreated() {
	if m == nil {
		return
	}
	m.ideasCreated.Inc()
}

func (m *Metrics) StatusChanged(from, to domain.IdeaStatus) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) IdeaAssigned() {
	if m == nil {
		return
	}
	m.assignments.Inc()
}

func (m *Metrics) UpdatePosted(role domain.Role) {
	if m == nil {
		return
	}
	m.updatesPosted.WithLabelValues(string(role)).Inc()
}

// StatsCacheResult records "hit", "miss", "error" or "bypass".
func (m *Metrics) StatsCacheResult(result string) {
	if m == nil {
		return
	}
	m.statsCache.WithLabelValues(result).Inc()
}

// WebhookDelivery records "delivered", "failed" or "dropped".
func (m *Metrics) WebhookDelivery(outcome string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(outcome).Inc()
}

// StatsCacheResults returns the lookup counter for result.
func (m *Metrics) StatsCacheResults(result string) prometheus.Counter {
	return m.statsCache.WithLabelValues(result)
}

// WebhookDeliveries returns the delivery counter for outcome.
func (m *Metrics) WebhookDeliveries(outcome string) prometheus.Counter {
	return m.webhookDeliveries.WithLabelValues(outcome)
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
