// Package metrics holds the Prometheus collectors shared by the server and
// the worker. Collectors register on the default registry at init.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequests counts handled requests by route pattern, method and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_http_requests_total",
		Help: "Total HTTP requests by route, method and status class",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
	}, []string{"route", "method"})

	// CacheLookups counts response cache lookups by result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_cache_lookups_total",
		Help: "Response cache lookups by result",
	}, []string{"result"})

	// EventsPublished counts appointment events by action and outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_appointment_events_published_total",
		Help: "Appointment events published by action and result",
	}, []string{"action", "result"})

	// CalendarSyncs counts calendar mirror operations by operation and outcome.
	CalendarSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_calendar_sync_total",
		Help: "Calendar mirror operations by operation and result",
	}, []string{"operation", "result"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_rate_limited_requests_total",
		Help: "Requests rejected by the rate limiter",
	})
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
	ResultMiss  = "miss"
)

// Outcome maps an error to ResultOK or ResultError.
func Outcome(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
