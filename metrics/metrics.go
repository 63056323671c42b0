package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mail deliveries, labeled by route taken for the whole message.
	MailDeliveredCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_delivered_count",
			Help: "Total number of per-recipient mail copies written",
		},
		[]string{"route"}, // route: inbox, spam, draft
	)

	// Blacklist client round trips.
	BlacklistCallCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blacklist_call_count",
			Help: "Total number of blacklist service round trips",
		},
		[]string{"op", "result"}, // op: check, add, remove
	)

	// HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordDelivery counts n delivered copies for the given route.
func RecordDelivery(route string, n int) {
	MailDeliveredCount.WithLabelValues(route).Add(float64(n))
}

// RecordBlacklistCall counts one client round trip.
func RecordBlacklistCall(op, result string) {
	BlacklistCallCount.WithLabelValues(op, result).Inc()
}

// RecordHTTPRequestDuration records one served request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
