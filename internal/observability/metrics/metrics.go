package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamonitor_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aquamonitor_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamonitor_login_attempts_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	breachChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamonitor_breach_checks_total",
		Help: "Pwned-password checks by result",
	}, []string{"result"})

	preconditionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquamonitor_precondition_failures_total",
		Help: "Conditional writes rejected for a stale version tag",
	}, []string{"resource"})

	liveFeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aquamonitor_live_feed_clients",
		Help: "Connected WebSocket measurement feed clients",
	})

	staleAquariums = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aquamonitor_stale_aquariums",
		Help: "Aquariums with no measurement inside the configured threshold",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin increments the login counter for the given outcome.
func ObserveLogin(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveBreachCheck increments the breach check counter for the given result.
func ObserveBreachCheck(result string) {
	breachChecks.WithLabelValues(result).Inc()
}

// ObservePreconditionFailure records a stale-tag rejection on a resource.
func ObservePreconditionFailure(resource string) {
	preconditionFailures.WithLabelValues(resource).Inc()
}

// IncrementFeedClients increments the live feed client gauge.
func IncrementFeedClients() {
	liveFeedClients.Inc()
}

// DecrementFeedClients decrements the live feed client gauge.
func DecrementFeedClients() {
	liveFeedClients.Dec()
}

// SetStaleAquariums sets the stale aquarium gauge to a specific count.
func SetStaleAquariums(count int) {
	if count < 0 {
		count = 0
	}
	staleAquariums.Set(float64(count))
}
