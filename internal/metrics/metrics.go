// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered on the default registry through promauto, so
// importing the package is enough to make them appear in the scrape output.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundscape_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soundscape_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Event provider
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_provider_requests_total",
			Help: "Requests made to the external event provider, by outcome",
		},
		[]string{"provider", "outcome"}, // "success", "failure", "rejected"
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soundscape_provider_request_duration_seconds",
			Help:    "Duration of event provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soundscape_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Sync
	SyncEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_sync_events_total",
			Help: "Events seen by provider syncs, by stage",
		},
		[]string{"stage"}, // "fetched", "filtered", "upserted"
	)

	LivePersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soundscape_live_persist_failures_total",
			Help: "Background persistence failures for live search results",
		},
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)

	// Domain
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_votes_total",
			Help: "Votes recorded, by voter kind and vote kind",
		},
		[]string{"voter", "kind"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soundscape_emails_sent_total",
			Help: "Outgoing emails by template and outcome",
		},
		[]string{"template", "outcome"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordProviderRequest records the outcome of one provider call.
func RecordProviderRequest(provider, outcome string, duration time.Duration) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	if outcome != "rejected" {
		ProviderRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
	}
}

// RecordSync adds the counts of one sync run.
func RecordSync(fetched, filtered, upserted int) {
	SyncEvents.WithLabelValues("fetched").Add(float64(fetched))
	SyncEvents.WithLabelValues("filtered").Add(float64(filtered))
	SyncEvents.WithLabelValues("upserted").Add(float64(upserted))
}

// RecordCache records a lookup in the named cache.
func RecordCache(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
	} else {
		CacheMisses.WithLabelValues(cache).Inc()
	}
}
