package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "matches_total", Help: "Total number of successful driver assignments"})
	MatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "match_failures_total", Help: "Total failed match attempts"},
		[]string{"reason"},
	)
	MatchLatency      = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "dispatch", Name: "match_latency_seconds", Help: "Match latency seconds"})
	EtaFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "dispatch", Name: "eta_fallbacks_total", Help: "Routing estimates that fell back to haversine"})
	DriversAvailable  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "dispatch", Name: "drivers_available", Help: "Number of drivers currently available"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
