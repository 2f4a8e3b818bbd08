package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-display-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate by route template and status class.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream calls per provider. status: success, client_error, server_error, rate_limited, error, circuit_open.
	ProviderCallsTotal *prometheus.CounterVec

	// Upstream latency per provider. Watch for: p95 approaching the provider timeout.
	ProviderCallDuration *prometheus.HistogramVec

	// Failed fetch cycles by provider and error category (see client.CategorizeError).
	ProviderFetchErrorsTotal *prometheus.CounterVec

	// Responses that arrived after the city changed and were dropped.
	StaleResponsesDiscardedTotal *prometheus.CounterVec

	// City selections accepted.
	CityChangesTotal prometheus.Counter

	// Refresh cycles by trigger (manual, scheduled).
	RefreshesTotal *prometheus.CounterVec

	// Rate limit denials on PUT /city.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per provider.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	providerGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of weather provider calls",
		},
		[]string{"provider", "status"},
	)
	ProviderCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerCallDurationSeconds",
			Help:    "Weather provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	ProviderFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerFetchErrorsTotal",
			Help: "Failed provider fetches by error category",
		},
		[]string{"provider", "category"},
	)
	StaleResponsesDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staleResponsesDiscardedTotal",
			Help: "Provider responses dropped because a newer city or refresh superseded them",
		},
		[]string{"provider"},
	)
	CityChangesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cityChangesTotal",
			Help: "Total number of accepted city selections",
		},
	)
	RefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshesTotal",
			Help: "Refresh cycles for the current city",
		},
		[]string{"trigger"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"provider", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderCallsTotal, ProviderCallDuration, ProviderFetchErrorsTotal,
		StaleResponsesDiscardedTotal, CityChangesTotal, RefreshesTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RecordCircuitBreakerTransition updates the state gauge and transition counter.
// from and to use gobreaker's state names.
func RecordCircuitBreakerTransition(provider, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(provider, from, to).Inc()
	CircuitBreakerState.WithLabelValues(provider).Set(circuitBreakerStateValue(to))
}

func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RegisterProviderGauges exposes the per-provider error count of the sliding window used
// by the health check. Safe to call more than once.
func RegisterProviderGauges(window time.Duration, providers ...string) {
	providerGaugesOnce.Do(func() {
		for _, p := range providers {
			p := p
			registry.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name:        "providerErrorsInWindow",
					Help:        "Failed fetches in the health window; feeds the degraded status",
					ConstLabels: prometheus.Labels{"provider": p},
				},
				func() float64 {
					errs, _ := traffic.ErrorRate(p, window)
					return float64(errs)
				},
			))
		}
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
