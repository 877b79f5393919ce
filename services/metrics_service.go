package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tunnelUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickflare_tunnel_up",
			Help: "1 while the supervised tunnel is running",
		},
	)

	tunnelStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickflare_tunnel_starts_total",
			Help: "Tunnel start attempts by result",
		},
		[]string{"result"},
	)

	tunnelRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickflare_tunnel_restarts_total",
			Help: "Tunnel restarts by trigger",
		},
		[]string{"trigger"},
	)

	readinessAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quickflare_readiness_attempts_total",
			Help: "Fetches of the cloudflared metrics endpoint while waiting for readiness",
		},
	)

	keepAliveErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quickflare_keepalive_errors_total",
			Help: "Errors swallowed by the keep-alive loop",
		},
	)

	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickflare_api_request_total",
			Help: "Total control API requests",
		},
		[]string{"path"},
	)

	requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickflare_api_request_errors_total",
			Help: "Control API requests answered with status >= 400",
		},
		[]string{"path"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quickflare_api_request_duration_seconds",
			Help:    "Duration of control API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(tunnelUp)
	prometheus.MustRegister(tunnelStarts)
	prometheus.MustRegister(tunnelRestarts)
	prometheus.MustRegister(readinessAttempts)
	prometheus.MustRegister(keepAliveErrors)
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestErrors)
	prometheus.MustRegister(requestDuration)
}

func IncrementRequestCount(path string) {
	requestCount.WithLabelValues(path).Inc()
}

func IncrementErrorCount(path string) {
	requestErrors.WithLabelValues(path).Inc()
}

func RecordRequestDuration(path string, seconds float64) {
	requestDuration.WithLabelValues(path).Observe(seconds)
}
