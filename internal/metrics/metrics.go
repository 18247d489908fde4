// Package metrics holds the Prometheus collectors shared by the server and the
// upstream clients.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipvops_http_requests_total",
			Help: "Total number of HTTP requests served, by route and status code",
		},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipvops_http_request_duration_milliseconds",
			Help:    "HTTP request duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"route"},
	)
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipvops_upstream_requests_total",
			Help: "Upstream calls made to Airtable and Google Sheets, by outcome",
		},
		[]string{"source", "operation", "outcome"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipvops_upstream_retries_total",
			Help: "Upstream retries, by reason",
		},
		[]string{"source", "reason"},
	)
	SuspiciousRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipvops_suspicious_requests_total",
			Help: "Requests matching known attack patterns",
		},
	)
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipvops_rate_limited_requests_total",
			Help: "Inbound requests rejected by the per-client rate limiter",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRetriesTotal)
	prometheus.MustRegister(SuspiciousRequestsTotal)
	prometheus.MustRegister(RateLimitedTotal)
}

// Outcome returns the label used for UpstreamRequestsTotal.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
