package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics exposes counters/histograms for upstream vendor calls,
// Stripe webhooks and inbound HTTP traffic.
type RelayMetrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	webhookTotal    *prometheus.CounterVec
	httpTotal       *prometheus.CounterVec
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "upstream_requests_total",
			Help:      "Total upstream vendor requests",
		}, []string{"provider", "operation", "status"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "upstream_latency_seconds",
			Help:      "Latency of upstream vendor requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "webhook_events_total",
			Help:      "Total Stripe webhook events by outcome",
		}, []string{"type", "outcome"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "http_requests_total",
			Help:      "Total inbound HTTP requests",
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.webhookTotal, m.httpTotal)
	return m
}

// ObserveUpstream records one vendor call. status is the HTTP status code,
// or 0 when the request never got a response.
func (m *RelayMetrics) ObserveUpstream(provider, operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamTotal.WithLabelValues(provider, operation, label).Inc()
	m.upstreamLatency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

func (m *RelayMetrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *RelayMetrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
