package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's own registry so multiple handlers (tests) can
// coexist in one process.
type metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{registry: prometheus.NewRegistry()}
	m.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeline_transitions_total",
			Help: "Observation lifecycle transitions by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "safeline_http_request_duration_seconds",
			Help: "HTTP request latency",
		},
		[]string{"method"},
	)
	m.registry.MustRegister(m.transitions, m.duration)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeTransition(intent string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "denied"
	}
	m.transitions.WithLabelValues(intent, outcome).Inc()
}

func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		m.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
