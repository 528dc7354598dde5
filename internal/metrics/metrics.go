package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests and multiple servers never collide on
// the global default registerer. A nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	Checkouts    *prometheus.CounterVec
	LineFailures *prometheus.CounterVec
	Purchases    *prometheus.CounterVec
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
}

func New() *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "puregold",
		Subsystem: "pos",
		Name:      "checkouts_total",
		Help:      "Checkouts by outcome (completed, partial, aborted).",
	}, []string{"outcome"})
	lineFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "puregold",
		Subsystem: "pos",
		Name:      "line_failures_total",
		Help:      "Sale or purchase line postings that failed after the header was recorded.",
	}, []string{"workflow", "step"})
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "puregold",
		Subsystem: "inventory",
		Name:      "purchases_total",
		Help:      "Purchases by outcome (completed, partial, aborted).",
	}, []string{"outcome"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "puregold",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "puregold",
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method"})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		checkouts, lineFailures, purchases, requests, latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:     registry,
		Checkouts:    checkouts,
		LineFailures: lineFailures,
		Purchases:    purchases,
		Requests:     requests,
		LatencyMS:    latency,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePurchase(outcome string) {
	if m == nil {
		return
	}
	m.Purchases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLineFailure(workflow string, step string) {
	if m == nil {
		return
	}
	m.LineFailures.WithLabelValues(workflow, step).Inc()
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(method).Observe(float64(elapsed.Microseconds()) / 1000)
}
