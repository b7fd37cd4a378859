package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the server's prometheus instruments. A nil *Collector is
// valid and records nothing.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	ResolverPasses   prometheus.Counter
	ResolverDuration prometheus.Histogram
	FieldErrors      *prometheus.CounterVec
	FieldsSkipped    *prometheus.CounterVec
	UnknownOperators *prometheus.CounterVec

	FormsPublished prometheus.Counter
	FormsActivated prometheus.Counter
}

// NewCollector registers every instrument on reg. Use a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		ResolverPasses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "passes_total",
			Help:      "Total number of whole-form validation passes.",
		}),

		ResolverDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "pass_duration_seconds",
			Help:      "Whole-form validation pass latency.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		FieldErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "field_errors_total",
			Help:      "Field validation failures by error type.",
		}, []string{"type"}),

		FieldsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "fields_skipped_total",
			Help:      "Fields left out of validation by reason.",
		}, []string{"reason"}),

		UnknownOperators: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trigger",
			Name:      "unknown_operator_total",
			Help:      "Trigger evaluations that met an unrecognised operator. Alert if non-zero.",
		}, []string{"operator"}),

		FormsPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forms",
			Name:      "published_total",
			Help:      "Form configuration versions published.",
		}),

		FormsActivated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forms",
			Name:      "activated_total",
			Help:      "Form configuration versions activated.",
		}),
	}
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	code := strconv.Itoa(status)
	c.RequestsTotal.WithLabelValues(method, route, code).Inc()
	c.RequestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

func (c *Collector) InFlight(delta float64) {
	if c == nil {
		return
	}
	c.InFlightGauge.Add(delta)
}

func (c *Collector) ObserveResolverPass(d time.Duration) {
	if c == nil {
		return
	}
	c.ResolverPasses.Inc()
	c.ResolverDuration.Observe(d.Seconds())
}

func (c *Collector) FieldError(errType string) {
	if c == nil {
		return
	}
	c.FieldErrors.WithLabelValues(errType).Inc()
}

func (c *Collector) FieldSkipped(reason string) {
	if c == nil {
		return
	}
	c.FieldsSkipped.WithLabelValues(reason).Inc()
}

func (c *Collector) UnknownOperator(op string) {
	if c == nil {
		return
	}
	c.UnknownOperators.WithLabelValues(op).Inc()
}

func (c *Collector) FormPublished() {
	if c == nil {
		return
	}
	c.FormsPublished.Inc()
}

func (c *Collector) FormActivated() {
	if c == nil {
		return
	}
	c.FormsActivated.Inc()
}

// Handler exposes the gatherer in the prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
