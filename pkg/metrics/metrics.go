package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Carrier API metrics
	CarrierCallsTotal   *prometheus.CounterVec
	CarrierCallDuration *prometheus.HistogramVec

	// Business metrics
	SubmissionsTotal    *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec
	SubmissionRetries   *prometheus.CounterVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "edocs",
	}
}

// New creates a new Metrics instance
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		},
	)

	m.CarrierCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "carrier_calls_total",
			Help:      "Total number of outbound carrier API calls",
		},
		[]string{"service", "endpoint", "outcome"},
	)

	m.CarrierCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "carrier_call_duration_seconds",
			Help:      "Outbound carrier API call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "endpoint"},
	)

	m.SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "submissions_total",
			Help:      "Total number of e-doc submissions by module and status",
		},
		[]string{"service", "module", "status"},
	)

	m.ValidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of submissions rejected by validation",
		},
		[]string{"service", "module"},
	)

	m.SubmissionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "submission_retries_total",
			Help:      "Total number of submission retries (dedup hits and resubmits)",
		},
		[]string{"service", "module"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operations_total",
			Help:      "Total number of MongoDB operations",
		},
		[]string{"service", "collection", "operation", "status"},
	)

	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "collection", "operation"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CarrierCallsTotal,
		m.CarrierCallDuration,
		m.SubmissionsTotal,
		m.ValidationFailures,
		m.SubmissionRetries,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware instruments HTTP requests
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPRequestsInFlight.Inc()
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		m.HTTPRequestsInFlight.Dec()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(m.serviceName, c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(m.serviceName, c.Request.Method, path).Observe(duration.Seconds())
	}
}

// ObserveCarrierCall records an outbound carrier API call
func (m *Metrics) ObserveCarrierCall(endpoint, outcome string, duration time.Duration) {
	m.CarrierCallsTotal.WithLabelValues(m.serviceName, endpoint, outcome).Inc()
	m.CarrierCallDuration.WithLabelValues(m.serviceName, endpoint).Observe(duration.Seconds())
}

// ObserveSubmission records a submission outcome
func (m *Metrics) ObserveSubmission(module, status string) {
	m.SubmissionsTotal.WithLabelValues(m.serviceName, module, status).Inc()
}

// ObserveValidationFailure records a validation rejection
func (m *Metrics) ObserveValidationFailure(module string) {
	m.ValidationFailures.WithLabelValues(m.serviceName, module).Inc()
}

// ObserveRetry records a dedup hit or resubmit
func (m *Metrics) ObserveRetry(module string) {
	m.SubmissionRetries.WithLabelValues(m.serviceName, module).Inc()
}

// ObserveMongoOperation records a MongoDB operation
func (m *Metrics) ObserveMongoOperation(collection, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, status).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}
