package gateway

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ollachat"

// metrics are registered on a per-gateway registry so that several gateways
// can live in one process (tests).
type metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        prometheus.Gauge

	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	fragmentsTotal     *prometheus.CounterVec
	catalogModels      prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds, excluding streamed bodies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method", "status"},
		),
		httpInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "In-flight HTTP requests",
			},
		),
		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Generations by model and outcome (ok, error, cancelled)",
			},
			[]string{"model", "outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Time from request to the end of the fragment stream",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model"},
		),
		fragmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "generation",
				Name:      "fragments_total",
				Help:      "Text fragments delivered to clients",
			},
			[]string{"model"},
		),
		catalogModels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "catalog",
				Name:      "models",
				Help:      "Number of models in the last catalog fetch (0 when unavailable)",
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpInflight,
		m.generationsTotal,
		m.generationDuration,
		m.fragmentsTotal,
		m.catalogModels,
	)

	return m
}

// middleware instruments requests for Prometheus
func (m *metrics) middleware(c *fiber.Ctx) error {
	m.httpInflight.Inc()
	defer m.httpInflight.Dec()

	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}

	// Route patterns avoid high-cardinality label values
	path := c.Route().Path
	labels := []string{path, c.Method(), strconv.Itoa(status)}
	m.httpRequestsTotal.WithLabelValues(labels...).Inc()
	m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

	return err
}

// generationOutcome labels a finished generation.
func generationOutcome(err error, cancelled bool) string {
	switch {
	case cancelled:
		return "cancelled"
	case err != nil:
		return "error"
	default:
		return "ok"
	}
}

func (m *metrics) observeGeneration(model string, fragments int, start time.Time, outcome string) {
	m.generationsTotal.WithLabelValues(model, outcome).Inc()
	m.generationDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	m.fragmentsTotal.WithLabelValues(model).Add(float64(fragments))
}
