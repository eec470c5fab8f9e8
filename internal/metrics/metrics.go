package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported by the service
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	AttemptsStarted   prometheus.Counter
	SheetsSubmitted   *prometheus.CounterVec
	SheetsGraded      prometheus.Counter
	SweepRuns         *prometheus.CounterVec
	EventPublishFails *prometheus.CounterVec
}

// New registers all collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		AttemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_attempts_started_total",
			Help: "Answer sheets created",
		}),
		SheetsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_sheets_submitted_total",
				Help: "Answer sheets moved to SUBMITTED, by source",
			},
			[]string{"source"},
		),
		SheetsGraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_sheets_graded_total",
			Help: "Answer sheets finalized as GRADED",
		}),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_sweep_runs_total",
				Help: "Expiry sweep passes, by outcome",
			},
			[]string{"outcome"},
		),
		EventPublishFails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_event_publish_failures_total",
				Help: "Domain events that could not be published",
			},
			[]string{"event_type"},
		),
	}

	m.registry.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.AttemptsStarted,
		m.SheetsSubmitted,
		m.SheetsGraded,
		m.SweepRuns,
		m.EventPublishFails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
