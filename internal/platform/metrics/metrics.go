// Package metrics exposes Prometheus collectors for the HTTP surface, the
// resolution workflow and the storage breaker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "surgichart"

type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge

	Outcomes           *prometheus.CounterVec
	CandidatesPerMatch prometheus.Histogram
	IntegrityConflicts prometheus.Counter
	Commits            *prometheus.CounterVec
	PartialCommits     *prometheus.CounterVec
	StorageFailures    *prometheus.CounterVec

	BreakerState *prometheus.GaugeVec
}

// NewCollector registers every collector on reg. Pass a fresh registry in
// tests so runs do not collide on the default one.
func NewCollector(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		registry: reg,

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
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "outcomes_total",
			Help:      "Match outcomes by kind.",
		}, []string{"kind"}),

		CandidatesPerMatch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "candidates",
			Help:      "Candidates scored per submission.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		}),

		IntegrityConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "integrity_conflicts_total",
			Help:      "Submissions that matched more than one stored patient with high confidence. Alert if non-zero.",
		}),

		Commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "commits_total",
			Help:      "Completed commits by patient decision.",
		}, []string{"decision"}),

		PartialCommits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolution",
			Name:      "partial_commits_total",
			Help:      "Commits that stopped after a write, by failed step.",
		}, []string{"step"}),

		StorageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "failures_total",
			Help:      "Storage operations that failed, by operation.",
		}, []string{"op"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
	}
}

func (c *Collector) OutcomeResolved(kind string, candidates int) {
	c.Outcomes.WithLabelValues(kind).Inc()
	c.CandidatesPerMatch.Observe(float64(candidates))
}

func (c *Collector) IntegrityConflict() { c.IntegrityConflicts.Inc() }

func (c *Collector) CommitCompleted(decision string) {
	c.Commits.WithLabelValues(decision).Inc()
}

func (c *Collector) PartialCommit(step string) {
	c.PartialCommits.WithLabelValues(step).Inc()
}

func (c *Collector) StorageFailure(op string) {
	c.StorageFailures.WithLabelValues(op).Inc()
}

// BreakerStateChanged takes gobreaker state names.
func (c *Collector) BreakerStateChanged(name, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	c.BreakerState.WithLabelValues(name).Set(v)
}

// Middleware records request counts and latency by route template, so
// patient ids in paths never become label values.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			c.InFlight.Inc()
			defer c.InFlight.Dec()

			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
