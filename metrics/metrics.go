// Package metrics exports run counters and timings to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
)

const namespace = "transfer_engine"

// Run outcome labels.
const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// Recorder holds the engine's collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	runs      *prometheus.CounterVec
	transfers *prometheus.CounterVec
	lines     prometheus.Counter
	units     prometheus.Counter
	duration  prometheus.Histogram
	lastRun   prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	return NewWith(prometheus.NewRegistry())
}

// NewWith registers the collectors on reg. Handler serves the default
// gatherer unless reg is also a Gatherer.
func NewWith(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		gatherer: prometheus.DefaultGatherer,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Allocation runs by outcome.",
		}, []string{"status", "apply"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers planned or created.",
		}, []string{"apply"}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_lines_total",
			Help:      "Transfer lines planned or created.",
		}),
		units: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_units_total",
			Help:      "Units moved by planned or created transfers.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of Prime plus Run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	reg.MustRegister(r.runs, r.transfers, r.lines, r.units, r.duration, r.lastRun)
	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	}
	return r
}

// Observe records one finished run. res may be nil when the run failed
// before producing a result.
func (r *Recorder) Observe(res *engine.Result, err error, elapsed time.Duration) {
	apply := "false"
	if res != nil && res.Apply {
		apply = "true"
	}

	r.runs.WithLabelValues(Status(res, err), apply).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.lastRun.SetToCurrentTime()

	if res == nil {
		return
	}
	r.transfers.WithLabelValues(apply).Add(float64(len(res.Transfers)))
	r.lines.Add(float64(res.TotalLines()))
	r.units.Add(float64(res.TotalUnits()))
}

// Status classifies a run outcome.
func Status(res *engine.Result, err error) string {
	switch {
	case engine.IsPartialFailure(err):
		return StatusPartial
	case err != nil:
		return StatusFailed
	case res == nil || len(res.Transfers) == 0:
		return StatusEmpty
	default:
		return StatusOK
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
