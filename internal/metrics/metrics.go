// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/esgrun/internal/pipeline"
)

// Registry holds all Prometheus metrics for ESGRun. Each instance carries
// its own prometheus registry so tests can build them freely.
type Registry struct {
	registry *prometheus.Registry

	// Stage duration metrics
	StageDuration *prometheus.HistogramVec

	// Run outcome metrics
	RunsTotal     *prometheus.CounterVec
	WarningsTotal *prometheus.CounterVec

	// Last-run snapshot gauges
	LastRunUnix    prometheus.Gauge
	TotalReturn    *prometheus.GaugeVec
	Sharpe         *prometheus.GaugeVec
	DroppedSymbols prometheus.Gauge
}

// NewRegistry creates a registry with all ESGRun metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "esgrun_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"stage"},
		),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esgrun_runs_total",
				Help: "Total number of analysis runs by outcome",
			},
			[]string{"status"},
		),

		WarningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "esgrun_warnings_total",
				Help: "Total number of data warnings by kind",
			},
			[]string{"kind"},
		),

		LastRunUnix: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "esgrun_last_run_timestamp_seconds",
				Help: "Completion time of the most recent successful run",
			},
		),

		TotalReturn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "esgrun_total_return",
				Help: "Total return of the most recent run by component",
			},
			[]string{"component"},
		),

		Sharpe: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "esgrun_sharpe",
				Help: "Sharpe ratio of the most recent run by component, omitted when undefined",
			},
			[]string{"component"},
		),

		DroppedSymbols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "esgrun_dropped_symbols",
				Help: "Symbols dropped for excessive missing data in the most recent run",
			},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.RunsTotal,
		r.WarningsTotal,
		r.LastRunUnix,
		r.TotalReturn,
		r.Sharpe,
		r.DroppedSymbols,
	)

	return r
}

// Handler serves this registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for self-checks.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveStage records one pipeline stage duration. Its signature matches
// the pipeline's StageObserver hook.
func (r *Registry) ObserveStage(stage string, elapsed time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// ObserveRun records a completed run: outcome counter, warning counters
// and the last-run snapshot gauges.
func (r *Registry) ObserveRun(res *pipeline.Result) {
	r.RunsTotal.WithLabelValues("ok").Inc()
	r.LastRunUnix.Set(float64(time.Now().Unix()))
	r.DroppedSymbols.Set(float64(len(res.Diagnostics.DroppedSymbols)))

	for kind, count := range res.Diagnostics.WarningsByKind() {
		r.WarningsTotal.WithLabelValues(kind).Add(float64(count))
	}

	r.Sharpe.Reset()
	for _, s := range res.Summaries {
		r.TotalReturn.WithLabelValues(s.Label).Set(s.TotalReturn)
		if s.SharpeDefined {
			r.Sharpe.WithLabelValues(s.Label).Set(s.Sharpe)
		}
	}
}

// ObserveRunError counts a failed run.
func (r *Registry) ObserveRunError() {
	r.RunsTotal.WithLabelValues("error").Inc()
}
