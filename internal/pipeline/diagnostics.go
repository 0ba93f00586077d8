package pipeline

import (
	"time"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/ratings"
)

// StageTiming is the wall-clock cost of one pipeline stage.
type StageTiming struct {
	Stage   string        `json:"stage"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Diagnostics collects everything a run learned about its inputs:
// warnings, dropped symbols, the risk-bucket distribution and per-stage
// timings. It travels with the Result into reports and the status page.
type Diagnostics struct {
	RunID            string                `json:"run_id"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       time.Time             `json:"finished_at"`
	Warnings         []domain.Warning      `json:"warnings,omitempty"`
	DroppedSymbols   []string              `json:"dropped_symbols,omitempty"`
	RiskDistribution []ratings.BucketStats `json:"risk_distribution,omitempty"`
	Timings          []StageTiming         `json:"timings,omitempty"`
}

func newDiagnostics(runID string) *Diagnostics {
	return &Diagnostics{RunID: runID, StartedAt: time.Now().UTC()}
}

func (d *Diagnostics) addWarnings(ws []domain.Warning) {
	d.Warnings = append(d.Warnings, ws...)
}

func (d *Diagnostics) addTiming(stage string, elapsed time.Duration) {
	d.Timings = append(d.Timings, StageTiming{Stage: stage, Elapsed: elapsed})
}

func (d *Diagnostics) finish() {
	d.FinishedAt = time.Now().UTC()
}

// Elapsed is the total wall-clock duration of the run.
func (d *Diagnostics) Elapsed() time.Duration {
	if d.FinishedAt.IsZero() {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

// WarningsByKind counts warnings per kind for compact reporting.
func (d *Diagnostics) WarningsByKind() map[string]int {
	if len(d.Warnings) == 0 {
		return nil
	}
	counts := make(map[string]int, 4)
	for _, w := range d.Warnings {
		counts[w.Kind]++
	}
	return counts
}
