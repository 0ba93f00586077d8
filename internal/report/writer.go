// Package report writes run artifacts: JSON summary, series CSV,
// diagnostics JSONL, a markdown report and PNG charts.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/perf"
	"github.com/sawpanic/esgrun/internal/pipeline"
)

// Window is the trading-day span a run covered, anchor excluded.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RunSummary is the serialized outcome of one run. It is what lands in
// summary.json, what the status endpoint serves and what gets persisted.
type RunSummary struct {
	RunID        string               `json:"run_id"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Window       Window               `json:"window"`
	Summaries    []perf.Summary       `json:"summaries"`
	LongWeights  map[string]float64   `json:"long_weights"`
	ShortWeights map[string]float64   `json:"short_weights"`
	Diagnostics  pipeline.Diagnostics `json:"diagnostics"`
}

// NewRunSummary flattens a pipeline result into its serialized form.
func NewRunSummary(res *pipeline.Result) RunSummary {
	var window Window
	if res.Long.Len() > 1 {
		// Dates[0] is the synthetic anchor day, not a trading day.
		window.Start = res.Long.Dates.At(1)
		window.End = res.Long.Dates.Last()
	}
	return RunSummary{
		RunID:        res.RunID,
		GeneratedAt:  time.Now().UTC(),
		Window:       window,
		Summaries:    res.Summaries,
		LongWeights:  res.LongWeights,
		ShortWeights: res.ShortWeights,
		Diagnostics:  res.Diagnostics,
	}
}

// Writer handles writing run artifacts to a date-stamped directory.
type Writer struct {
	outputDir string
	charts    bool
}

// NewWriter creates a writer rooted at outputDir/<today>.
func NewWriter(outputDir string, withCharts bool) *Writer {
	dateDir := time.Now().Format("2006-01-02")
	return &Writer{
		outputDir: filepath.Join(outputDir, dateDir),
		charts:    withCharts,
	}
}

// OutputDir returns the full artifact directory path.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// Write persists every artifact for the run. Charts are skipped when the
// writer was built without them.
func (w *Writer) Write(res *pipeline.Result) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := NewRunSummary(res)
	if err := w.writeSummary(summary); err != nil {
		return err
	}
	if err := w.writeSeries(res); err != nil {
		return err
	}
	if err := w.writeDiagnostics(res.Diagnostics); err != nil {
		return err
	}
	if err := w.writeMarkdown(summary); err != nil {
		return err
	}
	if w.charts {
		if err := w.writeCharts(res); err != nil {
			return err
		}
	}

	log.Info().
		Str("run", res.RunID).
		Str("dir", w.outputDir).
		Bool("charts", w.charts).
		Msg("Run artifacts written")
	return nil
}

func (w *Writer) writeSummary(summary RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	path := filepath.Join(w.outputDir, "summary.json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// writeSeries writes the three portfolio series as one wide CSV. The
// series share a date index, spread included, so one file holds all.
func (w *Writer) writeSeries(res *pipeline.Result) error {
	path := filepath.Join(w.outputDir, "series.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create series file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString("date,long,short,long_short\n"); err != nil {
		return fmt.Errorf("failed to write series header: %w", err)
	}
	for i := 0; i < res.Spread.Len(); i++ {
		date := res.Spread.Dates.At(i)
		long, _ := res.Long.ValueAt(date)
		short, _ := res.Short.ValueAt(date)
		line := date.Format("2006-01-02") + "," +
			strconv.FormatFloat(long, 'f', -1, 64) + "," +
			strconv.FormatFloat(short, 'f', -1, 64) + "," +
			strconv.FormatFloat(res.Spread.Values[i], 'f', -1, 64) + "\n"
		if _, err := file.WriteString(line); err != nil {
			return fmt.Errorf("failed to write series row: %w", err)
		}
	}
	return nil
}

// writeDiagnostics writes one JSON line per warning, then the full
// diagnostics object as the final line.
func (w *Writer) writeDiagnostics(diag pipeline.Diagnostics) error {
	path := filepath.Join(w.outputDir, "diagnostics.jsonl")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create diagnostics file: %w", err)
	}
	defer file.Close()

	for _, warning := range diag.Warnings {
		data, err := json.Marshal(warning)
		if err != nil {
			return fmt.Errorf("failed to marshal warning: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write warning: %w", err)
		}
	}

	data, err := json.Marshal(diag)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}
	return nil
}

func (w *Writer) writeMarkdown(summary RunSummary) error {
	path := filepath.Join(w.outputDir, "report.md")
	if err := os.WriteFile(path, []byte(generateMarkdown(summary)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (w *Writer) writeCharts(res *pipeline.Result) error {
	performance, err := performanceChart(res)
	if err != nil {
		return fmt.Errorf("failed to render performance chart: %w", err)
	}
	path := filepath.Join(w.outputDir, "performance.png")
	if err := os.WriteFile(path, performance, 0644); err != nil {
		return fmt.Errorf("failed to write performance chart: %w", err)
	}

	histogram, err := spreadHistogram(res)
	if err != nil {
		return fmt.Errorf("failed to render spread histogram: %w", err)
	}
	path = filepath.Join(w.outputDir, "spread_hist.png")
	if err := os.WriteFile(path, histogram, 0644); err != nil {
		return fmt.Errorf("failed to write spread histogram: %w", err)
	}
	return nil
}

// dateLabels formats a DateIndex for chart axes.
func dateLabels(idx panel.DateIndex) []string {
	labels := make([]string, idx.Len())
	for i := 0; i < idx.Len(); i++ {
		labels[i] = idx.At(i).Format("Jan 02")
	}
	return labels
}
