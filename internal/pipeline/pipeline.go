// Package pipeline runs the full analysis: ratings in, performance out.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	steplog "github.com/sawpanic/esgrun/internal/log"
	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/perf"
	"github.com/sawpanic/esgrun/internal/portfolio"
	"github.com/sawpanic/esgrun/internal/ratings"
	"github.com/sawpanic/esgrun/internal/returns"
	"github.com/sawpanic/esgrun/internal/universe"
	"github.com/sawpanic/esgrun/internal/weights"
)

// Strategy component labels used across reports and persistence.
const (
	LabelLong   = "Long (Low Risk)"
	LabelShort  = "Short (High Risk)"
	LabelSpread = "Long-Short"
)

// Options tunes a run. Zero values fall back to the production defaults.
type Options struct {
	MissingThreshold float64  // per-symbol missing-data tolerance
	Exchanges        []string // listings kept during rating cleanup
	TopN             int      // cap per book after reconciliation, 0 keeps all
	StageObserver    func(stage string, elapsed time.Duration)
}

// Inputs is everything a run consumes. The pipeline itself never touches
// disk or network; the caller loads these through the adapters.
type Inputs struct {
	Ratings []ratings.Record
	Prices  []panel.PriceRow
}

// Result is the complete outcome of one analysis run.
type Result struct {
	RunID        string
	Long         portfolio.ValueSeries
	Short        portfolio.ValueSeries
	Spread       portfolio.ValueSeries
	LongWeights  map[string]float64
	ShortWeights map[string]float64
	Summaries    []perf.Summary
	Diagnostics  Diagnostics
}

// Summary returns the summary with the given label, if present.
func (r *Result) Summary(label string) (perf.Summary, bool) {
	for _, s := range r.Summaries {
		if s.Label == label {
			return s, true
		}
	}
	return perf.Summary{}, false
}

// Run executes the analysis end to end, single-threaded: process ratings,
// build the clean return panel, reconcile the books, weight them, compound
// and summarize. Inputs are left untouched.
func Run(inputs Inputs, opts Options) (*Result, error) {
	if opts.MissingThreshold == 0 {
		opts.MissingThreshold = returns.DefaultMissingThreshold
	}

	runID := uuid.NewString()
	diag := newDiagnostics(runID)
	steps := steplog.NewStepLogger(runID)
	observe := func(stage string, start time.Time) {
		elapsed := time.Since(start)
		diag.addTiming(stage, elapsed)
		if opts.StageObserver != nil {
			opts.StageObserver(stage, elapsed)
		}
	}

	// Ratings: clean the scraped table and pick both candidate books.
	steps.Step("ratings")
	start := time.Now()
	processed := ratings.NewProcessor(opts.Exchanges).Process(inputs.Ratings)
	diag.addWarnings(processed.Warnings)
	diag.RiskDistribution = ratings.Distribution(processed.Records)

	longCandidates, warns := ratings.Candidates(processed.Records, ratings.BucketLow)
	diag.addWarnings(warns)
	shortCandidates, warns := ratings.Candidates(processed.Records, ratings.BucketHigh)
	diag.addWarnings(warns)
	observe("ratings", start)
	steps.Done()

	// Returns: pivot the long price rows into a wide panel and clean it.
	steps.Step("returns")
	start = time.Now()
	closes, err := panel.PivotClose(inputs.Prices)
	if err != nil {
		steps.Fail(err)
		return nil, fmt.Errorf("pivoting prices: %w", err)
	}
	rets, err := closes.PctChange()
	if err != nil {
		steps.Fail(err)
		return nil, fmt.Errorf("computing returns: %w", err)
	}
	cleaned, err := returns.Cleaner{Threshold: opts.MissingThreshold}.Clean(rets)
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	diag.DroppedSymbols = cleaned.Dropped
	observe("returns", start)
	steps.Done()

	// Universes: the cleaned panel decides who is tradable.
	steps.Step("reconcile")
	start = time.Now()
	books, err := universe.Reconcile(longCandidates, shortCandidates, cleaned.Panel.Symbols())
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	diag.addWarnings(books.Warnings)
	books.Long = books.Long.Limit(opts.TopN)
	books.Short = books.Short.Limit(opts.TopN)
	observe("reconcile", start)
	steps.Done()

	// Weights: fixed at period start.
	steps.Step("weights")
	start = time.Now()
	longWeights, err := weights.Compute(books.Long.Side, books.Long.Scores)
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	shortWeights, err := weights.Compute(books.Short.Side, books.Short.Scores)
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	observe("weights", start)
	steps.Done()

	// Compounding: each book grows through its own gross-return panel.
	steps.Step("compound")
	start = time.Now()
	long, err := compoundSide(LabelLong, longWeights, cleaned.Panel, books.Long.Symbols())
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	short, err := compoundSide(LabelShort, shortWeights, cleaned.Panel, books.Short.Symbols())
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	spread, err := portfolio.Spread(long, short)
	if err != nil {
		steps.Fail(err)
		return nil, err
	}
	observe("compound", start)
	steps.Done()

	// Performance: all three components through the same summarizer.
	steps.Step("summarize")
	start = time.Now()
	var summaries []perf.Summary
	for _, series := range []portfolio.ValueSeries{long, short, spread} {
		s, err := perf.Summarize(series)
		if err != nil {
			steps.Fail(err)
			return nil, fmt.Errorf("summarizing %s: %w", series.Label, err)
		}
		summaries = append(summaries, s)
	}
	observe("summarize", start)
	steps.Done()

	diag.finish()

	return &Result{
		RunID:        runID,
		Long:         long,
		Short:        short,
		Spread:       spread,
		LongWeights:  longWeights,
		ShortWeights: shortWeights,
		Summaries:    summaries,
		Diagnostics:  *diag,
	}, nil
}

// compoundSide restricts the clean panel to one book's symbols, shifts to
// gross returns and compounds.
func compoundSide(label string, w map[string]float64, cleaned *panel.Panel, symbols []string) (portfolio.ValueSeries, error) {
	sub, err := cleaned.Select(symbols)
	if err != nil {
		return portfolio.ValueSeries{}, fmt.Errorf("selecting %s book: %w", label, err)
	}
	gross, err := sub.Gross()
	if err != nil {
		return portfolio.ValueSeries{}, fmt.Errorf("gross returns for %s: %w", label, err)
	}
	return portfolio.Compound(label, w, gross)
}
