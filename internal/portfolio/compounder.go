// Package portfolio compounds fixed-weight books into value series.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/weights"
)

// ValueSeries is a dated portfolio value path. Dates and Values are always
// the same length.
type ValueSeries struct {
	Label  string
	Dates  panel.DateIndex
	Values []float64
}

// Len returns the number of observations.
func (s ValueSeries) Len() int { return len(s.Values) }

// First returns the initial value. Panics on an empty series.
func (s ValueSeries) First() float64 { return s.Values[0] }

// Last returns the final value. Panics on an empty series.
func (s ValueSeries) Last() float64 { return s.Values[len(s.Values)-1] }

// Compound grows one book from its starting weights through a gross-return
// panel (cells are 1+r). The panel's symbol set must equal the weight keys.
//
// The series is anchored one calendar day before the first return date, and
// the anchor row holds the raw weights themselves: each position starts at
// its weight before any return accrues, so the aggregate anchor value is
// exactly 1. Each later value multiplies the previous one by that day's
// gross return, and the portfolio value is the sum across positions.
func Compound(label string, weightMap map[string]float64, gross *panel.Panel) (ValueSeries, error) {
	if err := weights.Validate(weightMap); err != nil {
		return ValueSeries{}, fmt.Errorf("compound %s: %w", label, err)
	}
	if err := checkSameSymbols(weightMap, gross.Symbols()); err != nil {
		return ValueSeries{}, err
	}
	if gross.NumRows() == 0 {
		return ValueSeries{}, &domain.DataQualityError{Stage: "compound", Reason: "gross return panel has no rows"}
	}
	if gross.HasMissing() {
		return ValueSeries{}, &domain.DataQualityError{Stage: "compound", Reason: "gross return panel has missing cells"}
	}

	anchor := gross.Index().First().AddDate(0, 0, -1)
	dates, err := gross.Index().Prepend(anchor)
	if err != nil {
		return ValueSeries{}, fmt.Errorf("compound %s: %w", label, err)
	}

	rows := gross.NumRows()
	values := make([]float64, rows+1)
	for _, sym := range gross.Symbols() {
		position := weightMap[sym]
		values[0] += position
		col, _ := gross.Column(sym)
		for t := 0; t < rows; t++ {
			position *= col[t]
			values[t+1] += position
		}
	}

	if math.Abs(values[0]-1.0) > weights.SumTolerance {
		return ValueSeries{}, fmt.Errorf("compound %s: anchor value %.12f, want 1.0", label, values[0])
	}

	return ValueSeries{Label: label, Dates: dates, Values: values}, nil
}

// Spread subtracts the short book from the long book, inner-joined on dates.
// With both books anchored at 1, the spread starts at 0 and tracks the
// long-short strategy's cumulative edge.
func Spread(long, short ValueSeries) (ValueSeries, error) {
	joined := long.Dates.Join(short.Dates)
	if joined.Len() == 0 {
		return ValueSeries{}, &domain.DataQualityError{Stage: "spread", Reason: "long and short series share no dates"}
	}

	values := make([]float64, joined.Len())
	for i := 0; i < joined.Len(); i++ {
		date := joined.At(i)
		li, _ := long.Dates.Position(date)
		si, _ := short.Dates.Position(date)
		values[i] = long.Values[li] - short.Values[si]
	}

	return ValueSeries{Label: "Long-Short", Dates: joined, Values: values}, nil
}

// ValueAt returns the series value on a date, if present.
func (s ValueSeries) ValueAt(t time.Time) (float64, bool) {
	i, ok := s.Dates.Position(t)
	if !ok {
		return 0, false
	}
	return s.Values[i], true
}

func checkSameSymbols(weightMap map[string]float64, panelSymbols []string) error {
	inPanel := make(map[string]struct{}, len(panelSymbols))
	for _, sym := range panelSymbols {
		inPanel[sym] = struct{}{}
	}

	var onlyWeights, onlyPanel []string
	for _, sym := range panel.SortedSymbols(weightMap) {
		if _, ok := inPanel[sym]; !ok {
			onlyWeights = append(onlyWeights, sym)
		}
	}
	for _, sym := range panelSymbols {
		if _, ok := weightMap[sym]; !ok {
			onlyPanel = append(onlyPanel, sym)
		}
	}

	if len(onlyWeights) > 0 || len(onlyPanel) > 0 {
		return &domain.UniverseMismatchError{OnlyInWeights: onlyWeights, OnlyInPanel: onlyPanel}
	}
	return nil
}
