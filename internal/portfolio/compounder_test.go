package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
)

func day(dayOfMonth int) time.Time {
	return time.Date(2023, time.January, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func grossPanel(t *testing.T, dates []time.Time, cols map[string][]float64) *panel.Panel {
	t.Helper()
	idx, err := panel.NewDateIndex(dates)
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	p, err := panel.NewPanel(idx, cols)
	if err != nil {
		t.Fatalf("failed to build panel: %v", err)
	}
	return p
}

func TestCompoundAnchorsAtRawWeights(t *testing.T) {
	weights := map[string]float64{"A": 2.0 / 3.0, "B": 1.0 / 3.0}
	gross := grossPanel(t, []time.Time{day(3), day(4)}, map[string][]float64{
		"A": {1.01, 99.0 / 101.0},
		"B": {1.04, 53.0 / 52.0},
	})

	series, err := Compound("Long", weights, gross)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if series.Len() != 3 {
		t.Fatalf("expected anchor plus 2 dates, got %d values", series.Len())
	}

	// Anchor sits one calendar day before the first return date and holds
	// the raw weights, so the aggregate starts at exactly 1.
	if !series.Dates.First().Equal(day(2)) {
		t.Errorf("anchor date = %s, want Jan 2", series.Dates.First())
	}
	if math.Abs(series.First()-1.0) > 1e-9 {
		t.Errorf("anchor value = %.12f, want 1.0", series.First())
	}

	// Day one: 2/3*1.01 + 1/3*1.04 = 1.02.
	if math.Abs(series.Values[1]-1.02) > 1e-9 {
		t.Errorf("first compounded value = %.12f, want 1.02", series.Values[1])
	}

	// Day two compounds the running products: 2/3*(99/100) + 1/3*(53/50).
	want := 2.0/3.0*0.99 + 1.0/3.0*1.06
	if math.Abs(series.Values[2]-want) > 1e-9 {
		t.Errorf("second compounded value = %.12f, want %.12f", series.Values[2], want)
	}
}

func TestCompoundFlatReturnsStayAtOne(t *testing.T) {
	weights := map[string]float64{"A": 0.25, "B": 0.75}
	ones := grossPanel(t, []time.Time{day(3), day(4), day(5)}, map[string][]float64{
		"A": {1, 1, 1},
		"B": {1, 1, 1},
	})

	series, err := Compound("Long", weights, ones)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range series.Values {
		if math.Abs(v-1.0) > 1e-9 {
			t.Errorf("value[%d] = %.12f, want 1.0 for flat gross returns", i, v)
		}
	}
}

func TestCompoundRejectsSymbolMismatch(t *testing.T) {
	gross := grossPanel(t, []time.Time{day(3)}, map[string][]float64{
		"A": {1.01},
		"B": {1.02},
	})

	cases := []struct {
		name    string
		weights map[string]float64
	}{
		{"weight without prices", map[string]float64{"A": 0.5, "B": 0.25, "C": 0.25}},
		{"prices without weight", map[string]float64{"A": 1.0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compound("Long", tc.weights, gross)
			if !errors.Is(err, domain.ErrUniverseMismatch) {
				t.Errorf("expected universe mismatch, got %v", err)
			}
		})
	}
}

func TestCompoundRejectsMissingCells(t *testing.T) {
	gross := grossPanel(t, []time.Time{day(3), day(4)}, map[string][]float64{
		"A": {1.01, math.NaN()},
	})

	_, err := Compound("Long", map[string]float64{"A": 1.0}, gross)
	if !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected data quality error for missing cells, got %v", err)
	}
}

func TestCompoundRejectsBrokenWeights(t *testing.T) {
	gross := grossPanel(t, []time.Time{day(3)}, map[string][]float64{
		"A": {1.01},
		"B": {1.02},
	})

	_, err := Compound("Long", map[string]float64{"A": 0.5, "B": 0.4}, gross)
	if err == nil {
		t.Error("expected error for weights that do not sum to 1")
	}
}

func TestSpreadInnerJoinsOnDates(t *testing.T) {
	long := ValueSeries{
		Label:  "Long",
		Dates:  panel.MustDateIndex([]time.Time{day(2), day(3), day(4)}),
		Values: []float64{1.0, 1.02, 1.05},
	}
	short := ValueSeries{
		Label:  "Short",
		Dates:  panel.MustDateIndex([]time.Time{day(2), day(4), day(5)}),
		Values: []float64{1.0, 1.01, 1.03},
	}

	spread, err := Spread(long, short)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if spread.Len() != 2 {
		t.Fatalf("expected 2 joined dates, got %d", spread.Len())
	}
	if !spread.Dates.First().Equal(day(2)) || !spread.Dates.Last().Equal(day(4)) {
		t.Errorf("unexpected joined dates: %v", spread.Dates.Dates())
	}
	if math.Abs(spread.Values[0]-0.0) > 1e-12 {
		t.Errorf("spread at shared anchor = %v, want 0", spread.Values[0])
	}
	if math.Abs(spread.Values[1]-(1.05-1.01)) > 1e-12 {
		t.Errorf("spread on Jan 4 = %v, want 0.04", spread.Values[1])
	}
}

func TestSpreadFailsWithNoSharedDates(t *testing.T) {
	long := ValueSeries{Dates: panel.MustDateIndex([]time.Time{day(2)}), Values: []float64{1}}
	short := ValueSeries{Dates: panel.MustDateIndex([]time.Time{day(9)}), Values: []float64{1}}

	if _, err := Spread(long, short); !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected data quality error, got %v", err)
	}
}
