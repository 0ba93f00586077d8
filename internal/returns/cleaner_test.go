package returns

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
)

func tradingDays(t *testing.T, n int) []time.Time {
	t.Helper()
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2023, time.January, i+2, 0, 0, 0, 0, time.UTC)
	}
	return out
}

func buildPanel(t *testing.T, n int, cols map[string][]float64) *panel.Panel {
	t.Helper()
	idx, err := panel.NewDateIndex(tradingDays(t, n))
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	p, err := panel.NewPanel(idx, cols)
	if err != nil {
		t.Fatalf("failed to build panel: %v", err)
	}
	return p
}

func TestCleanDropsColumnsAboveThreshold(t *testing.T) {
	// GAPPY is 20% missing (2 of 10), over the 10% default; OK is 10%, at
	// the boundary and therefore kept.
	cols := map[string][]float64{
		"FULL":  {1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		"OK":    {1, 1, 1, 1, math.NaN(), 1, 1, 1, 1, 1},
		"GAPPY": {1, math.NaN(), 1, 1, math.NaN(), 1, 1, 1, 1, 1},
	}
	p := buildPanel(t, 10, cols)

	result, err := NewCleaner().Clean(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Dropped) != 1 || result.Dropped[0] != "GAPPY" {
		t.Errorf("expected only GAPPY dropped, got %v", result.Dropped)
	}
	symbols := result.Panel.Symbols()
	if len(symbols) != 2 {
		t.Errorf("expected 2 surviving symbols, got %v", symbols)
	}
	if result.Panel.HasMissing() {
		t.Error("cleaned panel must have zero missing cells")
	}
}

func TestCleanFillsGapsWithColumnMean(t *testing.T) {
	cols := map[string][]float64{
		"SPARSE": {0.02, math.NaN(), 0.04, 0.02, 0.04, 0.02, 0.04, 0.02, 0.04, 0.02},
	}
	p := buildPanel(t, 10, cols)

	result, err := NewCleaner().Clean(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	col, _ := result.Panel.Column("SPARSE")
	sum, n := 0.0, 0
	for i, v := range cols["SPARSE"] {
		if !math.IsNaN(v) {
			sum += v
			n++
		} else if i != 1 {
			t.Fatalf("fixture expects the gap at row 1")
		}
	}
	want := sum / float64(n)
	if math.Abs(col[1]-want) > 1e-12 {
		t.Errorf("gap filled with %v, want column mean %v", col[1], want)
	}
	for i, v := range col {
		if math.IsNaN(v) {
			t.Errorf("cell %d still missing after clean", i)
		}
	}
}

func TestCleanKeepsFullColumnsUntouched(t *testing.T) {
	cols := map[string][]float64{
		"A": {0.01, -0.02, 0.03, 0.01, -0.02, 0.03, 0.01, -0.02, 0.03, 0.01},
	}
	p := buildPanel(t, 10, cols)

	result, err := NewCleaner().Clean(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := result.Panel.Column("A")
	for i, v := range cols["A"] {
		if got[i] != v {
			t.Errorf("row %d changed: %v != %v", i, got[i], v)
		}
	}
}

func TestCleanFailsWhenEverythingIsDropped(t *testing.T) {
	cols := map[string][]float64{
		"X": {math.NaN(), math.NaN(), 1, 1, 1, 1, 1, 1, 1, 1},
	}
	p := buildPanel(t, 10, cols)

	_, err := NewCleaner().Clean(p)
	if err == nil {
		t.Fatal("expected error when no symbol survives")
	}
	if !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected a data quality error, got %v", err)
	}
}

func TestCleanFailsOnUnfillableSurvivor(t *testing.T) {
	// With a degenerate threshold an all-missing column survives the drop
	// step; there is no mean to fill it with.
	cols := map[string][]float64{
		"EMPTY": {math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()},
	}
	p := buildPanel(t, 10, cols)

	_, err := Cleaner{Threshold: 1.0}.Clean(p)
	if err == nil {
		t.Fatal("expected error for an unfillable survivor column")
	}
	if !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected a data quality error, got %v", err)
	}
}

func TestCleanEmptyPanelIsDataQualityError(t *testing.T) {
	idx, err := panel.NewDateIndex(nil)
	if err != nil {
		t.Fatalf("failed to build empty index: %v", err)
	}
	p, err := panel.NewPanel(idx, map[string][]float64{})
	if err != nil {
		t.Fatalf("failed to build empty panel: %v", err)
	}

	if _, err := NewCleaner().Clean(p); !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected data quality error for empty panel, got %v", err)
	}
}
