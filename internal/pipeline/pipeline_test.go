package pipeline

import (
	"errors"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/ratings"
)

func rec(company, ticker string, score float64, level string) ratings.Record {
	return ratings.Record{Company: company, Ticker: ticker, ESGScore: score, RiskLevel: level}
}

// baseRatings builds two clean books: AAA/BBB long, CCC/DDD short.
func baseRatings() []ratings.Record {
	return []ratings.Record{
		rec("Alpha Corp", "NAS:AAA", 5, "Low ESG Risk"),
		rec("Beta Inc", "NAS:BBB", 10, "Negligible ESG Risk"),
		rec("Gamma Ltd", "NYS:CCC", 5, "High ESG Risk"),
		rec("Delta Plc", "NYS:DDD", 10, "Severe ESG Risk"),
	}
}

// priceRows expands per-symbol close paths into long rows. NaN closes are
// skipped entirely, leaving a hole in the panel.
func priceRows(t *testing.T, dates []string, closes map[string][]float64) []panel.PriceRow {
	t.Helper()
	symbols := make([]string, 0, len(closes))
	for sym := range closes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var rows []panel.PriceRow
	for i, d := range dates {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			t.Fatalf("parse date %q: %v", d, err)
		}
		for _, sym := range symbols {
			path := closes[sym]
			if len(path) != len(dates) {
				t.Fatalf("symbol %s has %d closes for %d dates", sym, len(path), len(dates))
			}
			if math.IsNaN(path[i]) {
				continue
			}
			rows = append(rows, panel.PriceRow{Date: day, Symbol: sym, Close: path[i]})
		}
	}
	return rows
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

func TestRunFlatPrices(t *testing.T) {
	inputs := Inputs{
		Ratings: baseRatings(),
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05"}, map[string][]float64{
			"AAA": {100, 100, 100, 100},
			"BBB": {50, 50, 50, 50},
			"CCC": {200, 200, 200, 200},
			"DDD": {80, 80, 80, 80},
		}),
	}

	res, err := Run(inputs, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected a run ID")
	}

	// Flat prices mean zero returns, so every series sits at its anchor.
	for _, series := range []struct {
		values []float64
		level  float64
	}{
		{res.Long.Values, 1.0},
		{res.Short.Values, 1.0},
		{res.Spread.Values, 0.0},
	} {
		if len(series.values) != 4 {
			t.Fatalf("expected 4 observations (anchor + 3 days), got %d", len(series.values))
		}
		for i, v := range series.values {
			if !approx(v, series.level) {
				t.Errorf("value[%d] = %v, want %v", i, v, series.level)
			}
		}
	}

	anchor := res.Long.Dates.First()
	want := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	if !anchor.Equal(want) {
		t.Errorf("anchor date = %v, want %v", anchor, want)
	}

	if len(res.Summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(res.Summaries))
	}
	for _, s := range res.Summaries {
		if s.SharpeDefined {
			t.Errorf("%s: flat series should leave Sharpe undefined", s.Label)
		}
		if !approx(s.TotalReturn, 0) {
			t.Errorf("%s: total return = %v, want 0", s.Label, s.TotalReturn)
		}
	}

	if len(res.Diagnostics.RiskDistribution) == 0 {
		t.Error("expected a risk distribution in diagnostics")
	}
	if res.Diagnostics.Elapsed() <= 0 {
		t.Error("expected positive elapsed time")
	}
}

func TestRunComputesBothBooks(t *testing.T) {
	inputs := Inputs{
		Ratings: baseRatings(),
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03"}, map[string][]float64{
			"AAA": {100, 101}, // +1%
			"BBB": {50, 52},   // +4%
			"CCC": {200, 210}, // +5%
			"DDD": {80, 84},   // +5%
		}),
	}

	res, err := Run(inputs, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Long leg is inverse-score weighted: AAA 2/3, BBB 1/3.
	if w := res.LongWeights["AAA"]; !approx(w, 2.0/3.0) {
		t.Errorf("long AAA weight = %v, want 2/3", w)
	}
	if w := res.LongWeights["BBB"]; !approx(w, 1.0/3.0) {
		t.Errorf("long BBB weight = %v, want 1/3", w)
	}
	// Short leg is score weighted: CCC 1/3, DDD 2/3.
	if w := res.ShortWeights["CCC"]; !approx(w, 1.0/3.0) {
		t.Errorf("short CCC weight = %v, want 1/3", w)
	}
	if w := res.ShortWeights["DDD"]; !approx(w, 2.0/3.0) {
		t.Errorf("short DDD weight = %v, want 2/3", w)
	}

	wantLong := 2.0/3.0*1.01 + 1.0/3.0*1.04 // 1.02
	if got := res.Long.Last(); !approx(got, wantLong) {
		t.Errorf("long final value = %v, want %v", got, wantLong)
	}
	if got := res.Short.Last(); !approx(got, 1.05) {
		t.Errorf("short final value = %v, want 1.05", got)
	}
	if got := res.Spread.Last(); !approx(got, wantLong-1.05) {
		t.Errorf("spread final value = %v, want %v", got, wantLong-1.05)
	}
	if got := res.Spread.First(); !approx(got, 0) {
		t.Errorf("spread anchor = %v, want 0", got)
	}

	long, ok := res.Summary(LabelLong)
	if !ok {
		t.Fatalf("missing %q summary", LabelLong)
	}
	if !approx(long.TotalReturn, wantLong-1.0) {
		t.Errorf("long total return = %v, want %v", long.TotalReturn, wantLong-1.0)
	}
	if _, ok := res.Summary("nope"); ok {
		t.Error("Summary should miss on unknown label")
	}
}

func TestRunDropsGappySymbolAndWarns(t *testing.T) {
	recs := append(baseRatings(), rec("Echo SA", "NAS:EEE", 8, "Low ESG Risk"))
	nan := math.NaN()
	inputs := Inputs{
		Ratings: recs,
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03", "2023-01-04", "2023-01-05"}, map[string][]float64{
			"AAA": {100, 101, 102, 103},
			"BBB": {50, 51, 52, 53},
			"CCC": {200, 201, 202, 203},
			"DDD": {80, 81, 82, 83},
			"EEE": {100, 101, nan, nan}, // two of three returns missing
		}),
	}

	res, err := Run(inputs, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Diagnostics.DroppedSymbols) != 1 || res.Diagnostics.DroppedSymbols[0] != "EEE" {
		t.Errorf("dropped = %v, want [EEE]", res.Diagnostics.DroppedSymbols)
	}
	if _, ok := res.LongWeights["EEE"]; ok {
		t.Error("EEE should have been excluded from the long book")
	}

	found := false
	for _, w := range res.Diagnostics.Warnings {
		if w.Kind == domain.WarnMissingScore && w.Symbol == "EEE" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a missing-score warning for EEE, got %v", res.Diagnostics.Warnings)
	}
	if res.Diagnostics.WarningsByKind()[domain.WarnMissingScore] == 0 {
		t.Error("WarningsByKind should count the missing-score warning")
	}
}

func TestRunRejectsOverlappingBooks(t *testing.T) {
	recs := []ratings.Record{
		rec("Alpha Corp", "NAS:AAA", 5, "Low ESG Risk"),
		rec("Dup One", "NAS:DUP", 5, "Low ESG Risk"),
		rec("Dup Two", "NYS:DUP", 7, "High ESG Risk"),
		rec("Gamma Ltd", "NYS:CCC", 5, "High ESG Risk"),
	}
	inputs := Inputs{
		Ratings: recs,
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03"}, map[string][]float64{
			"AAA": {100, 101},
			"DUP": {50, 51},
			"CCC": {200, 201},
		}),
	}

	_, err := Run(inputs, Options{})
	if !errors.Is(err, domain.ErrDataQuality) {
		t.Fatalf("expected data quality error for overlapping books, got %v", err)
	}
}

func TestRunWithoutPrices(t *testing.T) {
	_, err := Run(Inputs{Ratings: baseRatings()}, Options{})
	if err == nil {
		t.Fatal("expected an error with no price rows")
	}
	if !strings.Contains(err.Error(), "pivot") {
		t.Errorf("error should mention pivoting, got %v", err)
	}
}

func TestRunObservesStagesInOrder(t *testing.T) {
	inputs := Inputs{
		Ratings: baseRatings(),
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03"}, map[string][]float64{
			"AAA": {100, 101},
			"BBB": {50, 52},
			"CCC": {200, 210},
			"DDD": {80, 84},
		}),
	}

	var stages []string
	_, err := Run(inputs, Options{StageObserver: func(stage string, elapsed time.Duration) {
		if elapsed < 0 {
			t.Errorf("stage %s reported negative elapsed time", stage)
		}
		stages = append(stages, stage)
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"ratings", "returns", "reconcile", "weights", "compound", "summarize"}
	if len(stages) != len(want) {
		t.Fatalf("observed stages %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i], want[i])
		}
	}

	res, err := Run(inputs, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Diagnostics.Timings) != len(want) {
		t.Errorf("expected %d stage timings, got %d", len(want), len(res.Diagnostics.Timings))
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	inputs := Inputs{
		Ratings: baseRatings(),
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03"}, map[string][]float64{
			"AAA": {100, 101},
			"BBB": {50, 52},
			"CCC": {200, 210},
			"DDD": {80, 84},
		}),
	}
	a, err := Run(inputs, Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := Run(inputs, Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if a.RunID == b.RunID {
		t.Errorf("run IDs should differ, both %q", a.RunID)
	}
}

func TestRunTopNTrimsBooks(t *testing.T) {
	inputs := Inputs{
		Ratings: baseRatings(),
		Prices: priceRows(t, []string{"2023-01-02", "2023-01-03"}, map[string][]float64{
			"AAA": {100, 101},
			"BBB": {50, 52},
			"CCC": {200, 210},
			"DDD": {80, 84},
		}),
	}

	res, err := Run(inputs, Options{TopN: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.LongWeights) != 1 || res.LongWeights["AAA"] != 1.0 {
		t.Errorf("long book must keep only the lowest-risk name, got %v", res.LongWeights)
	}
	if len(res.ShortWeights) != 1 || res.ShortWeights["DDD"] != 1.0 {
		t.Errorf("short book must keep only the highest-risk name, got %v", res.ShortWeights)
	}
}
