package perf

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
	"github.com/sawpanic/esgrun/internal/portfolio"
)

func series(t *testing.T, label string, values []float64) portfolio.ValueSeries {
	t.Helper()
	dates := make([]time.Time, len(values))
	for i := range values {
		dates[i] = time.Date(2023, time.January, i+1, 0, 0, 0, 0, time.UTC)
	}
	return portfolio.ValueSeries{Label: label, Dates: panel.MustDateIndex(dates), Values: values}
}

func TestSummarizeScalesLevelStatisticsByDayCount(t *testing.T) {
	// Four levels: mean 1.025, population variance 0.000725.
	values := []float64{1.0, 1.02, 1.01, 1.07}
	s, err := Summarize(series(t, "Long", values))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.TradingDays != 4 {
		t.Errorf("trading days = %d, want 4", s.TradingDays)
	}
	if math.Abs(s.TotalReturn-0.07) > 1e-12 {
		t.Errorf("total return = %v, want 0.07", s.TotalReturn)
	}

	wantReturn := 1.025 * 4
	if math.Abs(s.PeriodReturn-wantReturn) > 1e-9 {
		t.Errorf("period return = %v, want %v", s.PeriodReturn, wantReturn)
	}

	wantVol := math.Sqrt(0.000725) * 2
	if math.Abs(s.PeriodVol-wantVol) > 1e-9 {
		t.Errorf("period vol = %v, want %v", s.PeriodVol, wantVol)
	}

	if !s.SharpeDefined {
		t.Fatal("sharpe should be defined for a non-constant series")
	}
	if math.Abs(s.Sharpe-wantReturn/wantVol) > 1e-9 {
		t.Errorf("sharpe = %v, want %v", s.Sharpe, wantReturn/wantVol)
	}
}

func TestSummarizeConstantSeriesHasUndefinedSharpe(t *testing.T) {
	s, err := Summarize(series(t, "Long", []float64{1, 1, 1, 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.TotalReturn != 0 {
		t.Errorf("total return = %v, want 0", s.TotalReturn)
	}
	if s.PeriodVol != 0 {
		t.Errorf("period vol = %v, want 0", s.PeriodVol)
	}
	if s.SharpeDefined {
		t.Error("sharpe must be undefined when volatility is zero")
	}
	if got := s.SharpeString(); got != SharpeUndefined {
		t.Errorf("sharpe renders as %q, want %q", got, SharpeUndefined)
	}
	if math.IsNaN(s.Sharpe) || math.IsInf(s.Sharpe, 0) {
		t.Errorf("sharpe must never be NaN or Inf, got %v", s.Sharpe)
	}
}

func TestSummarizeNegativeDrift(t *testing.T) {
	s, err := Summarize(series(t, "Short", []float64{1.0, 0.98, 0.95}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalReturn >= 0 {
		t.Errorf("total return = %v, want negative", s.TotalReturn)
	}
	if !s.SharpeDefined {
		t.Error("sharpe should be defined for a declining series")
	}
}

func TestSummarizeEmptySeriesFails(t *testing.T) {
	_, err := Summarize(portfolio.ValueSeries{Label: "Long"})
	if !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected data quality error, got %v", err)
	}
}

func TestSharpeStringFormatsDefinedRatio(t *testing.T) {
	s := Summary{Sharpe: 1.23456789, SharpeDefined: true}
	if got := s.SharpeString(); got != "1.2346" {
		t.Errorf("sharpe string = %q, want 1.2346", got)
	}
}
