// Package perf summarizes compounded portfolio value series.
package perf

import (
	"fmt"
	"math"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/portfolio"
)

// Summary holds the headline statistics for one strategy component.
//
// PeriodReturn and PeriodVol scale the mean and standard deviation of the
// portfolio LEVEL series by the day count, not of its daily returns. That
// convention is kept for continuity with the original research output and
// is marked non-standard wherever the summary is rendered.
type Summary struct {
	Label         string  `json:"label"`          // strategy component name
	TradingDays   int     `json:"trading_days"`   // observations including the anchor
	TotalReturn   float64 `json:"total_return"`   // final value minus initial value
	PeriodReturn  float64 `json:"period_return"`  // mean(level) * N
	PeriodVol     float64 `json:"period_vol"`     // std(level) * sqrt(N)
	Sharpe        float64 `json:"sharpe"`         // PeriodReturn / PeriodVol when defined
	SharpeDefined bool    `json:"sharpe_defined"` // false when PeriodVol is zero
}

// SharpeUndefined is how an undefined ratio is rendered. A constant value
// series has zero volatility; the ratio is reported as undefined instead of
// dividing.
const SharpeUndefined = "undefined"

// SharpeString renders the Sharpe ratio for reports.
func (s Summary) SharpeString() string {
	if !s.SharpeDefined {
		return SharpeUndefined
	}
	return fmt.Sprintf("%.4f", s.Sharpe)
}

// Summarize computes the summary statistics for one value series.
func Summarize(series portfolio.ValueSeries) (Summary, error) {
	n := series.Len()
	if n == 0 {
		return Summary{}, &domain.DataQualityError{Stage: "summarize", Reason: "empty value series"}
	}

	mean := 0.0
	for _, v := range series.Values {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range series.Values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)
	std := math.Sqrt(variance)

	s := Summary{
		Label:        series.Label,
		TradingDays:  n,
		TotalReturn:  series.Last() - series.First(),
		PeriodReturn: mean * float64(n),
		PeriodVol:    std * math.Sqrt(float64(n)),
	}
	if s.PeriodVol > 0 {
		s.Sharpe = s.PeriodReturn / s.PeriodVol
		s.SharpeDefined = true
	}
	return s, nil
}
