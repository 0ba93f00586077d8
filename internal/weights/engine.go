// Package weights turns ESG scores into fixed portfolio weights.
package weights

import (
	"fmt"
	"math"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
)

// SumTolerance is the allowed deviation of a weight vector from 1.0.
const SumTolerance = 1e-9

// Compute derives one side's weights from its reconciled scores. The short
// book weights symbols proportionally to their risk score; the long book
// weights them by inverse score, so the least risky names carry the most
// capital. Weights are set once at period start and sum to 1 within
// SumTolerance. Every score must be strictly positive.
func Compute(side domain.Side, scores map[string]float64) (map[string]float64, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("unknown side %q", side)
	}
	if len(scores) == 0 {
		return nil, &domain.DataQualityError{Stage: "weights", Reason: fmt.Sprintf("no scores for %s side", side)}
	}

	symbols := panel.SortedSymbols(scores)
	for _, sym := range symbols {
		if s := scores[sym]; s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, &domain.InvalidScoreError{Symbol: sym, Score: scores[sym]}
		}
	}

	total := 0.0
	for _, sym := range symbols {
		total += raw(side, scores[sym])
	}

	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		out[sym] = raw(side, scores[sym]) / total
	}

	if err := Validate(out); err != nil {
		return nil, fmt.Errorf("%s side: %w", side, err)
	}
	return out, nil
}

// raw is the unnormalized weight for one score on the given side.
func raw(side domain.Side, score float64) float64 {
	if side == domain.SideShort {
		return score
	}
	return 1 / score
}

// Validate checks that a weight vector is usable: non-empty, every weight in
// (0, 1], and the total within SumTolerance of 1.0.
func Validate(w map[string]float64) error {
	if len(w) == 0 {
		return fmt.Errorf("empty weight vector")
	}
	total := 0.0
	for _, sym := range panel.SortedSymbols(w) {
		v := w[sym]
		if v <= 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("weight for %s out of range: %g", sym, v)
		}
		total += v
	}
	if math.Abs(total-1.0) > SumTolerance {
		return fmt.Errorf("weights sum to %.12f, want 1.0 within %g", total, SumTolerance)
	}
	return nil
}
