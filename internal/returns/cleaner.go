// Package returns prepares daily return panels for portfolio construction.
package returns

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/esgrun/internal/domain"
	"github.com/sawpanic/esgrun/internal/panel"
)

// DefaultMissingThreshold is the largest tolerable fraction of missing
// observations per symbol. Symbols above it are dropped rather than filled.
const DefaultMissingThreshold = 0.10

// Cleaner drops unreliable columns and fills small gaps so that downstream
// stages can assume a complete panel.
type Cleaner struct {
	Threshold float64 // drop a symbol when its missing fraction exceeds this
}

// NewCleaner creates a cleaner with the default missing threshold.
func NewCleaner() Cleaner {
	return Cleaner{Threshold: DefaultMissingThreshold}
}

// Result carries the cleaned panel plus what was discarded along the way.
type Result struct {
	Panel   *panel.Panel // complete panel, zero missing cells
	Dropped []string     // symbols removed for excessive missingness
}

// Clean applies the two-step policy: drop symbols whose missing fraction
// exceeds the threshold, then fill each remaining gap with that symbol's
// mean return over its present observations. The returned panel is
// guaranteed to have no missing cells.
func (c Cleaner) Clean(p *panel.Panel) (Result, error) {
	if p.NumRows() == 0 {
		return Result{}, &domain.DataQualityError{Stage: "clean", Reason: "return panel has no rows"}
	}

	fractions := p.MissingFraction()

	var kept, dropped []string
	for _, sym := range p.Symbols() {
		if fractions[sym] > c.Threshold {
			dropped = append(dropped, sym)
		} else {
			kept = append(kept, sym)
		}
	}
	sort.Strings(dropped)

	if len(kept) == 0 {
		return Result{}, &domain.DataQualityError{Stage: "clean", Reason: "every symbol exceeded the missing-data threshold"}
	}

	cleaned, err := p.Select(kept)
	if err != nil {
		return Result{}, fmt.Errorf("selecting surviving symbols: %w", err)
	}

	for _, sym := range kept {
		if fractions[sym] == 0 {
			continue
		}
		mean, ok := cleaned.ColumnMean(sym)
		if !ok {
			// A fully empty column below the threshold can only appear
			// with a degenerate threshold; there is no mean to fill with.
			return Result{}, &domain.DataQualityError{
				Stage:  "clean",
				Reason: fmt.Sprintf("symbol %s survived the threshold with no observations", sym),
			}
		}
		cleaned, err = cleaned.Fill(sym, mean)
		if err != nil {
			return Result{}, fmt.Errorf("filling %s: %w", sym, err)
		}
	}

	if cleaned.HasMissing() {
		return Result{}, &domain.DataQualityError{Stage: "clean", Reason: "panel still has missing cells after fill"}
	}

	if len(dropped) > 0 {
		log.Info().
			Int("dropped", len(dropped)).
			Int("kept", len(kept)).
			Float64("threshold", c.Threshold).
			Strs("symbols", dropped).
			Msg("Dropped symbols with excessive missing data")
	}

	return Result{Panel: cleaned, Dropped: dropped}, nil
}
