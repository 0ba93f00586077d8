// Package universe reconciles rated candidates against the priced panel.
package universe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/esgrun/internal/domain"
)

// Universe is one side's tradable book after reconciliation: only symbols
// that carry both a usable score and clean prices.
type Universe struct {
	Side   domain.Side
	Scores map[string]float64
}

// Symbols returns the universe's symbols in sorted order.
func (u Universe) Symbols() []string {
	out := make([]string, 0, len(u.Scores))
	for sym := range u.Scores {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Limit trims the book to its n strongest candidates: lowest scores for the
// long side, highest for the short side. Ties break on symbol name so the
// cut is deterministic. n <= 0 keeps the full book.
func (u Universe) Limit(n int) Universe {
	if n <= 0 || n >= len(u.Scores) {
		return u
	}

	syms := u.Symbols()
	sort.SliceStable(syms, func(i, j int) bool {
		if u.Side == domain.SideShort {
			return u.Scores[syms[i]] > u.Scores[syms[j]]
		}
		return u.Scores[syms[i]] < u.Scores[syms[j]]
	})

	trimmed := Universe{Side: u.Side, Scores: make(map[string]float64, n)}
	for _, sym := range syms[:n] {
		trimmed.Scores[sym] = u.Scores[sym]
	}
	return trimmed
}

// Result is the outcome of reconciling both books against the panel.
type Result struct {
	Long     Universe
	Short    Universe
	Warnings []domain.Warning
}

// Reconcile intersects the long and short candidate sets with the cleaned
// panel's symbol set. The panel is authoritative: a candidate without clean
// prices is excluded with a warning, and a priced symbol with no score on
// either side is reported as a warning too. A symbol rated on both sides is
// a fatal input defect, as is a side left empty after intersection.
func Reconcile(long, short map[string]float64, panelSymbols []string) (Result, error) {
	if overlap := intersectKeys(long, short); len(overlap) > 0 {
		return Result{}, &domain.DataQualityError{
			Stage:  "reconcile",
			Reason: fmt.Sprintf("symbols rated on both sides: %s", strings.Join(overlap, ", ")),
		}
	}

	priced := make(map[string]struct{}, len(panelSymbols))
	for _, sym := range panelSymbols {
		priced[sym] = struct{}{}
	}

	var warnings []domain.Warning

	longBook := Universe{Side: domain.SideLong, Scores: make(map[string]float64)}
	shortBook := Universe{Side: domain.SideShort, Scores: make(map[string]float64)}
	for _, sym := range sortedKeys(long) {
		if _, ok := priced[sym]; ok {
			longBook.Scores[sym] = long[sym]
		} else {
			warnings = append(warnings, domain.MissingScore(domain.SideLong, sym, "scored but no clean prices"))
		}
	}
	for _, sym := range sortedKeys(short) {
		if _, ok := priced[sym]; ok {
			shortBook.Scores[sym] = short[sym]
		} else {
			warnings = append(warnings, domain.MissingScore(domain.SideShort, sym, "scored but no clean prices"))
		}
	}

	for _, sym := range panelSymbols {
		_, inLong := long[sym]
		_, inShort := short[sym]
		if !inLong && !inShort {
			warnings = append(warnings, domain.Warning{
				Kind:   domain.WarnMissingScore,
				Symbol: sym,
				Detail: "priced but no score on either side",
			})
		}
	}

	if len(longBook.Scores) == 0 {
		return Result{}, &domain.DataQualityError{Stage: "reconcile", Reason: "long universe is empty after matching prices"}
	}
	if len(shortBook.Scores) == 0 {
		return Result{}, &domain.DataQualityError{Stage: "reconcile", Reason: "short universe is empty after matching prices"}
	}

	log.Info().
		Int("long", len(longBook.Scores)).
		Int("short", len(shortBook.Scores)).
		Int("warnings", len(warnings)).
		Msg("Reconciled universes against price panel")

	return Result{Long: longBook, Short: shortBook, Warnings: warnings}, nil
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func intersectKeys(a, b map[string]float64) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
