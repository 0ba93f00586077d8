package domain

import "fmt"

// Side identifies which book a symbol belongs to.
type Side string

const (
	SideLong  Side = "long"  // low ESG risk, held long
	SideShort Side = "short" // high ESG risk, held short
)

// Valid reports whether the side is one of the two known books.
func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// Warning is a non-fatal finding accumulated during a run. Warnings never
// abort the pipeline; they are carried into the diagnostics report.
type Warning struct {
	Kind   string `json:"kind"`   // warning class, e.g. "missing_score"
	Symbol string `json:"symbol"` // affected symbol, if any
	Detail string `json:"detail"`
}

func (w Warning) String() string {
	if w.Symbol == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Detail)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Symbol, w.Detail)
}

// WarnMissingScore marks a symbol that is priced but carries no usable
// score, or is scored but lost its prices; the symbol is skipped.
const WarnMissingScore = "missing_score"

// WarnUnknownRisk marks a rating whose risk level matched no known bucket.
const WarnUnknownRisk = "unknown_risk"

// WarnDuplicateRating marks a ticker rated more than once in one bucket;
// the first score wins.
const WarnDuplicateRating = "duplicate_rating"

// MissingScore builds the standard warning for a symbol excluded from a
// side because score and prices could not be matched up.
func MissingScore(side Side, symbol, detail string) Warning {
	return Warning{Kind: WarnMissingScore, Symbol: symbol, Detail: fmt.Sprintf("%s side: %s", side, detail)}
}
