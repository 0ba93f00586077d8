package universe

import (
	"errors"
	"testing"

	"github.com/sawpanic/esgrun/internal/domain"
)

func TestReconcileIntersectsWithPanel(t *testing.T) {
	long := map[string]float64{"AAPL": 8.1, "MSFT": 12.3, "GONE": 9.9}
	short := map[string]float64{"XOM": 38.2, "CVX": 35.5}
	panelSymbols := []string{"AAPL", "MSFT", "XOM", "CVX", "UNRATED"}

	result, err := Reconcile(long, short, panelSymbols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := result.Long.Symbols(); len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("unexpected long universe: %v", got)
	}
	if got := result.Short.Symbols(); len(got) != 2 || got[0] != "CVX" || got[1] != "XOM" {
		t.Errorf("unexpected short universe: %v", got)
	}
	if result.Long.Scores["AAPL"] != 8.1 {
		t.Errorf("scores must survive reconciliation, got %v", result.Long.Scores)
	}
}

func TestReconcileWarnsWithoutAborting(t *testing.T) {
	long := map[string]float64{"AAPL": 8.1, "DROPPED": 7.0}
	short := map[string]float64{"XOM": 38.2}
	panelSymbols := []string{"AAPL", "XOM", "UNRATED"}

	result, err := Reconcile(long, short, panelSymbols)
	if err != nil {
		t.Fatalf("warnings must not abort the run: %v", err)
	}

	var droppedWarned, unratedWarned bool
	for _, w := range result.Warnings {
		if w.Kind != domain.WarnMissingScore {
			t.Errorf("unexpected warning kind %q", w.Kind)
		}
		switch w.Symbol {
		case "DROPPED":
			droppedWarned = true
		case "UNRATED":
			unratedWarned = true
		}
	}
	if !droppedWarned {
		t.Error("expected a warning for the scored symbol without prices")
	}
	if !unratedWarned {
		t.Error("expected a warning for the priced symbol without a score")
	}
}

func TestReconcileOverlapIsFatal(t *testing.T) {
	long := map[string]float64{"AAPL": 8.1, "BOTH": 5.0}
	short := map[string]float64{"XOM": 38.2, "BOTH": 40.0}

	_, err := Reconcile(long, short, []string{"AAPL", "XOM", "BOTH"})
	if err == nil {
		t.Fatal("expected fatal error for a symbol rated on both sides")
	}
	if !errors.Is(err, domain.ErrDataQuality) {
		t.Errorf("expected a data quality error, got %v", err)
	}
}

func TestReconcileEmptySideIsFatal(t *testing.T) {
	cases := []struct {
		name  string
		long  map[string]float64
		short map[string]float64
	}{
		{"long side unpriced", map[string]float64{"GONE": 1}, map[string]float64{"XOM": 38.2}},
		{"short side unpriced", map[string]float64{"AAPL": 8.1}, map[string]float64{"GONE": 1}},
		{"no long candidates", map[string]float64{}, map[string]float64{"XOM": 38.2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Reconcile(tc.long, tc.short, []string{"AAPL", "XOM"})
			if !errors.Is(err, domain.ErrDataQuality) {
				t.Errorf("expected data quality error, got %v", err)
			}
		})
	}
}

func TestLimitKeepsStrongestPerSide(t *testing.T) {
	long := Universe{Side: domain.SideLong, Scores: map[string]float64{"AAA": 5, "BBB": 12, "CCC": 8}}
	short := Universe{Side: domain.SideShort, Scores: map[string]float64{"RRR": 40, "SSS": 31, "TTT": 36}}

	if got := long.Limit(2).Symbols(); len(got) != 2 || got[0] != "AAA" || got[1] != "CCC" {
		t.Errorf("long book must keep the lowest scores, got %v", got)
	}
	if got := short.Limit(2).Symbols(); len(got) != 2 || got[0] != "RRR" || got[1] != "TTT" {
		t.Errorf("short book must keep the highest scores, got %v", got)
	}
}

func TestLimitZeroOrOversizedKeepsAll(t *testing.T) {
	u := Universe{Side: domain.SideLong, Scores: map[string]float64{"AAA": 5, "BBB": 12}}

	if got := u.Limit(0); len(got.Scores) != 2 {
		t.Errorf("limit 0 must keep the full book, got %v", got.Scores)
	}
	if got := u.Limit(5); len(got.Scores) != 2 {
		t.Errorf("oversized limit must keep the full book, got %v", got.Scores)
	}
}

func TestLimitBreaksTiesBySymbol(t *testing.T) {
	u := Universe{Side: domain.SideLong, Scores: map[string]float64{"BBB": 5, "AAA": 5, "CCC": 5}}

	got := u.Limit(2).Symbols()
	if len(got) != 2 || got[0] != "AAA" || got[1] != "BBB" {
		t.Errorf("ties must break on symbol name, got %v", got)
	}
}
