package panel

import (
	"fmt"
	"math"
	"sort"
)

// Panel is a wide date-by-symbol table of float64 cells. Rows follow a
// DateIndex, columns are symbols in sorted order, and missing observations
// are NaN. Panels are immutable: transforms return new panels and never
// touch the receiver's storage.
type Panel struct {
	index   DateIndex
	symbols []string
	cols    map[string][]float64
}

// NewPanel builds a panel from per-symbol columns. Every column must have
// exactly index.Len() values.
func NewPanel(index DateIndex, cols map[string][]float64) (*Panel, error) {
	symbols := make([]string, 0, len(cols))
	stored := make(map[string][]float64, len(cols))
	for sym, vals := range cols {
		if len(vals) != index.Len() {
			return nil, fmt.Errorf("column %s has %d values, index has %d dates", sym, len(vals), index.Len())
		}
		c := make([]float64, len(vals))
		copy(c, vals)
		stored[sym] = c
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	return &Panel{index: index, symbols: symbols, cols: stored}, nil
}

// Index returns the panel's date index.
func (p *Panel) Index() DateIndex { return p.index }

// Symbols returns the column names in sorted order.
func (p *Panel) Symbols() []string {
	out := make([]string, len(p.symbols))
	copy(out, p.symbols)
	return out
}

// NumRows returns the number of dates.
func (p *Panel) NumRows() int { return p.index.Len() }

// NumColumns returns the number of symbols.
func (p *Panel) NumColumns() int { return len(p.symbols) }

// Column returns a copy of one symbol's values.
func (p *Panel) Column(symbol string) ([]float64, bool) {
	vals, ok := p.cols[symbol]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(vals))
	copy(out, vals)
	return out, true
}

// At returns the cell for row i and the given symbol.
func (p *Panel) At(i int, symbol string) (float64, bool) {
	vals, ok := p.cols[symbol]
	if !ok {
		return 0, false
	}
	return vals[i], true
}

// Select returns a panel restricted to the given symbols.
func (p *Panel) Select(symbols []string) (*Panel, error) {
	cols := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		vals, ok := p.cols[sym]
		if !ok {
			return nil, fmt.Errorf("symbol %s not in panel", sym)
		}
		cols[sym] = vals
	}
	return NewPanel(p.index, cols)
}

// MissingFraction returns, per symbol, the fraction of rows that are NaN.
// An empty panel reports fraction 1.0 for every column.
func (p *Panel) MissingFraction() map[string]float64 {
	out := make(map[string]float64, len(p.symbols))
	rows := p.index.Len()
	for _, sym := range p.symbols {
		if rows == 0 {
			out[sym] = 1.0
			continue
		}
		missing := 0
		for _, v := range p.cols[sym] {
			if math.IsNaN(v) {
				missing++
			}
		}
		out[sym] = float64(missing) / float64(rows)
	}
	return out
}

// ColumnMean returns the mean over a symbol's present (non-NaN) cells.
// ok is false when the column has no present cells at all.
func (p *Panel) ColumnMean(symbol string) (float64, bool) {
	vals, exists := p.cols[symbol]
	if !exists {
		return 0, false
	}
	sum, n := 0.0, 0
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// HasMissing reports whether any cell is NaN.
func (p *Panel) HasMissing() bool {
	for _, sym := range p.symbols {
		for _, v := range p.cols[sym] {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// PctChange converts a price panel to simple returns: r(t) = p(t)/p(t-1) - 1.
// The first row has no predecessor and is dropped, so the result has one
// fewer row. A NaN on either side of the ratio, or a zero denominator,
// yields NaN.
func (p *Panel) PctChange() (*Panel, error) {
	rows := p.index.Len()
	if rows < 2 {
		return nil, fmt.Errorf("pct change needs at least 2 rows, have %d", rows)
	}

	index := p.index.Slice(1, rows)
	cols := make(map[string][]float64, len(p.symbols))
	for _, sym := range p.symbols {
		src := p.cols[sym]
		dst := make([]float64, rows-1)
		for t := 1; t < rows; t++ {
			prev, cur := src[t-1], src[t]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				dst[t-1] = math.NaN()
				continue
			}
			dst[t-1] = cur/prev - 1
		}
		cols[sym] = dst
	}
	return NewPanel(index, cols)
}

// Gross shifts simple returns to gross returns: g = 1 + r. NaN passes through.
func (p *Panel) Gross() (*Panel, error) {
	cols := make(map[string][]float64, len(p.symbols))
	for _, sym := range p.symbols {
		src := p.cols[sym]
		dst := make([]float64, len(src))
		for i, v := range src {
			if math.IsNaN(v) {
				dst[i] = math.NaN()
				continue
			}
			dst[i] = 1 + v
		}
		cols[sym] = dst
	}
	return NewPanel(p.index, cols)
}

// Fill returns a panel with the given symbol's NaN cells replaced by value.
func (p *Panel) Fill(symbol string, value float64) (*Panel, error) {
	if _, ok := p.cols[symbol]; !ok {
		return nil, fmt.Errorf("symbol %s not in panel", symbol)
	}
	cols := make(map[string][]float64, len(p.symbols))
	for _, sym := range p.symbols {
		cols[sym] = p.cols[sym]
	}
	src := p.cols[symbol]
	dst := make([]float64, len(src))
	for i, v := range src {
		if math.IsNaN(v) {
			dst[i] = value
		} else {
			dst[i] = v
		}
	}
	cols[symbol] = dst
	return NewPanel(p.index, cols)
}
