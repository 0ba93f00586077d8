package panel

import (
	"fmt"
	"sort"
	"time"
)

// DateIndex is an ordered sequence of calendar dates (UTC midnight).
// Dates are strictly increasing and the index is immutable: every
// transforming method returns a fresh index.
type DateIndex struct {
	dates []time.Time
}

// Day normalizes a timestamp to its UTC calendar date.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDateIndex builds an index from arbitrary timestamps. Input order does
// not matter; timestamps are normalized to calendar dates, sorted ascending,
// and duplicates are rejected.
func NewDateIndex(dates []time.Time) (DateIndex, error) {
	normalized := make([]time.Time, len(dates))
	for i, t := range dates {
		normalized[i] = Day(t)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Before(normalized[j]) })

	for i := 1; i < len(normalized); i++ {
		if normalized[i].Equal(normalized[i-1]) {
			return DateIndex{}, fmt.Errorf("duplicate date in index: %s", normalized[i].Format("2006-01-02"))
		}
	}

	return DateIndex{dates: normalized}, nil
}

// MustDateIndex is NewDateIndex that panics on error, for fixtures and tests.
func MustDateIndex(dates []time.Time) DateIndex {
	idx, err := NewDateIndex(dates)
	if err != nil {
		panic(err)
	}
	return idx
}

// Len returns the number of dates.
func (d DateIndex) Len() int { return len(d.dates) }

// At returns the date at position i.
func (d DateIndex) At(i int) time.Time { return d.dates[i] }

// First returns the earliest date. Panics on an empty index.
func (d DateIndex) First() time.Time { return d.dates[0] }

// Last returns the latest date. Panics on an empty index.
func (d DateIndex) Last() time.Time { return d.dates[len(d.dates)-1] }

// Dates returns a copy of the underlying dates.
func (d DateIndex) Dates() []time.Time {
	out := make([]time.Time, len(d.dates))
	copy(out, d.dates)
	return out
}

// Position returns the offset of date t, if present.
func (d DateIndex) Position(t time.Time) (int, bool) {
	day := Day(t)
	i := sort.Search(len(d.dates), func(i int) bool { return !d.dates[i].Before(day) })
	if i < len(d.dates) && d.dates[i].Equal(day) {
		return i, true
	}
	return 0, false
}

// Contains reports whether date t is in the index.
func (d DateIndex) Contains(t time.Time) bool {
	_, ok := d.Position(t)
	return ok
}

// Equal reports whether two indexes hold the same dates in the same order.
func (d DateIndex) Equal(other DateIndex) bool {
	if len(d.dates) != len(other.dates) {
		return false
	}
	for i := range d.dates {
		if !d.dates[i].Equal(other.dates[i]) {
			return false
		}
	}
	return true
}

// Slice returns the sub-index [from, to).
func (d DateIndex) Slice(from, to int) DateIndex {
	out := make([]time.Time, to-from)
	copy(out, d.dates[from:to])
	return DateIndex{dates: out}
}

// Prepend returns a new index with t added in front. The date must precede
// the current first date.
func (d DateIndex) Prepend(t time.Time) (DateIndex, error) {
	day := Day(t)
	if len(d.dates) > 0 && !day.Before(d.dates[0]) {
		return DateIndex{}, fmt.Errorf("prepend date %s is not before index start %s",
			day.Format("2006-01-02"), d.dates[0].Format("2006-01-02"))
	}
	out := make([]time.Time, 0, len(d.dates)+1)
	out = append(out, day)
	out = append(out, d.dates...)
	return DateIndex{dates: out}, nil
}

// Join returns the inner join of two indexes: dates present in both,
// ascending.
func (d DateIndex) Join(other DateIndex) DateIndex {
	var out []time.Time
	for _, t := range d.dates {
		if other.Contains(t) {
			out = append(out, t)
		}
	}
	return DateIndex{dates: out}
}
