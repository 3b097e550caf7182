package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one net-asset-value observation for a fund.
type Record struct {
	Date  time.Time
	Value decimal.Decimal
}

// Series is a fund's NAV history, ascending by date with unique dates.
type Series []Record

// Sort orders the series ascending by date in place.
func (s Series) Sort() {
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// MaxDate returns the latest date in the series, or a zero time when empty.
func (s Series) MaxDate() time.Time {
	if len(s) == 0 {
		return time.Time{}
	}
	max := s[0].Date
	for _, r := range s[1:] {
		if r.Date.After(max) {
			max = r.Date
		}
	}
	return max
}

// Latest returns the most recent record. The series must be sorted.
func (s Series) Latest() Record {
	return s[len(s)-1]
}

// Window returns the most recent n records, still ascending.
func (s Series) Window(n int) Series {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Values extracts the NAV values as float64 for indicator math.
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, r := range s {
		values[i] = r.Value.InexactFloat64()
	}
	return values
}

// Dedupe removes records sharing a date, keeping the first occurrence.
// Order of the surviving records is preserved.
func (s Series) Dedupe() Series {
	seen := make(map[string]struct{}, len(s))
	out := s[:0:0]
	for _, r := range s {
		key := r.Date.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Merge appends the records of fetched that are strictly newer than the
// cached maximum date and returns the combined sorted series together with
// the appended delta. Merging the same fetched series twice is a no-op.
func Merge(cached, fetched Series) (combined, delta Series) {
	frontier := cached.MaxDate()

	delta = Series{}
	for _, r := range fetched.Dedupe() {
		if !frontier.IsZero() && !r.Date.After(frontier) {
			continue
		}
		delta = append(delta, r)
	}
	delta.Sort()

	combined = make(Series, 0, len(cached)+len(delta))
	combined = append(combined, cached...)
	combined = append(combined, delta...)
	combined.Sort()
	return combined, delta
}
