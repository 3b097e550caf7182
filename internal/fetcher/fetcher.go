package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fund-nav-monitor/internal/model"
)

// Strategy names selectable via configuration.
const (
	StrategyBulk  = "bulk"
	StrategyPage  = "page"
	StrategyPaged = "paged"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"

// SeriesFetcher retrieves the NAV history of one fund. since, when non-nil,
// is the latest locally cached date; a fetcher may use it to stop fetching
// once it has caught up to records already covered locally. Under-fetching
// behind since is legitimate, over-fetching is always safe because the merge
// discards records at or before the cached frontier.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, code string, since *time.Time) (model.Series, error)
}

// rawRow is one (date, value) pair as scraped, before cleaning.
type rawRow struct {
	date  string
	value string
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseValue(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// normalize cleans scraped rows into a valid series: unparseable rows are
// dropped, duplicate dates keep the first occurrence, the result is sorted
// ascending. An empty outcome is a format error, not an empty success.
func normalize(rows []rawRow) (model.Series, error) {
	series := make(model.Series, 0, len(rows))
	for _, row := range rows {
		date, ok := parseDate(row.date)
		if !ok {
			continue
		}
		value, ok := parseValue(row.value)
		if !ok {
			continue
		}
		series = append(series, model.Record{Date: date, Value: value})
	}

	series = series.Dedupe()
	series.Sort()

	if len(series) == 0 {
		return nil, Format("no parseable NAV rows (%d raw rows)", len(rows))
	}
	return series, nil
}
