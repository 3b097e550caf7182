package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fund-nav-monitor/internal/model"
)

// PagedOptions parameterise the paginated table fetcher.
type PagedOptions struct {
	BaseURL      string
	PageParam    string
	FullPageSize int
	MaxPages     int
	Timeout      time.Duration
	UserAgent    string
}

// Paged walks successive pages of a fund's NAV table until the source runs
// out of rows. Termination: a short or empty page, the page-count safety
// cap, or (when a cached frontier is known) a page wholly at-or-before the
// frontier.
type Paged struct {
	opts   PagedOptions
	logger zerolog.Logger
	client *http.Client
}

// NewPaged constructs a paginated fetcher.
func NewPaged(opts PagedOptions, logger zerolog.Logger) *Paged {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.FullPageSize <= 0 {
		opts.FullPageSize = 20
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200
	}
	if opts.PageParam == "" {
		opts.PageParam = "page"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Paged{
		opts:   opts,
		logger: logger.With().Str("component", "paged_fetcher").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// FetchSeries accumulates table rows page by page and normalizes them once
// at the end, so cross-page duplicates collapse exactly like in-page ones.
func (p *Paged) FetchSeries(ctx context.Context, code string, since *time.Time) (model.Series, error) {
	var accumulated []rawRow
	sawRows := false

	for page := 1; page <= p.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		endpoint := fmt.Sprintf("%s/%s.html?%s=%d", p.opts.BaseURL, code, p.opts.PageParam, page)
		body, err := fetchDocument(ctx, p.client, endpoint, p.opts.UserAgent)
		if err != nil {
			return nil, err
		}

		tables, err := parseTables(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		rows, ok := extractNAVRows(tables)
		if !ok {
			if sawRows {
				break // ran past the last page
			}
			return nil, Format("no NAV table found on page %d", page)
		}

		parsed := countParseable(rows)
		if parsed == 0 {
			break
		}
		sawRows = true
		accumulated = append(accumulated, rows...)

		p.logger.Debug().Str("fund", code).Int("page", page).Int("rows", parsed).Msg("page accumulated")

		if parsed < p.opts.FullPageSize {
			break // short page: source exhausted
		}
		if since != nil && pageBehindFrontier(rows, *since) {
			break // caught up with the local cache
		}
	}

	series, err := normalize(accumulated)
	if err != nil {
		if since != nil {
			// A full-page terminal response with zero new rows is a clean
			// empty delta, not a malformed source.
			return model.Series{}, nil
		}
		return nil, err
	}

	p.logger.Debug().Str("fund", code).Int("records", len(series)).Msg("paged fetch complete")
	return series, nil
}

// countParseable counts rows that would survive normalization, which is the
// row count termination decisions are based on (header rows never count).
func countParseable(rows []rawRow) int {
	n := 0
	for _, row := range rows {
		if _, ok := parseDate(row.date); !ok {
			continue
		}
		if _, ok := parseValue(row.value); !ok {
			continue
		}
		n++
	}
	return n
}

// pageBehindFrontier reports whether every parseable row of the page is at
// or before the cached frontier, meaning later pages are older still.
func pageBehindFrontier(rows []rawRow, frontier time.Time) bool {
	any := false
	for _, row := range rows {
		date, ok := parseDate(row.date)
		if !ok {
			continue
		}
		any = true
		if date.After(frontier) {
			return false
		}
	}
	return any
}

var _ SeriesFetcher = (*Paged)(nil)
