package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fund-nav-monitor/internal/model"
)

// PageOptions parameterise the single-page table fetcher.
type PageOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Page scrapes one rendered HTML document per fund and extracts the first
// NAV-shaped table it contains. It carries no pagination; history depth is
// whatever the page shows.
type Page struct {
	opts   PageOptions
	logger zerolog.Logger
	client *http.Client
}

// NewPage constructs a single-page fetcher.
func NewPage(opts PageOptions, logger zerolog.Logger) *Page {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Page{
		opts:   opts,
		logger: logger.With().Str("component", "page_fetcher").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// FetchSeries renders the fund's value page and normalizes its table. The
// cached frontier is ignored: the whole visible page is fetched and the
// merge discards already-covered records.
func (p *Page) FetchSeries(ctx context.Context, code string, _ *time.Time) (model.Series, error) {
	endpoint := fmt.Sprintf("%s/%s.html", p.opts.BaseURL, code)

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
		return nil, Format("no NAV table found in %d tables", len(tables))
	}

	series, err := normalize(rows)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().Str("fund", code).Int("records", len(series)).Msg("page fetch complete")
	return series, nil
}

// fetchDocument GETs an HTML document with browser-identifying headers,
// classifying transport and server-side failures as transient.
func fetchDocument(ctx context.Context, client *http.Client, endpoint, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, Transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, Transient(fmt.Errorf("remote status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Format("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

var _ SeriesFetcher = (*Page)(nil)
