package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fund-nav-monitor/internal/model"
)

// BulkOptions parameterise the bulk-range JSON fetcher.
type BulkOptions struct {
	BaseURL   string
	PageSize  int
	Timeout   time.Duration
	UserAgent string
	Referer   string
}

// Bulk fetches full NAV history in a single request against a JSON endpoint
// that accepts an explicit date range and page size.
type Bulk struct {
	opts   BulkOptions
	logger zerolog.Logger
	client *http.Client
}

// NewBulk constructs a bulk-range fetcher.
func NewBulk(opts BulkOptions, logger zerolog.Logger) *Bulk {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Bulk{
		opts:   opts,
		logger: logger.With().Str("component", "bulk_fetcher").Logger(),
		client: &http.Client{Timeout: opts.Timeout},
	}
}

type navListResponse struct {
	Data struct {
		LSJZList []struct {
			FSRQ string `json:"FSRQ"` // NAV date
			DWJZ string `json:"DWJZ"` // unit NAV
		} `json:"LSJZList"`
	} `json:"Data"`
	ErrCode    int    `json:"ErrCode"`
	ErrMsg     string `json:"ErrMsg"`
	TotalCount int    `json:"TotalCount"`
}

// FetchSeries requests the fund's history in one shot. When since is known
// the requested range starts the day after the cached frontier.
func (b *Bulk) FetchSeries(ctx context.Context, code string, since *time.Time) (model.Series, error) {
	query := url.Values{}
	query.Set("fundCode", code)
	query.Set("pageIndex", "1")
	query.Set("pageSize", strconv.Itoa(b.opts.PageSize))
	if since != nil {
		query.Set("startDate", since.AddDate(0, 0, 1).Format("2006-01-02"))
	}
	endpoint := b.opts.BaseURL + "/lsjz?" + query.Encode()

	body, err := b.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload navListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, Format("decode NAV payload: %v", err)
	}
	if payload.ErrCode != 0 {
		return nil, Format("remote error %d: %s", payload.ErrCode, payload.ErrMsg)
	}

	if len(payload.Data.LSJZList) == 0 && since != nil {
		// Nothing newer than the cached frontier: a legitimate empty delta.
		b.logger.Debug().Str("fund", code).Msg("no records beyond cached frontier")
		return model.Series{}, nil
	}

	rows := make([]rawRow, 0, len(payload.Data.LSJZList))
	for _, item := range payload.Data.LSJZList {
		rows = append(rows, rawRow{date: item.FSRQ, value: item.DWJZ})
	}

	series, err := normalize(rows)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().Str("fund", code).Int("records", len(series)).Msg("bulk fetch complete")
	return series, nil
}

func (b *Bulk) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", b.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	if b.opts.Referer != "" {
		req.Header.Set("Referer", b.opts.Referer)
	}

	resp, err := b.client.Do(req)
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

var _ SeriesFetcher = (*Bulk)(nil)
