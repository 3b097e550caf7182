// Package cache persists per-fund NAV series with an append-only
// discipline: records already on disk are never rewritten or truncated,
// every run only adds records newer than the stored maximum date.
package cache

import (
	"context"

	"fund-nav-monitor/internal/model"
)

// Backend names selectable via configuration.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// SeriesCache stores one NAV series per fund code.
type SeriesCache interface {
	// Load returns the cached series sorted ascending, or an empty series
	// when the fund has never been cached.
	Load(ctx context.Context, code string) (model.Series, error)
	// AppendDelta durably appends records assumed to be strictly newer than
	// everything already cached. An empty delta is a no-op.
	AppendDelta(ctx context.Context, code string, delta model.Series) error
}
