package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fund-nav-monitor/internal/cache"
	"fund-nav-monitor/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	// Inserts never touch existing rows: the NAV history table is
	// append-only by construction.
	insertNAVRecordSQL = `INSERT INTO nav_records (
        fund_code,
        nav_date,
        nav_value
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (fund_code, nav_date) DO NOTHING;`

	listNAVRecordsSQL = `SELECT
        nav_date,
        nav_value
    FROM nav_records
    WHERE fund_code = $1
    ORDER BY nav_date;`

	countNAVRecordsSQL = `SELECT COUNT(*) FROM nav_records WHERE fund_code = $1;`

	insertAdvisoryResultSQL = `INSERT INTO advisory_results (
        run_at,
        fund_code,
        latest_value,
        rsi,
        ma_ratio,
        advice,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`
)

// AdvisoryRecord is one persisted advisory run outcome.
type AdvisoryRecord struct {
	RunAt       time.Time
	FundCode    string
	LatestValue *decimal.Decimal
	RSI         *float64
	MARatio     *float64
	Advice      string
	Error       *string
}

// AdvisoryStore records advisory run history.
type AdvisoryStore interface {
	InsertAdvisoryResult(ctx context.Context, rec AdvisoryRecord) error
}

// Store is the Postgres-backed NAV cache.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Load returns a fund's cached series in ascending date order.
func (s *Store) Load(ctx context.Context, code string) (model.Series, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listNAVRecordsSQL, code)
	if queryErr != nil {
		return nil, fmt.Errorf("list nav records: %w", queryErr)
	}
	defer rows.Close()

	series := make(model.Series, 0)
	for rows.Next() {
		var (
			date     time.Time
			valueStr string
		)
		if err := rows.Scan(&date, &valueStr); err != nil {
			return nil, err
		}
		value, convErr := decimal.NewFromString(valueStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse nav value: %w", convErr)
		}
		series = append(series, model.Record{Date: date, Value: value})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return series, nil
}

// AppendDelta inserts the new records; conflicts are ignored so a replayed
// delta cannot duplicate history.
func (s *Store) AppendDelta(ctx context.Context, code string, delta model.Series) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, r := range delta {
		if _, execErr := pool.Exec(ctx, insertNAVRecordSQL, code, r.Date, r.Value.String()); execErr != nil {
			return fmt.Errorf("insert nav record: %w", execErr)
		}
	}
	return nil
}

// CountRecords counts cached records for a fund.
func (s *Store) CountRecords(ctx context.Context, code string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countNAVRecordsSQL, code).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count nav records: %w", scanErr)
	}
	return count, nil
}

// InsertAdvisoryResult persists one advisory outcome for auditing.
func (s *Store) InsertAdvisoryResult(ctx context.Context, rec AdvisoryRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var latest interface{}
	if rec.LatestValue != nil {
		latest = rec.LatestValue.String()
	}
	var errMsg interface{}
	if rec.Error != nil {
		errMsg = *rec.Error
	}

	if _, execErr := pool.Exec(ctx, insertAdvisoryResultSQL,
		rec.RunAt,
		rec.FundCode,
		latest,
		rec.RSI,
		rec.MARatio,
		rec.Advice,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("insert advisory result: %w", execErr)
	}
	return nil
}

var _ cache.SeriesCache = (*Store)(nil)
var _ AdvisoryStore = (*Store)(nil)
