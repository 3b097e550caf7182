package cache

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fund-nav-monitor/internal/model"
)

const dateLayout = "2006-01-02"

var csvHeader = []string{"date", "value"}

// FileCache keeps one `<dir>/<code>.csv` per fund, header-labeled
// `date,value`, rows ascending by date.
type FileCache struct {
	dir    string
	logger zerolog.Logger
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string, logger zerolog.Logger) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir, logger: logger.With().Str("component", "file_cache").Logger()}, nil
}

func (c *FileCache) path(code string) string {
	return filepath.Join(c.dir, code+".csv")
}

// Load reads a fund's cached series. A missing file is an empty series, not
// an error; a malformed file is an error because silently dropping cached
// records would break the append-only contract.
func (c *FileCache) Load(_ context.Context, code string) (model.Series, error) {
	file, err := os.Open(c.path(code))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Series{}, nil
		}
		return nil, fmt.Errorf("open cache for %s: %w", code, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cache for %s: %w", code, err)
	}

	series := make(model.Series, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("cache for %s: row %d has %d fields", code, i+1, len(row))
		}
		date, err := parseCacheDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("cache for %s: row %d: %w", code, i+1, err)
		}
		value, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("cache for %s: row %d: %w", code, i+1, err)
		}
		series = append(series, model.Record{Date: date, Value: value})
	}

	series.Sort()
	return series, nil
}

// AppendDelta appends the given records to the fund's file, writing the
// header first when the file does not exist yet.
func (c *FileCache) AppendDelta(_ context.Context, code string, delta model.Series) error {
	if len(delta) == 0 {
		return nil
	}

	path := c.path(code)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)
	if statErr != nil && !fresh {
		return fmt.Errorf("stat cache for %s: %w", code, statErr)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open cache for %s: %w", code, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if fresh {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("write cache header for %s: %w", code, err)
		}
	}
	for _, r := range delta {
		record := []string{r.Date.Format(dateLayout), r.Value.String()}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write cache row for %s: %w", code, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush cache for %s: %w", code, err)
	}

	c.logger.Debug().Str("fund", code).Int("appended", len(delta)).Bool("created", fresh).Msg("cache delta persisted")
	return nil
}

func parseCacheDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

var _ SeriesCache = (*FileCache)(nil)
