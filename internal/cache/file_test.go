package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fund-nav-monitor/internal/model"
)

func newTestCache(t *testing.T) *FileCache {
	t.Helper()
	fc, err := NewFileCache(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	return fc
}

func record(d int, v string) model.Record {
	return model.Record{
		Date:  time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC),
		Value: decimal.RequireFromString(v),
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	fc := newTestCache(t)
	ctx := context.Background()

	written := model.Series{record(1, "1.0001"), record(2, "1.0002"), record(3, "1.0003")}
	if err := fc.AppendDelta(ctx, "012345", written); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	loaded, err := fc.Load(ctx, "012345")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != len(written) {
		t.Fatalf("expected %d records, got %d", len(written), len(loaded))
	}
	for i := range written {
		if !loaded[i].Date.Equal(written[i].Date) || !loaded[i].Value.Equal(written[i].Value) {
			t.Fatalf("record %d mismatch: %v vs %v", i, loaded[i], written[i])
		}
	}
}

func TestFileCacheMissingFundIsEmpty(t *testing.T) {
	fc := newTestCache(t)
	series, err := fc.Load(context.Background(), "999999")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("expected empty series, got %d records", len(series))
	}
}

func TestFileCacheAppendsWithoutRewriting(t *testing.T) {
	fc := newTestCache(t)
	ctx := context.Background()

	if err := fc.AppendDelta(ctx, "012345", model.Series{record(1, "1.0")}); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := fc.AppendDelta(ctx, "012345", model.Series{record(2, "1.1")}); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(fc.dir, "012345.csv"))
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "date,value" {
		t.Fatalf("missing header, got %q", lines[0])
	}
	if strings.Count(string(raw), "date,value") != 1 {
		t.Fatal("header must be written only once")
	}
}

func TestFileCacheEmptyDeltaCreatesNothing(t *testing.T) {
	fc := newTestCache(t)
	if err := fc.AppendDelta(context.Background(), "012345", model.Series{}); err != nil {
		t.Fatalf("empty delta should be a no-op: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fc.dir, "012345.csv")); !os.IsNotExist(err) {
		t.Fatal("empty delta must not create a cache file")
	}
}

func TestFileCacheLoadRejectsCorruptRows(t *testing.T) {
	fc := newTestCache(t)
	path := filepath.Join(fc.dir, "012345.csv")
	if err := os.WriteFile(path, []byte("date,value\n2024-03-01,not-a-number\n"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	if _, err := fc.Load(context.Background(), "012345"); err == nil {
		t.Fatal("corrupt cached row must fail the load")
	}
}

func TestFileCacheLoadSortsUnorderedRows(t *testing.T) {
	fc := newTestCache(t)
	path := filepath.Join(fc.dir, "012345.csv")
	content := "date,value\n2024-03-02,1.2\n2024-03-01,1.1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	series, err := fc.Load(context.Background(), "012345")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !series[0].Date.Before(series[1].Date) {
		t.Fatalf("load must return ascending order: %v", series)
	}
}
