package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func bulkPayload(items ...map[string]string) map[string]any {
	return map[string]any{
		"Data":       map[string]any{"LSJZList": items},
		"ErrCode":    0,
		"TotalCount": len(items),
	}
}

func TestBulkFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fundCode") != "012345" {
			t.Fatalf("fundCode 参数缺失: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(bulkPayload(
			map[string]string{"FSRQ": "2024-01-02", "DWJZ": "1.2345"},
			map[string]string{"FSRQ": "2024-01-01", "DWJZ": "1.2000"},
		))
	}))
	defer srv.Close()

	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	series, err := b.FetchSeries(context.Background(), "012345", nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected 2 records, got %d", len(series))
	}
	if !series[0].Date.Before(series[1].Date) {
		t.Fatalf("series not ascending: %v", series)
	}
}

func TestBulkFetchSendsStartDateAfterFrontier(t *testing.T) {
	var startDate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startDate = r.URL.Query().Get("startDate")
		_ = json.NewEncoder(w).Encode(bulkPayload(
			map[string]string{"FSRQ": "2024-01-11", "DWJZ": "1.3"},
		))
	}))
	defer srv.Close()

	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := b.FetchSeries(context.Background(), "012345", &since); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if startDate != "2024-01-11" {
		t.Fatalf("expected startDate the day after the frontier, got %q", startDate)
	}
}

func TestBulkFetchEmptyDeltaWithFrontierIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(bulkPayload())
	}))
	defer srv.Close()

	since := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	series, err := b.FetchSeries(context.Background(), "012345", &since)
	if err != nil {
		t.Fatalf("empty delta should succeed: %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("expected empty series, got %d", len(series))
	}
}

func TestBulkFetchEmptyWithoutFrontierIsFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(bulkPayload())
	}))
	defer srv.Close()

	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := b.FetchSeries(context.Background(), "012345", nil); !IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestBulkFetchServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := b.FetchSeries(context.Background(), "012345", nil); !IsTransient(err) {
		t.Fatalf("HTTP 502 应为 transient, got %v", err)
	}
}

func TestBulkFetchClientErrorIsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := b.FetchSeries(context.Background(), "999999", nil); !IsFormat(err) {
		t.Fatalf("HTTP 404 should not be retryable, got %v", err)
	}
}

func TestBulkFetchRemoteErrCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ErrCode": 130, "ErrMsg": "参数错误"})
	}))
	defer srv.Close()

	b := NewBulk(BulkOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := b.FetchSeries(context.Background(), "012345", nil); !IsFormat(err) {
		t.Fatalf("remote error code should be a format error, got %v", err)
	}
}
