package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// pagedServer serves deterministic pages: page p gets sizes[p-1] rows with
// dates counting backwards from 2024-06-30, newest first like real sources.
func pagedServer(t *testing.T, sizes []int, requests *int) *httptest.Server {
	t.Helper()
	base := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			t.Fatalf("bad page param: %s", r.URL.RawQuery)
		}

		var sb strings.Builder
		sb.WriteString("<table><tr><th>日期</th><th>净值</th></tr>")
		if page <= len(sizes) {
			offset := 0
			for _, s := range sizes[:page-1] {
				offset += s
			}
			for i := 0; i < sizes[page-1]; i++ {
				date := base.AddDate(0, 0, -(offset + i))
				fmt.Fprintf(&sb, "<tr><td>%s</td><td>1.%04d</td></tr>", date.Format("2006-01-02"), offset+i)
			}
		}
		sb.WriteString("</table>")
		fmt.Fprint(w, sb.String())
	}))
}

func newPagedFetcher(baseURL string, maxPages int) *Paged {
	return NewPaged(PagedOptions{
		BaseURL:      baseURL,
		PageParam:    "page",
		FullPageSize: 20,
		MaxPages:     maxPages,
		Timeout:      time.Second,
	}, noopLogger())
}

func TestPagedFetchStopsAfterShortPage(t *testing.T) {
	requests := 0
	srv := pagedServer(t, []int{20, 20, 15}, &requests)
	defer srv.Close()

	p := newPagedFetcher(srv.URL, 200)
	series, err := p.FetchSeries(context.Background(), "012345", nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if requests != 3 {
		t.Fatalf("expected exactly 3 page requests, got %d", requests)
	}
	if len(series) != 55 {
		t.Fatalf("expected union of 55 records, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if !series[i-1].Date.Before(series[i].Date) {
			t.Fatalf("series not strictly ascending at %d", i)
		}
	}
}

func TestPagedFetchStopsOnEmptyPage(t *testing.T) {
	requests := 0
	srv := pagedServer(t, []int{20, 20}, &requests)
	defer srv.Close()

	p := newPagedFetcher(srv.URL, 200)
	series, err := p.FetchSeries(context.Background(), "012345", nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	// pages of 20 look full, so the empty third page is what terminates
	if requests != 3 {
		t.Fatalf("expected 3 requests, got %d", requests)
	}
	if len(series) != 40 {
		t.Fatalf("expected 40 records, got %d", len(series))
	}
}

func TestPagedFetchHonoursPageCap(t *testing.T) {
	requests := 0
	srv := pagedServer(t, []int{20, 20, 20, 20, 20}, &requests)
	defer srv.Close()

	p := newPagedFetcher(srv.URL, 2)
	series, err := p.FetchSeries(context.Background(), "012345", nil)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if requests != 2 {
		t.Fatalf("safety cap should stop at 2 requests, got %d", requests)
	}
	if len(series) != 40 {
		t.Fatalf("expected 40 records, got %d", len(series))
	}
}

func TestPagedFetchStopsAtCachedFrontier(t *testing.T) {
	requests := 0
	srv := pagedServer(t, []int{20, 20, 20}, &requests)
	defer srv.Close()

	// frontier newer than every served record: page 1 is wholly behind it
	since := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	p := newPagedFetcher(srv.URL, 200)
	_, err := p.FetchSeries(context.Background(), "012345", &since)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected to stop after the first page, got %d requests", requests)
	}
}

func TestPagedFetchNoTableIsFormatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing here</body></html>")
	}))
	defer srv.Close()

	p := newPagedFetcher(srv.URL, 200)
	if _, err := p.FetchSeries(context.Background(), "012345", nil); !IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
}
