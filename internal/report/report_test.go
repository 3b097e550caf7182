package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fund-nav-monitor/internal/advisor"
	"fund-nav-monitor/internal/indicator"
	"fund-nav-monitor/internal/pipeline"
)

const sampleReport = `# Analysis

Some prose mentioning 111111 outside a table.

| 基金代码 | 名称 |
|----------|------|
| 012345 | Fund A |
| 054321 | Fund B |
| 012345 | Fund A again |
| 680136 | Fund C |
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis_report.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp report: %v", err)
	}
	return path
}

func TestExtractCodesOrderedUnique(t *testing.T) {
	codes, err := ExtractCodes(writeTemp(t, sampleReport), 0)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	want := []string{"012345", "054321", "680136"}
	if len(codes) != len(want) {
		t.Fatalf("expected %v, got %v", want, codes)
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}

func TestExtractCodesLimit(t *testing.T) {
	codes, err := ExtractCodes(writeTemp(t, sampleReport), 2)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(codes) != 2 || codes[1] != "054321" {
		t.Fatalf("limit not applied: %v", codes)
	}
}

func TestExtractCodesMissingFileIsFatal(t *testing.T) {
	if _, err := ExtractCodes(filepath.Join(t.TempDir(), "absent.md"), 0); err == nil {
		t.Fatal("missing input report must be an error")
	}
}

func TestRenderRows(t *testing.T) {
	rsi := 55.234
	ratio := 1.016
	results := []pipeline.Result{
		{
			Code: "012345",
			Snapshot: &indicator.Snapshot{
				LatestValue: decimal.RequireFromString("1.2345"),
				RSI:         &rsi,
				MARatio:     &ratio,
			},
			Advice: advisor.BuyInBatches,
		},
		{
			Code: "054321",
			Snapshot: &indicator.Snapshot{
				LatestValue: decimal.RequireFromString("2.5"),
			},
			Advice: advisor.Observe,
		},
		{Code: "680136", Advice: advisor.NoData, Err: errors.New("fetch series: boom")},
	}

	out := Render(results, time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))

	if !strings.Contains(out, "| 012345 | 1.2345 | 55.23 | 1.02 | buy in batches |") {
		t.Fatalf("healthy row malformed:\n%s", out)
	}
	if !strings.Contains(out, "| 054321 | 2.5000 | N/A | N/A | observe |") {
		t.Fatalf("insufficient-data row malformed:\n%s", out)
	}
	if !strings.Contains(out, "| 680136 | data retrieval failed | - | - | no data |") {
		t.Fatalf("failed row malformed:\n%s", out)
	}
	if !strings.Contains(out, "funds processed: 3") {
		t.Fatalf("missing fund count:\n%s", out)
	}
}

func TestRenderEmptyPlaceholder(t *testing.T) {
	out := Render(nil, time.Now())
	if !strings.Contains(out, "| - | no data | - | - |") {
		t.Fatalf("missing placeholder row:\n%s", out)
	}
}

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	if err := Write(path, nil, time.Now()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if !strings.HasPrefix(string(content), "# Market Sentiment") {
		t.Fatalf("unexpected report header:\n%s", content)
	}
}
