// Package report handles the two document edges of the system: pulling fund
// codes out of an upstream analysis report and writing the advisory report.
package report

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"fund-nav-monitor/internal/advisor"
	"fund-nav-monitor/internal/pipeline"
)

// Fund codes appear as the first cell of a markdown table row, e.g.
// "| 012345 | some fund | ... |".
var codePattern = regexp.MustCompile(`\|\s*(\d{6})\s*\|`)

// ExtractCodes reads the analysis report and returns the fund codes it
// references, first-seen order, de-duplicated. limit > 0 caps the count.
// A missing or unreadable file is fatal to the run.
func ExtractCodes(path string, limit int) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis report %s: %w", path, err)
	}

	matches := codePattern.FindAllStringSubmatch(string(content), -1)
	seen := make(map[string]struct{}, len(matches))
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		code := m[1]
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		if limit > 0 && len(codes) == limit {
			break
		}
	}
	return codes, nil
}

// Render produces the advisory report as markdown. Every requested fund gets
// exactly one row; failed funds carry an explicit marker instead of being
// dropped.
func Render(results []pipeline.Result, generatedAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("# Market Sentiment & Technical Indicator Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", generatedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("## Fund technical indicators (funds processed: %d)\n", len(results)))
	sb.WriteString("| Fund | Latest NAV | RSI | NAV/MA | Advice |\n")
	sb.WriteString("|------|------------|-----|--------|--------|\n")

	if len(results) == 0 {
		sb.WriteString("| - | no data | - | - | check the analysis report for fund codes |\n")
		return sb.String()
	}

	for _, res := range results {
		if res.Err != nil || res.Snapshot == nil {
			sb.WriteString(fmt.Sprintf("| %s | data retrieval failed | - | - | %s |\n", res.Code, advisor.NoData.Label()))
			continue
		}
		snap := res.Snapshot
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			res.Code,
			snap.LatestValue.StringFixed(4),
			formatIndicator(snap.RSI),
			formatIndicator(snap.MARatio),
			res.Advice.Label(),
		))
	}
	return sb.String()
}

// Write renders the report to path.
func Write(path string, results []pipeline.Result, generatedAt time.Time) error {
	if err := os.WriteFile(path, []byte(Render(results, generatedAt)), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

func formatIndicator(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}
