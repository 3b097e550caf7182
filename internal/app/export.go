package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fund-nav-monitor/internal/indicator"
	"fund-nav-monitor/internal/model"
)

// Export renders a fund's cached NAV history as CSV and/or a PNG chart with
// the moving average overlaid.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Fund == "" {
		return errors.New("--fund is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	seriesCache, _, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	series, err := seriesCache.Load(ctx, opts.Fund)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no cached records for fund %s", opts.Fund)
	}

	series = downsampleSeries(series, opts.MaxPoints)
	a.Logger.Info().Str("fund", opts.Fund).Int("records", len(series)).Msg("exporting cached series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, series); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := a.writeSeriesPNG(opts.PNGPath, opts.Fund, series); err != nil {
			return err
		}
	}
	return nil
}

func downsampleSeries(series model.Series, max int) model.Series {
	if max <= 0 || len(series) <= max {
		return series
	}

	result := make(model.Series, 0, max)
	step := float64(len(series)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(series) {
			idx = len(series) - 1
		}
		result = append(result, series[idx])
	}
	return result
}

func writeSeriesCSV(path string, series model.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"date", "value"}); err != nil {
		return err
	}
	for _, r := range series {
		if err := writer.Write([]string{r.Date.Format("2006-01-02"), r.Value.String()}); err != nil {
			return err
		}
	}
	return writer.Error()
}

func (a *App) writeSeriesPNG(path, fund string, series model.Series) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	maPeriod := a.Config.Indicators.MAPeriod
	if maPeriod <= 0 {
		maPeriod = 50
	}

	x := make([]time.Time, len(series))
	nav := make([]float64, len(series))
	ma := make([]float64, len(series))
	values := series.Values()
	for i, r := range series {
		x[i] = r.Date
		nav[i] = values[i]
		ma[i] = indicator.MA(values[:i+1], maPeriod)
	}

	navFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "NAV",
			ValueFormatter: navFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    fund,
				XValues: x,
				YValues: nav,
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("MA%d", maPeriod),
				XValues: x,
				YValues: ma,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
