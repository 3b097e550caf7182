// Package indicator derives RSI and moving-average signals from a NAV
// series. "Undefined" is an explicit nil, never a NaN: NaN comparisons
// silently misbehave inside threshold logic downstream.
package indicator

import (
	"time"

	"github.com/shopspring/decimal"

	"fund-nav-monitor/internal/model"
)

// Snapshot is the per-fund indicator state derived from the most recent
// computation window. It is recomputed every run and never persisted.
type Snapshot struct {
	LatestDate  time.Time
	LatestValue decimal.Decimal
	RSI         *float64
	MARatio     *float64
}

// Options tune the computation window and indicator periods.
type Options struct {
	Window     int // most recent records considered
	RSIPeriod  int
	MAPeriod   int
	MinRecords int // below this, indicators are omitted rather than computed
}

// DefaultOptions: the last 100 records, RSI(14), MA(50), and no indicators
// below 14 records.
func DefaultOptions() Options {
	return Options{Window: 100, RSIPeriod: 14, MAPeriod: 50, MinRecords: 14}
}

// Engine computes indicator snapshots.
type Engine struct {
	opts Options
}

// NewEngine constructs an engine, filling unset options with defaults.
func NewEngine(opts Options) Engine {
	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.RSIPeriod <= 0 {
		opts.RSIPeriod = def.RSIPeriod
	}
	if opts.MAPeriod <= 0 {
		opts.MAPeriod = def.MAPeriod
	}
	if opts.MinRecords <= 0 {
		opts.MinRecords = def.MinRecords
	}
	return Engine{opts: opts}
}

// Snapshot derives the indicator state from a merged series. Series shorter
// than the minimum report the latest value with both indicators undefined;
// that is insufficient data, not a fault.
func (e Engine) Snapshot(series model.Series) *Snapshot {
	if len(series) == 0 {
		return nil
	}

	window := series.Window(e.opts.Window)
	latest := window.Latest()
	snap := &Snapshot{LatestDate: latest.Date, LatestValue: latest.Value}

	if len(window) < e.opts.MinRecords {
		return snap
	}

	values := window.Values()
	snap.RSI = RSI(values, e.opts.RSIPeriod)
	snap.MARatio = MARatio(values, e.opts.MAPeriod)
	return snap
}

// RSI returns the final relative-strength-index value over the series using
// growing-window simple averages: the trailing mean of gains and losses uses
// up to period observations, never fewer than one. A zero trailing loss
// average leaves RSI undefined.
func RSI(values []float64, period int) *float64 {
	if period <= 0 || len(values) < 2 {
		return nil
	}

	gains := make([]float64, 0, len(values)-1)
	losses := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	avgGain := trailingMean(gains, period)
	avgLoss := trailingMean(losses, period)
	if avgLoss == 0 {
		return nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)
	return &rsi
}

// MA returns the trailing simple moving average over min(period,
// len(values)) observations, or 0 for an empty series.
func MA(values []float64, period int) float64 {
	return trailingMean(values, period)
}

// MARatio returns latest/MA where MA is the trailing mean over
// min(period, len(values)) observations. Undefined when the MA is zero.
func MARatio(values []float64, period int) *float64 {
	if len(values) == 0 {
		return nil
	}
	ma := trailingMean(values, period)
	if ma == 0 {
		return nil
	}
	ratio := values[len(values)-1] / ma
	return &ratio
}

func trailingMean(values []float64, window int) float64 {
	if len(values) == 0 {
		return 0
	}
	if window > len(values) {
		window = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}
