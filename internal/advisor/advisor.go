// Package advisor maps an indicator snapshot to one advisory bucket.
package advisor

import "fund-nav-monitor/internal/indicator"

// Advice is the advisory bucket assigned to a fund.
type Advice string

const (
	WaitForPullback Advice = "wait_for_pullback"
	BuyInBatches    Advice = "buy_in_batches"
	Accumulate      Advice = "accumulate"
	Observe         Advice = "observe"
	// NoData marks funds whose acquisition failed entirely.
	NoData Advice = "no_data"
)

// Label returns the human-readable report wording.
func (a Advice) Label() string {
	switch a {
	case WaitForPullback:
		return "wait for pullback"
	case BuyInBatches:
		return "buy in batches"
	case Accumulate:
		return "accumulate"
	case Observe:
		return "observe"
	case NoData:
		return "no data"
	}
	return string(a)
}

// Thresholds are the rule boundaries, configurable around the observed
// defaults.
type Thresholds struct {
	RSIOverbought float64
	RSIOversold   float64
	MAUpper       float64
	MALower       float64
}

// DefaultThresholds are the classic RSI 30/70 bands and a 20% stretch
// either side of the moving average.
func DefaultThresholds() Thresholds {
	return Thresholds{RSIOverbought: 70, RSIOversold: 30, MAUpper: 1.2, MALower: 0.8}
}

// Classify applies the advisory rules in strict precedence. An undefined
// indicator never triggers a rule on its own, but does not stop its sibling
// from being checked: rsi=75 with an undefined ratio is still a pullback
// wait, both-undefined falls through to observe.
func Classify(snap *indicator.Snapshot, th Thresholds) Advice {
	if snap == nil {
		return NoData
	}

	rsi := snap.RSI
	ratio := snap.MARatio

	if (rsi != nil && *rsi > th.RSIOverbought) || (ratio != nil && *ratio > th.MAUpper) {
		return WaitForPullback
	}

	rsiNeutral := rsi == nil || (*rsi >= th.RSIOversold && *rsi <= th.RSIOverbought)
	ratioNeutral := ratio == nil || (*ratio >= th.MALower && *ratio <= th.MAUpper)
	if rsiNeutral && ratioNeutral && (rsi != nil || ratio != nil) {
		return BuyInBatches
	}

	if rsi != nil && *rsi < th.RSIOversold {
		return Accumulate
	}

	return Observe
}
