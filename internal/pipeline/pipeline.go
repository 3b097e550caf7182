// Package pipeline runs the per-fund acquisition, caching, and advisory
// sequence. Funds are processed strictly one at a time; one fund's failure
// never aborts the batch.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"fund-nav-monitor/internal/advisor"
	"fund-nav-monitor/internal/cache"
	"fund-nav-monitor/internal/fetcher"
	"fund-nav-monitor/internal/indicator"
	"fund-nav-monitor/internal/model"
)

// Result is one fund's outcome for a run. Err is set when acquisition
// failed; the report still carries one row per requested fund.
type Result struct {
	Code     string
	Snapshot *indicator.Snapshot
	Advice   advisor.Advice
	Err      error
}

// Options tune the batch run.
type Options struct {
	// Courtesy delay drawn uniformly from [DelayMin, DelayMax] between
	// funds, easing load on the remote source. Zero disables it.
	DelayMin   time.Duration
	DelayMax   time.Duration
	Thresholds advisor.Thresholds
}

// Pipeline wires a fetch strategy, a cache backend, and the indicator
// engine into one sequential batch.
type Pipeline struct {
	fetcher fetcher.SeriesFetcher
	retry   fetcher.RetryPolicy
	cache   cache.SeriesCache
	engine  indicator.Engine
	opts    Options
	logger  zerolog.Logger
	rng     *rand.Rand
}

// New constructs a pipeline.
func New(f fetcher.SeriesFetcher, retry fetcher.RetryPolicy, c cache.SeriesCache, engine indicator.Engine, opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		fetcher: f,
		retry:   retry,
		cache:   c,
		engine:  engine,
		opts:    opts,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes every fund in order and returns one result per fund.
func (p *Pipeline) Run(ctx context.Context, codes []string) []Result {
	results := make([]Result, 0, len(codes))

	for i, code := range codes {
		p.logger.Info().Str("fund", code).Int("index", i+1).Int("total", len(codes)).Msg("processing fund")

		snap, err := p.processFund(ctx, code)
		if err != nil {
			p.logger.Error().Err(err).Str("fund", code).Msg("fund failed for this run")
			results = append(results, Result{Code: code, Advice: advisor.NoData, Err: err})
		} else {
			advice := advisor.Classify(snap, p.opts.Thresholds)
			p.logResult(code, snap, advice)
			results = append(results, Result{Code: code, Snapshot: snap, Advice: advice})
		}

		if i < len(codes)-1 {
			if err := p.courtesyDelay(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("run cancelled between funds")
				for _, rest := range codes[i+1:] {
					results = append(results, Result{Code: rest, Advice: advisor.NoData, Err: err})
				}
				break
			}
		}
	}

	return results
}

func (p *Pipeline) processFund(ctx context.Context, code string) (*indicator.Snapshot, error) {
	cached, err := p.cache.Load(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}

	var since *time.Time
	if len(cached) > 0 {
		frontier := cached.MaxDate()
		since = &frontier
	}

	var fetched model.Series
	fetchErr := p.retry.Do(ctx, p.logger.With().Str("fund", code).Logger(), func(ctx context.Context) error {
		series, err := p.fetcher.FetchSeries(ctx, code, since)
		if err != nil {
			return err
		}
		fetched = series
		return nil
	})
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch series: %w", fetchErr)
	}

	combined, delta := model.Merge(cached, fetched)
	if len(combined) == 0 {
		return nil, fmt.Errorf("no records for fund %s", code)
	}

	if len(delta) > 0 {
		// A persist failure loses the delta for next run but the indicators
		// for this run are still sound, so log and carry on.
		if err := p.cache.AppendDelta(ctx, code, delta); err != nil {
			p.logger.Error().Err(err).Str("fund", code).Int("records", len(delta)).Msg("failed to persist cache delta")
		}
	} else {
		p.logger.Debug().Str("fund", code).Msg("cache already current, no new records")
	}

	return p.engine.Snapshot(combined), nil
}

func (p *Pipeline) logResult(code string, snap *indicator.Snapshot, advice advisor.Advice) {
	evt := p.logger.Info().Str("fund", code).Str("advice", string(advice))
	if snap != nil {
		evt = evt.Str("latest", snap.LatestValue.StringFixed(4))
		if snap.RSI != nil {
			evt = evt.Float64("rsi", *snap.RSI)
		}
		if snap.MARatio != nil {
			evt = evt.Float64("ma_ratio", *snap.MARatio)
		}
	}
	evt.Msg("fund classified")
}

func (p *Pipeline) courtesyDelay(ctx context.Context) error {
	if p.opts.DelayMax <= 0 || p.opts.DelayMax < p.opts.DelayMin {
		return ctx.Err()
	}
	delay := p.opts.DelayMin
	if span := p.opts.DelayMax - p.opts.DelayMin; span > 0 {
		delay += time.Duration(p.rng.Int63n(int64(span) + 1))
	}
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
