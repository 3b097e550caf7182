package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fund-nav-monitor/internal/advisor"
	"fund-nav-monitor/internal/alerting"
	"fund-nav-monitor/internal/cache"
	"fund-nav-monitor/internal/config"
	"fund-nav-monitor/internal/fetcher"
	"fund-nav-monitor/internal/indicator"
	"fund-nav-monitor/internal/pipeline"
	"fund-nav-monitor/internal/report"
	"fund-nav-monitor/internal/scheduler"
	"fund-nav-monitor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() (fetcher.SeriesFetcher, error) {
	src := a.Config.Source
	switch src.Strategy {
	case fetcher.StrategyBulk:
		return fetcher.NewBulk(fetcher.BulkOptions{
			BaseURL:   src.BaseURL,
			PageSize:  src.PageSize,
			Timeout:   src.RequestTimeout,
			UserAgent: src.UserAgent,
			Referer:   src.Referer,
		}, a.Logger), nil
	case fetcher.StrategyPage:
		return fetcher.NewPage(fetcher.PageOptions{
			BaseURL:   src.BaseURL,
			Timeout:   src.RequestTimeout,
			UserAgent: src.UserAgent,
		}, a.Logger), nil
	case fetcher.StrategyPaged:
		return fetcher.NewPaged(fetcher.PagedOptions{
			BaseURL:      src.BaseURL,
			PageParam:    src.PageParam,
			FullPageSize: src.FullPageSize,
			MaxPages:     src.MaxPages,
			Timeout:      src.RequestTimeout,
			UserAgent:    src.UserAgent,
		}, a.Logger), nil
	}
	return nil, fmt.Errorf("unknown source strategy %q", src.Strategy)
}

func (a *App) newRetryPolicy() fetcher.RetryPolicy {
	return fetcher.RetryPolicy{
		MaxAttempts: a.Config.Retry.MaxAttempts,
		Delay:       a.Config.Retry.Delay,
		Retryable:   fetcher.IsTransient,
	}
}

func (a *App) newEngine() indicator.Engine {
	ind := a.Config.Indicators
	return indicator.NewEngine(indicator.Options{
		Window:     ind.Window,
		RSIPeriod:  ind.RSIPeriod,
		MAPeriod:   ind.MAPeriod,
		MinRecords: ind.MinRecords,
	})
}

func (a *App) thresholds() advisor.Thresholds {
	adv := a.Config.Advisory
	th := advisor.DefaultThresholds()
	if adv.RSIOverbought > 0 {
		th.RSIOverbought = adv.RSIOverbought
	}
	if adv.RSIOversold > 0 {
		th.RSIOversold = adv.RSIOversold
	}
	if adv.MAUpper > 0 {
		th.MAUpper = adv.MAUpper
	}
	if adv.MALower > 0 {
		th.MALower = adv.MALower
	}
	return th
}

// openCache builds the configured cache backend. The returned closer is nil
// for the file backend.
func (a *App) openCache(ctx context.Context) (cache.SeriesCache, storage.AdvisoryStore, func(), error) {
	switch a.Config.Cache.Backend {
	case cache.BackendFile:
		fc, err := cache.NewFileCache(a.Config.Cache.Dir, a.Logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return fc, nil, nil, nil
	case cache.BackendPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		store := storage.NewStore(pool)
		return store, store, store.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown cache backend %q", a.Config.Cache.Backend)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// Run executes one batch: extract codes, process every fund, write the
// report, dispatch the optional summary notification.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.runOnce(ctx, time.Now())
}

// Watch repeats batches on the configured cadence until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	err := sched.Run(ctx, a.runOnce)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) runOnce(ctx context.Context, at time.Time) error {
	codes, err := report.ExtractCodes(a.Config.Report.InputPath, a.Config.Report.MaxFunds)
	if err != nil {
		return err
	}
	if len(codes) == 0 {
		a.Logger.Warn().Str("path", a.Config.Report.InputPath).Msg("no fund codes found in analysis report")
	} else {
		a.Logger.Info().Int("funds", len(codes)).Msg("extracted fund codes")
	}

	seriesCache, advisoryStore, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if closeCache != nil {
		defer closeCache()
	}

	f, err := a.newFetcher()
	if err != nil {
		return err
	}

	pipe := pipeline.New(f, a.newRetryPolicy(), seriesCache, a.newEngine(), pipeline.Options{
		DelayMin:   a.Config.Pipeline.DelayMin,
		DelayMax:   a.Config.Pipeline.DelayMax,
		Thresholds: a.thresholds(),
	}, a.Logger)

	results := pipe.Run(ctx, codes)

	if err := report.Write(a.Config.Report.OutputPath, results, at); err != nil {
		return err
	}
	a.Logger.Info().Str("path", a.Config.Report.OutputPath).Int("rows", len(results)).Msg("report written")

	if advisoryStore != nil {
		a.recordResults(ctx, advisoryStore, at, results)
	}

	a.dispatchAlerts(ctx, at, results)
	return nil
}

func (a *App) recordResults(ctx context.Context, store storage.AdvisoryStore, at time.Time, results []pipeline.Result) {
	for _, res := range results {
		rec := storage.AdvisoryRecord{
			RunAt:    at,
			FundCode: res.Code,
			Advice:   string(res.Advice),
		}
		if res.Snapshot != nil {
			latest := res.Snapshot.LatestValue
			rec.LatestValue = &latest
			rec.RSI = res.Snapshot.RSI
			rec.MARatio = res.Snapshot.MARatio
		}
		if res.Err != nil {
			msg := res.Err.Error()
			rec.Error = &msg
		}
		if err := store.InsertAdvisoryResult(ctx, rec); err != nil {
			a.Logger.Error().Err(err).Str("fund", res.Code).Msg("failed to record advisory result")
		}
	}
}

func (a *App) dispatchAlerts(ctx context.Context, at time.Time, results []pipeline.Result) {
	if !a.Config.Alerting.Enabled {
		return
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return
	}

	wanted := make(map[string]struct{}, len(a.Config.Alerting.Advices))
	for _, advice := range a.Config.Alerting.Advices {
		wanted[advice] = struct{}{}
	}

	var actionable []pipeline.Result
	for _, res := range results {
		if _, ok := wanted[string(res.Advice)]; ok {
			actionable = append(actionable, res)
		}
	}
	if len(actionable) == 0 {
		return
	}

	note := alerting.Notification{RunAt: at, Results: actionable}
	if err := notifier.Notify(ctx, note); err != nil {
		a.Logger.Error().Err(err).Msg("failed to dispatch advisory notification")
	}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Fund  string
	Limit int
}

// ExportOptions hold parameters for exporting a fund's cached history.
type ExportOptions struct {
	Fund      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
