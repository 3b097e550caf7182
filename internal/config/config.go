package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fund-nav-monitor/internal/cache"
	"fund-nav-monitor/internal/fetcher"
	"fund-nav-monitor/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Report     ReportConfig     `mapstructure:"report"`
	Source     SourceConfig     `mapstructure:"source"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Indicators IndicatorConfig  `mapstructure:"indicators"`
	Advisory   AdvisoryConfig   `mapstructure:"advisory"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ReportConfig points at the input analysis report and the output document.
type ReportConfig struct {
	InputPath  string `mapstructure:"input_path"`
	OutputPath string `mapstructure:"output_path"`
	MaxFunds   int    `mapstructure:"max_funds"`
}

// SourceConfig selects and tunes the NAV source strategy.
type SourceConfig struct {
	Strategy       string        `mapstructure:"strategy"`
	BaseURL        string        `mapstructure:"base_url"`
	Referer        string        `mapstructure:"referer"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PageSize       int           `mapstructure:"page_size"`
	PageParam      string        `mapstructure:"page_param"`
	FullPageSize   int           `mapstructure:"full_page_size"`
	MaxPages       int           `mapstructure:"max_pages"`
}

// RetryConfig bounds retries of transient fetch failures.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// CacheConfig selects the NAV cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the postgres
// cache backend.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// PipelineConfig tunes the batch run.
type PipelineConfig struct {
	DelayMin time.Duration `mapstructure:"delay_min"`
	DelayMax time.Duration `mapstructure:"delay_max"`
}

// IndicatorConfig tunes the computation window and periods.
type IndicatorConfig struct {
	Window     int `mapstructure:"window"`
	RSIPeriod  int `mapstructure:"rsi_period"`
	MAPeriod   int `mapstructure:"ma_period"`
	MinRecords int `mapstructure:"min_records"`
}

// AdvisoryConfig sets the classifier rule boundaries.
type AdvisoryConfig struct {
	RSIOverbought float64 `mapstructure:"rsi_overbought"`
	RSIOversold   float64 `mapstructure:"rsi_oversold"`
	MAUpper       float64 `mapstructure:"ma_upper"`
	MALower       float64 `mapstructure:"ma_lower"`
}

// AlertingConfig defines post-run notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Advices  []string       `mapstructure:"advices"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SchedulerConfig governs watch-mode cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NAVMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "navmonitor")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("report.input_path", "analysis_report.md")
	v.SetDefault("report.output_path", "market_monitor_report.md")
	v.SetDefault("report.max_funds", 0)

	v.SetDefault("source.strategy", fetcher.StrategyPage)
	v.SetDefault("source.base_url", "https://www.dayfund.cn/fundvalue")
	v.SetDefault("source.request_timeout", "30s")
	v.SetDefault("source.page_size", 1000)
	v.SetDefault("source.page_param", "page")
	v.SetDefault("source.full_page_size", 20)
	v.SetDefault("source.max_pages", 200)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", "2s")

	v.SetDefault("cache.backend", cache.BackendFile)
	v.SetDefault("cache.dir", "nav_cache")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("pipeline.delay_min", "1s")
	v.SetDefault("pipeline.delay_max", "2s")

	v.SetDefault("indicators.window", 100)
	v.SetDefault("indicators.rsi_period", 14)
	v.SetDefault("indicators.ma_period", 50)
	v.SetDefault("indicators.min_records", 14)

	v.SetDefault("advisory.rsi_overbought", 70.0)
	v.SetDefault("advisory.rsi_oversold", 30.0)
	v.SetDefault("advisory.ma_upper", 1.2)
	v.SetDefault("advisory.ma_lower", 0.8)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.advices", []string{"accumulate", "wait_for_pullback"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_start", false)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Source.Strategy {
	case fetcher.StrategyBulk, fetcher.StrategyPage, fetcher.StrategyPaged:
	default:
		return fmt.Errorf("source.strategy must be one of bulk, page, paged")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Report.InputPath == "" {
		return fmt.Errorf("report.input_path is required")
	}
	if c.Report.OutputPath == "" {
		return fmt.Errorf("report.output_path is required")
	}
	switch c.Cache.Backend {
	case cache.BackendFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	case cache.BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("cache.backend must be file or postgres")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be greater than zero")
	}
	if c.Pipeline.DelayMax < c.Pipeline.DelayMin {
		return fmt.Errorf("pipeline.delay_max must not be below pipeline.delay_min")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
