package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/internal/pattern"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Data       DataConfig       `mapstructure:"data"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Pattern    PatternConfig    `mapstructure:"pattern"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Optimizer  OptimizerConfig  `mapstructure:"optimizer"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DataConfig contains bar-source scheduling and caching settings
type DataConfig struct {
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
	MaxRetries          uint64        `mapstructure:"max_retries"`
	InitialIntervalMS   int           `mapstructure:"initial_interval_ms"`
	BreakerMinRequests  uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio float64       `mapstructure:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `mapstructure:"breaker_open_timeout"`
}

// ScanConfig contains scan orchestration settings
type ScanConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	SymbolTimeout time.Duration `mapstructure:"symbol_timeout"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout"`
	Timeframe     string        `mapstructure:"timeframe"` // "daily" or "weekly"
}

// PatternConfig contains cup-with-handle detection thresholds
type PatternConfig struct {
	PivotLookback        int     `mapstructure:"pivot_lookback"`
	MinCupDepthPct       float64 `mapstructure:"min_cup_depth_pct"`
	MaxCupDepthPct       float64 `mapstructure:"max_cup_depth_pct"`
	MinCupBars           int     `mapstructure:"min_cup_bars"`
	MaxCupBars           int     `mapstructure:"max_cup_bars"`
	RimTolerancePct      float64 `mapstructure:"rim_tolerance_pct"`
	MinHandlePullbackPct float64 `mapstructure:"min_handle_pullback_pct"`
	MaxHandlePullbackPct float64 `mapstructure:"max_handle_pullback_pct"`
	MaxHandleBars        int     `mapstructure:"max_handle_bars"`
	ReadyThresholdPct    float64 `mapstructure:"ready_threshold_pct"`
}

// BacktestConfig contains backtest engine settings
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
}

// OptimizerConfig contains grid-search and walk-forward settings
type OptimizerConfig struct {
	Parallelism int `mapstructure:"parallelism"`
	TrainBars   int `mapstructure:"train_bars"`
	TestBars    int `mapstructure:"test_bars"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("CWHSCAN")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "cwhscan")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Data defaults (conservative for a free-tier upstream)
	v.SetDefault("data.cache_ttl", "15m")
	v.SetDefault("data.requests_per_second", 2.0)
	v.SetDefault("data.burst", 1)
	v.SetDefault("data.max_retries", 3)
	v.SetDefault("data.initial_interval_ms", 500)
	v.SetDefault("data.breaker_min_requests", 5)
	v.SetDefault("data.breaker_failure_ratio", 0.6)
	v.SetDefault("data.breaker_open_timeout", "30s")

	// Scan defaults
	v.SetDefault("scan.concurrency", 8)
	v.SetDefault("scan.symbol_timeout", "30s")
	v.SetDefault("scan.scan_timeout", "10m")
	v.SetDefault("scan.timeframe", "daily")

	// Pattern defaults mirror pattern.DefaultConfig
	def := pattern.DefaultConfig()
	v.SetDefault("pattern.pivot_lookback", def.PivotLookback)
	v.SetDefault("pattern.min_cup_depth_pct", def.MinCupDepthPct)
	v.SetDefault("pattern.max_cup_depth_pct", def.MaxCupDepthPct)
	v.SetDefault("pattern.min_cup_bars", def.MinCupBars)
	v.SetDefault("pattern.max_cup_bars", def.MaxCupBars)
	v.SetDefault("pattern.rim_tolerance_pct", def.RimTolerancePct)
	v.SetDefault("pattern.min_handle_pullback_pct", def.MinHandlePullbackPct)
	v.SetDefault("pattern.max_handle_pullback_pct", def.MaxHandlePullbackPct)
	v.SetDefault("pattern.max_handle_bars", def.MaxHandleBars)
	v.SetDefault("pattern.ready_threshold_pct", def.ReadyThresholdPct)

	// Backtest defaults
	v.SetDefault("backtest.initial_capital", 10000.0)

	// Optimizer defaults
	v.SetDefault("optimizer.parallelism", 4)
	v.SetDefault("optimizer.train_bars", 252)
	v.SetDefault("optimizer.test_bars", 63)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// Timeframe converts the configured timeframe string
func (c *ScanConfig) TimeframeValue() market.Timeframe {
	if c.Timeframe == string(market.TimeframeWeekly) {
		return market.TimeframeWeekly
	}
	return market.TimeframeDaily
}

// SchedulerConfig converts the data section for the fetch scheduler
func (c *DataConfig) SchedulerConfig() market.SchedulerConfig {
	return market.SchedulerConfig{
		RequestsPerSecond:   c.RequestsPerSecond,
		Burst:               c.Burst,
		MaxRetries:          c.MaxRetries,
		InitialInterval:     time.Duration(c.InitialIntervalMS) * time.Millisecond,
		BreakerMinRequests:  c.BreakerMinRequests,
		BreakerFailureRatio: c.BreakerFailureRatio,
		BreakerOpenTimeout:  c.BreakerOpenTimeout,
	}
}

// PatternConfigValue converts the pattern section for the detector
func (c *PatternConfig) PatternConfigValue() pattern.Config {
	return pattern.Config{
		PivotLookback:        c.PivotLookback,
		MinCupDepthPct:       c.MinCupDepthPct,
		MaxCupDepthPct:       c.MaxCupDepthPct,
		MinCupBars:           c.MinCupBars,
		MaxCupBars:           c.MaxCupBars,
		RimTolerancePct:      c.RimTolerancePct,
		MinHandlePullbackPct: c.MinHandlePullbackPct,
		MaxHandlePullbackPct: c.MaxHandlePullbackPct,
		MaxHandleBars:        c.MaxHandleBars,
		ReadyThresholdPct:    c.ReadyThresholdPct,
	}
}
