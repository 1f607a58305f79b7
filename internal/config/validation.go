package config

import "fmt"

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

var validTimeframes = map[string]bool{
	"daily":  true,
	"weekly": true,
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if !validEnvironments[c.App.Environment] {
		return fmt.Errorf("invalid environment %q (must be development, staging or production)", c.App.Environment)
	}
	if c.App.LogFormat != "json" && c.App.LogFormat != "console" {
		return fmt.Errorf("invalid log format %q (must be json or console)", c.App.LogFormat)
	}

	if c.Data.RequestsPerSecond <= 0 {
		return fmt.Errorf("data.requests_per_second must be positive")
	}
	if c.Data.Burst < 1 {
		return fmt.Errorf("data.burst must be at least 1")
	}
	if c.Data.BreakerFailureRatio <= 0 || c.Data.BreakerFailureRatio > 1 {
		return fmt.Errorf("data.breaker_failure_ratio must be in (0, 1]")
	}

	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("scan.concurrency must be at least 1")
	}
	if !validTimeframes[c.Scan.Timeframe] {
		return fmt.Errorf("invalid timeframe %q (must be daily or weekly)", c.Scan.Timeframe)
	}
	if c.Scan.SymbolTimeout <= 0 || c.Scan.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeouts must be positive")
	}

	if err := c.Pattern.validate(); err != nil {
		return err
	}

	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}

	if c.Optimizer.Parallelism < 1 {
		return fmt.Errorf("optimizer.parallelism must be at least 1")
	}
	if c.Optimizer.TrainBars < 1 || c.Optimizer.TestBars < 1 {
		return fmt.Errorf("optimizer train/test bars must be positive")
	}

	if c.Monitoring.PrometheusPort < 1 || c.Monitoring.PrometheusPort > 65535 {
		return fmt.Errorf("monitoring.prometheus_port must be a valid port")
	}
	return nil
}

func (p *PatternConfig) validate() error {
	if p.PivotLookback < 1 {
		return fmt.Errorf("pattern.pivot_lookback must be at least 1")
	}
	if p.MinCupDepthPct <= 0 || p.MinCupDepthPct >= p.MaxCupDepthPct {
		return fmt.Errorf("pattern cup depth bounds must satisfy 0 < min < max")
	}
	if p.MinCupBars < 1 || p.MinCupBars >= p.MaxCupBars {
		return fmt.Errorf("pattern cup duration bounds must satisfy 0 < min < max")
	}
	if p.RimTolerancePct <= 0 {
		return fmt.Errorf("pattern.rim_tolerance_pct must be positive")
	}
	if p.MinHandlePullbackPct <= 0 || p.MinHandlePullbackPct >= p.MaxHandlePullbackPct {
		return fmt.Errorf("pattern handle pullback bounds must satisfy 0 < min < max")
	}
	if p.MaxHandleBars < 1 {
		return fmt.Errorf("pattern.max_handle_bars must be at least 1")
	}
	if p.ReadyThresholdPct <= 0 {
		return fmt.Errorf("pattern.ready_threshold_pct must be positive")
	}
	return nil
}
