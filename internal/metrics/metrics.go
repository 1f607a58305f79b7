package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Per-symbol scan failure categories (bounded set)
	FailureTimeout     = "timeout"
	FailureRateLimit   = "rate_limit"
	FailureCircuitOpen = "circuit_open"
	FailureNetwork     = "network"
	FailureNoData      = "no_data"
	FailureOther       = "other"
)

// NormalizeFetchError maps arbitrary fetch errors to the bounded failure set
func NormalizeFetchError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return FailureTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429") || strings.Contains(errStr, "too many"):
		return FailureRateLimit
	case strings.Contains(errStr, "circuit") || strings.Contains(errStr, "open state"):
		return FailureCircuitOpen
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return FailureNetwork
	case strings.Contains(errStr, "no data") || strings.Contains(errStr, "empty"):
		return FailureNoData
	default:
		return FailureOther
	}
}

// Scan Metrics
var (
	// Completed scan runs
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cwhscan_scans_total",
		Help: "Total number of completed scan runs",
	})

	// Symbols processed across all scans
	SymbolsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cwhscan_symbols_scanned_total",
		Help: "Total number of symbols processed",
	})

	// Per-symbol failures by category
	ScanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cwhscan_scan_failures_total",
		Help: "Per-symbol scan failures by category",
	}, []string{"reason"})

	// Detected patterns by maturity stage
	PatternsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cwhscan_patterns_detected_total",
		Help: "Cup-with-handle candidates detected by stage",
	}, []string{"stage"})

	// Scan wall time
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cwhscan_scan_duration_seconds",
		Help:    "Wall time of a full scan run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Backtest Metrics
var (
	// Engine runs (scans, grid search, walk-forward)
	BacktestsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cwhscan_backtests_total",
		Help: "Total number of backtest engine runs",
	})

	// Bar fetches served from the in-memory cache
	BarCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cwhscan_bar_cache_hits_total",
		Help: "Bar series requests served from the TTL cache",
	})
)
