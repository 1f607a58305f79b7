// Package scan runs the cup-with-handle detector, and optionally a strategy
// backtest, across a symbol universe with bounded concurrency.
package scan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/internal/metrics"
	"github.com/ksk-taka/stock-prediction-sub003/internal/pattern"
	"github.com/ksk-taka/stock-prediction-sub003/internal/signal"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// ===== DATA STRUCTURES =====

// Config controls one scan run.
type Config struct {
	Concurrency   int
	SymbolTimeout time.Duration
	ScanTimeout   time.Duration
	Timeframe     market.Timeframe
	Pattern       pattern.Config

	// Optional: backtest each symbol with this strategy alongside detection
	Strategy       signal.StrategyID
	StrategyParams backtest.ParamSet
}

// DefaultConfig returns sensible scan defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:   8,
		SymbolTimeout: 30 * time.Second,
		ScanTimeout:   10 * time.Minute,
		Timeframe:     market.TimeframeDaily,
		Pattern:       pattern.DefaultConfig(),
	}
}

// SymbolResult is one symbol's scan outcome.
type SymbolResult struct {
	Symbol   string              `json:"symbol"`
	Pattern  *pattern.CwhPattern `json:"pattern"`
	Backtest *backtest.Result    `json:"backtest,omitempty"`
	External map[string]float64  `json:"external,omitempty"`
}

// Failure records one symbol that could not be scanned.
type Failure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Report is the outcome of a full scan run.
type Report struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	TotalSymbols int            `json:"total_symbols"`
	Results      []SymbolResult `json:"results"`
	Failures     []Failure      `json:"failures"`
}

// ===== SCANNER =====

// Scanner fans the detector out over symbols via a shared bar source.
type Scanner struct {
	source    market.BarSource
	cfg       Config
	generator signal.Generator
	logger    zerolog.Logger
}

// New builds a scanner. When cfg.Strategy is set the strategy must exist.
func New(source market.BarSource, cfg Config) (*Scanner, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	s := &Scanner{
		source: source,
		cfg:    cfg,
		logger: log.With().Str("component", "scanner").Logger(),
	}
	if cfg.Strategy != "" {
		gen, err := signal.New(cfg.Strategy)
		if err != nil {
			return nil, fmt.Errorf("scanner strategy: %w", err)
		}
		s.generator = gen
	}
	return s, nil
}

// Run scans every symbol. One symbol's failure never aborts the batch:
// it is recorded in the failure list and the partial results are returned.
// Only the batch-level context bounds the whole run.
func (s *Scanner) Run(ctx context.Context, symbols []string) (*Report, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("scan: no symbols")
	}

	report := &Report{
		ID:           uuid.New().String(),
		StartedAt:    time.Now(),
		TotalSymbols: len(symbols),
	}
	s.logger.Info().
		Str("scan_id", report.ID).
		Int("symbols", len(symbols)).
		Str("timeframe", string(s.cfg.Timeframe)).
		Msg("Starting scan")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	type outcome struct {
		result  *SymbolResult
		failure *Failure
	}
	outcomes := make(chan outcome, len(symbols))

	// Workers write isolated outcome objects to the channel; no error is
	// returned so the group never cancels siblings
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			result, err := s.scanSymbol(gctx, symbol)
			if err != nil {
				metrics.ScanFailures.WithLabelValues(metrics.NormalizeFetchError(err)).Inc()
				outcomes <- outcome{failure: &Failure{Symbol: symbol, Reason: err.Error()}}
				return nil
			}
			outcomes <- outcome{result: result}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	// Sequential accumulation after all workers are done
	for o := range outcomes {
		switch {
		case o.failure != nil:
			report.Failures = append(report.Failures, *o.failure)
		case o.result != nil:
			report.Results = append(report.Results, *o.result)
		}
	}
	sortResults(report.Results)
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Symbol < report.Failures[j].Symbol
	})

	report.Duration = time.Since(report.StartedAt)
	metrics.ScansTotal.Inc()
	metrics.ScanDuration.Observe(report.Duration.Seconds())

	s.logger.Info().
		Str("scan_id", report.ID).
		Int("hits", len(report.Results)).
		Int("failures", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("Scan complete")
	return report, nil
}

// scanSymbol fetches bars and runs detection for one symbol under its own
// timeout.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string) (*SymbolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SymbolTimeout)
	defer cancel()

	bars, err := s.source.Bars(ctx, symbol, s.cfg.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	metrics.SymbolsScanned.Inc()

	detected := pattern.Detect(symbol, bars, s.cfg.Pattern)
	if detected == nil {
		return nil, nil
	}
	metrics.PatternsDetected.WithLabelValues(string(detected.Stage)).Inc()

	result := &SymbolResult{Symbol: symbol, Pattern: detected}
	if s.generator != nil {
		actions := s.generator.Compute(bars, s.cfg.StrategyParams)
		rules := backtest.RulesFromParams(s.cfg.StrategyParams)
		bt, err := backtest.Run(symbol, bars, actions, rules, s.cfg.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", symbol, err)
		}
		metrics.BacktestsRun.Inc()
		result.Backtest = bt
	}
	return result, nil
}
