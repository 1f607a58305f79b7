// Backtest Runner CLI
// Runs a signal strategy over historical bars and prints the trade report
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/internal/signal"
	"github.com/ksk-taka/stock-prediction-sub003/internal/strategy"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	strategyName = flag.String("strategy", "", "Strategy identifier (see internal/signal)")
	specFile     = flag.String("spec", "", "Strategy parameter spec file (YAML/JSON, overrides -strategy)")
	symbols      = flag.String("symbols", "", "Comma-separated list of symbols (required)")
	dataDir      = flag.String("data", "./data", "Directory of {SYMBOL}_{timeframe}.csv or .json bar files")
	timeframe    = flag.String("timeframe", "daily", "Bar timeframe (daily or weekly)")

	takeProfit   = flag.Float64("tp", 0, "Take-profit percent (0 disables)")
	stopLoss     = flag.Float64("sl", 0, "Stop-loss percent (0 disables)")
	trailingStop = flag.Float64("trail", 0, "Trailing-stop percent (0 disables)")

	outputFile = flag.String("output", "", "Output file for the report (optional)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *symbols == "" {
		fmt.Fprintln(os.Stderr, "Error: -symbols flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if *strategyName == "" && *specFile == "" {
		fmt.Fprintln(os.Stderr, "Error: one of -strategy or -spec is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background(), parseSymbols(*symbols)); err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}
	log.Info().Msg("Backtest completed successfully")
}

// ============================================================================
// BACKTEST EXECUTION
// ============================================================================

func run(ctx context.Context, symbolList []string) error {
	gen, params, err := resolveStrategy()
	if err != nil {
		return err
	}

	tf := market.Timeframe(*timeframe)
	rules := backtest.ExitRules{
		TakeProfitPct:   params.Get("take_profit_pct", *takeProfit),
		StopLossPct:     params.Get("stop_loss_pct", *stopLoss),
		TrailingStopPct: params.Get("trailing_stop_pct", *trailingStop),
	}

	log.Info().
		Str("strategy", string(gen.ID())).
		Strs("symbols", symbolList).
		Str("timeframe", *timeframe).
		Msg("Starting backtest")

	source := market.NewFileSource(*dataDir)
	var reports []string
	for _, symbol := range symbolList {
		bars, err := source.Bars(ctx, symbol, tf)
		if err != nil {
			return fmt.Errorf("load bars for %s: %w", symbol, err)
		}
		log.Info().Str("symbol", symbol).Int("bars", len(bars)).Msg("Loaded historical data")

		actions := gen.Compute(bars, params)
		result, err := backtest.Run(symbol, bars, actions, rules, tf)
		if err != nil {
			return fmt.Errorf("backtest %s: %w", symbol, err)
		}
		reports = append(reports, backtest.RenderReport(result))
	}

	full := strings.Join(reports, "\n")
	fmt.Println(full)

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(full), 0644); err != nil {
			log.Warn().Err(err).Str("file", *outputFile).Msg("Failed to write output file")
		} else {
			log.Info().Str("file", *outputFile).Msg("Report written to file")
		}
	}
	return nil
}

// resolveStrategy builds the generator and parameters from either a spec
// document or the -strategy flag
func resolveStrategy() (signal.Generator, backtest.ParamSet, error) {
	if *specFile != "" {
		spec, err := strategy.ImportFromFile(*specFile, strategy.DefaultImportOptions())
		if err != nil {
			return nil, nil, err
		}
		gen, err := spec.Generator()
		if err != nil {
			return nil, nil, err
		}
		return gen, spec.ParamSet(), nil
	}

	gen, err := signal.New(signal.StrategyID(*strategyName))
	if err != nil {
		return nil, nil, err
	}
	return gen, backtest.ParamSet{}, nil
}

// ============================================================================
// UTILITIES
// ============================================================================

func parseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
