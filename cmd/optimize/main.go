// Parameter Optimizer CLI
// Grid search and walk-forward analysis for tunable strategies
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
	"github.com/ksk-taka/stock-prediction-sub003/internal/strategy"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	specFile  = flag.String("spec", "", "Strategy parameter spec with grid ranges (required)")
	symbols   = flag.String("symbols", "", "Comma-separated symbol list (required)")
	dataDir   = flag.String("data", "./data", "Directory of {SYMBOL}_{timeframe}.csv or .json bar files")
	timeframe = flag.String("timeframe", "daily", "Bar timeframe (daily or weekly)")
	mode      = flag.String("mode", "grid", "Optimization mode (grid or walkforward)")

	trainBars = flag.Int("train", 252, "Walk-forward train window in bars")
	testBars  = flag.Int("test", 63, "Walk-forward test window in bars")
	parallel  = flag.Int("parallel", 4, "Concurrent backtests")
	topN      = flag.Int("top", 20, "Show the top N combinations (0 = all)")

	exportFile = flag.String("export", "", "Export the best parameters as a spec file (grid mode)")
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

	if *specFile == "" || *symbols == "" {
		fmt.Fprintln(os.Stderr, "Error: -spec and -symbols flags are required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Optimization failed")
	}
}

// ============================================================================
// OPTIMIZATION
// ============================================================================

func run(ctx context.Context) error {
	spec, err := strategy.ImportFromFile(*specFile, strategy.DefaultImportOptions())
	if err != nil {
		return err
	}
	gen, err := spec.Generator()
	if err != nil {
		return err
	}

	grid := fullGrid(spec)
	if len(grid) == 0 {
		return fmt.Errorf("spec %s has no grid ranges", *specFile)
	}

	tf := market.Timeframe(*timeframe)
	source := market.NewFileSource(*dataDir)

	data := make(map[string][]market.Bar)
	for _, symbol := range parseSymbols(*symbols) {
		bars, err := source.Bars(ctx, symbol, tf)
		if err != nil {
			return fmt.Errorf("load bars for %s: %w", symbol, err)
		}
		data[symbol] = bars
	}

	switch *mode {
	case "grid":
		return runGrid(ctx, spec, gen.Compute, grid, tf, data)
	case "walkforward":
		return runWalkForward(ctx, gen.Compute, grid, tf, data)
	default:
		return fmt.Errorf("unknown mode %q (grid or walkforward)", *mode)
	}
}

func runGrid(ctx context.Context, spec *strategy.Spec, signalFn backtest.SignalFunc,
	grid backtest.Grid, tf market.Timeframe, data map[string][]market.Bar) error {

	gs := backtest.NewGridSearch(signalFn, nil, grid, tf)
	gs.SetParallelism(*parallel)

	report, err := gs.Run(ctx, data)
	if err != nil {
		return err
	}
	fmt.Println(backtest.RenderGridReport(report, *topN))

	best := report.Best()
	if best == nil {
		log.Warn().Msg("No combination traded; nothing to export")
		return nil
	}
	log.Info().
		Int("rank", best.Rank).
		Float64("score", best.Score).
		Msg("Best combination")

	if *exportFile != "" {
		tuned := &strategy.Spec{
			Metadata: strategy.Metadata{
				Name:        spec.Metadata.Name + "-tuned",
				Description: "Grid search result",
				Source:      "optimizer",
			},
			Strategy: spec.Strategy,
			Params:   best.Params,
			Grid:     spec.Grid,
		}
		if err := strategy.ExportToFile(tuned, *exportFile, strategy.ExportOptions{}); err != nil {
			return fmt.Errorf("export tuned spec: %w", err)
		}
		log.Info().Str("file", *exportFile).Msg("Tuned spec exported")
	}
	return nil
}

func runWalkForward(ctx context.Context, signalFn backtest.SignalFunc,
	grid backtest.Grid, tf market.Timeframe, data map[string][]market.Bar) error {

	for symbol, bars := range data {
		wf := backtest.NewWalkForward(signalFn, nil, grid, tf, *trainBars, *testBars)
		wf.SetParallelism(*parallel)

		report, err := wf.Run(ctx, symbol, bars)
		if err != nil {
			return fmt.Errorf("walk-forward %s: %w", symbol, err)
		}
		fmt.Println(backtest.RenderWalkForwardReport(report, *topN))
	}
	return nil
}

// fullGrid extends the spec's grid with single-value ranges for every fixed
// parameter, so each combination carries the complete parameter set
func fullGrid(spec *strategy.Spec) backtest.Grid {
	grid := spec.SearchGrid()
	inGrid := make(map[string]bool, len(grid))
	for _, r := range grid {
		inGrid[r.Name] = true
	}
	for name, v := range spec.Params {
		if !inGrid[name] {
			grid = append(grid, backtest.ParamRange{Name: name, Values: []float64{v}})
		}
	}
	return grid
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
