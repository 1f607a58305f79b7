// Bulk Scan CLI
// Runs the cup-with-handle detector across a symbol universe
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksk-taka/stock-prediction-sub003/internal/config"
	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
	"github.com/ksk-taka/stock-prediction-sub003/internal/scan"
	"github.com/ksk-taka/stock-prediction-sub003/internal/signal"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// ============================================================================
// CLI FLAGS
// ============================================================================

var (
	configFile   = flag.String("config", "", "Config file path (optional)")
	symbols      = flag.String("symbols", "", "Comma-separated symbol list")
	universeFile = flag.String("universe", "", "File with one symbol per line (alternative to -symbols)")
	dataDir      = flag.String("data", "./data", "Directory of {SYMBOL}_{timeframe}.csv or .json bar files")
	strategyName = flag.String("strategy", "", "Optional strategy to backtest on each hit")
	jsonOutput   = flag.String("json", "", "Write the full report as JSON to this file")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
)

// ============================================================================
// MAIN
// ============================================================================

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level := cfg.App.LogLevel
	if *verbose {
		level = "debug"
	}
	config.InitLogger(level, cfg.App.LogFormat)

	symbolList, err := resolveUniverse()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve symbol universe")
	}

	if cfg.Monitoring.EnableMetrics {
		go serveMetrics(cfg.Monitoring.PrometheusPort)
	}

	if err := run(context.Background(), cfg, symbolList); err != nil {
		log.Fatal().Err(err).Msg("Scan failed")
	}
}

// ============================================================================
// SCAN EXECUTION
// ============================================================================

func run(ctx context.Context, cfg *config.Config, symbolList []string) error {
	// Layer the source: file loader -> rate-limited scheduler -> TTL cache
	var source market.BarSource = market.NewFileSource(*dataDir)
	source = market.NewScheduledSource(source, cfg.Data.SchedulerConfig())
	source = market.NewCachedSource(source, cfg.Data.CacheTTL)

	scanCfg := scan.Config{
		Concurrency:   cfg.Scan.Concurrency,
		SymbolTimeout: cfg.Scan.SymbolTimeout,
		ScanTimeout:   cfg.Scan.ScanTimeout,
		Timeframe:     cfg.Scan.TimeframeValue(),
		Pattern:       cfg.Pattern.PatternConfigValue(),
	}
	if *strategyName != "" {
		scanCfg.Strategy = signal.StrategyID(*strategyName)
		scanCfg.StrategyParams = backtest.ParamSet{}
	}

	scanner, err := scan.New(source, scanCfg)
	if err != nil {
		return err
	}

	report, err := scanner.Run(ctx, symbolList)
	if err != nil {
		return err
	}

	fmt.Println(scan.RenderText(report))

	if *jsonOutput != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(*jsonOutput, data, 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info().Str("file", *jsonOutput).Msg("Report written to file")
	}
	return nil
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Msg("Metrics server stopped")
	}
}

// ============================================================================
// UTILITIES
// ============================================================================

func resolveUniverse() ([]string, error) {
	if *symbols != "" {
		var list []string
		for _, p := range strings.Split(*symbols, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				list = append(list, trimmed)
			}
		}
		return list, nil
	}
	if *universeFile == "" {
		return nil, fmt.Errorf("one of -symbols or -universe is required")
	}

	file, err := os.Open(*universeFile)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer file.Close()

	var list []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			list = append(list, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	return list, nil
}
