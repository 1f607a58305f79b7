// Walk-forward analysis with train/test window separation
package backtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

// ============================================================================
// WINDOWS
// ============================================================================

// Window is one sequential (train, test) pair of bar index ranges,
// half-open [start, end)
type Window struct {
	ID         int `json:"id"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

// splitWindows slices n bars into consecutive train/test windows, stepping
// forward by the test length each time
func splitWindows(n, trainBars, testBars int) []Window {
	var windows []Window
	id := 0
	for start := 0; start+trainBars+testBars <= n; start += testBars {
		windows = append(windows, Window{
			ID:         id,
			TrainStart: start,
			TrainEnd:   start + trainBars,
			TestStart:  start + trainBars,
			TestEnd:    start + trainBars + testBars,
		})
		id++
	}
	return windows
}

// ============================================================================
// RESULTS
// ============================================================================

// WindowResult records one walk-forward window: the parameters chosen on the
// train slice and their untouched evaluation on the test slice. TestStats is
// computed from bars inside [TestStart, TestEnd) only.
type WindowResult struct {
	Window     Window   `json:"window"`
	BestParams ParamSet `json:"best_params"`
	TrainStats Stats    `json:"train_stats"`
	TestStats  Stats    `json:"test_stats"`
}

// StabilityResult scores one parameter combination's out-of-sample robustness
// across all windows
type StabilityResult struct {
	Params        ParamSet `json:"params"`
	TestMedianPct float64  `json:"test_median_pct"`
	TestMinPct    float64  `json:"test_min_pct"`
	TestStdPct    float64  `json:"test_std_pct"`
	OverfitDegree float64  `json:"overfit_degree"` // train median minus test median
	WindowsTraded int      `json:"windows_traded"`
	Score         float64  `json:"score"`
	Rank          int      `json:"rank"`
}

// WalkForwardReport is the outcome of a walk-forward run
type WalkForwardReport struct {
	Symbol    string            `json:"symbol"`
	Windows   []WindowResult    `json:"windows"`
	Stability []StabilityResult `json:"stability"` // ranked descending
	NoTrade   []ParamSet        `json:"no_trade"`  // zero trades across all test windows
	Rejected  []RejectedParams  `json:"rejected"`
	Duration  time.Duration     `json:"duration"`
}

// ============================================================================
// WALK-FORWARD OPTIMIZER
// ============================================================================

// WalkForward splits a symbol's history into sequential train/test windows,
// picks parameters with grid search on the train slice only, and evaluates
// those exact parameters once on the test slice. Signal computation for the
// test slice sees only test bars, so train data can never leak in.
type WalkForward struct {
	signalFn  SignalFunc
	validate  ValidateFunc
	grid      Grid
	timeframe market.Timeframe
	trainBars int
	testBars  int
	parallel  int
}

// NewWalkForward creates a walk-forward optimizer with the given window sizes
func NewWalkForward(signalFn SignalFunc, validate ValidateFunc, grid Grid, tf market.Timeframe, trainBars, testBars int) *WalkForward {
	return &WalkForward{
		signalFn:  signalFn,
		validate:  validate,
		grid:      grid,
		timeframe: tf,
		trainBars: trainBars,
		testBars:  testBars,
		parallel:  4,
	}
}

// SetParallelism sets the parallelism of the per-window grid searches
func (wf *WalkForward) SetParallelism(n int) {
	if n > 0 {
		wf.parallel = n
	}
}

// comboKey identifies a parameter combination across windows
func comboKey(ps ParamSet) string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%g;", name, ps[name])
	}
	return b.String()
}

// comboTrack accumulates one combination's per-window returns
type comboTrack struct {
	params       ParamSet
	trainReturns []float64
	testReturns  []float64
	testTrades   int
}

// Run performs the walk-forward analysis over one symbol's bars
func (wf *WalkForward) Run(ctx context.Context, symbol string, bars []market.Bar) (*WalkForwardReport, error) {
	startTime := time.Now()

	if wf.trainBars < 1 || wf.testBars < 1 {
		return nil, fmt.Errorf("invalid window sizes: train=%d test=%d", wf.trainBars, wf.testBars)
	}

	windows := splitWindows(len(bars), wf.trainBars, wf.testBars)
	if len(windows) == 0 {
		return nil, fmt.Errorf("insufficient history: %d bars for train=%d test=%d",
			len(bars), wf.trainBars, wf.testBars)
	}

	log.Info().
		Str("symbol", symbol).
		Int("bars", len(bars)).
		Int("windows", len(windows)).
		Int("grid_size", wf.grid.Size()).
		Msg("Starting walk-forward analysis")

	report := &WalkForwardReport{Symbol: symbol}
	tracks := make(map[string]*comboTrack)

	for _, window := range windows {
		trainSlice := bars[window.TrainStart:window.TrainEnd]
		testSlice := bars[window.TestStart:window.TestEnd]

		gridSearch := NewGridSearch(wf.signalFn, wf.validate, wf.grid, wf.timeframe)
		gridSearch.SetParallelism(wf.parallel)

		trainReport, err := gridSearch.Run(ctx, map[string][]market.Bar{symbol: trainSlice})
		if err != nil {
			return nil, fmt.Errorf("window %d train optimization: %w", window.ID, err)
		}
		if window.ID == 0 {
			report.Rejected = trainReport.Rejected
		}

		// Track every combination's train and test performance for the
		// stability ranking. Test evaluation uses the frozen parameters,
		// unmodified, on the test slice only.
		for _, combo := range append(trainReport.Results, trainReport.NoTrade...) {
			key := comboKey(combo.Params)
			track, ok := tracks[key]
			if !ok {
				track = &comboTrack{params: combo.Params}
				tracks[key] = track
			}
			track.trainReturns = append(track.trainReturns, combo.MeanReturnPct)

			testStats, err := wf.evaluate(symbol, testSlice, combo.Params)
			if err != nil {
				log.Warn().Err(err).Int("window", window.ID).Msg("Test evaluation failed")
				continue
			}
			track.testReturns = append(track.testReturns, testStats.TotalReturnPct)
			track.testTrades += testStats.NumTrades
		}

		best := trainReport.Best()
		if best == nil {
			log.Warn().
				Int("window", window.ID).
				Msg("No combination traded in train slice, skipping window result")
			continue
		}

		trainStats, err := wf.evaluate(symbol, trainSlice, best.Params)
		if err != nil {
			return nil, fmt.Errorf("window %d train evaluation: %w", window.ID, err)
		}
		testStats, err := wf.evaluate(symbol, testSlice, best.Params)
		if err != nil {
			return nil, fmt.Errorf("window %d test evaluation: %w", window.ID, err)
		}

		report.Windows = append(report.Windows, WindowResult{
			Window:     window,
			BestParams: best.Params,
			TrainStats: trainStats,
			TestStats:  testStats,
		})

		log.Info().
			Int("window", window.ID).
			Float64("train_return", trainStats.TotalReturnPct).
			Float64("test_return", testStats.TotalReturnPct).
			Msg("Walk-forward window complete")
	}

	report.Stability, report.NoTrade = rankStability(tracks)
	report.Duration = time.Since(startTime)

	log.Info().
		Int("windows", len(report.Windows)).
		Int("stable_combos", len(report.Stability)).
		Int("no_trade", len(report.NoTrade)).
		Dur("duration", report.Duration).
		Msg("Walk-forward analysis complete")

	return report, nil
}

// evaluate runs one backtest of params over a bar slice
func (wf *WalkForward) evaluate(symbol string, bars []market.Bar, params ParamSet) (Stats, error) {
	actions := wf.signalFn(bars, params)
	result, err := Run(symbol, bars, actions, RulesFromParams(params), wf.timeframe)
	if err != nil {
		return Stats{}, err
	}
	return result.Stats, nil
}

// Stability score weights over min-max-normalized components
const (
	weightTestMedian = 0.3
	weightTestMin    = 0.2
	weightInvStd     = 0.25
	weightInvOverfit = 0.25
)

// rankStability converts per-combination tracks into a ranked stability list
// plus the no-trade category
func rankStability(tracks map[string]*comboTrack) ([]StabilityResult, []ParamSet) {
	var results []StabilityResult
	var noTrade []ParamSet

	for _, track := range tracks {
		if track.testTrades == 0 {
			noTrade = append(noTrade, track.params)
			continue
		}
		if len(track.testReturns) == 0 {
			continue
		}

		testMedian := median(track.testReturns)
		results = append(results, StabilityResult{
			Params:        track.params,
			TestMedianPct: testMedian,
			TestMinPct:    minOf(track.testReturns),
			TestStdPct:    stdDev(track.testReturns),
			OverfitDegree: median(track.trainReturns) - testMedian,
			WindowsTraded: len(track.testReturns),
		})
	}

	scoreStability(results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	// Deterministic order for the no-trade list
	sort.Slice(noTrade, func(i, j int) bool {
		return comboKey(noTrade[i]) < comboKey(noTrade[j])
	})

	return results, noTrade
}

// scoreStability combines test-return median, test-return minimum, inverse
// test-return deviation and inverse overfit degree, each min-max normalized
// with the same degenerate-range rule as the grid composite score
func scoreStability(results []StabilityResult) {
	if len(results) == 0 {
		return
	}

	invStd := func(r StabilityResult) float64 { return 1 / (1 + r.TestStdPct) }
	invOverfit := func(r StabilityResult) float64 {
		return 1 / (1 + math.Max(0, r.OverfitDegree))
	}

	medianNorm := stabilityNormalizer(results, func(r StabilityResult) float64 { return r.TestMedianPct })
	minNorm := stabilityNormalizer(results, func(r StabilityResult) float64 { return r.TestMinPct })
	stdNorm := stabilityNormalizer(results, invStd)
	overfitNorm := stabilityNormalizer(results, invOverfit)

	for i := range results {
		r := &results[i]
		r.Score = weightTestMedian*medianNorm(r.TestMedianPct) +
			weightTestMin*minNorm(r.TestMinPct) +
			weightInvStd*stdNorm(invStd(*r)) +
			weightInvOverfit*overfitNorm(invOverfit(*r))
	}
}

// stabilityNormalizer mirrors normalizer for stability metrics
func stabilityNormalizer(results []StabilityResult, metric func(StabilityResult) float64) func(float64) float64 {
	minVal := metric(results[0])
	maxVal := minVal
	for _, r := range results[1:] {
		v := metric(r)
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	if maxVal == minVal {
		return func(float64) float64 { return 0.5 }
	}
	spread := maxVal - minVal
	return func(v float64) float64 { return (v - minVal) / spread }
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return math.Sqrt(sumSquaredDiff / float64(len(values)))
}
