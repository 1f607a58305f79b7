// Grid search parameter optimization
package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

// ============================================================================
// PARAMETER DEFINITION
// ============================================================================

// ParamSet is an immutable named numeric tuple. Mutate only through Clone.
type ParamSet map[string]float64

// Clone creates a copy of the parameter set
func (ps ParamSet) Clone() ParamSet {
	clone := make(ParamSet, len(ps))
	for k, v := range ps {
		clone[k] = v
	}
	return clone
}

// Get returns the named parameter or a default when absent
func (ps ParamSet) Get(name string, def float64) float64 {
	if v, ok := ps[name]; ok {
		return v
	}
	return def
}

// ParamRange is one named parameter with its ordered candidate values
type ParamRange struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Grid is the full parameter space for one strategy
type Grid []ParamRange

// Size returns the product of range cardinalities
func (g Grid) Size() int {
	size := 1
	for _, r := range g {
		size *= len(r.Values)
	}
	return size
}

// Combinations enumerates the Cartesian product of all candidate values
func (g Grid) Combinations() []ParamSet {
	if len(g) == 0 {
		return nil
	}
	return combine(g, 0, ParamSet{})
}

func combine(g Grid, idx int, current ParamSet) []ParamSet {
	if idx >= len(g) {
		return []ParamSet{current.Clone()}
	}

	var combos []ParamSet
	for _, v := range g[idx].Values {
		next := current.Clone()
		next[g[idx].Name] = v
		combos = append(combos, combine(g, idx+1, next)...)
	}
	return combos
}

// ============================================================================
// GRID SEARCH
// ============================================================================

// SignalFunc computes the per-bar action sequence for one symbol. It is the
// bridge between the optimizer and the strategy layer; implementations must
// be pure and strictly causal.
type SignalFunc func(bars []market.Bar, params ParamSet) []Action

// ValidateFunc rejects parameter combinations outside a strategy's valid
// domain before any backtest runs
type ValidateFunc func(params ParamSet) error

// RulesFromParams derives the engine exit rules from well-known parameter
// names so that exit thresholds are themselves tunable
func RulesFromParams(params ParamSet) ExitRules {
	return ExitRules{
		TakeProfitPct:   params.Get("take_profit_pct", 0),
		StopLossPct:     params.Get("stop_loss_pct", 0),
		TrailingStopPct: params.Get("trailing_stop_pct", 0),
	}
}

// CombinationResult aggregates one parameter combination across symbols
type CombinationResult struct {
	Params             ParamSet `json:"params"`
	NumTrades          int      `json:"num_trades"`
	NumWins            int      `json:"num_wins"`
	MeanReturnPct      float64  `json:"mean_return_pct"`   // mean of per-symbol total returns
	MedianReturnPct    float64  `json:"median_return_pct"` // median of per-symbol total returns
	WinRate            float64  `json:"win_rate"`
	PctPositiveSymbols float64  `json:"pct_positive_symbols"`
	Score              float64  `json:"score"`
	Rank               int      `json:"rank"`
}

// RejectedParams records a combination excluded before execution
type RejectedParams struct {
	Params ParamSet `json:"params"`
	Reason string   `json:"reason"`
}

// GridReport is the outcome of one grid search run. Combinations that never
// traded are a distinct category, not failing scores.
type GridReport struct {
	Results   []CombinationResult `json:"results"`  // scored, ranked descending
	NoTrade   []CombinationResult `json:"no_trade"` // zero trades on every symbol
	Rejected  []RejectedParams    `json:"rejected"`
	TotalRuns int                 `json:"total_runs"`
	Duration  time.Duration       `json:"duration"`
}

// Best returns the top-ranked combination, or nil when nothing scored
func (r *GridReport) Best() *CombinationResult {
	if len(r.Results) == 0 {
		return nil
	}
	return &r.Results[0]
}

// GridSearch evaluates a parameter grid across one or more symbols
type GridSearch struct {
	signalFn  SignalFunc
	validate  ValidateFunc
	grid      Grid
	timeframe market.Timeframe
	parallel  int
}

// NewGridSearch creates a grid search over the given parameter space.
// validate may be nil when every combination is structurally valid.
func NewGridSearch(signalFn SignalFunc, validate ValidateFunc, grid Grid, tf market.Timeframe) *GridSearch {
	return &GridSearch{
		signalFn:  signalFn,
		validate:  validate,
		grid:      grid,
		timeframe: tf,
		parallel:  4,
	}
}

// SetParallelism sets the number of concurrently running backtests
func (gs *GridSearch) SetParallelism(n int) {
	if n > 0 {
		gs.parallel = n
	}
}

// symbolRun is the unit of parallel dispatch: one combination on one symbol
type symbolRun struct {
	comboIdx int
	stats    Stats
}

// Run executes the full grid. Per-combination-per-symbol backtests run in
// parallel under a semaphore; the reduction into per-combination aggregates
// is strictly sequential once all units complete. An empty grid or empty
// data set is fatal; everything else degrades to partial results.
func (gs *GridSearch) Run(ctx context.Context, data map[string][]market.Bar) (*GridReport, error) {
	startTime := time.Now()

	combos := gs.grid.Combinations()
	if len(combos) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no symbol data provided")
	}

	report := &GridReport{}

	// Reject invalid combinations before any dispatch
	var valid []ParamSet
	for _, combo := range combos {
		if gs.validate != nil {
			if err := gs.validate(combo); err != nil {
				report.Rejected = append(report.Rejected, RejectedParams{
					Params: combo,
					Reason: err.Error(),
				})
				continue
			}
		}
		valid = append(valid, combo)
	}

	log.Info().
		Int("combinations", len(valid)).
		Int("rejected", len(report.Rejected)).
		Int("symbols", len(data)).
		Int("parallel", gs.parallel).
		Msg("Starting grid search")

	totalRuns := len(valid) * len(data)
	runsChan := make(chan symbolRun, totalRuns)
	semaphore := make(chan struct{}, gs.parallel)

	var wg sync.WaitGroup
	for comboIdx, combo := range valid {
		for symbol, bars := range data {
			wg.Add(1)
			go func(idx int, ps ParamSet, sym string, b []market.Bar) {
				defer wg.Done()

				semaphore <- struct{}{}
				defer func() { <-semaphore }()

				select {
				case <-ctx.Done():
					return
				default:
				}

				actions := gs.signalFn(b, ps)
				result, err := Run(sym, b, actions, RulesFromParams(ps), gs.timeframe)
				if err != nil {
					log.Warn().Err(err).Str("symbol", sym).Msg("Backtest failed in grid search")
					return
				}
				runsChan <- symbolRun{comboIdx: idx, stats: result.Stats}
			}(comboIdx, combo, symbol, bars)
		}
	}

	go func() {
		wg.Wait()
		close(runsChan)
	}()

	// Sequential reduction into per-combination accumulators
	perCombo := make([][]Stats, len(valid))
	for run := range runsChan {
		perCombo[run.comboIdx] = append(perCombo[run.comboIdx], run.stats)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("grid search cancelled: %w", err)
	}

	var scored []CombinationResult
	for i, combo := range valid {
		agg := aggregateCombination(combo, perCombo[i])
		if agg.NumTrades == 0 {
			report.NoTrade = append(report.NoTrade, agg)
			continue
		}
		scored = append(scored, agg)
	}

	scoreCombinations(scored)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	for i := range scored {
		scored[i].Rank = i + 1
	}

	report.Results = scored
	report.TotalRuns = totalRuns
	report.Duration = time.Since(startTime)

	log.Info().
		Int("total_runs", totalRuns).
		Int("scored", len(scored)).
		Int("no_trade", len(report.NoTrade)).
		Dur("duration", report.Duration).
		Msg("Grid search complete")

	return report, nil
}

// aggregateCombination reduces per-symbol stats into one combination result
func aggregateCombination(params ParamSet, perSymbol []Stats) CombinationResult {
	agg := CombinationResult{Params: params}

	var symbolReturns []float64
	positive := 0
	for _, s := range perSymbol {
		agg.NumTrades += s.NumTrades
		agg.NumWins += s.NumWins
		symbolReturns = append(symbolReturns, s.TotalReturnPct)
		if s.TotalReturnPct > 0 {
			positive++
		}
	}

	if agg.NumTrades > 0 {
		agg.WinRate = float64(agg.NumWins) / float64(agg.NumTrades) * 100
	}
	if len(symbolReturns) > 0 {
		var sum float64
		for _, r := range symbolReturns {
			sum += r
		}
		agg.MeanReturnPct = sum / float64(len(symbolReturns))
		agg.MedianReturnPct = median(symbolReturns)
		agg.PctPositiveSymbols = float64(positive) / float64(len(symbolReturns)) * 100
	}

	return agg
}

// Composite score weights over min-max-normalized metrics
const (
	weightWinRate         = 0.3
	weightMeanReturn      = 0.3
	weightMedianReturn    = 0.2
	weightPositiveSymbols = 0.2
)

// scoreCombinations assigns each combination a weighted sum of min-max
// normalized metrics. A degenerate range (max == min) normalizes to 0.5 for
// every combination so the score stays defined.
func scoreCombinations(results []CombinationResult) {
	if len(results) == 0 {
		return
	}

	winRate := normalizer(results, func(r CombinationResult) float64 { return r.WinRate })
	meanRet := normalizer(results, func(r CombinationResult) float64 { return r.MeanReturnPct })
	medianRet := normalizer(results, func(r CombinationResult) float64 { return r.MedianReturnPct })
	positive := normalizer(results, func(r CombinationResult) float64 { return r.PctPositiveSymbols })

	for i := range results {
		r := &results[i]
		r.Score = weightWinRate*winRate(r.WinRate) +
			weightMeanReturn*meanRet(r.MeanReturnPct) +
			weightMedianReturn*medianRet(r.MedianReturnPct) +
			weightPositiveSymbols*positive(r.PctPositiveSymbols)
	}
}

// normalizer builds a min-max normalization function over one metric
func normalizer(results []CombinationResult, metric func(CombinationResult) float64) func(float64) float64 {
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
