package pattern

import (
	"math"
	"time"

	"github.com/ksk-taka/stock-prediction-sub003/internal/market"
)

// ===== DATA STRUCTURES =====

// Stage is the maturity of a cup-with-handle candidate.
type Stage string

const (
	// StageForming: handle pullback underway, price not yet back near the rim
	StageForming Stage = "forming"
	// StageReady: price within the ready threshold of the right rim, pre-breakout
	StageReady Stage = "ready"
	// StageBreakout: a close has exceeded the right-rim price
	StageBreakout Stage = "breakout"
)

// PivotPoint anchors one structural point of a pattern to its bar.
type PivotPoint struct {
	Index int       `json:"index"`
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// CwhPattern describes one detected cup-with-handle candidate.
type CwhPattern struct {
	Symbol             string     `json:"symbol,omitempty"`
	LeftRim            PivotPoint `json:"left_rim"`
	Bottom             PivotPoint `json:"bottom"`
	RightRim           PivotPoint `json:"right_rim"`
	CupDepthPct        float64    `json:"cup_depth_pct"`
	CupDurationBars    int        `json:"cup_duration_bars"`
	HandlePullbackPct  float64    `json:"handle_pullback_pct"`
	HandleDurationBars int        `json:"handle_duration_bars"`
	BreakoutPrice      float64    `json:"breakout_price"`
	Stage              Stage      `json:"stage"`
	DetectedAt         int        `json:"detected_at"`
}

// Config bounds the geometry a candidate must satisfy. All thresholds are
// tunable; percentage fields are expressed as percentages (8 = 8%).
type Config struct {
	PivotLookback        int
	MinCupDepthPct       float64
	MaxCupDepthPct       float64
	MinCupBars           int
	MaxCupBars           int
	RimTolerancePct      float64
	MinHandlePullbackPct float64
	MaxHandlePullbackPct float64
	MaxHandleBars        int
	ReadyThresholdPct    float64
}

// DefaultConfig returns the standard detection bounds.
func DefaultConfig() Config {
	return Config{
		PivotLookback:        3,
		MinCupDepthPct:       8,
		MaxCupDepthPct:       50,
		MinCupBars:           15,
		MaxCupBars:           120,
		RimTolerancePct:      5,
		MinHandlePullbackPct: 1,
		MaxHandlePullbackPct: 12,
		MaxHandleBars:        30,
		ReadyThresholdPct:    5,
	}
}

// ===== DETECTION =====

// Detect returns the latest non-stale cup-with-handle candidate as of the
// final bar, or nil when no candidate satisfies the configured bounds.
// Right rims are examined newest first; for each, the highest (then most
// recent) qualifying left rim wins.
func Detect(symbol string, bars []market.Bar, cfg Config) *CwhPattern {
	n := len(bars)
	if n < cfg.MinCupBars+2*cfg.PivotLookback {
		return nil
	}

	closes := market.Closes(bars)
	highs := swingHighIdx(closes, cfg.PivotLookback)

	for ri := len(highs) - 1; ri >= 0; ri-- {
		r := highs[ri]
		h := bestLeftRim(closes, highs[:ri], r, cfg)
		if h < 0 {
			continue
		}
		b := minCloseIdx(closes, h+1, r)
		if p := evaluateHandle(symbol, bars, closes, h, b, r, cfg); p != nil {
			return p
		}
	}
	return nil
}

// bestLeftRim picks the left rim for right rim r: among earlier swing highs
// that satisfy cup duration, rim tolerance, and depth bounds, the highest
// price wins, ties going to the most recent.
func bestLeftRim(closes []float64, candidates []int, r int, cfg Config) int {
	best := -1
	for _, h := range candidates {
		dur := r - h
		if dur < cfg.MinCupBars || dur > cfg.MaxCupBars {
			continue
		}
		left := closes[h]
		if left <= 0 {
			continue
		}
		if math.Abs(closes[r]-left)/left*100 > cfg.RimTolerancePct {
			continue
		}
		depth := (left - closes[minCloseIdx(closes, h+1, r)]) / left * 100
		if depth < cfg.MinCupDepthPct || depth > cfg.MaxCupDepthPct {
			continue
		}
		if best < 0 || closes[h] > closes[best] || (closes[h] == closes[best] && h > best) {
			best = h
		}
	}
	return best
}

// evaluateHandle walks the bars after the right rim and classifies the
// candidate, returning nil when the handle invalidates or goes stale.
func evaluateHandle(symbol string, bars []market.Bar, closes []float64, h, b, r int, cfg Config) *CwhPattern {
	n := len(closes)
	rim := closes[r]
	bottom := closes[b]
	handleLow := rim

	for i := r + 1; i < n; i++ {
		c := closes[i]
		if c <= 0 {
			continue
		}
		if c < bottom {
			return nil // handle breached the cup bottom
		}
		if i-r > cfg.MaxHandleBars {
			return nil // stale: no breakout within the handle window
		}
		if c > rim {
			// Breakout bar. Only the freshest event is reportable; a
			// candidate that broke out before the final bar is consumed.
			pullback := (rim - handleLow) / rim * 100
			if pullback < cfg.MinHandlePullbackPct || pullback > cfg.MaxHandlePullbackPct {
				return nil
			}
			if i != n-1 {
				return nil
			}
			return newPattern(symbol, bars, closes, h, b, r, pullback, i-r, StageBreakout, n-1)
		}
		if c < handleLow {
			handleLow = c
		}
	}

	dur := n - 1 - r
	if dur < 1 || dur > cfg.MaxHandleBars {
		return nil
	}
	pullback := (rim - handleLow) / rim * 100
	if pullback < cfg.MinHandlePullbackPct || pullback > cfg.MaxHandlePullbackPct {
		return nil
	}

	stage := StageForming
	if closes[n-1] >= rim*(1-cfg.ReadyThresholdPct/100) {
		stage = StageReady
	}
	return newPattern(symbol, bars, closes, h, b, r, pullback, dur, stage, n-1)
}

func newPattern(symbol string, bars []market.Bar, closes []float64, h, b, r int, pullback float64, handleBars int, stage Stage, at int) *CwhPattern {
	return &CwhPattern{
		Symbol:             symbol,
		LeftRim:            PivotPoint{Index: h, Date: bars[h].Date, Price: closes[h]},
		Bottom:             PivotPoint{Index: b, Date: bars[b].Date, Price: closes[b]},
		RightRim:           PivotPoint{Index: r, Date: bars[r].Date, Price: closes[r]},
		CupDepthPct:        (closes[h] - closes[b]) / closes[h] * 100,
		CupDurationBars:    r - h,
		HandlePullbackPct:  pullback,
		HandleDurationBars: handleBars,
		BreakoutPrice:      closes[r],
		Stage:              stage,
		DetectedAt:         at,
	}
}

// Breakouts flags, per bar, whether a valid candidate broke out at that bar.
// Each flagged index depends only on bars at or before it: a swing high at r
// is contradicted by any higher close within its lookback neighborhood, so a
// breakout close can only occur after the rim pivot is already confirmed.
func Breakouts(bars []market.Bar, cfg Config) []bool {
	n := len(bars)
	out := make([]bool, n)
	if n < cfg.MinCupBars+2*cfg.PivotLookback {
		return out
	}

	closes := market.Closes(bars)
	highs := swingHighIdx(closes, cfg.PivotLookback)

	for ri, r := range highs {
		h := bestLeftRim(closes, highs[:ri], r, cfg)
		if h < 0 {
			continue
		}
		bottom := closes[minCloseIdx(closes, h+1, r)]
		rim := closes[r]
		handleLow := rim

		for i := r + 1; i < n && i-r <= cfg.MaxHandleBars; i++ {
			c := closes[i]
			if c <= 0 {
				continue
			}
			if c < bottom {
				break
			}
			if c > rim {
				pullback := (rim - handleLow) / rim * 100
				if pullback >= cfg.MinHandlePullbackPct && pullback <= cfg.MaxHandlePullbackPct {
					out[i] = true
				}
				break
			}
			if c < handleLow {
				handleLow = c
			}
		}
	}
	return out
}
