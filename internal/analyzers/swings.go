// Package analyzers holds the pattern and structure analyzers: pure
// functions over a candle series (plus whatever indicator readings they
// need) returning a tagged types.SubAnalysis. None of them ever error;
// a series too short for the analyzer's minimum history yields an
// Insufficient result with a Reason, never a panic or raised error.
package analyzers

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// DefaultDivergenceLookback and DefaultStructureLookback are the swing
// detection windows used by divergence scoring and market-structure
// classification respectively.
const (
	DefaultDivergenceLookback = 5
	DefaultStructureLookback  = 10
)

// swingPoints finds every local extremum in candles using a symmetric
// lookback window k: index i is a swing-high if high[i] is strictly
// greater than every high within i-k..i+k (excluding i itself), and a
// swing-low under the mirror condition on lows. Prominence is the
// distance from the swing's extreme to the highest other high (for a
// high) or lowest other low (for a low) within the window, divided by
// the swing's own price.
func swingPoints(candles []types.Candle, k int) []types.SwingPoint {
	n := len(candles)
	var out []types.SwingPoint
	for i := k; i < n-k; i++ {
		if isSwingHigh(candles, i, k) {
			out = append(out, types.SwingPoint{
				Index: i, Timestamp: candles[i].TsOpen, Price: candles[i].High,
				IsHigh: true, Prominence: prominence(candles, i, k, true),
			})
		}
		if isSwingLow(candles, i, k) {
			out = append(out, types.SwingPoint{
				Index: i, Timestamp: candles[i].TsOpen, Price: candles[i].Low,
				IsHigh: false, Prominence: prominence(candles, i, k, false),
			})
		}
	}
	return out
}

func isSwingHigh(candles []types.Candle, i, k int) bool {
	h := candles[i].High
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		if !h.GreaterThan(candles[j].High) {
			return false
		}
	}
	return true
}

func isSwingLow(candles []types.Candle, i, k int) bool {
	l := candles[i].Low
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		if !l.LessThan(candles[j].Low) {
			return false
		}
	}
	return true
}

// prominence is the fractional distance from the swing's own extreme to
// the window's next-most-extreme value, a proxy for how pronounced the
// swing is relative to its neighborhood.
func prominence(candles []types.Candle, i, k int, isHigh bool) float64 {
	var best decimal.Decimal
	first := true
	for j := i - k; j <= i+k; j++ {
		if j == i {
			continue
		}
		v := candles[j].Low
		if isHigh {
			v = candles[j].High
		}
		if first {
			best = v
			first = false
			continue
		}
		if isHigh && v.GreaterThan(best) {
			best = v
		}
		if !isHigh && v.LessThan(best) {
			best = v
		}
	}
	extreme := candles[i].Low
	if isHigh {
		extreme = candles[i].High
	}
	diff := extreme.Sub(best).Abs()
	if extreme.IsZero() {
		return 0
	}
	f, _ := diff.Div(extreme).Float64()
	return f
}

// swingsOfType filters points down to only highs or only lows, ordered
// by index ascending (oldest first).
func swingsOfType(points []types.SwingPoint, isHigh bool) []types.SwingPoint {
	var out []types.SwingPoint
	for _, p := range points {
		if p.IsHigh == isHigh {
			out = append(out, p)
		}
	}
	return out
}

func insufficient(kind types.AnalysisKind, reason string) types.SubAnalysis {
	return types.SubAnalysis{Kind: kind, Insufficient: true, Reason: reason}
}
