package analyzers

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// activeBouncePct is the proximity band (+/-0.3%) within which a close
// counts as "at" a fibonacci level for the active-bounce flag.
const activeBouncePct = 0.003

// Fibonacci draws retracement levels from the most recent swing-high and
// swing-low, flagging an active bounce when the close sits within 0.3%
// of a level and the two prior bars closed against the level's breach
// direction (i.e. price is rejecting the level rather than punching
// through it).
func Fibonacci(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindFibonacci
	need := DefaultStructureLookback*2 + 3
	if len(candles) < need {
		return insufficient(kind, "not enough candles to locate a swing high/low pair")
	}

	points := swingPoints(candles, DefaultStructureLookback)
	highs := swingsOfType(points, true)
	lows := swingsOfType(points, false)
	if len(highs) == 0 || len(lows) == 0 {
		return insufficient(kind, "no swing high or swing low found")
	}

	high := highs[len(highs)-1]
	low := lows[len(lows)-1]
	swingHigh, swingLow := high.Price, low.Price
	uptrend := high.Index > low.Index // most recent extreme sets retracement direction

	span := swingHigh.Sub(swingLow)
	if span.IsZero() {
		return insufficient(kind, "swing high equals swing low")
	}

	levels := make([]types.FibLevel, len(fibRatios))
	for i, r := range fibRatios {
		var price decimal.Decimal
		if uptrend {
			price = swingHigh.Sub(span.Mul(decimal.NewFromFloat(r)))
		} else {
			price = swingLow.Add(span.Mul(decimal.NewFromFloat(r)))
		}
		levels[i] = types.FibLevel{Ratio: r, Price: price}
	}

	active, target := activeBounce(candles, levels)

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: 0.7,
		Fibonacci: &types.Fibonacci{
			Levels:       levels,
			ActiveBounce: active,
			TargetLevel:  target,
		},
	}
}

func activeBounce(candles []types.Candle, levels []types.FibLevel) (bool, float64) {
	n := len(candles)
	if n < 3 {
		return false, 0
	}
	close := candles[n-1].Close

	for _, lvl := range levels {
		band := lvl.Price.Abs().Mul(decimal.NewFromFloat(activeBouncePct))
		dist := close.Sub(lvl.Price).Abs()
		if dist.GreaterThan(band) {
			continue
		}
		// Reject the level: the two prior closes sat on the opposite
		// side of it from the current close.
		prior1 := candles[n-2].Close
		prior2 := candles[n-3].Close
		if close.GreaterThan(lvl.Price) && prior1.LessThan(lvl.Price) && prior2.LessThan(lvl.Price) {
			return true, lvl.Ratio
		}
		if close.LessThan(lvl.Price) && prior1.GreaterThan(lvl.Price) && prior2.GreaterThan(lvl.Price) {
			return true, lvl.Ratio
		}
	}
	return false, 0
}
