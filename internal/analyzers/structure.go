package analyzers

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// pullbackBandPct is the +/-0.3% band around a broken swing level that
// defines the retest entry zone.
const pullbackBandPct = 0.003

// Structure classifies the last four swings into higher-high/higher-low
// or lower-low/lower-high sequences, detects when the latest
// counter-swing violates the prior same-type swing, and, on a break,
// derives the pullback entry zone around the violated level.
func Structure(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindStructure
	need := DefaultStructureLookback*2 + 4
	if len(candles) < need {
		return insufficient(kind, "not enough candles for structure swing classification")
	}

	points := swingPoints(candles, DefaultStructureLookback)
	if len(points) < 4 {
		return insufficient(kind, "fewer than four swings detected")
	}
	last4 := points[len(points)-4:]

	highs := swingsOfType(last4, true)
	lows := swingsOfType(last4, false)

	hh := len(highs) >= 2 && highs[len(highs)-1].Price.GreaterThan(highs[len(highs)-2].Price)
	hl := len(lows) >= 2 && lows[len(lows)-1].Price.GreaterThan(lows[len(lows)-2].Price)
	ll := len(lows) >= 2 && lows[len(lows)-1].Price.LessThan(lows[len(lows)-2].Price)
	lh := len(highs) >= 2 && highs[len(highs)-1].Price.LessThan(highs[len(highs)-2].Price)

	current := types.StructureRanging
	switch {
	case hh && hl:
		current = types.StructureUptrend
	case ll && lh:
		current = types.StructureDowntrend
	}

	brk, breakType, level := detectBreak(points, current)

	keyLevels := make([]decimal.Decimal, 0, len(last4))
	for _, p := range last4 {
		keyLevels = append(keyLevels, p.Price)
	}

	zone := types.PullbackZone{}
	close := candles[len(candles)-1].Close
	if brk {
		band := level.Mul(decimal.NewFromFloat(pullbackBandPct))
		zone.Low = level.Sub(band)
		zone.High = level.Add(band)
		zone.Active = !close.LessThan(zone.Low) && !close.GreaterThan(zone.High)
	}

	confidence := 0.5
	if hh || hl || ll || lh {
		confidence = 0.7
	}
	if brk {
		confidence = 0.85
	}

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: confidence,
		Structure: &types.Structure{
			Current:      current,
			Break:        brk,
			BreakType:    breakType,
			PullbackZone: zone,
			KeyLevels:    keyLevels,
		},
	}
}

// detectBreak finds whether the most recent swing violates the prior
// same-type swing in the direction opposite the established structure:
// e.g. in an uptrend (HH/HL), a new low that undercuts the last higher
// low is a bearish structure break.
func detectBreak(points []types.SwingPoint, current types.StructureState) (bool, string, decimal.Decimal) {
	lows := swingsOfType(points, false)
	highs := swingsOfType(points, true)

	switch current {
	case types.StructureUptrend:
		if len(lows) >= 2 && lows[len(lows)-1].Price.LessThan(lows[len(lows)-2].Price) {
			return true, "bearish_break_of_structure", lows[len(lows)-2].Price
		}
	case types.StructureDowntrend:
		if len(highs) >= 2 && highs[len(highs)-1].Price.GreaterThan(highs[len(highs)-2].Price) {
			return true, "bullish_break_of_structure", highs[len(highs)-2].Price
		}
	}
	return false, "", decimal.Zero
}
