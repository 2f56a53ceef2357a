package analyzers

import (
	"github.com/sezginpak/gold-analyzer/internal/indicators"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// Divergence pairs the two most-recent swing-lows in price and in RSI,
// reporting a bullish divergence when price prints a lower low while RSI
// prints a higher low (and the mirror on swing-highs for bearish).
// Strength scales with the magnitude of the price/RSI disagreement;
// confidence decays for swings older than 10 bars from the series end.
func Divergence(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindDivergence
	need := DefaultDivergenceLookback*2 + indicators.RSIPeriod + 2
	if len(candles) < need {
		return insufficient(kind, "not enough candles for divergence swing/RSI pairing")
	}

	points := swingPoints(candles, DefaultDivergenceLookback)
	lows := swingsOfType(points, false)
	highs := swingsOfType(points, true)

	bullish, bullOK := pairDivergence(candles, lows, false)
	bearish, bearOK := pairDivergence(candles, highs, true)

	switch {
	case bullOK && (!bearOK || bullish.Confidence >= bearish.Confidence):
		return types.SubAnalysis{Kind: kind, Confidence: bullish.Confidence, Divergence: &bullish}
	case bearOK:
		return types.SubAnalysis{Kind: kind, Confidence: bearish.Confidence, Divergence: &bearish}
	default:
		return insufficient(kind, "fewer than two swings of the same type to pair")
	}
}

func pairDivergence(candles []types.Candle, swings []types.SwingPoint, isHigh bool) (types.Divergence, bool) {
	if len(swings) < 2 {
		return types.Divergence{}, false
	}
	prev := swings[len(swings)-2]
	last := swings[len(swings)-1]

	prevRSI, err1 := indicators.RSI(candles[:prev.Index+1], indicators.RSIPeriod)
	lastRSI, err2 := indicators.RSI(candles[:last.Index+1], indicators.RSIPeriod)
	if err1 != nil || err2 != nil {
		return types.Divergence{}, false
	}

	priceDelta := last.Price.Sub(prev.Price)
	rsiDelta := lastRSI.Sub(prevRSI)

	var bullish, agree bool
	if isHigh {
		// Bearish: price HH while RSI makes a lower high.
		agree = priceDelta.IsPositive() && rsiDelta.IsNegative()
		bullish = false
	} else {
		// Bullish: price LL while RSI makes a higher low.
		agree = priceDelta.IsNegative() && rsiDelta.IsPositive()
		bullish = true
	}
	if !agree {
		return types.Divergence{}, false
	}

	priceMag, _ := priceDelta.Abs().Div(prev.Price).Float64()
	rsiMag, _ := rsiDelta.Abs().Float64()
	magnitude := priceMag*100 + rsiMag
	strength := 1
	switch {
	case magnitude > 12:
		strength = 5
	case magnitude > 8:
		strength = 4
	case magnitude > 5:
		strength = 3
	case magnitude > 2:
		strength = 2
	}

	age := len(candles) - 1 - last.Index
	confidence := 1.0
	if age > 10 {
		confidence = 10.0 / float64(age)
	}

	return types.Divergence{
		Bullish:    bullish,
		Hidden:     false,
		Strength:   strength,
		Confidence: confidence,
	}, true
}
