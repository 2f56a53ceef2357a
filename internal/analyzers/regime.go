package analyzers

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/indicators"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// Volatility-regime ATR% bucket boundaries, expressed as percent points.
const (
	volVeryLowMax = 0.15
	volLowMax     = 0.30
	volMediumMax  = 0.60
	volHighMax    = 1.20
)

// ADX regime bands: below adxRangingMax is range noise, between that and
// adxTrendingThreshold is a transitioning market, at or above
// adxTrendingThreshold is a real trend.
const (
	adxRangingMax        = 15.0
	adxTrendingThreshold = 25.0
)

// TrendRegime classifies directional regime from ADX and +DI/-DI:
// ranging below 15, transitioning from 15 up to 25, trending at 25 and
// above, with direction read off whichever DI leads.
func TrendRegime(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindTrendRegime
	need := indicators.ADXPeriod*2 + 2
	if len(candles) < need {
		return insufficient(kind, "not enough candles for ADX")
	}

	adx, err := indicators.ADX(candles, indicators.ADXPeriod)
	if err != nil {
		return insufficient(kind, err.Error())
	}

	direction := 0
	if adx.PlusDI.GreaterThan(adx.MinusDI) {
		direction = 1
	} else if adx.MinusDI.GreaterThan(adx.PlusDI) {
		direction = -1
	}

	adxVal, _ := adx.ADX.Float64()
	regimeType := types.TrendTrending
	switch {
	case adxVal < adxRangingMax:
		regimeType = types.TrendRanging
	case adxVal < adxTrendingThreshold:
		regimeType = types.TrendTransitioning
	}

	strength := adxVal / 100.0
	if strength > 1 {
		strength = 1
	}

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: 0.6 + 0.4*strength,
		TrendRegime: &types.TrendRegime{
			Type:      regimeType,
			Direction: direction,
			ADX:       adx.ADX,
			Strength:  strength,
		},
	}
}

// VolatilityRegime buckets ATR% into a human-facing level and reports
// whether volatility is currently expanding or contracting relative to
// its own recent average, plus a squeeze-potential flag sourced from
// Bollinger band-width percentile.
func VolatilityRegime(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindVolatilityRegime
	need := indicators.ATRPeriod*2 + 2
	if len(candles) < need {
		return insufficient(kind, "not enough candles for ATR")
	}

	atr, err := indicators.ATR(candles, indicators.ATRPeriod)
	if err != nil {
		return insufficient(kind, err.Error())
	}
	prevATR, prevErr := indicators.ATR(candles[:len(candles)-1], indicators.ATRPeriod)

	pct, _ := atr.ATRPercent.Float64()
	level := bucketVolatility(pct)

	expanding, contracting := false, false
	if prevErr == nil {
		if atr.ATR.GreaterThan(prevATR.ATR) {
			expanding = true
		} else if atr.ATR.LessThan(prevATR.ATR) {
			contracting = true
		}
	}

	squeeze := false
	if bb, err := indicators.Bollinger(candles); err == nil {
		squeeze = bb.Squeeze
	}

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: 0.75,
		VolatilityRegime: &types.VolatilityRegime{
			Level:            level,
			ATR:              atr.ATR,
			ATRPct:           atr.ATRPercent,
			Expanding:        expanding,
			Contracting:      contracting,
			SqueezePotential: squeeze,
		},
	}
}

func bucketVolatility(pct float64) types.VolatilityLevel {
	switch {
	case pct <= volVeryLowMax:
		return types.VolVeryLow
	case pct <= volLowMax:
		return types.VolLow
	case pct <= volMediumMax:
		return types.VolMedium
	case pct <= volHighMax:
		return types.VolHigh
	default:
		return types.VolExtreme
	}
}

// MomentumRegime classifies the progression of RSI and the MACD
// histogram over the last two readings: both rising is "accelerating",
// neither rising while not aligned is "exhausted", one rising while the
// other does not is "decelerating", otherwise "stable". Alignment is
// true when RSI is above 50 with a positive histogram, or below 50 with
// a non-positive one.
func MomentumRegime(candles []types.Candle) types.SubAnalysis {
	const kind = types.KindMomentumRegime
	need := indicators.MACDSlowPeriod + indicators.MACDSignalPeriod + 2
	if len(candles) < need {
		return insufficient(kind, "not enough candles for MACD/RSI momentum read")
	}

	rsi, err := indicators.RSI(candles, indicators.RSIPeriod)
	if err != nil {
		return insufficient(kind, err.Error())
	}
	prevRSI, prevRSIErr := indicators.RSI(candles[:len(candles)-1], indicators.RSIPeriod)

	macd, err := indicators.MACD(candles)
	if err != nil {
		return insufficient(kind, err.Error())
	}
	prevMACD, prevMACDErr := indicators.MACD(candles[:len(candles)-1])
	if prevRSIErr != nil || prevMACDErr != nil {
		return insufficient(kind, "not enough history for momentum delta")
	}

	rsiRising := rsi.GreaterThan(prevRSI)
	histRising := macd.Histogram.GreaterThan(prevMACD.Histogram)
	histPositive := macd.Histogram.IsPositive()

	alignment := (rsi.GreaterThan(decimal.NewFromInt(50)) && histPositive) ||
		(rsi.LessThan(decimal.NewFromInt(50)) && !histPositive)

	state := types.MomentumStable
	switch {
	case rsiRising && histRising:
		state = types.MomentumAccelerating
	case !rsiRising && !histRising && !alignment:
		state = types.MomentumExhausted
	case rsiRising != histRising:
		state = types.MomentumDecelerating
	}

	return types.SubAnalysis{
		Kind:       kind,
		Confidence: 0.65,
		MomentumRegime: &types.MomentumRegime{
			State:     state,
			Alignment: alignment,
		},
	}
}
