package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// ATRPeriod is the standard Wilder smoothing window for Average True Range.
const ATRPeriod = 14

// ATRResult is an Average True Range reading at the most recent candle.
type ATRResult struct {
	ATR        decimal.Decimal
	ATRPercent decimal.Decimal // ATR / close * 100, volatility relative to price in percent points
}

// ATR computes Wilder's Average True Range over period+1 candles (the
// first true range needs a previous close).
func ATR(candles []types.Candle, period int) (ATRResult, error) {
	if len(candles) < period+1 {
		return ATRResult{}, insufficientData("atr", len(candles), period+1)
	}

	trueRanges := make([]decimal.Decimal, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trueRanges[i-1] = trueRange(candles[i], candles[i-1])
	}

	periodDec := decimal.NewFromInt(int64(period))
	periodMinus1 := periodDec.Sub(decimal.NewFromInt(1))

	atr := decimal.Zero
	for i := 0; i < period; i++ {
		atr = atr.Add(trueRanges[i])
	}
	atr = atr.Div(periodDec)

	for i := period; i < len(trueRanges); i++ {
		atr = atr.Mul(periodMinus1).Add(trueRanges[i]).Div(periodDec)
	}

	close := candles[len(candles)-1].Close
	var pct decimal.Decimal
	if !close.IsZero() {
		pct = atr.Div(close).Mul(decimal.NewFromInt(100))
	}

	return ATRResult{ATR: atr, ATRPercent: pct}, nil
}

// trueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(cur, prev types.Candle) decimal.Decimal {
	hl := cur.High.Sub(cur.Low)
	hc := cur.High.Sub(prev.Close).Abs()
	lc := cur.Low.Sub(prev.Close).Abs()
	return maxDecimal3(hl, hc, lc)
}

func maxDecimal3(a, b, c decimal.Decimal) decimal.Decimal {
	m := a
	if b.GreaterThan(m) {
		m = b
	}
	if c.GreaterThan(m) {
		m = c
	}
	return m
}
