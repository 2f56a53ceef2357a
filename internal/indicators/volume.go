// Volume-weighted indicators. types.Candle carries no traded-volume field
// (gold spot ticks have no exchange volume the way a crypto kline does);
// TickCount — the number of ticks folded into the candle — stands in as
// the nearest available proxy for relative activity within a bucket.
package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// MFIPeriod is the standard Money Flow Index window.
const MFIPeriod = 14

// MFI computes the Money Flow Index using TickCount as the volume proxy.
func MFI(candles []types.Candle, period int) (decimal.Decimal, error) {
	if len(candles) < period+1 {
		return decimal.Zero, insufficientData("mfi", len(candles), period+1)
	}

	n := len(candles)
	start := n - period
	positiveFlow, negativeFlow := decimal.Zero, decimal.Zero

	prevTP := typicalPrice(candles[start-1])
	for i := start; i < n; i++ {
		tp := typicalPrice(candles[i])
		rawFlow := tp.Mul(decimal.NewFromInt(int64(candles[i].TickCount)))
		if tp.GreaterThan(prevTP) {
			positiveFlow = positiveFlow.Add(rawFlow)
		} else if tp.LessThan(prevTP) {
			negativeFlow = negativeFlow.Add(rawFlow)
		}
		prevTP = tp
	}

	if negativeFlow.IsZero() {
		if positiveFlow.IsZero() {
			return decimal.NewFromInt(50), nil
		}
		return decimal.NewFromInt(100), nil
	}

	ratio := positiveFlow.Div(negativeFlow)
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(ratio))), nil
}

// OBV computes On-Balance Volume as a running sum over the whole series,
// adding TickCount on an up close and subtracting it on a down close.
func OBV(candles []types.Candle) (decimal.Decimal, error) {
	if len(candles) < 2 {
		return decimal.Zero, insufficientData("obv", len(candles), 2)
	}

	obv := decimal.Zero
	for i := 1; i < len(candles); i++ {
		vol := decimal.NewFromInt(int64(candles[i].TickCount))
		switch {
		case candles[i].Close.GreaterThan(candles[i-1].Close):
			obv = obv.Add(vol)
		case candles[i].Close.LessThan(candles[i-1].Close):
			obv = obv.Sub(vol)
		}
	}
	return obv, nil
}

// VWAPPeriod is the default lookback for the rolling VWAP reading.
const VWAPPeriod = 20

// VWAP computes the tick-count-weighted average typical price over the
// trailing period candles.
func VWAP(candles []types.Candle, period int) (decimal.Decimal, error) {
	if len(candles) < period {
		return decimal.Zero, insufficientData("vwap", len(candles), period)
	}

	window := candles[len(candles)-period:]
	sumPV := decimal.Zero
	sumV := decimal.Zero
	for _, c := range window {
		vol := decimal.NewFromInt(int64(c.TickCount))
		sumPV = sumPV.Add(typicalPrice(c).Mul(vol))
		sumV = sumV.Add(vol)
	}
	if sumV.IsZero() {
		return sma(closes(window), period), nil
	}
	return sumPV.Div(sumV), nil
}

func typicalPrice(c types.Candle) decimal.Decimal {
	return c.High.Add(c.Low).Add(c.Close).Div(decimal.NewFromInt(3))
}
