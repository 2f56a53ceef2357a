package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// RSIPeriod is the standard Wilder smoothing window.
const RSIPeriod = 14

// RSI computes the Wilder-smoothed Relative Strength Index over candles'
// closes. Needs at least period+1 candles.
func RSI(candles []types.Candle, period int) (decimal.Decimal, error) {
	if len(candles) < period+1 {
		return decimal.Zero, insufficientData("rsi", len(candles), period+1)
	}

	c := closes(candles)
	n := len(c)
	periodDec := decimal.NewFromInt(int64(period))
	periodMinus1 := periodDec.Sub(decimal.NewFromInt(1))

	// Seed from the first `period` changes, then Wilder-smooth through
	// every change after that using the whole available history: more
	// history makes the average converge closer to a true Wilder RSI,
	// rather than the window being reset to a length-`period` simple
	// average on every call.
	avgGain, avgLoss := decimal.Zero, decimal.Zero
	for i := 1; i <= period; i++ {
		change := c[i].Sub(c[i-1])
		if change.IsPositive() {
			avgGain = avgGain.Add(change)
		} else {
			avgLoss = avgLoss.Add(change.Neg())
		}
	}
	avgGain = avgGain.Div(periodDec)
	avgLoss = avgLoss.Div(periodDec)

	for i := period + 1; i < n; i++ {
		change := c[i].Sub(c[i-1])
		gain, loss := decimal.Zero, decimal.Zero
		if change.IsPositive() {
			gain = change
		} else {
			loss = change.Neg()
		}
		avgGain = avgGain.Mul(periodMinus1).Add(gain).Div(periodDec)
		avgLoss = avgLoss.Mul(periodMinus1).Add(loss).Div(periodDec)
	}

	if avgLoss.IsZero() {
		if avgGain.IsZero() {
			return decimal.NewFromInt(50), nil
		}
		return decimal.NewFromInt(100), nil
	}

	rs := avgGain.Div(avgLoss)
	hundred := decimal.NewFromInt(100)
	rsi := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
	return rsi, nil
}
