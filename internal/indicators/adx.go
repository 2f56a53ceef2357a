package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// ADXPeriod is the standard Wilder smoothing window.
const ADXPeriod = 14

// ADXResult carries the trend-strength index alongside the directional
// indicators it is derived from.
type ADXResult struct {
	ADX     decimal.Decimal
	PlusDI  decimal.Decimal
	MinusDI decimal.Decimal
}

// ADX computes the Average Directional Index from +DI/-DI, Wilder-smoothed
// over period, needing 2*period+1 candles for the DX series itself to have
// a full period of history to smooth.
func ADX(candles []types.Candle, period int) (ADXResult, error) {
	need := 2*period + 1
	if len(candles) < need {
		return ADXResult{}, insufficientData("adx", len(candles), need)
	}

	n := len(candles)
	plusDM := make([]decimal.Decimal, n-1)
	minusDM := make([]decimal.Decimal, n-1)
	tr := make([]decimal.Decimal, n-1)

	for i := 1; i < n; i++ {
		upMove := candles[i].High.Sub(candles[i-1].High)
		downMove := candles[i-1].Low.Sub(candles[i].Low)

		if upMove.GreaterThan(downMove) && upMove.IsPositive() {
			plusDM[i-1] = upMove
		} else {
			plusDM[i-1] = decimal.Zero
		}
		if downMove.GreaterThan(upMove) && downMove.IsPositive() {
			minusDM[i-1] = downMove
		} else {
			minusDM[i-1] = decimal.Zero
		}
		tr[i-1] = trueRange(candles[i], candles[i-1])
	}

	periodDec := decimal.NewFromInt(int64(period))
	smoothedPlusDM := wilderSmooth(plusDM, period)
	smoothedMinusDM := wilderSmooth(minusDM, period)
	smoothedTR := wilderSmooth(tr, period)

	dx := make([]decimal.Decimal, len(smoothedTR))
	var plusDI, minusDI decimal.Decimal
	for i := range smoothedTR {
		if smoothedTR[i].IsZero() {
			dx[i] = decimal.Zero
			continue
		}
		pdi := smoothedPlusDM[i].Div(smoothedTR[i]).Mul(decimal.NewFromInt(100))
		mdi := smoothedMinusDM[i].Div(smoothedTR[i]).Mul(decimal.NewFromInt(100))
		sum := pdi.Add(mdi)
		if sum.IsZero() {
			dx[i] = decimal.Zero
		} else {
			dx[i] = pdi.Sub(mdi).Abs().Div(sum).Mul(decimal.NewFromInt(100))
		}
		if i == len(smoothedTR)-1 {
			plusDI, minusDI = pdi, mdi
		}
	}

	if len(dx) < period {
		return ADXResult{}, insufficientData("adx", len(candles), need)
	}

	adx := decimal.Zero
	for i := 0; i < period; i++ {
		adx = adx.Add(dx[i])
	}
	adx = adx.Div(periodDec)
	for i := period; i < len(dx); i++ {
		adx = adx.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(dx[i]).Div(periodDec)
	}

	return ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, nil
}

// wilderSmooth reduces a raw series to its period-long Wilder moving
// average series, seeded by the simple sum of the first period values.
func wilderSmooth(values []decimal.Decimal, period int) []decimal.Decimal {
	if len(values) < period {
		return nil
	}
	periodDec := decimal.NewFromInt(int64(period))
	out := make([]decimal.Decimal, len(values)-period+1)

	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(values[i])
	}
	out[0] = sum

	for i := period; i < len(values); i++ {
		out[i-period+1] = out[i-period].Sub(out[i-period].Div(periodDec)).Add(values[i])
	}
	return out
}
