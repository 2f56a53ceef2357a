package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/sezginpak/gold-analyzer/pkg/utils"
)

// CCIPeriod is the standard Commodity Channel Index window.
const CCIPeriod = 20

// cciConstant is the fixed scaling factor Lambert's original CCI uses so
// that roughly 70-80% of values fall between -100 and +100.
const cciConstant = 0.015

// CCI computes the Commodity Channel Index over the trailing period
// candles' typical prices.
func CCI(candles []types.Candle, period int) (decimal.Decimal, error) {
	if len(candles) < period {
		return decimal.Zero, insufficientData("cci", len(candles), period)
	}

	window := candles[len(candles)-period:]
	tps := make([]decimal.Decimal, len(window))
	for i, c := range window {
		tps[i] = typicalPrice(c)
	}
	mean := sma(tps, period)

	meanDeviation := decimal.Zero
	for _, tp := range tps {
		meanDeviation = meanDeviation.Add(tp.Sub(mean).Abs())
	}
	meanDeviation = meanDeviation.Div(decimal.NewFromInt(int64(period)))

	if meanDeviation.IsZero() {
		return decimal.Zero, nil
	}

	current := tps[len(tps)-1]
	return current.Sub(mean).Div(meanDeviation.Mul(decimal.NewFromFloat(cciConstant))), nil
}

// WilliamsRPeriod is the standard lookback window.
const WilliamsRPeriod = 14

// WilliamsR computes Williams %R, which ranges from -100 (at the period
// low) to 0 (at the period high).
func WilliamsR(candles []types.Candle, period int) (decimal.Decimal, error) {
	if len(candles) < period {
		return decimal.Zero, insufficientData("williams_r", len(candles), period)
	}

	window := candles[len(candles)-period:]
	high, low := window[0].High, window[0].Low
	for _, c := range window {
		high = utils.MaxDecimal(high, c.High)
		low = utils.MinDecimal(low, c.Low)
	}

	rng := high.Sub(low)
	if rng.IsZero() {
		return decimal.NewFromInt(-50), nil
	}

	close := window[len(window)-1].Close
	return high.Sub(close).Div(rng).Mul(decimal.NewFromInt(-100)), nil
}
