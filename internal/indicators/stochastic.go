package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/sezginpak/gold-analyzer/pkg/utils"
)

// StochasticKPeriod is the %K lookback; %D is a 3-period SMA of %K.
const (
	StochasticKPeriod = 14
	StochasticDPeriod = 3
)

// StochasticResult is a %K/%D reading at the most recent candle.
type StochasticResult struct {
	K decimal.Decimal
	D decimal.Decimal
}

// Stochastic computes %K over StochasticKPeriod candles and %D as the
// simple 3-period average of the trailing %K values.
func Stochastic(candles []types.Candle) (StochasticResult, error) {
	need := StochasticKPeriod + StochasticDPeriod - 1
	if len(candles) < need {
		return StochasticResult{}, insufficientData("stochastic", len(candles), need)
	}

	kValues := make([]decimal.Decimal, StochasticDPeriod)
	for i := 0; i < StochasticDPeriod; i++ {
		end := len(candles) - (StochasticDPeriod - 1 - i)
		window := candles[end-StochasticKPeriod : end]
		kValues[i] = percentK(window)
	}

	return StochasticResult{
		K: kValues[len(kValues)-1],
		D: sma(kValues, StochasticDPeriod),
	}, nil
}

func percentK(window []types.Candle) decimal.Decimal {
	high, low := window[0].High, window[0].Low
	for _, c := range window {
		high = utils.MaxDecimal(high, c.High)
		low = utils.MinDecimal(low, c.Low)
	}
	rng := high.Sub(low)
	close := window[len(window)-1].Close
	if rng.IsZero() {
		return decimal.NewFromInt(50)
	}
	return close.Sub(low).Div(rng).Mul(decimal.NewFromInt(100))
}
