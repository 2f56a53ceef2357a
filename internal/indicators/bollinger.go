package indicators

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// BollingerPeriod and BollingerWidth are the standard 20-period, 2-sigma
// band parameters.
const (
	BollingerPeriod = 20
	BollingerWidth  = 2
)

// BollingerResult is a Bollinger Bands reading at the most recent candle.
type BollingerResult struct {
	Upper  decimal.Decimal
	Middle decimal.Decimal
	Lower  decimal.Decimal
	// Position is (close-lower)/(upper-lower), 0.5 when upper equals
	// lower. It is not clamped: a close outside the bands gives a value
	// below 0 or above 1.
	Position decimal.Decimal
	// Squeeze is true when the current band width sits below the 20th
	// percentile of band widths over the lookback window, signaling a
	// low-volatility contraction.
	Squeeze bool
}

// Bollinger computes SMA20 +/- 2 standard deviations over candle closes.
func Bollinger(candles []types.Candle) (BollingerResult, error) {
	if len(candles) < BollingerPeriod {
		return BollingerResult{}, insufficientData("bollinger", len(candles), BollingerPeriod)
	}

	c := closes(candles)
	widths := make([]decimal.Decimal, 0, len(c)-BollingerPeriod+1)
	var upper, middle, lower decimal.Decimal

	for end := BollingerPeriod; end <= len(c); end++ {
		window := c[end-BollingerPeriod : end]
		mid := sma(window, BollingerPeriod)
		sd := stddev(window, mid)
		band := sd.Mul(decimal.NewFromInt(BollingerWidth))
		u := mid.Add(band)
		l := mid.Sub(band)
		widths = append(widths, u.Sub(l))
		if end == len(c) {
			upper, middle, lower = u, mid, l
		}
	}

	close := c[len(c)-1]
	bandWidth := upper.Sub(lower)
	var position decimal.Decimal
	if bandWidth.IsZero() {
		position = decimal.NewFromFloat(0.5)
	} else {
		position = close.Sub(lower).Div(bandWidth)
	}

	return BollingerResult{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		Position: position,
		Squeeze:  isBelowPercentile(widths, widths[len(widths)-1], 20),
	}, nil
}

// stddev computes the population standard deviation (denominator n, not
// n-1), the convention Bollinger Bands use, as opposed to the sample
// standard deviation pkg/utils.CalculateStdDev uses for return series.
func stddev(values []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	sumSq := decimal.Zero
	for _, v := range values {
		d := v.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(len(values))))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// isBelowPercentile reports whether value sits at or below the given
// percentile (0-100) of the sorted copy of samples.
func isBelowPercentile(samples []decimal.Decimal, value decimal.Decimal, percentile int) bool {
	if len(samples) == 0 {
		return false
	}
	sorted := make([]decimal.Decimal, len(samples))
	copy(sorted, samples)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].LessThan(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	idx := (percentile * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return !value.GreaterThan(sorted[idx])
}
