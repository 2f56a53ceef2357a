package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// MACD periods: fast EMA, slow EMA, signal EMA.
const (
	MACDFastPeriod   = 12
	MACDSlowPeriod   = 26
	MACDSignalPeriod = 9
)

// MACDResult is the moving-average-convergence-divergence reading.
type MACDResult struct {
	MACD      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// MACD computes the 12/26 MACD line and its 9-period EMA signal line. The
// signal is a true EMA of the MACD line's own history, not an approximation
// seeded from a single value.
func MACD(candles []types.Candle) (MACDResult, error) {
	need := MACDSlowPeriod + MACDSignalPeriod
	if len(candles) < need {
		return MACDResult{}, insufficientData("macd", len(candles), need)
	}

	c := closes(candles)
	fast := emaSeries(c, MACDFastPeriod)
	slow := emaSeries(c, MACDSlowPeriod)

	// The MACD line only exists from index slowPeriod-1 onward, where
	// both EMA series are seeded.
	macdLine := make([]decimal.Decimal, len(c)-(MACDSlowPeriod-1))
	for i := range macdLine {
		idx := i + MACDSlowPeriod - 1
		macdLine[i] = fast[idx].Sub(slow[idx])
	}

	signalSeries := emaSeries(macdLine, MACDSignalPeriod)
	if signalSeries == nil {
		return MACDResult{}, insufficientData("macd", len(candles), need)
	}

	macd := macdLine[len(macdLine)-1]
	signal := signalSeries[len(signalSeries)-1]

	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd.Sub(signal),
	}, nil
}
