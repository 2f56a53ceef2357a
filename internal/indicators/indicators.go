// Package indicators is the engine's indicator library: pure,
// deterministic functions over a candle series. None of them allocate
// beyond O(n) per call, none hold state between calls, and each
// documents the minimum candle count it needs — a shorter series yields
// an InsufficientData error rather than a misleading zero value.
package indicators

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func closes(candles []types.Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// emaSeries computes an EMA over values, seeded with the SMA of the
// first period values. Entries before index period-1 are zero and not
// meaningful; callers must only read from index period-1 onward.
func emaSeries(values []decimal.Decimal, period int) []decimal.Decimal {
	if len(values) < period {
		return nil
	}
	out := make([]decimal.Decimal, len(values))

	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(values[i])
	}
	out[period-1] = sum.Div(decimal.NewFromInt(int64(period)))

	mult := decimal.NewFromFloat(2.0 / float64(period+1))
	for i := period; i < len(values); i++ {
		out[i] = values[i].Sub(out[i-1]).Mul(mult).Add(out[i-1])
	}
	return out
}

// sma returns the simple average of the last period values of values.
func sma(values []decimal.Decimal, period int) decimal.Decimal {
	sum := decimal.Zero
	n := len(values)
	for i := n - period; i < n; i++ {
		sum = sum.Add(values[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}

func insufficientData(indicator string, have, need int) error {
	return errs.InsufficientData(
		indicator + ": need at least " + strconv.Itoa(need) + " candles, have " + strconv.Itoa(have),
	)
}
