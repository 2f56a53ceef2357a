package combiner

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// maxPositionSize is the hard ceiling on the half-Kelly-derived position
// size the combiner ever recommends; the simulation engine applies its
// own per-trade risk budget on top of this.
const maxPositionSize = 0.20

// riskParameters derives stop-loss, take-profit, risk/reward, and a
// damped half-Kelly position size for a non-HOLD signal.
func riskParameters(signal types.SignalType, gram GramSignal, vol *types.VolatilityRegime, currency types.CurrencyRisk) (sl, tp decimal.Decimal, rr float64, size float64) {
	slMult, tpMult := 2.0, 4.0
	if vol != nil {
		if m, ok := riskMultipliers[vol.Level]; ok {
			slMult, tpMult = m[0], m[1]
		}
	}

	entry := gram.EntryPrice
	atr := gram.ATR
	slDist := atr.Mul(decimal.NewFromFloat(slMult))
	tpDist := atr.Mul(decimal.NewFromFloat(tpMult))

	if signal == types.SignalBuy {
		sl = entry.Sub(slDist)
		tp = entry.Add(tpDist)
	} else {
		sl = entry.Add(slDist)
		tp = entry.Sub(tpDist)
	}

	entryToSL := entry.Sub(sl).Abs()
	entryToTP := entry.Sub(tp).Abs()
	if entryToSL.IsZero() {
		rr = 0
	} else {
		f, _ := entryToTP.Div(entryToSL).Float64()
		rr = f
	}

	size = halfKellySize(gram.Confidence, rr, currency.Multiplier)
	return sl, tp, rr, size
}

// halfKellySize approximates half-Kelly from the signal's own confidence
// (as the edge probability) and its risk/reward ratio, damped by the
// currency-risk size multiplier and capped at maxPositionSize.
func halfKellySize(confidence, riskReward, currencyMultiplier float64) float64 {
	if riskReward <= 0 {
		return 0
	}
	p := confidence
	q := 1 - p
	kelly := p - q/riskReward
	if kelly < 0 {
		return 0
	}
	half := kelly * 0.5 * currencyMultiplier
	if half > maxPositionSize {
		half = maxPositionSize
	}
	return half
}

// transactionCostClears reports whether the expected move to take_profit
// covers 2x spread plus commission both ways; if not, the trade isn't
// worth the friction and the signal should be downgraded to HOLD.
func transactionCostClears(signal types.SignalType, entry, takeProfit decimal.Decimal, costs types.SimCosts) bool {
	move := takeProfit.Sub(entry).Abs()
	minProfit := costs.SpreadTL.Mul(decimal.NewFromInt(2)).Add(entry.Mul(costs.CommissionPct).Mul(decimal.NewFromInt(2)))
	return move.GreaterThan(minProfit)
}
