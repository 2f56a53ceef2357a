package simulation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// maxHoldByTF bounds how long a position may stay open before the
// time-based exit fires, scaled to each timeframe's own horizon.
var maxHoldByTF = map[types.Timeframe]time.Duration{
	types.Timeframe15m: 4 * time.Hour,
	types.Timeframe1h:  24 * time.Hour,
	types.Timeframe4h:  72 * time.Hour,
	types.Timeframe1d:  7 * 24 * time.Hour,
}

// trailingActivationMultiple is how many stop-distances of favorable
// excursion must accrue before the trailing stop arms.
const trailingActivationMultiple = 1.0

// trailingRetainPct is the fraction of best favorable excursion the
// trailing stop holds once armed.
const trailingRetainPct = 0.70

// confidenceDecayFloor is the fraction of entry confidence below which
// the position is closed regardless of price.
const confidenceDecayFloor = 0.4

// atrSpikeMultiple is how much ATR must grow relative to entry before the
// volatility-spike exit fires.
const atrSpikeMultiple = 1.5

// evaluateExit checks every exit strategy in priority order against pos
// and closes it on the first one that fires.
func (e *Engine) evaluateExit(sim *types.Simulation, pos *types.Position, record types.AnalysisRecord) error {
	now := time.Now()
	price := record.GramPrice

	if hit, exitPrice := stopOrTargetHit(pos, price); hit {
		return e.closePosition(sim, pos, exitPrice, "stop_loss_or_take_profit", now)
	}

	if dailyLossBreached(sim, pos, price) {
		return e.closePosition(sim, pos, price, "daily_loss_limit", now)
	}

	if oppositeSignal(pos, record, sim.Thresholds.MinConfidence) {
		return e.closePosition(sim, pos, price, "opposite_signal", now)
	}

	if crossed, exitPrice := e.trailingStopCheck(pos, price); crossed {
		return e.closePosition(sim, pos, exitPrice, "trailing_stop", now)
	}

	if maxHoldExceeded(pos, now) {
		return e.closePosition(sim, pos, price, "max_hold_duration", now)
	}

	if confidenceDecayed(pos, record) {
		return e.closePosition(sim, pos, price, "confidence_decay", now)
	}

	if volatilitySpiked(pos, record) {
		return e.closePosition(sim, pos, price, "volatility_spike", now)
	}

	return nil
}

func stopOrTargetHit(pos *types.Position, price decimal.Decimal) (bool, decimal.Decimal) {
	if pos.Side == types.PositionLong {
		if price.LessThanOrEqual(pos.StopLoss) {
			return true, pos.StopLoss
		}
		if price.GreaterThanOrEqual(pos.TakeProfit) {
			return true, pos.TakeProfit
		}
		return false, decimal.Zero
	}
	if price.GreaterThanOrEqual(pos.StopLoss) {
		return true, pos.StopLoss
	}
	if price.LessThanOrEqual(pos.TakeProfit) {
		return true, pos.TakeProfit
	}
	return false, decimal.Zero
}

func dailyLossBreached(sim *types.Simulation, pos *types.Position, price decimal.Decimal) bool {
	tfCapital := sim.PerTFCapital[pos.Timeframe]
	if tfCapital.IsZero() {
		return false
	}
	unrealized := unrealizedPnL(pos, price)
	limit := tfCapital.Mul(sim.Thresholds.MaxDailyLossPct).Neg()
	return unrealized.LessThanOrEqual(limit)
}

func oppositeSignal(pos *types.Position, record types.AnalysisRecord, minConfidence float64) bool {
	if record.Confidence < minConfidence {
		return false
	}
	switch pos.Side {
	case types.PositionLong:
		return record.Signal == types.SignalSell
	case types.PositionShort:
		return record.Signal == types.SignalBuy
	default:
		return false
	}
}

// trailingStopCheck arms a trailing stop once unrealized PnL clears the
// activation threshold, tracks the best favorable excursion seen since,
// and fires when price retraces back across 70% of that excursion.
func (e *Engine) trailingStopCheck(pos *types.Position, price decimal.Decimal) (bool, decimal.Decimal) {
	stopDistance := pos.EntryPrice.Sub(pos.StopLoss).Abs()
	if stopDistance.IsZero() {
		return false, decimal.Zero
	}
	excursion := favorableExcursion(pos, price)
	if excursion.GreaterThan(pos.BestExcursion) {
		pos.BestExcursion = excursion
		if err := e.store.UpdatePositionExit(*pos); err != nil {
			e.logger.Warn("failed to persist trailing excursion update")
		}
	}

	activation := stopDistance.Mul(decimal.NewFromFloat(trailingActivationMultiple))
	if pos.BestExcursion.LessThan(activation) {
		return false, decimal.Zero
	}

	retained := pos.BestExcursion.Mul(decimal.NewFromFloat(trailingRetainPct))
	var trail decimal.Decimal
	if pos.Side == types.PositionLong {
		trail = pos.EntryPrice.Add(retained)
		if price.LessThanOrEqual(trail) {
			return true, trail
		}
		return false, decimal.Zero
	}
	trail = pos.EntryPrice.Sub(retained)
	if price.GreaterThanOrEqual(trail) {
		return true, trail
	}
	return false, decimal.Zero
}

func favorableExcursion(pos *types.Position, price decimal.Decimal) decimal.Decimal {
	if pos.Side == types.PositionLong {
		return price.Sub(pos.EntryPrice)
	}
	return pos.EntryPrice.Sub(price)
}

func unrealizedPnL(pos *types.Position, price decimal.Decimal) decimal.Decimal {
	diff := favorableExcursion(pos, price)
	return diff.Mul(pos.SizeGrams)
}

func maxHoldExceeded(pos *types.Position, now time.Time) bool {
	limit, ok := maxHoldByTF[pos.Timeframe]
	if !ok {
		limit = 24 * time.Hour
	}
	return now.Sub(pos.EntryTs) >= limit
}

func confidenceDecayed(pos *types.Position, record types.AnalysisRecord) bool {
	if pos.EntryConfidence <= 0 {
		return false
	}
	return record.Confidence < confidenceDecayFloor*pos.EntryConfidence
}

func volatilitySpiked(pos *types.Position, record types.AnalysisRecord) bool {
	if pos.EntryATR.IsZero() {
		return false
	}
	vol := volatilityRegimeOf(record)
	if vol == nil {
		return false
	}
	threshold := pos.EntryATR.Mul(decimal.NewFromFloat(atrSpikeMultiple))
	return vol.ATR.GreaterThanOrEqual(threshold)
}
