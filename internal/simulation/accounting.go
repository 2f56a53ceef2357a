package simulation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// closePosition applies spread and commission to marketPrice, computes
// realized P/L in both TRY and grams, credits size plus net P/L back to
// the timeframe's capital, persists the closed position, and rolls the
// day's performance.
func (e *Engine) closePosition(sim *types.Simulation, pos *types.Position, marketPrice decimal.Decimal, reason string, now time.Time) error {
	spreadHalf := sim.Costs.SpreadTL.Div(decimal.NewFromInt(2))
	exitPrice := marketPrice.Sub(spreadHalf)
	direction := decimal.NewFromInt(1)
	if pos.Side == types.PositionShort {
		exitPrice = marketPrice.Add(spreadHalf)
		direction = decimal.NewFromInt(-1)
	}
	exitCommission := exitPrice.Mul(pos.SizeGrams).Mul(sim.Costs.CommissionPct)
	exitSpreadCost := sim.Costs.SpreadTL.Mul(pos.SizeGrams)

	grossPnLTL := exitPrice.Sub(pos.EntryPrice).Mul(pos.SizeGrams).Mul(direction)
	totalCosts := pos.CostsTL.Add(exitCommission).Add(exitSpreadCost)
	netPnLTL := grossPnLTL.Sub(totalCosts)

	grossPnLGrams := decimal.Zero
	netPnLGrams := decimal.Zero
	if marketPrice.IsPositive() {
		grossPnLGrams = grossPnLTL.Div(marketPrice)
		netPnLGrams = netPnLTL.Div(marketPrice)
	}

	closed := *pos
	exitPriceCopy := exitPrice
	nowCopy := now
	closed.Status = types.PositionClosed
	closed.ExitPrice = &exitPriceCopy
	closed.ExitTs = &nowCopy
	closed.ExitReason = reason
	closed.GrossPnLTL = grossPnLTL
	closed.GrossPnLGrams = grossPnLGrams
	closed.CostsTL = totalCosts
	closed.NetPnLTL = netPnLTL
	closed.NetPnLGrams = netPnLGrams

	if err := e.store.UpdatePositionExit(closed); err != nil {
		return err
	}

	newCapital := sim.PerTFCapital[pos.Timeframe].Add(pos.SizeGrams).Add(netPnLGrams)
	if err := e.store.UpdateSimState(sim.ID, perTFCapitalUpdate(pos.Timeframe, newCapital)); err != nil {
		return err
	}
	sim.PerTFCapital[pos.Timeframe] = newCapital

	e.bus.Publish(events.NewPositionClosedEvent(closed))
	e.rollDailyPerformance(sim, now)
	return nil
}

// rollDailyPerformance recomputes today's performance roll-up for sim
// from every position closed today across every timeframe it tracks.
func (e *Engine) rollDailyPerformance(sim *types.Simulation, now time.Time) {
	closedStatus := types.PositionClosed
	all := e.store.FetchPositions(sim.ID, &closedStatus)

	day := now.Truncate(24 * time.Hour)
	var closedToday int
	var wins, losses int
	pnlGrams := decimal.Zero
	for _, p := range all {
		if p.ExitTs == nil || !sameDay(*p.ExitTs, now) {
			continue
		}
		closedToday++
		pnlGrams = pnlGrams.Add(p.NetPnLGrams)
		if p.NetPnLGrams.IsPositive() {
			wins++
		} else if p.NetPnLGrams.IsNegative() {
			losses++
		}
	}

	ending := decimal.Zero
	for _, amount := range sim.PerTFCapital {
		ending = ending.Add(amount)
	}
	pnlPct := decimal.Zero
	if sim.InitialCapitalGrams.IsPositive() {
		pnlPct = pnlGrams.Div(sim.InitialCapitalGrams).Mul(decimal.NewFromInt(100))
	}

	perf := types.DailyPerformance{
		SimID:           sim.ID,
		Date:            day,
		StartingCapital: sim.InitialCapitalGrams,
		EndingCapital:   ending,
		ClosedTrades:    closedToday,
		Wins:            wins,
		Losses:          losses,
		DailyPnLGrams:   pnlGrams,
		DailyPnLPct:     pnlPct,
	}
	if err := e.store.UpdateDailyPerformance(perf); err != nil {
		e.logger.Warn("failed to persist daily performance")
		return
	}
	e.bus.Publish(events.NewDailyRollEvent(perf))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
