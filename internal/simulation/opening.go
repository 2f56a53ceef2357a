package simulation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/indicators"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// filterCandleLookback is how much history opening filters load when they
// need to recompute an indicator themselves (RSI, Bollinger).
const filterCandleLookback = 30

// maxSizePct caps size_grams as a fraction of the timeframe's capital,
// independent of the risk-budget-derived size.
const maxSizePct = 0.20

// tryOpen applies the trading-window gate, the simulation's strategy-type
// filter, and the confidence gate, then sizes and opens a position.
func (e *Engine) tryOpen(sim *types.Simulation, record types.AnalysisRecord) error {
	if record.Signal == types.SignalHold {
		return nil
	}
	now := time.Now()
	if !withinTradingWindow(e.window, now) {
		return nil
	}
	if record.Confidence < sim.Thresholds.MinConfidence {
		return nil
	}

	ok, err := e.passesStrategyFilter(sim, record, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	tfCapital := sim.PerTFCapital[record.Timeframe]
	if tfCapital.IsZero() || tfCapital.IsNegative() {
		return nil
	}

	stopDistance := record.GramPrice.Sub(record.StopLoss).Abs()
	if stopDistance.IsZero() {
		return nil
	}
	riskBudget := tfCapital.Mul(sim.Thresholds.MaxRiskPct)
	sizeGrams := riskBudget.Div(stopDistance)
	ceiling := tfCapital.Mul(decimal.NewFromFloat(maxSizePct))
	if sizeGrams.GreaterThan(ceiling) {
		sizeGrams = ceiling
	}
	if sizeGrams.GreaterThan(tfCapital) {
		sizeGrams = tfCapital
	}
	if !sizeGrams.IsPositive() {
		return nil
	}

	side := types.PositionLong
	entryPrice := record.GramPrice.Sub(sim.Costs.SpreadTL.Div(decimal.NewFromInt(2)))
	if record.Signal == types.SignalSell {
		side = types.PositionShort
		entryPrice = record.GramPrice.Add(sim.Costs.SpreadTL.Div(decimal.NewFromInt(2)))
	}
	entryCommission := entryPrice.Mul(sizeGrams).Mul(sim.Costs.CommissionPct)
	entrySpreadCost := sim.Costs.SpreadTL.Mul(sizeGrams)

	entryATR := decimal.Zero
	if vol := volatilityRegimeOf(record); vol != nil {
		entryATR = vol.ATR
	}

	pos := types.Position{
		ID:              newPositionID(),
		SimID:           sim.ID,
		Timeframe:       record.Timeframe,
		Side:            side,
		SizeGrams:       sizeGrams,
		EntryPrice:      entryPrice,
		EntryTs:         now,
		EntryConfidence: record.Confidence,
		StopLoss:        record.StopLoss,
		TakeProfit:      record.TakeProfit,
		EntryATR:        entryATR,
		Status:          types.PositionOpen,
		CostsTL:         entryCommission.Add(entrySpreadCost),
	}

	newCapital := tfCapital.Sub(sizeGrams)
	if newCapital.IsNegative() {
		return errs.InvariantViolation("timeframe capital went negative opening position " + pos.ID)
	}

	if err := e.store.InsertPosition(pos); err != nil {
		return err
	}
	if err := e.store.UpdateSimState(sim.ID, perTFCapitalUpdate(record.Timeframe, newCapital)); err != nil {
		return err
	}
	e.bus.Publish(events.NewPositionOpenedEvent(pos))
	return nil
}

func perTFCapitalUpdate(tf types.Timeframe, amount decimal.Decimal) store.SimStateUpdate {
	return store.SimStateUpdate{PerTFCapital: map[types.Timeframe]decimal.Decimal{tf: amount}}
}

// passesStrategyFilter applies the strategy-type-specific entry rule on
// top of the universal trading-window and confidence gates.
func (e *Engine) passesStrategyFilter(sim *types.Simulation, record types.AnalysisRecord, now time.Time) (bool, error) {
	switch sim.StrategyType {
	case types.StrategyConservative:
		return record.SignalStrength == types.StrengthStrong, nil

	case types.StrategyMomentum:
		return e.momentumFilter(record)

	case types.StrategyMeanReversion:
		return e.meanReversionFilter(record)

	case types.StrategyConsensus:
		return countConfirmingSubAnalyses(record.SubAnalyses) >= 3, nil

	case types.StrategyRiskAdjusted:
		vol := volatilityRegimeOf(record)
		return vol == nil || vol.Level != types.VolExtreme, nil

	case types.StrategyTimeBased:
		return e.timeBasedFilter(record, now)

	case types.StrategyMain:
		return true, nil

	default:
		return true, nil
	}
}

func (e *Engine) momentumFilter(record types.AnalysisRecord) (bool, error) {
	candles, err := e.store.FetchCandles(record.Timeframe, filterCandleLookback, nil)
	if err != nil || len(candles) < indicators.RSIPeriod+1 {
		return false, nil
	}
	rsi, err := indicators.RSI(candles, indicators.RSIPeriod)
	if err != nil {
		return false, nil
	}
	v, _ := rsi.Float64()
	return v < 30 || v > 70, nil
}

func (e *Engine) meanReversionFilter(record types.AnalysisRecord) (bool, error) {
	candles, err := e.store.FetchCandles(record.Timeframe, filterCandleLookback, nil)
	if err != nil || len(candles) < indicators.BollingerPeriod {
		return false, nil
	}
	bb, err := indicators.Bollinger(candles)
	if err != nil {
		return false, nil
	}
	return record.GramPrice.LessThan(bb.Lower) || record.GramPrice.GreaterThan(bb.Upper), nil
}

func (e *Engine) timeBasedFilter(record types.AnalysisRecord, now time.Time) (bool, error) {
	loc, err := time.LoadLocation(e.window.Zone)
	if err != nil {
		loc = time.UTC
	}
	hour := now.In(loc).Hour()
	switch {
	case hour >= 9 && hour < 11:
		return e.momentumFilter(record)
	case hour >= 11 && hour < 14:
		return e.meanReversionFilter(record)
	case hour >= 14 && hour < 17:
		return record.SignalStrength == types.StrengthStrong, nil
	default:
		return false, nil
	}
}

func countConfirmingSubAnalyses(subAnalyses []types.SubAnalysis) int {
	count := 0
	for _, sa := range subAnalyses {
		if sa.Insufficient {
			continue
		}
		if subAnalysisConfirms(sa) {
			count++
		}
	}
	return count
}

func subAnalysisConfirms(sa types.SubAnalysis) bool {
	switch sa.Kind {
	case types.KindDivergence:
		return sa.Divergence != nil
	case types.KindStructure:
		return sa.Structure != nil && sa.Structure.Current != types.StructureRanging
	case types.KindTrendRegime:
		return sa.TrendRegime != nil && sa.TrendRegime.Direction != 0
	case types.KindSmartMoney:
		return sa.SmartMoney != nil && sa.SmartMoney.StopHunt != nil
	case types.KindFibonacci:
		return sa.Fibonacci != nil && sa.Fibonacci.ActiveBounce
	default:
		return false
	}
}

func volatilityRegimeOf(record types.AnalysisRecord) *types.VolatilityRegime {
	for _, sa := range record.SubAnalyses {
		if sa.Kind == types.KindVolatilityRegime && !sa.Insufficient {
			return sa.VolatilityRegime
		}
	}
	return nil
}
