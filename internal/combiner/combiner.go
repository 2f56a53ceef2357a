// Package combiner fuses the gram, global-trend, and currency-risk
// sub-signals produced by the hybrid strategy into one AnalysisRecord: a
// weighted vote across directional sources, gated by confidence,
// volatility, and transaction cost, with risk parameters attached.
package combiner

import (
	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// GramSignal is the gram-price sub-signal the hybrid strategy computes
// from indicators and analyzers: a direction score in [-1,1] plus a
// local confidence and the sub-analyses it was derived from.
type GramSignal struct {
	Score       float64
	Confidence  float64
	SubAnalyses []types.SubAnalysis
	ATR         decimal.Decimal
	EntryPrice  decimal.Decimal
}

// Weights are the per-source vote weights; confirmation weights are
// keyed by AnalysisKind string.
type Weights struct {
	Gram         float64
	Global       float64
	Currency     float64
	Confirmation map[string]float64
}

// Params are the combiner's tunable gates and multipliers, sourced from
// types.EngineConfig.
type Params struct {
	Weights              Weights
	MinConfidence         map[types.Timeframe]float64
	GramOverrideConfidence float64
	MinVolatilityPct      float64
	Costs                 types.SimCosts
}

// ParamsFromConfig builds combiner Params from the engine configuration.
func ParamsFromConfig(cfg types.EngineConfig) Params {
	confirmation := make(map[string]float64, len(cfg.ModuleWeights))
	for k, v := range cfg.ModuleWeights {
		switch k {
		case "gram", "global", "currency":
			continue
		default:
			confirmation[k] = v
		}
	}
	return Params{
		Weights: Weights{
			Gram:         cfg.ModuleWeights["gram"],
			Global:       cfg.ModuleWeights["global"],
			Currency:     cfg.ModuleWeights["currency"],
			Confirmation: confirmation,
		},
		MinConfidence:          cfg.MinConfidenceThresholds,
		GramOverrideConfidence: cfg.GramOverrideConfidence,
		MinVolatilityPct:       cfg.MinVolatilityPct,
		Costs:                  cfg.Simulation.Costs,
	}
}

// riskMultipliers maps a volatility bucket to stop-loss/take-profit ATR
// multipliers; low volatility affords a wider stop since noise is the
// dominant risk, high volatility tightens both.
var riskMultipliers = map[types.VolatilityLevel][2]float64{
	types.VolVeryLow: {3.0, 6.0},
	types.VolLow:     {2.5, 5.0},
	types.VolMedium:  {2.0, 4.0},
	types.VolHigh:    {1.5, 2.5},
	types.VolExtreme: {1.2, 1.8},
}

// Combine fuses gram, global, and currency sub-signals into the
// timeframe's AnalysisRecord.
func Combine(tf types.Timeframe, gram GramSignal, global types.GlobalTrend, currency types.CurrencyRisk, p Params) types.AnalysisRecord {
	record := types.AnalysisRecord{
		Timeframe:    tf,
		GramPrice:    gram.EntryPrice,
		GlobalTrend:  global,
		CurrencyRisk: currency,
		SubAnalyses:  gram.SubAnalyses,
	}

	signal, confidence, agreeing := vote(gram, global, currency, p)
	holdReason := ""

	overridden := false
	if directionOf(gram.Score) != 0 && gram.Confidence >= p.GramOverrideConfidence {
		signal = directionSignal(gram.Score)
		confidence = gram.Confidence
		overridden = true
	}

	if !overridden {
		if conflictsWithGlobal(signal, global) {
			confidence *= 0.7
		}
		if currency.Level == types.CurrencyRiskExtreme && signal != types.SignalHold {
			confidence *= 0.7
		}
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}

	threshold := p.MinConfidence[tf]
	if confidence < threshold {
		signal = types.SignalHold
		holdReason = "below_confidence_threshold"
	}

	volRegime := findVolatilityRegime(gram.SubAnalyses)
	if volRegime != nil {
		pct, _ := volRegime.ATRPct.Float64()
		if pct < p.MinVolatilityPct {
			signal = types.SignalHold
			holdReason = "low_volatility"
		}
	}

	record.Signal = signal
	record.Confidence = confidence
	record.SignalStrength = strengthOf(confidence, agreeing)

	if signal != types.SignalHold {
		sl, tp, rr, size := riskParameters(signal, gram, volRegime, currency)
		if !transactionCostClears(signal, gram.EntryPrice, tp, p.Costs) {
			record.Signal = types.SignalHold
			record.SignalStrength = types.StrengthWeak
			holdReason = "transaction_cost"
		} else {
			record.StopLoss = sl
			record.TakeProfit = tp
			record.RiskReward = rr
			record.PositionSize = size
		}
	}

	record.Summary = summarize(record, holdReason)
	return record
}

func directionOf(score float64) int {
	switch {
	case score > 0:
		return 1
	case score < 0:
		return -1
	default:
		return 0
	}
}

func directionSignal(score float64) types.SignalType {
	if score > 0 {
		return types.SignalBuy
	}
	return types.SignalSell
}

func directionOfSignal(s types.SignalType) int {
	switch s {
	case types.SignalBuy:
		return 1
	case types.SignalSell:
		return -1
	default:
		return 0
	}
}

// vote computes the weighted-majority signal and confidence across the
// gram, global, and currency sources plus every confirming sub-analysis,
// returning the number of sources (gram included) that agree with gram's
// direction.
func vote(gram GramSignal, global types.GlobalTrend, currency types.CurrencyRisk, p Params) (types.SignalType, float64, int) {
	scores := map[int]float64{-1: 0, 0: 0, 1: 0}

	gramDir := directionOf(gram.Score)
	scores[gramDir] += p.Weights.Gram * gram.Confidence

	globalDir := directionOf(global.Direction)
	scores[globalDir] += p.Weights.Global * clamp01(global.Strength)

	// Currency risk never votes its own direction; it only adds weight
	// behind whichever direction gram already leans, scaled by how
	// risky the TRY leg currently looks.
	currencyWeight := p.Weights.Currency * currencyConfidence(currency)
	scores[gramDir] += currencyWeight

	agreeing := 1 // gram always counts as one source
	if globalDir == gramDir && globalDir != 0 {
		agreeing++
	}

	for _, sa := range gram.SubAnalyses {
		w, ok := p.Weights.Confirmation[string(sa.Kind)]
		if !ok || sa.Insufficient {
			continue
		}
		dir := confirmationDirection(sa)
		scores[dir] += w * sa.Confidence
		if dir == gramDir && dir != 0 {
			agreeing++
		}
	}

	best := types.SignalHold
	bestScore := scores[0]
	if scores[1] > bestScore {
		best = types.SignalBuy
		bestScore = scores[1]
	}
	if scores[-1] > bestScore {
		best = types.SignalSell
		bestScore = scores[-1]
	}

	total := scores[-1] + scores[0] + scores[1]
	confidence := 0.0
	if total > 0 {
		confidence = bestScore / total * (p.Weights.Gram + p.Weights.Global + p.Weights.Currency + sumConfirmationWeights(p))
	}

	return best, clamp01(confidence), agreeing
}

func sumConfirmationWeights(p Params) float64 {
	sum := 0.0
	for _, w := range p.Weights.Confirmation {
		sum += w
	}
	return sum
}

func currencyConfidence(c types.CurrencyRisk) float64 {
	switch c.Level {
	case types.CurrencyRiskLow:
		return 0.3
	case types.CurrencyRiskMedium:
		return 0.5
	case types.CurrencyRiskHigh:
		return 0.7
	case types.CurrencyRiskExtreme:
		return 0.9
	default:
		return 0
	}
}

// confirmationDirection maps a confirming sub-analysis to a directional
// vote: bullish structures/divergences vote +1, bearish vote -1.
func confirmationDirection(sa types.SubAnalysis) int {
	switch sa.Kind {
	case types.KindDivergence:
		if sa.Divergence == nil {
			return 0
		}
		if sa.Divergence.Bullish {
			return 1
		}
		return -1
	case types.KindStructure:
		if sa.Structure == nil {
			return 0
		}
		switch sa.Structure.Current {
		case types.StructureUptrend:
			return 1
		case types.StructureDowntrend:
			return -1
		}
		return 0
	case types.KindTrendRegime:
		if sa.TrendRegime == nil {
			return 0
		}
		return sa.TrendRegime.Direction
	case types.KindSmartMoney:
		if sa.SmartMoney == nil || sa.SmartMoney.StopHunt == nil {
			return 0
		}
		return sa.SmartMoney.StopHunt.Direction
	case types.KindFibonacci:
		if sa.Fibonacci == nil || !sa.Fibonacci.ActiveBounce {
			return 0
		}
		return 1
	default:
		return 0
	}
}

func conflictsWithGlobal(signal types.SignalType, global types.GlobalTrend) bool {
	dir := directionOfSignal(signal)
	return dir != 0 && directionOf(global.Direction) != 0 && dir != directionOf(global.Direction)
}

func findVolatilityRegime(subAnalyses []types.SubAnalysis) *types.VolatilityRegime {
	for _, sa := range subAnalyses {
		if sa.Kind == types.KindVolatilityRegime && !sa.Insufficient {
			return sa.VolatilityRegime
		}
	}
	return nil
}

func strengthOf(confidence float64, agreeing int) types.SignalStrength {
	switch {
	case confidence >= 0.7 && agreeing >= 3:
		return types.StrengthStrong
	case confidence >= 0.55:
		return types.StrengthModerate
	default:
		return types.StrengthWeak
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// summarize builds the human-readable summary attached to an
// AnalysisRecord. reason names the specific gate that forced a HOLD
// ("low_volatility", "below_confidence_threshold", "transaction_cost");
// empty when the vote itself settled on HOLD with no gate involved.
func summarize(r types.AnalysisRecord, reason string) string {
	if r.Signal == types.SignalHold {
		if reason == "" {
			return "HOLD: no directional consensus"
		}
		return "HOLD: " + reason
	}
	return string(r.Signal) + " signal on " + string(r.Timeframe) + " at " + string(r.SignalStrength) + " strength"
}
