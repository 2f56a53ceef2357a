// Package hybrid is the per-timeframe strategy orchestrator: it runs the
// indicator library and the pattern/structure analyzers over the gram
// candle series, derives the global-trend and currency-risk context
// sub-signals from the raw tick history, and hands all three to the
// signal combiner.
package hybrid

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/analyzers"
	"github.com/sezginpak/gold-analyzer/internal/combiner"
	"github.com/sezginpak/gold-analyzer/internal/indicators"
	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/sezginpak/gold-analyzer/pkg/utils"
)

// MinCandles is the minimum gram candle history required before this
// timeframe's analysis runs; below it, Analyze returns a HOLD record
// tagged insufficient_data.
const MinCandles = 20

// Strategy runs one timeframe's full analysis pass.
type Strategy struct {
	params combiner.Params
}

// New builds a Strategy from combiner parameters.
func New(params combiner.Params) *Strategy {
	return &Strategy{params: params}
}

// Analyze runs C3+C4 over gramCandles, derives global-trend and
// currency-risk from recentTicks, and returns the combined
// AnalysisRecord for tf.
func (s *Strategy) Analyze(tf types.Timeframe, gramCandles []types.Candle, recentTicks []types.PriceQuote) types.AnalysisRecord {
	if len(gramCandles) < MinCandles {
		return types.AnalysisRecord{
			Timeframe: tf,
			Signal:    types.SignalHold,
			Summary:   "insufficient_data: fewer than minimum candle history for " + string(tf),
		}
	}

	subAnalyses := runAnalyzers(gramCandles)
	gram := gramSubSignal(gramCandles, subAnalyses)
	global := globalTrendFrom(recentTicks)
	currency := currencyRiskFrom(recentTicks)

	return combiner.Combine(tf, gram, global, currency, s.params)
}

// runAnalyzers fans every pattern/structure analyzer out concurrently
// over the same candle series; none of them mutate shared state so
// there is no need to serialize them.
func runAnalyzers(candles []types.Candle) []types.SubAnalysis {
	fns := []func([]types.Candle) types.SubAnalysis{
		analyzers.TrendRegime,
		analyzers.VolatilityRegime,
		analyzers.MomentumRegime,
		analyzers.Divergence,
		analyzers.Structure,
		analyzers.Fibonacci,
		analyzers.SmartMoney,
		analyzers.Patterns,
	}

	results := make([]types.SubAnalysis, len(fns))
	var wg sync.WaitGroup
	wg.Add(len(fns))
	for i, fn := range fns {
		go func(i int, fn func([]types.Candle) types.SubAnalysis) {
			defer wg.Done()
			results[i] = fn(candles)
		}(i, fn)
	}
	wg.Wait()
	return results
}

// gramVoteWeights weights each indicator/analyzer contribution to the
// gram direction score. Indicators vote from their own standard
// overbought/oversold or crossover reading; analyzers vote via the same
// confirmationDirection mapping the combiner uses for confirmations.
var gramVoteWeights = map[string]float64{
	"rsi":          0.15,
	"macd":         0.15,
	"trend_regime": 0.15,
	"structure":    0.15,
	"momentum":     0.15,
	"divergence":   0.10,
	"fibonacci":    0.10,
	"smc":          0.05,
}

// gramSubSignal computes the gram-price direction score and local
// confidence by a weighted vote over RSI, MACD, and the analyzer
// sub-signals.
func gramSubSignal(candles []types.Candle, subAnalyses []types.SubAnalysis) combiner.GramSignal {
	score := 0.0
	totalWeight := 0.0
	agree := 0

	if rsi, err := indicators.RSI(candles, indicators.RSIPeriod); err == nil {
		v, _ := rsi.Float64()
		dir := 0.0
		switch {
		case v > 55:
			dir = (v - 50) / 50
		case v < 45:
			dir = (v - 50) / 50
		}
		score += dir * gramVoteWeights["rsi"]
		totalWeight += gramVoteWeights["rsi"]
	}

	if macd, err := indicators.MACD(candles); err == nil {
		dir := 0.0
		if macd.Histogram.IsPositive() {
			dir = 1
		} else if macd.Histogram.IsNegative() {
			dir = -1
		}
		score += dir * gramVoteWeights["macd"]
		totalWeight += gramVoteWeights["macd"]
	}

	for _, sa := range subAnalyses {
		key := analyzerVoteKey(sa.Kind)
		w, ok := gramVoteWeights[key]
		if !ok || sa.Insufficient {
			continue
		}
		dir := analyzerDirection(sa)
		score += dir * w * sa.Confidence
		totalWeight += w
		if dir != 0 {
			agree++
		}
	}

	finalScore := 0.0
	if totalWeight > 0 {
		finalScore = score / totalWeight
	}
	if finalScore > 1 {
		finalScore = 1
	}
	if finalScore < -1 {
		finalScore = -1
	}

	confidence := clamp01(0.4 + 0.15*float64(agree))

	entry := candles[len(candles)-1].Close
	atr := decimal.Zero
	if r, err := indicators.ATR(candles, indicators.ATRPeriod); err == nil {
		atr = r.ATR
	}

	return combiner.GramSignal{
		Score:       finalScore,
		Confidence:  confidence,
		SubAnalyses: subAnalyses,
		ATR:         atr,
		EntryPrice:  entry,
	}
}

func analyzerVoteKey(kind types.AnalysisKind) string {
	switch kind {
	case types.KindTrendRegime:
		return "trend_regime"
	case types.KindStructure:
		return "structure"
	case types.KindMomentumRegime:
		return "momentum"
	case types.KindDivergence:
		return "divergence"
	case types.KindFibonacci:
		return "fibonacci"
	case types.KindSmartMoney:
		return "smc"
	default:
		return ""
	}
}

func analyzerDirection(sa types.SubAnalysis) float64 {
	switch sa.Kind {
	case types.KindTrendRegime:
		if sa.TrendRegime == nil {
			return 0
		}
		return float64(sa.TrendRegime.Direction)
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
	case types.KindMomentumRegime:
		if sa.MomentumRegime == nil {
			return 0
		}
		if sa.MomentumRegime.State == types.MomentumAccelerating && sa.MomentumRegime.Alignment {
			return 1
		}
		if sa.MomentumRegime.State == types.MomentumExhausted {
			return -1
		}
		return 0
	case types.KindDivergence:
		if sa.Divergence == nil {
			return 0
		}
		if sa.Divergence.Bullish {
			return 1
		}
		return -1
	case types.KindFibonacci:
		if sa.Fibonacci == nil || !sa.Fibonacci.ActiveBounce {
			return 0
		}
		return 1
	case types.KindSmartMoney:
		if sa.SmartMoney == nil || sa.SmartMoney.StopHunt == nil {
			return 0
		}
		return float64(sa.SmartMoney.StopHunt.Direction)
	default:
		return 0
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

// globalTrendFrom derives direction/strength/momentum from the ounce/USD
// leg of the recent tick history: direction and strength from the
// overall slope of the series, momentum from the acceleration of the
// second half versus the first.
func globalTrendFrom(ticks []types.PriceQuote) types.GlobalTrend {
	if len(ticks) < 10 {
		return types.GlobalTrend{}
	}
	ounce := make([]decimal.Decimal, len(ticks))
	for i, t := range ticks {
		ounce[i] = t.OunceUSD
	}
	return trendFromSeries(ounce)
}

func trendFromSeries(series []decimal.Decimal) types.GlobalTrend {
	first := series[0]
	last := series[len(series)-1]
	if first.IsZero() {
		return types.GlobalTrend{}
	}
	change, _ := last.Sub(first).Div(first).Float64()

	direction := 0
	if change > 0.0005 {
		direction = 1
	} else if change < -0.0005 {
		direction = -1
	}
	strength := clamp01(absFloat(change) * 50)

	mid := len(series) / 2
	firstHalf := series[:mid]
	secondHalf := series[mid:]
	firstChange := relativeChange(firstHalf)
	secondChange := relativeChange(secondHalf)
	momentum := clamp01(absFloat(secondChange-firstChange) * 50)
	if secondChange < firstChange {
		momentum = -momentum
	}

	return types.GlobalTrend{Direction: direction, Strength: strength, Momentum: momentum}
}

func relativeChange(series []decimal.Decimal) float64 {
	if len(series) < 2 || series[0].IsZero() {
		return 0
	}
	f, _ := series[len(series)-1].Sub(series[0]).Div(series[0]).Float64()
	return f
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// currencyRiskFrom buckets USD/TRY volatility (stddev of returns over
// the recent tick history) into a risk level and sizing multiplier.
func currencyRiskFrom(ticks []types.PriceQuote) types.CurrencyRisk {
	if len(ticks) < 10 {
		return types.CurrencyRisk{Level: types.CurrencyRiskLow, Multiplier: 1.0}
	}
	rates := make([]decimal.Decimal, len(ticks))
	for i, t := range ticks {
		rates[i] = t.USDTRY
	}
	returns := utils.CalculateReturns(rates)
	vol := utils.CalculateStdDev(returns)
	v, _ := vol.Float64()

	switch {
	case v < 0.0005:
		return types.CurrencyRisk{Level: types.CurrencyRiskLow, Multiplier: 1.3}
	case v < 0.0015:
		return types.CurrencyRisk{Level: types.CurrencyRiskMedium, Multiplier: 1.0}
	case v < 0.003:
		return types.CurrencyRisk{Level: types.CurrencyRiskHigh, Multiplier: 0.6}
	default:
		return types.CurrencyRisk{Level: types.CurrencyRiskExtreme, Multiplier: 0.3}
	}
}
