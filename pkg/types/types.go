// Package types provides shared domain types for the gold price analyzer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe is a candle aggregation interval.
type Timeframe string

const (
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Timeframes lists every timeframe the engine tracks.
var Timeframes = []Timeframe{Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1d}

// Duration returns the wall-clock bucket width of the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// SignalType is the final decision a timeframe's analysis produces.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Sign returns +1 for BUY, -1 for SELL, 0 for HOLD.
func (s SignalType) Sign() int {
	switch s {
	case SignalBuy:
		return 1
	case SignalSell:
		return -1
	default:
		return 0
	}
}

// SignalStrength buckets confidence into a coarse, human-facing grade.
type SignalStrength string

const (
	StrengthStrong   SignalStrength = "STRONG"
	StrengthModerate SignalStrength = "MODERATE"
	StrengthWeak     SignalStrength = "WEAK"
)

// PriceQuote is a single raw tick pushed by the upstream vendor adapter.
// Created by the ingestion port; never mutated after creation.
type PriceQuote struct {
	Timestamp time.Time       `json:"ts"`
	GramGold  decimal.Decimal `json:"gram_gold"`
	OunceUSD  decimal.Decimal `json:"ounce_usd"`
	USDTRY    decimal.Decimal `json:"usd_try"`
	OunceTRY  decimal.Decimal `json:"ounce_try"`
}

// Candle is one OHLC bucket for a given interval.
// Keyed by (Interval, TsOpen); mutated only while open, sealed at the
// interval boundary and never rewritten afterward.
type Candle struct {
	TsOpen    time.Time       `json:"ts_open"`
	Interval  Timeframe       `json:"interval"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	TickCount int             `json:"tick_count"`
	Sealed    bool            `json:"sealed"`
}

// TrendRegimeType classifies how directional the market currently is.
type TrendRegimeType string

const (
	TrendTrending      TrendRegimeType = "trending"
	TrendRanging       TrendRegimeType = "ranging"
	TrendTransitioning TrendRegimeType = "transitioning"
)

// VolatilityLevel buckets ATR% into a human-facing scale.
type VolatilityLevel string

const (
	VolVeryLow VolatilityLevel = "very_low"
	VolLow     VolatilityLevel = "low"
	VolMedium  VolatilityLevel = "medium"
	VolHigh    VolatilityLevel = "high"
	VolExtreme VolatilityLevel = "extreme"
)

// MomentumState classifies the progression of momentum indicators.
type MomentumState string

const (
	MomentumAccelerating MomentumState = "accelerating"
	MomentumStable       MomentumState = "stable"
	MomentumDecelerating MomentumState = "decelerating"
	MomentumExhausted    MomentumState = "exhausted"
)

// StructureState is the current market-structure classification.
type StructureState string

const (
	StructureUptrend   StructureState = "UPTREND"
	StructureDowntrend StructureState = "DOWNTREND"
	StructureRanging   StructureState = "RANGING"
)

// AnalysisKind tags which SubAnalysis variant a payload holds.
type AnalysisKind string

const (
	KindTrendRegime      AnalysisKind = "trend_regime"
	KindVolatilityRegime AnalysisKind = "volatility_regime"
	KindMomentumRegime   AnalysisKind = "momentum_regime"
	KindDivergence       AnalysisKind = "divergence"
	KindStructure        AnalysisKind = "structure"
	KindSmartMoney       AnalysisKind = "smc"
	KindFibonacci        AnalysisKind = "fibonacci"
	KindPatterns         AnalysisKind = "patterns"
)

// SubAnalysis is a tagged-union result from one analyzer. Exactly one of
// the typed fields is populated, matching Kind. When Insufficient is true
// no typed payload is populated and Reason explains why.
type SubAnalysis struct {
	Kind       AnalysisKind `json:"kind"`
	Confidence float64      `json:"confidence"`

	Insufficient bool   `json:"insufficient,omitempty"`
	Reason       string `json:"reason,omitempty"`

	TrendRegime      *TrendRegime      `json:"trend_regime,omitempty"`
	VolatilityRegime *VolatilityRegime `json:"volatility_regime,omitempty"`
	MomentumRegime   *MomentumRegime   `json:"momentum_regime,omitempty"`
	Divergence       *Divergence       `json:"divergence,omitempty"`
	Structure        *Structure        `json:"structure,omitempty"`
	SmartMoney       *SmartMoney       `json:"smc,omitempty"`
	Fibonacci        *Fibonacci        `json:"fibonacci,omitempty"`
	Patterns         *Patterns         `json:"patterns,omitempty"`
}

// TrendRegime describes directional regime state from ADX/trend slope.
type TrendRegime struct {
	Type      TrendRegimeType `json:"type"`
	Direction int             `json:"direction"` // +1 up, -1 down, 0 flat
	ADX       decimal.Decimal `json:"adx"`
	Strength  float64         `json:"strength"`
}

// VolatilityRegime describes the ATR-derived volatility bucket.
type VolatilityRegime struct {
	Level            VolatilityLevel `json:"level"`
	ATR              decimal.Decimal `json:"atr"`
	ATRPct           decimal.Decimal `json:"atr_pct"`
	Expanding        bool            `json:"expanding"`
	Contracting      bool            `json:"contracting"`
	SqueezePotential bool            `json:"squeeze_potential"`
}

// MomentumRegime describes RSI/MACD-histogram progression.
type MomentumRegime struct {
	State     MomentumState `json:"state"`
	Alignment bool          `json:"alignment"` // indicators agree on direction
}

// SwingPoint is a single local extremum used by divergence/structure/fib.
type SwingPoint struct {
	Index      int             `json:"index"`
	Timestamp  time.Time       `json:"ts"`
	Price      decimal.Decimal `json:"price"`
	IsHigh     bool            `json:"is_high"`
	Prominence float64         `json:"prominence"`
}

// Divergence describes a price/oscillator divergence between two swings.
type Divergence struct {
	Bullish    bool    `json:"bullish"`
	Hidden     bool    `json:"hidden"`
	Strength   int     `json:"strength"` // 1..5
	Confidence float64 `json:"confidence"`
}

// PullbackZone is the retest band produced by a structure break.
type PullbackZone struct {
	Active bool            `json:"active"`
	Low    decimal.Decimal `json:"low"`
	High   decimal.Decimal `json:"high"`
}

// Structure describes the current market-structure classification.
type Structure struct {
	Current      StructureState    `json:"current"`
	Break        bool              `json:"break"`
	BreakType    string            `json:"break_type,omitempty"`
	PullbackZone PullbackZone      `json:"pullback_zone"`
	KeyLevels    []decimal.Decimal `json:"key_levels"`
}

// LiquidityPool is a price level touched repeatedly by prior highs/lows.
type LiquidityPool struct {
	Price   decimal.Decimal `json:"price"`
	Touches int             `json:"touches"`
	IsHigh  bool            `json:"is_high"`
}

// OrderBlock is a tight consolidation preceding a strong directional move.
type OrderBlock struct {
	StartIndex int             `json:"start_index"`
	EndIndex   int             `json:"end_index"`
	Low        decimal.Decimal `json:"low"`
	High       decimal.Decimal `json:"high"`
	Bullish    bool            `json:"bullish"`
}

// FVG is a 3-bar fair-value gap.
type FVG struct {
	Index   int             `json:"index"`
	Top     decimal.Decimal `json:"top"`
	Bottom  decimal.Decimal `json:"bottom"`
	Bullish bool            `json:"bullish"`
	Filled  bool            `json:"filled"`
}

// StopHunt is a wick-driven excursion across a liquidity level with a
// rapid reversion within two bars.
type StopHunt struct {
	Level     decimal.Decimal `json:"level"`
	Index     int             `json:"index"`
	Reverted  bool            `json:"reverted"`
	Direction int             `json:"direction"`
}

// SmartMoney aggregates order-flow-style structure.
type SmartMoney struct {
	LiquidityPools []LiquidityPool   `json:"liquidity_pools"`
	StopHunt       *StopHunt         `json:"stop_hunt,omitempty"`
	OrderBlocks    []OrderBlock      `json:"order_blocks"`
	FVGs           []FVG             `json:"fvgs"`
	EntryZones     []decimal.Decimal `json:"entry_zones"`
}

// FibLevel is one retracement level drawn off a swing.
type FibLevel struct {
	Ratio float64         `json:"ratio"`
	Price decimal.Decimal `json:"price"`
}

// Fibonacci describes retracement levels drawn from the latest swing.
type Fibonacci struct {
	Levels       []FibLevel `json:"levels"`
	ActiveBounce bool       `json:"active_bounce"`
	TargetLevel  float64    `json:"target_level,omitempty"`
}

// DetectedPattern is a single recognized chart pattern.
type DetectedPattern struct {
	Name       string          `json:"name"`
	Confidence float64         `json:"confidence"`
	Target     decimal.Decimal `json:"target"`
}

// Patterns wraps the list of chart patterns detected in the series.
type Patterns struct {
	Detected []DetectedPattern `json:"detected"`
}

// GlobalTrend is the ounce/USD-derived long-horizon context sub-signal.
type GlobalTrend struct {
	Direction int     `json:"direction"`
	Strength  float64 `json:"strength"`
	Momentum  float64 `json:"momentum"`
}

// CurrencyRiskLevel buckets USD/TRY volatility.
type CurrencyRiskLevel string

const (
	CurrencyRiskLow     CurrencyRiskLevel = "LOW"
	CurrencyRiskMedium  CurrencyRiskLevel = "MEDIUM"
	CurrencyRiskHigh    CurrencyRiskLevel = "HIGH"
	CurrencyRiskExtreme CurrencyRiskLevel = "EXTREME"
)

// CurrencyRisk is the USD/TRY-derived sizing-risk sub-signal.
type CurrencyRisk struct {
	Level      CurrencyRiskLevel `json:"level"`
	Multiplier float64           `json:"multiplier"` // in [0.3, 1.3]
}

// AnalysisRecord is the append-only output of one hybrid-strategy and
// signal-combiner run for a timeframe at a given timestamp. One per
// (Timeframe, Timestamp).
type AnalysisRecord struct {
	Timestamp       time.Time       `json:"ts"`
	Timeframe       Timeframe       `json:"timeframe"`
	GramPrice       decimal.Decimal `json:"gram_price"`
	Signal          SignalType      `json:"signal"`
	Confidence      float64         `json:"confidence"`
	SignalStrength  SignalStrength  `json:"signal_strength"`
	PositionSize    float64         `json:"position_size"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	TakeProfit      decimal.Decimal `json:"take_profit"`
	RiskReward      float64         `json:"risk_reward"`
	GlobalTrend     GlobalTrend     `json:"global_trend"`
	CurrencyRisk    CurrencyRisk    `json:"currency_risk"`
	SubAnalyses     []SubAnalysis   `json:"sub_analyses"`
	Summary         string          `json:"summary"`
	Recommendations []string        `json:"recommendations"`
}

// SignalRecord is a projection of an AnalysisRecord whose signal != HOLD.
type SignalRecord struct {
	Timestamp      time.Time       `json:"ts"`
	Timeframe      Timeframe       `json:"timeframe"`
	Signal         SignalType      `json:"signal"`
	Confidence     float64         `json:"confidence"`
	SignalStrength SignalStrength  `json:"signal_strength"`
	GramPrice      decimal.Decimal `json:"gram_price"`
	StopLoss       decimal.Decimal `json:"stop_loss"`
	TakeProfit     decimal.Decimal `json:"take_profit"`
}

// SignalRecordFromAnalysis projects an AnalysisRecord into a SignalRecord.
// Callers must only call this for records whose Signal != HOLD.
func SignalRecordFromAnalysis(a AnalysisRecord) SignalRecord {
	return SignalRecord{
		Timestamp:      a.Timestamp,
		Timeframe:      a.Timeframe,
		Signal:         a.Signal,
		Confidence:     a.Confidence,
		SignalStrength: a.SignalStrength,
		GramPrice:      a.GramPrice,
		StopLoss:       a.StopLoss,
		TakeProfit:     a.TakeProfit,
	}
}

// StrategyType selects which filter set a Simulation's position opener
// applies.
type StrategyType string

const (
	StrategyMain          StrategyType = "MAIN"
	StrategyConservative  StrategyType = "CONSERVATIVE"
	StrategyMomentum      StrategyType = "MOMENTUM"
	StrategyMeanReversion StrategyType = "MEAN_REVERSION"
	StrategyConsensus     StrategyType = "CONSENSUS"
	StrategyRiskAdjusted  StrategyType = "RISK_ADJUSTED"
	StrategyTimeBased     StrategyType = "TIME_BASED"
)

// SimStatus is the lifecycle status of a Simulation.
type SimStatus string

const (
	SimActive   SimStatus = "ACTIVE"
	SimPaused   SimStatus = "PAUSED"
	SimFinished SimStatus = "FINISHED"
)

// SimCosts are the transaction-cost assumptions a Simulation applies.
type SimCosts struct {
	SpreadTL      decimal.Decimal `json:"spread_tl"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
}

// SimThresholds are the entry/risk gates a Simulation applies.
type SimThresholds struct {
	MinConfidence   float64         `json:"min_confidence"`
	MaxRiskPct      decimal.Decimal `json:"max_risk_pct"`
	MaxDailyLossPct decimal.Decimal `json:"max_daily_loss_pct"`
}

// Simulation is the configuration of one paper-trading run. Status,
// PauseReason, and PerTFCapital are its mutable state, updated in the
// store through UpdateSimState; positions live in the store, not on this
// struct.
type Simulation struct {
	ID                  string                         `json:"id"`
	Name                string                         `json:"name"`
	StrategyType        StrategyType                   `json:"strategy_type"`
	Status              SimStatus                      `json:"status"`
	PauseReason         string                         `json:"pause_reason,omitempty"`
	InitialCapitalGrams decimal.Decimal                `json:"initial_capital_grams"`
	PerTFCapital        map[Timeframe]decimal.Decimal  `json:"per_tf_capital"`
	Timeframes          []Timeframe                    `json:"timeframes"`
	Costs               SimCosts                       `json:"costs"`
	Thresholds          SimThresholds                  `json:"thresholds"`
}

// PositionStatus is the lifecycle status of a Position.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// PositionSide is the direction of a paper trade.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// Position is one paper trade within a Simulation.
type Position struct {
	ID              string           `json:"id"`
	SimID           string           `json:"sim_id"`
	Timeframe       Timeframe        `json:"timeframe"`
	Side            PositionSide     `json:"type"`
	SizeGrams       decimal.Decimal  `json:"size_grams"`
	EntryPrice      decimal.Decimal  `json:"entry_price"`
	EntryTs         time.Time        `json:"entry_ts"`
	EntryConfidence float64          `json:"entry_confidence"`
	StopLoss        decimal.Decimal  `json:"stop_loss"`
	TakeProfit      decimal.Decimal  `json:"take_profit"`
	TrailingStop    *decimal.Decimal `json:"trailing_stop,omitempty"`
	BestExcursion   decimal.Decimal  `json:"best_excursion"`
	EntryATR        decimal.Decimal  `json:"entry_atr"`
	Status          PositionStatus   `json:"status"`
	ExitPrice       *decimal.Decimal `json:"exit_price,omitempty"`
	ExitTs          *time.Time       `json:"exit_ts,omitempty"`
	ExitReason      string           `json:"exit_reason,omitempty"`
	GrossPnLTL      decimal.Decimal  `json:"gross_pnl_tl"`
	GrossPnLGrams   decimal.Decimal  `json:"gross_pnl_grams"`
	CostsTL         decimal.Decimal  `json:"costs_tl"`
	NetPnLTL        decimal.Decimal  `json:"net_pnl_tl"`
	NetPnLGrams     decimal.Decimal  `json:"net_pnl_grams"`
}

// DailyPerformance is a per-simulation, per-day performance roll-up.
type DailyPerformance struct {
	SimID           string          `json:"sim_id"`
	Date            time.Time       `json:"date"` // start of the UTC day the roll-up covers
	StartingCapital decimal.Decimal `json:"starting_capital"`
	EndingCapital   decimal.Decimal `json:"ending_capital"`
	ClosedTrades    int             `json:"closed_trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	DailyPnLGrams   decimal.Decimal `json:"daily_pnl_grams"`
	DailyPnLPct     decimal.Decimal `json:"daily_pnl_pct"`
}
