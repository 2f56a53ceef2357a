// Package types provides configuration types for the gold price analyzer.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EngineConfig is the top-level runtime configuration, populated by
// internal/config from environment variables and an optional file.
type EngineConfig struct {
	CollectionIntervalS    int                    `mapstructure:"collection_interval_s"`
	MinConfidenceThresholds map[Timeframe]float64 `mapstructure:"min_confidence_thresholds"`
	GramOverrideConfidence float64                `mapstructure:"gram_override_confidence"`
	MinVolatilityPct       float64                `mapstructure:"min_volatility_pct"`
	ModuleWeights          map[string]float64     `mapstructure:"module_weights"`
	Simulation             SimulationDefaults     `mapstructure:"simulation"`
	TradingWindow          TradingWindow          `mapstructure:"trading_window"`
	RetentionDaysRaw       int                    `mapstructure:"retention_days_raw"`
	Server                 ServerConfig           `mapstructure:"server"`
	Data                   DataConfig             `mapstructure:"data"`
}

// SimulationDefaults are defaults applied to newly created Simulations.
type SimulationDefaults struct {
	Costs              SimCosts        `mapstructure:"costs"`
	MaxPositionPct     decimal.Decimal `mapstructure:"max_position_pct"`
	MaxDailyLossPct    decimal.Decimal `mapstructure:"max_daily_loss_pct"`
	MaxRiskPerTradePct decimal.Decimal `mapstructure:"max_risk_per_trade_pct"`
}

// TradingWindow bounds when new positions may be opened.
type TradingWindow struct {
	Start string `mapstructure:"start"` // "HH:MM"
	End   string `mapstructure:"end"`   // "HH:MM"
	Zone  string `mapstructure:"zone"`  // IANA timezone name
}

// ServerConfig configures the HTTP/WebSocket API surface.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	WebSocketPath  string        `mapstructure:"websocket_path"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxConnections int           `mapstructure:"max_connections"`
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
}

// DataConfig configures the persistent store.
type DataConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	CacheSize int    `mapstructure:"cache_size_mb"`
}

// DefaultEngineConfig returns the engine's documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CollectionIntervalS: 5,
		MinConfidenceThresholds: map[Timeframe]float64{
			Timeframe15m: 0.35,
			Timeframe1h:  0.40,
			Timeframe4h:  0.45,
			Timeframe1d:  0.50,
		},
		GramOverrideConfidence: 0.50,
		MinVolatilityPct:       0.5,
		ModuleWeights: map[string]float64{
			"gram":       0.50,
			"global":     0.15,
			"currency":   0.10,
			"divergence": 0.05,
			"structure":  0.05,
			"smc":        0.05,
			"trend_regime": 0.05,
			"fibonacci":  0.05,
		},
		Simulation: SimulationDefaults{
			Costs: SimCosts{
				SpreadTL:      decimal.NewFromFloat(2.0),
				CommissionPct: decimal.NewFromFloat(0.0003),
			},
			MaxPositionPct:     decimal.NewFromFloat(0.20),
			MaxDailyLossPct:    decimal.NewFromFloat(0.02),
			MaxRiskPerTradePct: decimal.NewFromFloat(0.02),
		},
		TradingWindow: TradingWindow{
			Start: "09:00",
			End:   "17:00",
			Zone:  "Europe/Istanbul",
		},
		RetentionDaysRaw: 7,
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			WebSocketPath:  "/ws",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			MaxConnections: 256,
			EnableMetrics:  true,
		},
		Data: DataConfig{
			DataDir:   "./data",
			CacheSize: 128,
		},
	}
}
