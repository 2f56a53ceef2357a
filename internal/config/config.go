// Package config loads the engine's EngineConfig from environment
// variables and an optional override file, generalizing a flag-based
// server/data config bootstrap to viper so a config file can override
// env/defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix viper binds against
// (e.g. GOLDPX_SERVER_PORT).
const EnvPrefix = "GOLDPX"

// Load builds an EngineConfig, starting from DefaultEngineConfig,
// overlaying an optional config file at path (if non-empty and present),
// then environment variables.
func Load(path string) (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return cfg, errs.Configuration(fmt.Sprintf("failed to read config file %s: %v", path, err))
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errs.Configuration(fmt.Sprintf("failed to decode config: %v", err))
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// setDefaults seeds viper with the struct defaults so Unmarshal never
// silently zeroes a field the file/env didn't mention.
func setDefaults(v *viper.Viper, cfg types.EngineConfig) {
	v.SetDefault("collection_interval_s", cfg.CollectionIntervalS)
	v.SetDefault("gram_override_confidence", cfg.GramOverrideConfidence)
	v.SetDefault("min_volatility_pct", cfg.MinVolatilityPct)
	v.SetDefault("retention_days_raw", cfg.RetentionDaysRaw)
	v.SetDefault("module_weights", cfg.ModuleWeights)
	v.SetDefault("trading_window.start", cfg.TradingWindow.Start)
	v.SetDefault("trading_window.end", cfg.TradingWindow.End)
	v.SetDefault("trading_window.zone", cfg.TradingWindow.Zone)
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.websocket_path", cfg.Server.WebSocketPath)
	v.SetDefault("server.enable_metrics", cfg.Server.EnableMetrics)
	v.SetDefault("data.data_dir", cfg.Data.DataDir)
	v.SetDefault("data.cache_size_mb", cfg.Data.CacheSize)

	thresholds := make(map[string]float64, len(cfg.MinConfidenceThresholds))
	for tf, val := range cfg.MinConfidenceThresholds {
		thresholds[string(tf)] = val
	}
	v.SetDefault("min_confidence_thresholds", thresholds)
}

// validate rejects an out-of-range or contradictory option at startup with a
// diagnostic ConfigurationError rather than letting it surface later as
// a confusing runtime failure.
func validate(cfg types.EngineConfig) error {
	if cfg.CollectionIntervalS <= 0 {
		return errs.Configuration("collection_interval_s must be positive")
	}
	if cfg.GramOverrideConfidence < 0 || cfg.GramOverrideConfidence > 1 {
		return errs.Configuration("gram_override_confidence must be in [0,1]")
	}
	for tf, threshold := range cfg.MinConfidenceThresholds {
		if threshold < 0 || threshold > 1 {
			return errs.Configuration(fmt.Sprintf("min_confidence_thresholds[%s] must be in [0,1]", tf))
		}
	}
	weightSum := 0.0
	for _, w := range cfg.ModuleWeights {
		weightSum += w
	}
	if weightSum < 0.99 || weightSum > 1.01 {
		return errs.Configuration(fmt.Sprintf("module_weights must sum to 1.0, got %.4f", weightSum))
	}
	return nil
}
