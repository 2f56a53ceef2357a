// Package main wires the price-ingestion pipeline, the per-timeframe
// analysis scheduler, the paper-trading simulation engine, and the query
// API into one running process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sezginpak/gold-analyzer/internal/aggregator"
	"github.com/sezginpak/gold-analyzer/internal/api"
	"github.com/sezginpak/gold-analyzer/internal/combiner"
	"github.com/sezginpak/gold-analyzer/internal/config"
	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/hybrid"
	"github.com/sezginpak/gold-analyzer/internal/ingestion"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/internal/scheduler"
	"github.com/sezginpak/gold-analyzer/internal/simulation"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// defaultSimCapitalGrams seeds the default simulation's starting capital
// when no prior simulation exists in the store.
const defaultSimCapitalGrams = 1000.0

// eventQueueCapacity bounds how many unconsumed events pile up behind a
// slow subscriber before the bus starts evicting the oldest.
const eventQueueCapacity = 1024

func main() {
	configPath := flag.String("config", "", "Path to a config file overriding engine defaults")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting gold analyzer",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("dataDir", cfg.Data.DataDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewStore(logger, cfg.Data.DataDir, cfg.RetentionDaysRaw)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer st.Close()

	bus := events.NewEventBus(logger, eventQueueCapacity)
	defer bus.Close()

	reg := metrics.NewRegistry(bus)
	pollStop := make(chan struct{})
	reg.StartPolling(pollStop, 10*time.Second)
	defer close(pollStop)

	agg := aggregator.New(logger, st, bus, types.Timeframes)
	bus.Subscribe(events.TopicPriceUpdate, func(e events.Event) error {
		pu, ok := e.(*events.PriceUpdateEvent)
		if !ok {
			return nil
		}
		agg.OnTick(pu.Quote)
		return nil
	})

	ingestPort := ingestion.New(logger, st, bus, &unconfiguredAdapter{}, time.Duration(cfg.CollectionIntervalS)*time.Second, reg)
	ingestPort.Start(ctx)
	defer ingestPort.Stop()

	strategy := hybrid.New(combiner.ParamsFromConfig(cfg))
	sched := scheduler.New(logger, st, bus, strategy, reg)
	sched.Start(ctx)
	defer sched.Stop()

	simEngine, err := startDefaultSimulation(logger, st, bus, cfg)
	if err != nil {
		logger.Fatal("failed to start default simulation", zap.Error(err))
	}
	simEngine.Start(ctx)
	defer simEngine.Stop()

	server := api.NewServer(logger, cfg.Server, st, bus, reg)
	broadcaster := api.NewBroadcaster(server.Hub(), bus)
	broadcaster.Start()

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("API server error", zap.Error(err))
		}
	}()

	logger.Info("server started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d%s", cfg.Server.Host, cfg.Server.Port, cfg.Server.WebSocketPath)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// startDefaultSimulation ensures at least one Simulation exists in the
// store (creating it from cfg's defaults on a fresh store) and returns an
// Engine driving it.
func startDefaultSimulation(logger *zap.Logger, st *store.Store, bus *events.EventBus, cfg types.EngineConfig) (*simulation.Engine, error) {
	sims := st.ListSimulations()
	if len(sims) > 0 {
		return simulation.New(logger, st, bus, cfg.TradingWindow, sims[0].ID), nil
	}

	capital := decimal.NewFromFloat(defaultSimCapitalGrams)
	perTF := make(map[types.Timeframe]decimal.Decimal, len(types.Timeframes))
	share := capital.Div(decimal.NewFromInt(int64(len(types.Timeframes))))
	for _, tf := range types.Timeframes {
		perTF[tf] = share
	}

	sim := types.Simulation{
		ID:                  uuid.NewString(),
		Name:                "default",
		StrategyType:        types.StrategyMain,
		Status:              types.SimActive,
		InitialCapitalGrams: capital,
		PerTFCapital:        perTF,
		Timeframes:          types.Timeframes,
		Costs:               cfg.Simulation.Costs,
		Thresholds: types.SimThresholds{
			MinConfidence:   cfg.MinConfidenceThresholds[types.Timeframe15m],
			MaxRiskPct:      cfg.Simulation.MaxRiskPerTradePct,
			MaxDailyLossPct: cfg.Simulation.MaxDailyLossPct,
		},
	}
	if err := st.CreateSimulation(sim); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "failed to seed default simulation", err)
	}
	return simulation.New(logger, st, bus, cfg.TradingWindow, sim.ID), nil
}

// unconfiguredAdapter satisfies ingestion.Adapter without ever returning a
// quote. The upstream vendor client is an external collaborator; a real
// deployment supplies its own Adapter implementation in its place.
type unconfiguredAdapter struct{}

func (unconfiguredAdapter) FetchQuote(ctx context.Context) (types.PriceQuote, error) {
	return types.PriceQuote{}, errs.TransientIO("no vendor adapter configured", nil)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
