package simulation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/simulation"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func testWindow() types.TradingWindow {
	return types.TradingWindow{Start: "00:00", End: "23:59", Zone: "UTC"}
}

func newTestSim(t *testing.T, st *store.Store, strategyType types.StrategyType) types.Simulation {
	t.Helper()
	sim := types.Simulation{
		ID:                  "sim-1",
		Name:                "test",
		StrategyType:        strategyType,
		Status:              types.SimActive,
		InitialCapitalGrams: decimal.NewFromFloat(1000),
		PerTFCapital: map[types.Timeframe]decimal.Decimal{
			types.Timeframe15m: decimal.NewFromFloat(1000),
		},
		Timeframes: []types.Timeframe{types.Timeframe15m},
		Costs: types.SimCosts{
			SpreadTL:      decimal.NewFromFloat(2.0),
			CommissionPct: decimal.NewFromFloat(0.0003),
		},
		Thresholds: types.SimThresholds{
			MinConfidence:   0.3,
			MaxRiskPct:      decimal.NewFromFloat(0.02),
			MaxDailyLossPct: decimal.NewFromFloat(0.5),
		},
	}
	if err := st.CreateSimulation(sim); err != nil {
		t.Fatalf("CreateSimulation: %v", err)
	}
	return sim
}

func buyRecord() types.AnalysisRecord {
	return types.AnalysisRecord{
		Timestamp:      time.Now(),
		Timeframe:      types.Timeframe15m,
		GramPrice:      decimal.NewFromFloat(2450),
		Signal:         types.SignalBuy,
		Confidence:     0.8,
		SignalStrength: types.StrengthStrong,
		StopLoss:       decimal.NewFromFloat(2440),
		TakeProfit:     decimal.NewFromFloat(2470),
	}
}

func TestEngineOpensPositionOnStrongBuySignal(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()
	newTestSim(t, st, types.StrategyMain)

	bus := events.NewEventBus(logger, 0)
	eng := simulation.New(logger, st, bus, testWindow(), "sim-1")

	done := make(chan struct{})
	bus.Subscribe(events.TopicPositionOpened, func(e events.Event) error {
		close(done)
		return nil
	})

	eng.Start(context.Background())
	defer eng.Stop()
	bus.Publish(events.NewAnalysisReadyEvent(buyRecord()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for position_opened event")
	}

	open := types.PositionOpen
	positions := st.FetchPositions("sim-1", &open)
	if len(positions) != 1 {
		t.Fatalf("expected 1 open position, got %d", len(positions))
	}
	if positions[0].Side != types.PositionLong {
		t.Errorf("side = %s, want LONG", positions[0].Side)
	}
}

func TestEngineClosesPositionOnStopLossHit(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()
	newTestSim(t, st, types.StrategyMain)

	bus := events.NewEventBus(logger, 0)
	eng := simulation.New(logger, st, bus, testWindow(), "sim-1")

	opened := make(chan struct{})
	bus.Subscribe(events.TopicPositionOpened, func(e events.Event) error {
		close(opened)
		return nil
	})

	eng.Start(context.Background())
	defer eng.Stop()
	bus.Publish(events.NewAnalysisReadyEvent(buyRecord()))
	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for position to open")
	}

	closed := make(chan struct{})
	bus.Subscribe(events.TopicPositionClosed, func(e events.Event) error {
		close(closed)
		return nil
	})

	drop := buyRecord()
	drop.GramPrice = decimal.NewFromFloat(2435)
	drop.Signal = types.SignalHold
	bus.Publish(events.NewAnalysisReadyEvent(drop))

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for position_closed event")
	}

	open := types.PositionOpen
	remaining := st.FetchPositions("sim-1", &open)
	if len(remaining) != 0 {
		t.Errorf("expected no open positions after stop hit, got %d", len(remaining))
	}
}
