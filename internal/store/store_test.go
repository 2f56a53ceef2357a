package store_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(zap.NewNop(), t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func quoteAt(ts time.Time, gram float64) types.PriceQuote {
	return types.PriceQuote{
		Timestamp: ts,
		GramGold:  decimal.NewFromFloat(gram),
		OunceUSD:  decimal.NewFromFloat(2400),
		USDTRY:    decimal.NewFromFloat(32.1),
		OunceTRY:  decimal.NewFromFloat(77040),
	}
}

func TestAppendTickIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	q := quoteAt(ts, 4250.125)

	if err := s.AppendTick(q); err != nil {
		t.Fatalf("AppendTick: %v", err)
	}
	if err := s.AppendTick(q); err != nil {
		t.Fatalf("AppendTick (repeat): %v", err)
	}

	ticks, err := s.FetchTicks(ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchTicks: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("len(ticks) = %d, want 1 (idempotent append)", len(ticks))
	}
}

func TestFetchTicksOrderedAscending(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	for i := 3; i >= 0; i-- {
		q := quoteAt(base.Add(time.Duration(i)*time.Minute), 4250+float64(i))
		if err := s.AppendTick(q); err != nil {
			t.Fatalf("AppendTick: %v", err)
		}
	}

	ticks, err := s.FetchTicks(base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchTicks: %v", err)
	}
	if len(ticks) != 4 {
		t.Fatalf("len(ticks) = %d, want 4", len(ticks))
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp.Before(ticks[i-1].Timestamp) {
			t.Fatalf("ticks not ascending at index %d", i)
		}
	}
}

func TestUpsertCandleReplacesOpenNotSealed(t *testing.T) {
	s := newTestStore(t)
	tsOpen := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	open := types.Candle{
		TsOpen: tsOpen, Interval: types.Timeframe15m,
		Open: decimal.NewFromInt(100), High: decimal.NewFromInt(100),
		Low: decimal.NewFromInt(100), Close: decimal.NewFromInt(100),
		TickCount: 1,
	}
	if err := s.UpsertCandle(open); err != nil {
		t.Fatalf("UpsertCandle: %v", err)
	}

	updated := open
	updated.Close = decimal.NewFromInt(105)
	updated.High = decimal.NewFromInt(105)
	updated.TickCount = 2
	if err := s.UpsertCandle(updated); err != nil {
		t.Fatalf("UpsertCandle (update): %v", err)
	}

	sealed := updated
	sealed.Sealed = true
	sealed.Close = decimal.NewFromInt(106)
	if err := s.UpsertCandle(sealed); err != nil {
		t.Fatalf("UpsertCandle (seal): %v", err)
	}

	// A later call with the same ts_open must never rewrite the sealed candle.
	rewrite := sealed
	rewrite.Close = decimal.NewFromInt(999)
	if err := s.UpsertCandle(rewrite); err != nil {
		t.Fatalf("UpsertCandle (attempted rewrite): %v", err)
	}

	candles, err := s.FetchCandles(types.Timeframe15m, 10, nil)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1", len(candles))
	}
	if !candles[0].Close.Equal(decimal.NewFromInt(106)) {
		t.Errorf("sealed candle close = %s, want 106 (rewrite must be rejected)", candles[0].Close)
	}
}

func TestFetchLatestAnalysisReturnsNilWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	if got := s.FetchLatestAnalysis(types.Timeframe1h); got != nil {
		t.Errorf("FetchLatestAnalysis on empty store = %+v, want nil", got)
	}
}

func TestInsertAndFetchAnalysis(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		rec := types.AnalysisRecord{
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Timeframe: types.Timeframe1h,
			Signal:    types.SignalHold,
		}
		if err := s.InsertAnalysis(rec); err != nil {
			t.Fatalf("InsertAnalysis: %v", err)
		}
	}

	latest := s.FetchLatestAnalysis(types.Timeframe1h)
	if latest == nil {
		t.Fatal("FetchLatestAnalysis returned nil")
	}
	if !latest.Timestamp.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("latest timestamp = %v, want the third insert", latest.Timestamp)
	}

	all := s.FetchAnalyses(types.Timeframe1h, 10, nil)
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
}

func TestSimulationLifecycle(t *testing.T) {
	s := newTestStore(t)

	sim := types.Simulation{
		ID:                  "sim-1",
		Name:                "main strategy",
		StrategyType:        types.StrategyMain,
		Status:              types.SimActive,
		InitialCapitalGrams: decimal.NewFromInt(100),
		PerTFCapital:        map[types.Timeframe]decimal.Decimal{types.Timeframe1h: decimal.NewFromInt(100)},
		Timeframes:          []types.Timeframe{types.Timeframe1h},
	}
	if err := s.CreateSimulation(sim); err != nil {
		t.Fatalf("CreateSimulation: %v", err)
	}
	if err := s.CreateSimulation(sim); err == nil {
		t.Fatal("CreateSimulation with duplicate id should fail")
	}

	paused := types.SimPaused
	reason := "daily loss limit hit"
	if err := s.UpdateSimState("sim-1", store.SimStateUpdate{Status: &paused, PauseReason: &reason}); err != nil {
		t.Fatalf("UpdateSimState: %v", err)
	}

	sims := s.ListSimulations()
	if len(sims) != 1 || sims[0].Status != types.SimPaused || sims[0].PauseReason != reason {
		t.Fatalf("unexpected simulation state after update: %+v", sims)
	}

	pos := types.Position{
		ID: "pos-1", SimID: "sim-1", Timeframe: types.Timeframe1h,
		Side: types.PositionLong, SizeGrams: decimal.NewFromInt(10),
		EntryPrice: decimal.NewFromInt(4000), EntryTs: time.Now(),
		Status: types.PositionOpen,
	}
	if err := s.InsertPosition(pos); err != nil {
		t.Fatalf("InsertPosition: %v", err)
	}

	open := types.PositionOpen
	openPositions := s.FetchPositions("sim-1", &open)
	if len(openPositions) != 1 {
		t.Fatalf("len(openPositions) = %d, want 1", len(openPositions))
	}

	closedTs := time.Now()
	exitPrice := decimal.NewFromInt(4050)
	pos.Status = types.PositionClosed
	pos.ExitPrice = &exitPrice
	pos.ExitTs = &closedTs
	pos.ExitReason = "take_profit"
	if err := s.UpdatePositionExit(pos); err != nil {
		t.Fatalf("UpdatePositionExit: %v", err)
	}

	closed := types.PositionClosed
	closedPositions := s.FetchPositions("sim-1", &closed)
	if len(closedPositions) != 1 || closedPositions[0].ExitReason != "take_profit" {
		t.Fatalf("unexpected closed positions: %+v", closedPositions)
	}
}

func TestCompactionFoldsOldTicksToMinuteAverages(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().AddDate(0, 0, -10)
	minute := time.Date(old.Year(), old.Month(), old.Day(), old.Hour(), old.Minute(), 0, 0, time.UTC)

	if err := s.AppendTick(quoteAt(minute, 100)); err != nil {
		t.Fatalf("AppendTick: %v", err)
	}
	if err := s.AppendTick(quoteAt(minute.Add(20*time.Second), 110)); err != nil {
		t.Fatalf("AppendTick: %v", err)
	}

	if err := s.CompactNow(time.Now()); err != nil {
		t.Fatalf("CompactNow: %v", err)
	}

	ticks, err := s.FetchTicks(minute.Add(-time.Hour), minute.Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchTicks: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("len(ticks) after compaction = %d, want 1", len(ticks))
	}
	if !ticks[0].GramGold.Equal(decimal.NewFromFloat(105)) {
		t.Errorf("compacted gram_gold = %s, want average 105", ticks[0].GramGold)
	}
}
