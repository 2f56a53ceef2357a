package aggregator_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/aggregator"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func newTestSetup(t *testing.T, timeframes []types.Timeframe) (*aggregator.Aggregator, *store.Store, *events.EventBus) {
	t.Helper()
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	bus := events.NewEventBus(logger, 16)
	agg := aggregator.New(logger, st, bus, timeframes)
	return agg, st, bus
}

func quote(ts time.Time, price float64) types.PriceQuote {
	return types.PriceQuote{
		Timestamp: ts,
		GramGold:  decimal.NewFromFloat(price),
		OunceUSD:  decimal.NewFromFloat(2400),
		USDTRY:    decimal.NewFromFloat(32.1),
		OunceTRY:  decimal.NewFromFloat(77040),
	}
}

func TestOnTickOpensAndUpdatesCandle(t *testing.T) {
	agg, st, _ := newTestSetup(t, []types.Timeframe{types.Timeframe15m})
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	agg.OnTick(quote(base, 4250))
	agg.OnTick(quote(base.Add(2*time.Minute), 4260))
	agg.OnTick(quote(base.Add(4*time.Minute), 4240))

	candles, err := st.FetchCandles(types.Timeframe15m, 10, nil)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1 open candle", len(candles))
	}
	c := candles[0]
	if c.Sealed {
		t.Error("candle sealed before interval boundary crossed")
	}
	if !c.High.Equal(decimal.NewFromInt(4260)) {
		t.Errorf("high = %s, want 4260", c.High)
	}
	if !c.Low.Equal(decimal.NewFromInt(4240)) {
		t.Errorf("low = %s, want 4240", c.Low)
	}
	if !c.Close.Equal(decimal.NewFromInt(4240)) {
		t.Errorf("close = %s, want 4240 (last tick)", c.Close)
	}
	if c.TickCount != 3 {
		t.Errorf("tick_count = %d, want 3", c.TickCount)
	}
}

func TestBoundaryCrossingSealsAndPublishes(t *testing.T) {
	agg, st, bus := newTestSetup(t, []types.Timeframe{types.Timeframe15m})
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	sealed := make(chan *events.BarCloseEvent, 4)
	bus.Subscribe(events.TopicBarClose, func(e events.Event) error {
		sealed <- e.(*events.BarCloseEvent)
		return nil
	})

	agg.OnTick(quote(base, 4250))
	agg.OnTick(quote(base.Add(16*time.Minute), 4260))

	select {
	case e := <-sealed:
		if !e.Candle.Sealed {
			t.Error("published bar_close candle is not sealed")
		}
		if !e.Candle.TsOpen.Equal(base) {
			t.Errorf("sealed candle ts_open = %v, want %v", e.Candle.TsOpen, base)
		}
	case <-time.After(time.Second):
		t.Fatal("no bar_close event published")
	}

	candles, err := st.FetchCandles(types.Timeframe15m, 10, nil)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2 (sealed + new open)", len(candles))
	}
	if !candles[0].Sealed {
		t.Error("first candle should be sealed")
	}
	if candles[1].Sealed {
		t.Error("second candle should still be open")
	}
}

func TestGapIsFilledWithCarriedClose(t *testing.T) {
	agg, st, _ := newTestSetup(t, []types.Timeframe{types.Timeframe15m})
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	agg.OnTick(quote(base, 4250))
	// Next tick arrives 45 minutes later: two whole buckets are quiet.
	agg.OnTick(quote(base.Add(45*time.Minute), 4300))

	candles, err := st.FetchCandles(types.Timeframe15m, 10, nil)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 4 {
		t.Fatalf("len(candles) = %d, want 4 (1 real + 2 gap + 1 new open)", len(candles))
	}

	for _, gap := range candles[1:3] {
		if gap.TickCount != 0 {
			t.Errorf("gap candle tick_count = %d, want 0", gap.TickCount)
		}
		if !gap.Open.Equal(decimal.NewFromInt(4250)) || !gap.Close.Equal(decimal.NewFromInt(4250)) {
			t.Errorf("gap candle O/C = %s/%s, want carried close 4250", gap.Open, gap.Close)
		}
		if !gap.Sealed {
			t.Error("gap candle should be sealed")
		}
	}
}

func TestClockRegressionIsRejected(t *testing.T) {
	agg, st, _ := newTestSetup(t, []types.Timeframe{types.Timeframe15m})
	base := time.Date(2026, 3, 5, 9, 20, 0, 0, time.UTC)

	agg.OnTick(quote(base, 4250))
	agg.OnTick(quote(base.Add(-time.Hour), 9999)) // earlier than the open candle's bucket

	candles, err := st.FetchCandles(types.Timeframe15m, 10, nil)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("len(candles) = %d, want 1 (regression tick must be dropped)", len(candles))
	}
	if candles[0].Close.Equal(decimal.NewFromInt(9999)) {
		t.Error("regression tick was applied to the open candle")
	}
}

func TestMultipleTimeframesFoldIndependently(t *testing.T) {
	agg, st, _ := newTestSetup(t, []types.Timeframe{types.Timeframe15m, types.Timeframe1h})
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	agg.OnTick(quote(base, 4250))
	agg.OnTick(quote(base.Add(20*time.Minute), 4260))

	fifteen, _ := st.FetchCandles(types.Timeframe15m, 10, nil)
	hourly, _ := st.FetchCandles(types.Timeframe1h, 10, nil)

	if len(fifteen) != 2 {
		t.Errorf("15m candles = %d, want 2 (boundary crossed within the hour)", len(fifteen))
	}
	if len(hourly) != 1 {
		t.Errorf("1h candles = %d, want 1 (still within the same hour bucket)", len(hourly))
	}
}
