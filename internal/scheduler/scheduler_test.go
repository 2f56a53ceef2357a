package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/combiner"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/hybrid"
	"github.com/sezginpak/gold-analyzer/internal/scheduler"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func seedCandles(t *testing.T, st *store.Store, tf types.Timeframe, n int) {
	t.Helper()
	base := time.Now().Add(-time.Duration(n) * tf.Duration())
	price := 2400.0
	for i := 0; i < n; i++ {
		price += 0.5
		c := types.Candle{
			TsOpen:    base.Add(time.Duration(i) * tf.Duration()),
			Interval:  tf,
			Open:      decimal.NewFromFloat(price),
			High:      decimal.NewFromFloat(price + 1),
			Low:       decimal.NewFromFloat(price - 1),
			Close:     decimal.NewFromFloat(price),
			TickCount: 5,
			Sealed:    true,
		}
		if err := st.UpsertCandle(c); err != nil {
			t.Fatalf("UpsertCandle: %v", err)
		}
	}
}

func TestRunOnceViaBarCloseProducesAnalysisRecord(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	seedCandles(t, st, types.Timeframe15m, 40)

	bus := events.NewEventBus(logger, 0)
	strategy := hybrid.New(combiner.ParamsFromConfig(types.DefaultEngineConfig()))
	sched := scheduler.New(logger, st, bus, strategy, nil)

	done := make(chan struct{})
	bus.Subscribe(events.TopicAnalysisReady, func(e events.Event) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	candles, err := st.FetchCandles(types.Timeframe15m, 1, nil)
	if err != nil || len(candles) == 0 {
		t.Fatalf("expected at least one candle to close, got %v err=%v", candles, err)
	}
	bus.Publish(events.NewBarCloseEvent(candles[0]))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis_ready event")
	}
}
