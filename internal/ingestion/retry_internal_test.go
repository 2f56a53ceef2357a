package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

type flakyAdapter struct {
	failuresLeft int
	quote        types.PriceQuote
}

func (a *flakyAdapter) FetchQuote(ctx context.Context) (types.PriceQuote, error) {
	if a.failuresLeft > 0 {
		a.failuresLeft--
		return types.PriceQuote{}, errors.New("upstream unavailable")
	}
	return a.quote, nil
}

func TestPollOnceRetriesTransientFailures(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	bus := events.NewEventBus(logger, 0)
	reg := metrics.NewRegistry(bus)

	adapter := &flakyAdapter{
		failuresLeft: maxFetchAttempts - 1,
		quote: types.PriceQuote{
			Timestamp: time.Now(),
			GramGold:  decimal.NewFromFloat(4250.5),
			OunceUSD:  decimal.NewFromFloat(2400),
			USDTRY:    decimal.NewFromFloat(32.1),
			OunceTRY:  decimal.NewFromFloat(77040),
		},
	}
	port := New(logger, st, bus, adapter, time.Millisecond, reg)

	port.pollOnce(context.Background())

	got := testutil.ToFloat64(reg.RetriesTotal())
	want := float64(maxFetchAttempts - 1)
	if got != want {
		t.Errorf("upstream_retries_total = %v, want %v", got, want)
	}

	ticks, err := st.FetchTicks(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchTicks: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("expected the eventually-successful fetch to be ingested, got %d ticks", len(ticks))
	}
}

func TestPollOnceGivesUpAfterMaxAttempts(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	bus := events.NewEventBus(logger, 0)
	reg := metrics.NewRegistry(bus)
	adapter := &flakyAdapter{failuresLeft: maxFetchAttempts + 5}
	port := New(logger, st, bus, adapter, time.Millisecond, reg)

	port.pollOnce(context.Background())

	got := testutil.ToFloat64(reg.RetriesTotal())
	want := float64(maxFetchAttempts - 1)
	if got != want {
		t.Errorf("upstream_retries_total = %v, want %v", got, want)
	}

	ticks, err := st.FetchTicks(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchTicks: %v", err)
	}
	if len(ticks) != 0 {
		t.Fatalf("expected no tick ingested after exhausting retries, got %d", len(ticks))
	}
}
