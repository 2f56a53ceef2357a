package ingestion_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/ingestion"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func validQuote(ts time.Time) types.PriceQuote {
	return types.PriceQuote{
		Timestamp: ts,
		GramGold:  decimal.NewFromFloat(4250.5),
		OunceUSD:  decimal.NewFromFloat(2400),
		USDTRY:    decimal.NewFromFloat(32.1),
		OunceTRY:  decimal.NewFromFloat(77040),
	}
}

func TestValidateFillsMissingOunceTRY(t *testing.T) {
	q := validQuote(time.Now())
	q.OunceTRY = decimal.Zero

	out, err := ingestion.Validate(q)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := q.OunceUSD.Mul(q.USDTRY)
	if !out.OunceTRY.Equal(want) {
		t.Errorf("OunceTRY = %s, want %s", out.OunceTRY, want)
	}
}

func TestValidateRejectsNonPositiveFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*types.PriceQuote)
	}{
		{"zero timestamp", func(q *types.PriceQuote) { q.Timestamp = time.Time{} }},
		{"negative gram gold", func(q *types.PriceQuote) { q.GramGold = decimal.NewFromFloat(-1) }},
		{"zero ounce usd", func(q *types.PriceQuote) { q.OunceUSD = decimal.Zero }},
		{"negative usd try", func(q *types.PriceQuote) { q.USDTRY = decimal.NewFromFloat(-32) }},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := validQuote(time.Now())
			c.mut(&q)
			if _, err := ingestion.Validate(q); !errs.OfKind(err, errs.KindValidation) {
				t.Errorf("Validate returned %v, want a validation error", err)
			}
		})
	}
}

type stubAdapter struct {
	quotes []types.PriceQuote
	i      int
	err    error
}

func (s *stubAdapter) FetchQuote(ctx context.Context) (types.PriceQuote, error) {
	if s.err != nil {
		return types.PriceQuote{}, s.err
	}
	if s.i >= len(s.quotes) {
		return types.PriceQuote{}, errors.New("no more quotes")
	}
	q := s.quotes[s.i]
	s.i++
	return q, nil
}

func TestIngestPublishesAcceptedQuote(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	bus := events.NewEventBus(logger, 0)
	port := ingestion.New(logger, st, bus, &stubAdapter{}, time.Second, nil)

	done := make(chan struct{})
	bus.Subscribe(events.TopicPriceUpdate, func(e events.Event) error {
		close(done)
		return nil
	})

	port.Ingest(validQuote(time.Now()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for price_update event")
	}

	ticks, err := st.FetchTicks(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FetchTicks: %v", err)
	}
	if len(ticks) != 1 {
		t.Fatalf("expected 1 stored tick, got %d", len(ticks))
	}
}

func TestIngestDropsInvalidQuoteWithoutPublishing(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	bus := events.NewEventBus(logger, 0)
	port := ingestion.New(logger, st, bus, &stubAdapter{}, time.Second, nil)

	published := false
	bus.Subscribe(events.TopicPriceUpdate, func(e events.Event) error {
		published = true
		return nil
	})

	bad := validQuote(time.Now())
	bad.GramGold = decimal.Zero
	port.Ingest(bad)

	time.Sleep(50 * time.Millisecond)
	if published {
		t.Error("invalid quote should not have been published")
	}
}
