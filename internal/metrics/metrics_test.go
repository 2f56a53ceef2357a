package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func validQuote() types.PriceQuote {
	return types.PriceQuote{
		Timestamp: time.Now(),
		GramGold:  decimal.NewFromFloat(4250.5),
		OunceUSD:  decimal.NewFromFloat(2400),
		USDTRY:    decimal.NewFromFloat(32.1),
		OunceTRY:  decimal.NewFromFloat(77040),
	}
}

func TestObserveAnalysisCountsInsufficientData(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 0)
	reg := metrics.NewRegistry(bus)

	reg.ObserveAnalysis(false)
	reg.ObserveAnalysis(true)
	reg.ObserveAnalysis(true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	reg.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "gold_analyzer_analyses_total 3") {
		t.Errorf("expected analyses_total=3 in %s", body)
	}
	if !strings.Contains(body, "gold_analyzer_analyses_insufficient_data_total 2") {
		t.Errorf("expected insufficient_data_total=2 in %s", body)
	}
}

func TestIncRetryIncrementsCounter(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 0)
	reg := metrics.NewRegistry(bus)

	reg.IncRetry()
	reg.IncRetry()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "gold_analyzer_upstream_retries_total 2") {
		t.Errorf("expected upstream_retries_total=2 in %s", rec.Body.String())
	}
}

func TestStartPollingSnapshotsDroppedEvents(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 1)
	reg := metrics.NewRegistry(bus)

	token := bus.Subscribe(events.TopicPriceUpdate, func(e events.Event) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	_ = token

	for i := 0; i < 10; i++ {
		bus.Publish(events.NewPriceUpdateEvent(validQuote()))
	}

	stop := make(chan struct{})
	defer close(stop)
	reg.StartPolling(stop, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "gold_analyzer_events_dropped_total") {
		t.Errorf("expected events_dropped_total series in %s", rec.Body.String())
	}
}
