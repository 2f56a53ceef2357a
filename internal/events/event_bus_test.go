package events_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func testQuote() types.PriceQuote {
	return types.PriceQuote{
		Timestamp: time.Now(),
		GramGold:  decimal.NewFromFloat(4250.125),
		OunceUSD:  decimal.NewFromFloat(2400.50),
		USDTRY:    decimal.NewFromFloat(32.15),
		OunceTRY:  decimal.NewFromFloat(77184.075),
	}
}

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 16)
	defer bus.Close()

	received := make(chan events.Event, 1)
	bus.Subscribe(events.TopicPriceUpdate, func(e events.Event) error {
		received <- e
		return nil
	})

	q := testQuote()
	bus.Publish(events.NewPriceUpdateEvent(q))

	select {
	case e := <-received:
		pu, ok := e.(*events.PriceUpdateEvent)
		if !ok {
			t.Fatalf("expected *PriceUpdateEvent, got %T", e)
		}
		if !pu.Quote.GramGold.Equal(q.GramGold) {
			t.Errorf("gram gold = %s, want %s", pu.Quote.GramGold, q.GramGold)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestMultipleSubscribersEachReceiveEvent(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 16)
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		bus.Subscribe(events.TopicBarClose, func(e events.Event) error {
			wg.Done()
			return nil
		})
	}

	bus.Publish(events.NewBarCloseEvent(types.Candle{
		TsOpen:   time.Now(),
		Interval: types.Timeframe15m,
		Sealed:   true,
	}))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers were notified")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 16)
	defer bus.Close()

	var count int
	var mu sync.Mutex
	token := bus.Subscribe(events.TopicSignal, func(e events.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	bus.Unsubscribe(token)

	bus.Publish(events.NewSignalEvent(types.SignalRecord{Timestamp: time.Now(), Signal: types.SignalBuy}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("handler invoked %d times after unsubscribe, want 0", count)
	}
}

func TestSlowSubscriberDropsOldestNotNewest(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 2)
	defer bus.Close()

	block := make(chan struct{})
	delivered := make(chan *events.PositionOpenedEvent, 8)
	first := true
	var mu sync.Mutex
	bus.Subscribe(events.TopicPositionOpened, func(e events.Event) error {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			<-block // wedge the consumer so the queue backs up
		}
		delivered <- e.(*events.PositionOpenedEvent)
		return nil
	})

	for i := 0; i < 5; i++ {
		bus.Publish(events.NewPositionOpenedEvent(types.Position{
			ID:      string(rune('a' + i)),
			EntryTs: time.Now(),
		}))
	}
	close(block)

	var ids []string
	for i := 0; i < 3; i++ {
		select {
		case e := <-delivered:
			ids = append(ids, e.Position.ID)
		case <-time.After(time.Second):
			t.Fatalf("only received %d events", len(ids))
		}
	}

	if ids[0] != "a" {
		t.Fatalf("first delivered id = %q, want %q (the wedged handler's own event)", ids[0], "a")
	}
	last := ids[len(ids)-1]
	if last != string(rune('a'+4)) {
		t.Errorf("last delivered id = %q, want the newest published event %q", last, string(rune('a'+4)))
	}

	stats := bus.Stats()
	if len(stats.Subscribers) != 1 || stats.Subscribers[0].Dropped == 0 {
		t.Errorf("expected a nonzero dropped count, got stats %+v", stats)
	}
}

func TestStatsReportsPublishedCount(t *testing.T) {
	bus := events.NewEventBus(zap.NewNop(), 16)
	defer bus.Close()

	bus.Subscribe(events.TopicDailyRoll, func(e events.Event) error { return nil })
	for i := 0; i < 3; i++ {
		bus.Publish(events.NewDailyRollEvent(types.DailyPerformance{Date: time.Now()}))
	}
	time.Sleep(20 * time.Millisecond)

	if got := bus.Stats().Published; got != 3 {
		t.Errorf("Published = %d, want 3", got)
	}
}
