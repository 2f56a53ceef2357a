// Package events is the engine's internal event bus: price updates, bar
// closes, completed analyses, signals, and position lifecycle changes all
// fan out through here to whichever workers and API subscribers care.
//
// Delivery is fire-and-forget and best-effort ordered per topic. A slow
// subscriber gets its own bounded queue so it can never back-pressure the
// publisher; once that queue is full the oldest queued event is dropped
// and a per-subscriber counter is incremented.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// EventType names one of the engine's topics.
type EventType string

const (
	TopicPriceUpdate    EventType = "price_update"
	TopicBarClose       EventType = "bar_close"
	TopicAnalysisReady  EventType = "analysis_ready"
	TopicSignal         EventType = "signal"
	TopicPositionOpened EventType = "position_opened"
	TopicPositionClosed EventType = "position_closed"
	TopicDailyRoll      EventType = "daily_roll"
)

// DefaultQueueCapacity is the per-subscriber bound applied when a bus is
// constructed with a non-positive capacity.
const DefaultQueueCapacity = 1024

// Event is the common shape every topic payload satisfies.
type Event interface {
	GetType() EventType
	GetTimestamp() time.Time
	GetID() string
}

// BaseEvent carries the fields every concrete event embeds.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) GetType() EventType      { return e.Type }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetID() string           { return e.ID }

func newBaseEvent(topic EventType, ts time.Time) BaseEvent {
	return BaseEvent{ID: uuid.NewString(), Type: topic, Timestamp: ts}
}

// PriceUpdateEvent wraps a single ingested quote published on the
// price_update topic.
type PriceUpdateEvent struct {
	BaseEvent
	Quote types.PriceQuote `json:"quote"`
}

// NewPriceUpdateEvent builds a price_update event from an accepted quote.
func NewPriceUpdateEvent(q types.PriceQuote) *PriceUpdateEvent {
	return &PriceUpdateEvent{BaseEvent: newBaseEvent(TopicPriceUpdate, q.Timestamp), Quote: q}
}

// BarCloseEvent announces that a candle has sealed at its interval boundary.
type BarCloseEvent struct {
	BaseEvent
	Candle types.Candle `json:"candle"`
}

// NewBarCloseEvent builds a bar_close event from a sealed candle.
func NewBarCloseEvent(c types.Candle) *BarCloseEvent {
	return &BarCloseEvent{BaseEvent: newBaseEvent(TopicBarClose, c.TsOpen.Add(c.Interval.Duration())), Candle: c}
}

// AnalysisReadyEvent carries a completed per-timeframe analysis.
type AnalysisReadyEvent struct {
	BaseEvent
	Analysis types.AnalysisRecord `json:"analysis"`
}

// NewAnalysisReadyEvent builds an analysis_ready event.
func NewAnalysisReadyEvent(a types.AnalysisRecord) *AnalysisReadyEvent {
	return &AnalysisReadyEvent{BaseEvent: newBaseEvent(TopicAnalysisReady, a.Timestamp), Analysis: a}
}

// SignalEvent carries an analysis whose signal was not HOLD.
type SignalEvent struct {
	BaseEvent
	Signal types.SignalRecord `json:"signal"`
}

// NewSignalEvent builds a signal event; callers must only call this for
// records whose Signal != HOLD.
func NewSignalEvent(s types.SignalRecord) *SignalEvent {
	return &SignalEvent{BaseEvent: newBaseEvent(TopicSignal, s.Timestamp), Signal: s}
}

// PositionOpenedEvent announces a new open paper position.
type PositionOpenedEvent struct {
	BaseEvent
	Position types.Position `json:"position"`
}

// NewPositionOpenedEvent builds a position_opened event.
func NewPositionOpenedEvent(p types.Position) *PositionOpenedEvent {
	return &PositionOpenedEvent{BaseEvent: newBaseEvent(TopicPositionOpened, p.EntryTs), Position: p}
}

// PositionClosedEvent announces a position's exit and realized P/L.
type PositionClosedEvent struct {
	BaseEvent
	Position types.Position `json:"position"`
}

// NewPositionClosedEvent builds a position_closed event.
func NewPositionClosedEvent(p types.Position) *PositionClosedEvent {
	ts := p.EntryTs
	if p.ExitTs != nil {
		ts = *p.ExitTs
	}
	return &PositionClosedEvent{BaseEvent: newBaseEvent(TopicPositionClosed, ts), Position: p}
}

// DailyRollEvent announces a simulation's end-of-day performance roll-up.
type DailyRollEvent struct {
	BaseEvent
	Performance types.DailyPerformance `json:"performance"`
}

// NewDailyRollEvent builds a daily_roll event.
func NewDailyRollEvent(p types.DailyPerformance) *DailyRollEvent {
	return &DailyRollEvent{BaseEvent: newBaseEvent(TopicDailyRoll, p.Date), Performance: p}
}

// EventHandler processes one delivered event. A returned error is logged,
// never propagated back to the publisher.
type EventHandler func(event Event) error

// ringQueue is a per-subscriber bounded FIFO. Push never blocks the
// publisher: once full, the oldest entry is evicted to make room.
type ringQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []Event
	cap     int
	closed  bool
	dropped atomic.Int64
}

func newRingQueue(capacity int) *ringQueue {
	q := &ringQueue{cap: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *ringQueue) push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.buf) >= q.cap {
		q.buf = q.buf[1:]
		q.dropped.Add(1)
	}
	q.buf = append(q.buf, e)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an event is available or the queue is closed. ok is
// false only once the queue has been closed (unsubscribed).
func (q *ringQueue) pop() (e Event, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	e, q.buf = q.buf[0], q.buf[1:]
	return e, true
}

// close stops the queue immediately; any buffered events are discarded so
// an unsubscribed handler never receives another delivery.
func (q *ringQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.buf = nil
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *ringQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// subscription binds a handler to its own consumer goroutine and queue.
type subscription struct {
	token  string
	topic  EventType
	handler EventHandler
	queue  *ringQueue
	active atomic.Bool
	logger *zap.Logger
}

func (s *subscription) run() {
	for {
		e, ok := s.queue.pop()
		if !ok {
			return
		}
		if !s.active.Load() {
			continue
		}
		s.invoke(e)
	}
}

func (s *subscription) invoke(e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("event handler panic",
				zap.String("token", s.token),
				zap.String("topic", string(s.topic)),
				zap.Any("panic", r),
			)
		}
	}()
	if err := s.handler(e); err != nil {
		s.logger.Warn("event handler returned error",
			zap.String("token", s.token),
			zap.String("topic", string(s.topic)),
			zap.Error(err),
		)
	}
}

// SubscriberStat snapshots one subscription's queue health.
type SubscriberStat struct {
	Token      string    `json:"token"`
	Topic      EventType `json:"topic"`
	QueueDepth int       `json:"queue_depth"`
	Dropped    int64     `json:"dropped"`
}

// Stats snapshots the bus's overall throughput and per-subscriber health.
type Stats struct {
	Published   int64            `json:"published"`
	Subscribers []SubscriberStat `json:"subscribers"`
}

// EventBus routes published events to their topic's subscribers.
type EventBus struct {
	mu        sync.RWMutex
	subs      map[EventType][]*subscription
	tokens    map[string]*subscription
	queueCap  int
	logger    *zap.Logger
	published atomic.Int64
}

// NewEventBus constructs a bus whose subscriber queues hold queueCap
// events before evicting the oldest; queueCap <= 0 uses DefaultQueueCapacity.
func NewEventBus(logger *zap.Logger, queueCap int) *EventBus {
	if queueCap <= 0 {
		queueCap = DefaultQueueCapacity
	}
	return &EventBus{
		subs:     make(map[EventType][]*subscription),
		tokens:   make(map[string]*subscription),
		queueCap: queueCap,
		logger:   logger,
	}
}

// Subscribe registers handler for topic and returns a token usable with
// Unsubscribe. Multiple subscribers per topic are delivered independently;
// each sees every event published to topic in publish order.
func (eb *EventBus) Subscribe(topic EventType, handler EventHandler) string {
	sub := &subscription{
		token:  uuid.NewString(),
		topic:  topic,
		handler: handler,
		queue:  newRingQueue(eb.queueCap),
		logger: eb.logger,
	}
	sub.active.Store(true)

	eb.mu.Lock()
	eb.subs[topic] = append(eb.subs[topic], sub)
	eb.tokens[sub.token] = sub
	eb.mu.Unlock()

	go sub.run()
	return sub.token
}

// Unsubscribe stops deliveries to the subscription identified by token.
// No further deliveries occur once this returns, including events already
// buffered in its queue.
func (eb *EventBus) Unsubscribe(token string) {
	eb.mu.Lock()
	sub, ok := eb.tokens[token]
	if ok {
		delete(eb.tokens, token)
	}
	eb.mu.Unlock()
	if !ok {
		return
	}
	sub.active.Store(false)
	sub.queue.close()
}

// Publish fans event out to every active subscriber of its topic. Never
// blocks: a subscriber whose queue is full loses its oldest buffered event.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	subs := eb.subs[event.GetType()]
	eb.mu.RUnlock()

	eb.published.Add(1)
	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		sub.queue.push(event)
	}
}

// Stats returns a snapshot of publish volume and per-subscriber queue
// health (depth, dropped count).
func (eb *EventBus) Stats() Stats {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	st := Stats{Published: eb.published.Load()}
	for topic, subs := range eb.subs {
		for _, sub := range subs {
			if !sub.active.Load() {
				continue
			}
			st.Subscribers = append(st.Subscribers, SubscriberStat{
				Token:      sub.token,
				Topic:      topic,
				QueueDepth: sub.queue.depth(),
				Dropped:    sub.queue.dropped.Load(),
			})
		}
	}
	return st
}

// Close unsubscribes every active subscription, stopping their consumer
// goroutines. The bus itself is not reusable afterward.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	tokens := make([]string, 0, len(eb.tokens))
	for t := range eb.tokens {
		tokens = append(tokens, t)
	}
	eb.mu.Unlock()

	for _, t := range tokens {
		eb.Unsubscribe(t)
	}
	eb.logger.Info("event bus closed", zap.Int("subscriptions_stopped", len(tokens)))
}
