// Package aggregator folds incoming price quotes into OHLC candles across
// every configured timeframe. It is the store's sole candle writer:
// every other component only ever reads candles back through C1.
package aggregator

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/sezginpak/gold-analyzer/pkg/utils"
)

// Aggregator folds ticks into candles, one open candle per timeframe.
type Aggregator struct {
	mu         sync.Mutex
	logger     *zap.Logger
	store      *store.Store
	bus        *events.EventBus
	timeframes []types.Timeframe
	open       map[types.Timeframe]*types.Candle
}

// New constructs an Aggregator tracking timeframes, hydrating any
// already-open candle for each from the store so a restart resumes the
// current bucket instead of starting a spurious new one.
func New(logger *zap.Logger, st *store.Store, bus *events.EventBus, timeframes []types.Timeframe) *Aggregator {
	a := &Aggregator{
		logger:     logger,
		store:      st,
		bus:        bus,
		timeframes: timeframes,
		open:       make(map[types.Timeframe]*types.Candle),
	}

	for _, tf := range timeframes {
		recent, err := st.FetchCandles(tf, 1, nil)
		if err != nil || len(recent) == 0 {
			continue
		}
		last := recent[len(recent)-1]
		if !last.Sealed {
			c := last
			a.open[tf] = &c
		}
	}

	return a
}

// floorToInterval returns the start of the interval-width bucket ts
// falls within, in UTC.
func floorToInterval(ts time.Time, interval time.Duration) time.Time {
	return ts.UTC().Truncate(interval)
}

// OnTick folds q into every configured timeframe's current bucket,
// sealing and gap-filling across any interval boundaries crossed since
// the last tick.
func (a *Aggregator) OnTick(q types.PriceQuote) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, tf := range a.timeframes {
		a.foldTimeframe(tf, q)
	}
}

func (a *Aggregator) foldTimeframe(tf types.Timeframe, q types.PriceQuote) {
	tsOpen := floorToInterval(q.Timestamp, tf.Duration())
	cur := a.open[tf]

	if cur == nil {
		a.openNewCandle(tf, tsOpen, q.GramGold)
		return
	}

	if tsOpen.Before(cur.TsOpen) {
		a.logger.Warn("rejecting tick with ts earlier than open candle",
			zap.String("timeframe", string(tf)),
			zap.Time("tick_ts", q.Timestamp),
			zap.Time("open_ts", cur.TsOpen),
		)
		return
	}

	if tsOpen.Equal(cur.TsOpen) {
		cur.High = utils.MaxDecimal(cur.High, q.GramGold)
		cur.Low = utils.MinDecimal(cur.Low, q.GramGold)
		cur.Close = q.GramGold
		cur.TickCount++
		a.persist(*cur)
		return
	}

	// tsOpen is after cur.TsOpen: the interval boundary (and possibly
	// several) has been crossed.
	sealed := *cur
	sealed.Sealed = true
	a.sealAndPublish(sealed)

	lastClose := cur.Close
	next := cur.TsOpen.Add(tf.Duration())
	for next.Before(tsOpen) {
		gap := types.Candle{
			TsOpen: next, Interval: tf,
			Open: lastClose, High: lastClose, Low: lastClose, Close: lastClose,
			TickCount: 0, Sealed: true,
		}
		a.sealAndPublish(gap)
		next = next.Add(tf.Duration())
	}

	a.openNewCandle(tf, tsOpen, q.GramGold)
}

func (a *Aggregator) openNewCandle(tf types.Timeframe, tsOpen time.Time, price decimal.Decimal) {
	c := types.Candle{
		TsOpen: tsOpen, Interval: tf,
		Open: price, High: price, Low: price, Close: price,
		TickCount: 1,
	}
	a.open[tf] = &c
	a.persist(c)
}

func (a *Aggregator) persist(c types.Candle) {
	if err := a.store.UpsertCandle(c); err != nil {
		a.logger.Warn("failed to persist candle", zap.String("timeframe", string(c.Interval)), zap.Error(err))
	}
}

func (a *Aggregator) sealAndPublish(c types.Candle) {
	a.persist(c)
	a.bus.Publish(events.NewBarCloseEvent(c))
}
