// Package scheduler runs the per-timeframe Idle/Running state machine that
// dispatches the hybrid strategy on bar close (or, failing that, on its own
// timer) and publishes the resulting analysis.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/hybrid"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// candleCounts is the tuned history depth loaded per timeframe before
// each run.
var candleCounts = map[types.Timeframe]int{
	types.Timeframe15m: 200,
	types.Timeframe1h:  200,
	types.Timeframe4h:  200,
	types.Timeframe1d:  100,
}

// tickWindow is how far back raw ticks are loaded to feed the
// global-trend/currency-risk sub-signals.
const tickWindow = 6 * time.Hour

// fallbackInterval is the timer period used as a safety net for a
// timeframe whose bar_close events stop arriving.
const fallbackInterval = 30 * time.Second

// timeframeState is one timeframe's Idle/Running coalescing state.
type timeframeState struct {
	mu      sync.Mutex
	running bool
	pending bool
}

// Scheduler dispatches the hybrid strategy per timeframe, persists its
// output, and publishes it on the event bus.
type Scheduler struct {
	logger   *zap.Logger
	store    *store.Store
	bus      *events.EventBus
	strategy *hybrid.Strategy
	metrics  *metrics.Registry

	states map[types.Timeframe]*timeframeState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Scheduler over every configured timeframe. reg may be nil,
// in which case analysis outcomes simply aren't counted.
func New(logger *zap.Logger, st *store.Store, bus *events.EventBus, strategy *hybrid.Strategy, reg *metrics.Registry) *Scheduler {
	states := make(map[types.Timeframe]*timeframeState, len(types.Timeframes))
	for _, tf := range types.Timeframes {
		states[tf] = &timeframeState{}
	}
	return &Scheduler{logger: logger, store: st, bus: bus, strategy: strategy, metrics: reg, states: states}
}

// Start subscribes to bar_close and begins the per-timeframe fallback
// timers. It returns immediately; call Stop to end the fallback timers.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.bus.Subscribe(events.TopicBarClose, func(e events.Event) error {
		bc, ok := e.(*events.BarCloseEvent)
		if !ok {
			return nil
		}
		s.trigger(bc.Candle.Interval)
		return nil
	})

	for _, tf := range types.Timeframes {
		s.wg.Add(1)
		go s.fallbackLoop(ctx, tf)
	}
}

// Stop cancels every fallback loop and waits for those loops to exit. It
// does not wait for a run already in flight, and the bar_close
// subscription stays registered, so a later bar_close still starts a run.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) fallbackLoop(ctx context.Context, tf types.Timeframe) {
	defer s.wg.Done()
	ticker := time.NewTicker(fallbackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(tf)
		}
	}
}

// trigger starts a run for tf, or marks one pending if a run is already
// in flight; only one re-run ever coalesces behind the current one.
func (s *Scheduler) trigger(tf types.Timeframe) {
	state, ok := s.states[tf]
	if !ok {
		return
	}

	state.mu.Lock()
	if state.running {
		state.pending = true
		state.mu.Unlock()
		return
	}
	state.running = true
	state.mu.Unlock()

	go s.runLoop(tf, state)
}

// runLoop executes one run, then immediately re-runs if a trigger
// coalesced while it was busy, until no pending run remains.
func (s *Scheduler) runLoop(tf types.Timeframe, state *timeframeState) {
	for {
		s.runOnce(tf)

		state.mu.Lock()
		if !state.pending {
			state.running = false
			state.mu.Unlock()
			return
		}
		state.pending = false
		state.mu.Unlock()
	}
}

// runOnce loads history, invokes the strategy, and persists/publishes the
// result. A panic or error here is logged and never propagates: failure
// on one timeframe must never stop the others.
func (s *Scheduler) runOnce(tf types.Timeframe) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler run panicked", zap.String("timeframe", string(tf)), zap.Any("panic", r))
		}
	}()

	count := candleCounts[tf]
	if count == 0 {
		count = 200
	}
	candles, err := s.store.FetchCandles(tf, count, nil)
	if err != nil {
		s.logger.Warn("scheduler failed to load candles", zap.String("timeframe", string(tf)), zap.Error(err))
		return
	}

	now := time.Now()
	ticks, err := s.store.FetchTicks(now.Add(-tickWindow), now)
	if err != nil {
		s.logger.Warn("scheduler failed to load ticks", zap.String("timeframe", string(tf)), zap.Error(err))
		ticks = nil
	}

	record := s.strategy.Analyze(tf, candles, ticks)
	record.Timestamp = now

	if s.metrics != nil {
		s.metrics.ObserveAnalysis(strings.Contains(record.Summary, "insufficient_data"))
	}

	if err := s.store.InsertAnalysis(record); err != nil {
		s.logger.Error("scheduler failed to persist analysis", zap.String("timeframe", string(tf)), zap.Error(err))
	}
	s.bus.Publish(events.NewAnalysisReadyEvent(record))

	if record.Signal != types.SignalHold {
		sig := types.SignalRecordFromAnalysis(record)
		if err := s.store.InsertSignal(sig); err != nil {
			s.logger.Error("scheduler failed to persist signal", zap.String("timeframe", string(tf)), zap.Error(err))
		}
		s.bus.Publish(events.NewSignalEvent(sig))
	}
}
