// Package simulation runs one paper-trading Simulation: on every
// analysis_ready event for a timeframe it tracks, it evaluates open
// positions for exit first, then considers opening a new one, debiting
// and crediting that timeframe's capital allocation as it goes.
package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// Engine drives a single Simulation's position opener and monitor.
type Engine struct {
	logger *zap.Logger
	store  *store.Store
	bus    *events.EventBus
	window types.TradingWindow

	simID string
	mu    sync.Mutex

	subToken string
}

// New builds an Engine for an already-created simulation.
func New(logger *zap.Logger, st *store.Store, bus *events.EventBus, window types.TradingWindow, simID string) *Engine {
	return &Engine{logger: logger, store: st, bus: bus, window: window, simID: simID}
}

// Start subscribes to analysis_ready and begins processing. Call Stop to
// unsubscribe.
func (e *Engine) Start(ctx context.Context) {
	e.subToken = e.bus.Subscribe(events.TopicAnalysisReady, func(ev events.Event) error {
		ar, ok := ev.(*events.AnalysisReadyEvent)
		if !ok {
			return nil
		}
		e.handleAnalysis(ar.Analysis)
		return nil
	})
	_ = ctx
}

// Stop unsubscribes from the event bus.
func (e *Engine) Stop() {
	if e.subToken != "" {
		e.bus.Unsubscribe(e.subToken)
	}
}

// handleAnalysis processes one AnalysisRecord: it first evaluates any
// open position on this (simulation, timeframe) for exit, then considers
// opening a new one if none remains. A caught invariant violation pauses
// the simulation rather than corrupting its books.
func (e *Engine) handleAnalysis(record types.AnalysisRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sims := e.store.ListSimulations()
	var sim *types.Simulation
	for i := range sims {
		if sims[i].ID == e.simID {
			sim = &sims[i]
			break
		}
	}
	if sim == nil || sim.Status != types.SimActive {
		return
	}
	if !tfTracked(sim.Timeframes, record.Timeframe) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.pause(sim.ID, "panic during analysis handling")
			e.logger.Error("simulation engine panicked", zap.String("sim_id", sim.ID), zap.Any("panic", r))
		}
	}()

	open := e.openPosition(sim.ID, record.Timeframe)
	if open != nil {
		if err := e.evaluateExit(sim, open, record); err != nil {
			e.handleViolation(sim.ID, err)
			return
		}
		open = e.openPosition(sim.ID, record.Timeframe)
	}
	if open == nil {
		if err := e.tryOpen(sim, record); err != nil {
			e.handleViolation(sim.ID, err)
		}
	}
}

func (e *Engine) handleViolation(simID string, err error) {
	if errs.OfKind(err, errs.KindInvariantViolation) {
		e.pause(simID, err.Error())
		return
	}
	e.logger.Error("simulation engine error", zap.String("sim_id", simID), zap.Error(err))
}

func (e *Engine) pause(simID, reason string) {
	status := types.SimPaused
	if err := e.store.UpdateSimState(simID, store.SimStateUpdate{Status: &status, PauseReason: &reason}); err != nil {
		e.logger.Error("failed to pause simulation", zap.String("sim_id", simID), zap.Error(err))
	}
}

func (e *Engine) openPosition(simID string, tf types.Timeframe) *types.Position {
	open := types.PositionOpen
	positions := e.store.FetchPositions(simID, &open)
	for i := range positions {
		if positions[i].Timeframe == tf {
			return &positions[i]
		}
	}
	return nil
}

func tfTracked(tfs []types.Timeframe, tf types.Timeframe) bool {
	for _, t := range tfs {
		if t == tf {
			return true
		}
	}
	return false
}

func newPositionID() string {
	return uuid.NewString()
}

func withinTradingWindow(window types.TradingWindow, at time.Time) bool {
	loc, err := time.LoadLocation(window.Zone)
	if err != nil {
		loc = time.UTC
	}
	local := at.In(loc)
	start, errStart := time.Parse("15:04", window.Start)
	end, errEnd := time.Parse("15:04", window.End)
	if errStart != nil || errEnd != nil {
		return true
	}
	cur := local.Hour()*60 + local.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return cur >= startMin && cur <= endMin
	}
	return cur >= startMin || cur <= endMin
}
