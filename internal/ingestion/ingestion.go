// Package ingestion is the boundary between the upstream vendor adapter
// and the rest of the engine: it validates every tick the adapter pushes,
// fills in ounce_try when the adapter omits it, throttles how often the
// adapter itself may be polled, and publishes the accepted quote onto the
// event bus for the aggregator to fold into candles.
package ingestion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// maxFetchAttempts bounds how many adapter fetches pollOnce makes in one
// poll cycle (the first attempt plus maxFetchAttempts-1 retries) before
// giving up on that cycle.
const maxFetchAttempts = 3

// DefaultPollRate is the default ceiling on how often pollOnce may call
// the adapter, once per second.
const DefaultPollRate = 1 * time.Second

// Adapter fetches a single fresh quote from the upstream vendor. A real
// adapter wraps a REST poll or a WebSocket's latest cached tick.
type Adapter interface {
	FetchQuote(ctx context.Context) (types.PriceQuote, error)
}

// Port validates, completes, and publishes ticks pushed by an Adapter. A
// malformed tick is logged and dropped; it never stops the pipeline.
type Port struct {
	logger  *zap.Logger
	store   *store.Store
	bus     *events.EventBus
	adapter Adapter
	limiter *rate.Limiter
	metrics *metrics.Registry

	cancel context.CancelFunc
}

// New constructs a Port polling adapter at most once per pollInterval. reg
// may be nil, in which case retried fetches simply aren't counted.
func New(logger *zap.Logger, st *store.Store, bus *events.EventBus, adapter Adapter, pollInterval time.Duration, reg *metrics.Registry) *Port {
	if pollInterval <= 0 {
		pollInterval = DefaultPollRate
	}
	return &Port{
		logger:  logger,
		store:   st,
		bus:     bus,
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Every(pollInterval), 1),
		metrics: reg,
	}
}

// Start polls the adapter on its own ticker until ctx is cancelled or Stop
// is called, ingesting whatever it returns.
func (p *Port) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go func() {
		ticker := time.NewTicker(DefaultPollRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pollOnce(ctx)
			}
		}
	}()
}

// Stop halts the polling loop started by Start.
func (p *Port) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// pollOnce fetches a single quote, making up to maxFetchAttempts
// rate-limited adapter calls before giving up on this poll cycle.
func (p *Port) pollOnce(ctx context.Context) {
	var q types.PriceQuote
	var err error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if werr := p.limiter.Wait(ctx); werr != nil {
			return
		}
		q, err = p.adapter.FetchQuote(ctx)
		if err == nil {
			p.Ingest(q)
			return
		}
		if attempt < maxFetchAttempts {
			if p.metrics != nil {
				p.metrics.IncRetry()
			}
		}
	}
	p.logger.Warn("adapter fetch failed", zap.Error(err), zap.Int("attempts", maxFetchAttempts))
}

// Ingest validates q, fills in any derivable missing field, and on
// success persists and publishes it. A rejected tick is logged as a
// warning and dropped; it never returns an error to the caller, since
// nothing upstream is positioned to retry a single bad tick.
func (p *Port) Ingest(q types.PriceQuote) {
	q, err := Validate(q)
	if err != nil {
		p.logger.Warn("rejected tick", zap.Error(err))
		return
	}

	if err := p.store.AppendTick(q); err != nil {
		p.logger.Warn("failed to persist tick", zap.Error(err))
		return
	}
	p.bus.Publish(events.NewPriceUpdateEvent(q))
}

// Validate rejects a tick with a non-positive or non-finite field and
// derives OunceTRY from OunceUSD*USDTRY when the adapter left it zero.
func Validate(q types.PriceQuote) (types.PriceQuote, error) {
	if q.Timestamp.IsZero() {
		return q, errs.Validation("tick missing timestamp")
	}
	if !isPositiveFinite(q.GramGold) {
		return q, errs.Validation("gram_gold is not a positive finite value")
	}
	if !isPositiveFinite(q.OunceUSD) {
		return q, errs.Validation("ounce_usd is not a positive finite value")
	}
	if !isPositiveFinite(q.USDTRY) {
		return q, errs.Validation("usd_try is not a positive finite value")
	}

	if q.OunceTRY.IsZero() {
		q.OunceTRY = q.OunceUSD.Mul(q.USDTRY)
	} else if !isPositiveFinite(q.OunceTRY) {
		return q, errs.Validation("ounce_try is not a positive finite value")
	}

	return q, nil
}

// isPositiveFinite reports whether d is a usable price or rate.
// decimal.Decimal has no NaN/Inf representation, so only the sign needs checking.
func isPositiveFinite(d decimal.Decimal) bool {
	return d.IsPositive()
}
