package store

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// compactionLoop runs compactOnce once at startup and then once per
// interval until Close is called. It is the engine's only low-priority
// background writer; it touches nothing but historical tick rows.
func (s *Store) compactionLoop(interval time.Duration) {
	defer close(s.compactionDone)

	s.runCompaction()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCompaction:
			return
		case <-ticker.C:
			s.runCompaction()
		}
	}
}

func (s *Store) runCompaction() {
	if err := s.compactOnce(time.Now()); err != nil {
		s.logger.Warn("tick compaction failed", zap.Error(err))
	}
}

// CompactNow runs one compaction pass immediately, as of now, rather than
// waiting for the background loop's next tick. Exposed for operational
// tooling and tests.
func (s *Store) CompactNow(now time.Time) error {
	return s.compactOnce(now)
}

// compactOnce replaces every raw tick older than retentionDaysRaw with a
// one-minute OHLC-style aggregate of itself and its same-minute
// neighbors. Idempotent: re-running against already-compacted days is a
// no-op because compacted buckets are marked and skipped.
func (s *Store) compactOnce(now time.Time) error {
	cutoff := now.AddDate(0, 0, -s.retentionDaysRaw)

	s.ticksMu.Lock()
	defer s.ticksMu.Unlock()

	for day, recs := range s.ticks {
		d, err := time.Parse("2006-01-02", day)
		if err != nil || !d.Before(dayBucket2(cutoff)) {
			continue
		}

		needsWrite := false
		for _, r := range recs {
			if !r.Compacted {
				needsWrite = true
				break
			}
		}
		if !needsWrite {
			continue
		}

		compacted := compactDay(recs)
		s.ticks[day] = compacted
		if err := s.writeJSON(s.tickPath(day), compacted); err != nil {
			return err
		}
		s.logger.Info("compacted raw ticks", zap.String("day", day), zap.Int("minute_buckets", len(compacted)))
	}
	return nil
}

func dayBucket2(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// minuteAccumulator sums a minute bucket's quotes so compactDay can
// average them exactly, regardless of how many ticks landed in the
// bucket.
type minuteAccumulator struct {
	ts    time.Time
	n     int64
	gram  decimal.Decimal
	ounce decimal.Decimal
	usd   decimal.Decimal
	ozTry decimal.Decimal
}

func (a *minuteAccumulator) add(q types.PriceQuote) {
	a.n++
	a.gram = a.gram.Add(q.GramGold)
	a.ounce = a.ounce.Add(q.OunceUSD)
	a.usd = a.usd.Add(q.USDTRY)
	a.ozTry = a.ozTry.Add(q.OunceTRY)
}

func (a *minuteAccumulator) quote() types.PriceQuote {
	n := decimal.NewFromInt(a.n)
	return types.PriceQuote{
		Timestamp: a.ts,
		GramGold:  a.gram.Div(n),
		OunceUSD:  a.ounce.Div(n),
		USDTRY:    a.usd.Div(n),
		OunceTRY:  a.ozTry.Div(n),
	}
}

// compactDay folds recs (one day's raw ticks) into one representative
// tick per minute bucket, averaging every quote that fell in that minute.
// Ticks already compacted still pass through this fold, which is how
// re-running compaction against an already-compacted day stays a no-op:
// each bucket holds exactly one tick, so averaging it with itself is the
// identity.
func compactDay(recs []tickRecord) []tickRecord {
	byMinute := make(map[int64]*minuteAccumulator)
	order := make([]int64, 0, len(recs))

	for _, r := range recs {
		minute := r.Quote.Timestamp.Truncate(time.Minute)
		key := minute.Unix()
		acc, ok := byMinute[key]
		if !ok {
			acc = &minuteAccumulator{ts: minute}
			byMinute[key] = acc
			order = append(order, key)
		}
		acc.add(r.Quote)
	}

	out := make([]tickRecord, 0, len(order))
	for _, key := range order {
		out = append(out, tickRecord{Quote: byMinute[key].quote(), Compacted: true})
	}
	return out
}
