package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// tickRecord is a PriceQuote plus the fields compaction needs to fold
// raw ticks into a minute aggregate.
type tickRecord struct {
	Quote     types.PriceQuote `json:"quote"`
	Compacted bool             `json:"compacted,omitempty"`
}

func tickKey(q types.PriceQuote) string {
	return fmt.Sprintf("%d|%s", q.Timestamp.UnixNano(), q.GramGold.String())
}

func dayBucket(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

func (s *Store) tickPath(day string) string {
	return filepath.Join(s.dataDir, "ticks", day+".json")
}

func (s *Store) loadTicks() error {
	s.ticksMu.Lock()
	defer s.ticksMu.Unlock()

	dir := filepath.Join(s.dataDir, "ticks")
	entries, err := readDirNames(dir)
	if err != nil {
		return err
	}
	for _, day := range entries {
		var recs []tickRecord
		if err := s.readJSON(s.tickPath(day), &recs); err != nil {
			return err
		}
		if len(recs) > 0 {
			s.ticks[day] = recs
		}
	}
	return nil
}

// AppendTick stores q, idempotent by (ts, gram_gold): re-appending the
// same quote is a no-op.
func (s *Store) AppendTick(q types.PriceQuote) error {
	day := dayBucket(q.Timestamp)
	key := tickKey(q)

	s.ticksMu.Lock()
	defer s.ticksMu.Unlock()

	existing := s.ticks[day]
	for _, r := range existing {
		if tickKey(r.Quote) == key {
			return nil
		}
	}

	existing = append(existing, tickRecord{Quote: q})
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Quote.Timestamp.Before(existing[j].Quote.Timestamp)
	})
	s.ticks[day] = existing

	return s.writeJSON(s.tickPath(day), existing)
}

// FetchTicks returns every stored tick with since <= ts <= until, ordered
// ascending by timestamp.
func (s *Store) FetchTicks(since, until time.Time) ([]types.PriceQuote, error) {
	s.ticksMu.Lock()
	defer s.ticksMu.Unlock()

	var out []types.PriceQuote
	for day := dayBucket(since); ; {
		d, err := time.Parse("2006-01-02", day)
		if err != nil {
			break
		}
		if d.After(until) {
			break
		}
		for _, r := range s.ticks[day] {
			ts := r.Quote.Timestamp
			if (ts.Equal(since) || ts.After(since)) && (ts.Equal(until) || ts.Before(until)) {
				out = append(out, r.Quote)
			}
		}
		day = dayBucket(d.AddDate(0, 0, 1))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
