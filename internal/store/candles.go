package store

import (
	"path/filepath"
	"sort"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

type candleRecord struct {
	Candle types.Candle `json:"candle"`
}

func (s *Store) candlePath(interval types.Timeframe) string {
	return filepath.Join(s.dataDir, "candles", string(interval)+".json")
}

func (s *Store) loadCandles() error {
	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()

	for _, tf := range types.Timeframes {
		var recs []candleRecord
		if err := s.readJSON(s.candlePath(tf), &recs); err != nil {
			return err
		}
		if len(recs) > 0 {
			s.candles[string(tf)] = recs
		}
	}
	return nil
}

// UpsertCandle replaces the stored open candle sharing c's (interval,
// ts_open), or appends c if no such candle exists. A sealed candle is
// never rewritten by a later call with the same ts_open; C2 is expected
// to be the only caller and to never seal the same bucket twice.
func (s *Store) UpsertCandle(c types.Candle) error {
	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()

	key := string(c.Interval)
	existing := s.candles[key]

	for i := len(existing) - 1; i >= 0; i-- {
		if existing[i].Candle.TsOpen.Equal(c.TsOpen) {
			if existing[i].Candle.Sealed {
				return nil
			}
			existing[i] = candleRecord{Candle: c}
			s.candles[key] = existing
			return s.writeJSON(s.candlePath(c.Interval), existing)
		}
	}

	existing = append(existing, candleRecord{Candle: c})
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Candle.TsOpen.Before(existing[j].Candle.TsOpen)
	})
	s.candles[key] = existing
	return s.writeJSON(s.candlePath(c.Interval), existing)
}

// FetchCandles returns the count most recent candles for interval, newest
// last. If endTs is non-nil, only candles with ts_open <= *endTs are
// considered.
func (s *Store) FetchCandles(interval types.Timeframe, count int, endTs *int64) ([]types.Candle, error) {
	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()

	all := s.candles[string(interval)]
	var filtered []types.Candle
	for _, r := range all {
		if endTs != nil && r.Candle.TsOpen.Unix() > *endTs {
			continue
		}
		filtered = append(filtered, r.Candle)
	}

	if count > 0 && len(filtered) > count {
		filtered = filtered[len(filtered)-count:]
	}
	return filtered, nil
}
