package store

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

type signalRecord struct {
	Record types.SignalRecord `json:"record"`
}

func (s *Store) signalsPath() string {
	return filepath.Join(s.dataDir, "signals", "signals.json")
}

func (s *Store) loadSignals() error {
	s.signalsMu.Lock()
	defer s.signalsMu.Unlock()

	var recs []signalRecord
	if err := s.readJSON(s.signalsPath(), &recs); err != nil {
		return err
	}
	s.signals = recs
	return nil
}

// InsertSignal appends a non-HOLD analysis projection.
func (s *Store) InsertSignal(sig types.SignalRecord) error {
	s.signalsMu.Lock()
	defer s.signalsMu.Unlock()

	s.signals = append(s.signals, signalRecord{Record: sig})
	sort.Slice(s.signals, func(i, j int) bool {
		return s.signals[i].Record.Timestamp.Before(s.signals[j].Record.Timestamp)
	})
	return s.writeJSON(s.signalsPath(), s.signals)
}

// SignalFilter narrows FetchSignals to records matching it; nil matches
// everything.
type SignalFilter func(types.SignalRecord) bool

// FetchSignals returns every signal at or after since matching filter,
// ordered ascending by timestamp.
func (s *Store) FetchSignals(since time.Time, filter SignalFilter) []types.SignalRecord {
	s.signalsMu.Lock()
	defer s.signalsMu.Unlock()

	var out []types.SignalRecord
	for _, r := range s.signals {
		if r.Record.Timestamp.Before(since) {
			continue
		}
		if filter != nil && !filter(r.Record) {
			continue
		}
		out = append(out, r.Record)
	}
	return out
}
