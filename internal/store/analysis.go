package store

import (
	"path/filepath"
	"sort"

	"github.com/sezginpak/gold-analyzer/pkg/types"
)

type analysisRecord struct {
	Record types.AnalysisRecord `json:"record"`
}

func (s *Store) analysisPath(tf types.Timeframe) string {
	return filepath.Join(s.dataDir, "analysis", string(tf)+".json")
}

func (s *Store) loadAnalyses() error {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	for _, tf := range types.Timeframes {
		var recs []analysisRecord
		if err := s.readJSON(s.analysisPath(tf), &recs); err != nil {
			return err
		}
		if len(recs) > 0 {
			s.analyses[string(tf)] = recs
		}
	}
	return nil
}

// InsertAnalysis appends a completed analysis for its timeframe.
func (s *Store) InsertAnalysis(a types.AnalysisRecord) error {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	key := string(a.Timeframe)
	existing := append(s.analyses[key], analysisRecord{Record: a})
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Record.Timestamp.Before(existing[j].Record.Timestamp)
	})
	s.analyses[key] = existing
	return s.writeJSON(s.analysisPath(a.Timeframe), existing)
}

// FetchLatestAnalysis returns the most recent analysis for tf, or nil if
// none has ever been recorded.
func (s *Store) FetchLatestAnalysis(tf types.Timeframe) *types.AnalysisRecord {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	recs := s.analyses[string(tf)]
	if len(recs) == 0 {
		return nil
	}
	rec := recs[len(recs)-1].Record
	return &rec
}

// AnalysisFilter narrows FetchAnalyses to records matching it; a nil
// filter matches everything.
type AnalysisFilter func(types.AnalysisRecord) bool

// FetchAnalyses returns up to limit of tf's most recent analyses matching
// filter, oldest first.
func (s *Store) FetchAnalyses(tf types.Timeframe, limit int, filter AnalysisFilter) []types.AnalysisRecord {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	var matched []types.AnalysisRecord
	for _, r := range s.analyses[string(tf)] {
		if filter == nil || filter(r.Record) {
			matched = append(matched, r.Record)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}
