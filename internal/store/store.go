// Package store is the engine's persistent store: an append-only
// tick log, per-interval candles, analysis and signal records, and
// simulation/position state, all file-backed with an in-memory cache
// layered in front of JSON files on disk.
//
// Each table below is guarded by its own mutex, shared by its readers and
// writers, and on a conflicting concurrent upsert to the same key the
// last write wins. Candle writes in particular assume C2 is the
// store's only caller for that table.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/pkg/types"
	"github.com/sezginpak/gold-analyzer/pkg/utils"
)

// Store is the engine's single persistent store, backed by a directory
// of JSON files under dataDir.
type Store struct {
	logger  *zap.Logger
	dataDir string
	retry   utils.RetryConfig

	retentionDaysRaw int

	ticksMu sync.Mutex
	ticks   map[string][]tickRecord // date (YYYY-MM-DD) -> ordered ticks

	candlesMu sync.Mutex
	candles   map[string][]candleRecord // interval -> ordered candles, last may be open

	analysisMu sync.Mutex
	analyses   map[string][]analysisRecord // timeframe -> ordered records

	signalsMu sync.Mutex
	signals   []signalRecord

	simMu       sync.Mutex
	simulations map[string]*types.Simulation

	posMu     sync.Mutex
	positions map[string][]positionRecord // sim_id -> positions

	perfMu       sync.Mutex
	dailyPerf    map[string][]dailyPerfRecord // sim_id -> ordered by date

	stopCompaction chan struct{}
	compactionDone chan struct{}
}

// NewStore opens (or creates) the store rooted at dataDir. retentionDaysRaw
// configures the compaction cutoff (default: 7).
func NewStore(logger *zap.Logger, dataDir string, retentionDaysRaw int) (*Store, error) {
	if retentionDaysRaw <= 0 {
		retentionDaysRaw = 7
	}
	for _, sub := range []string{"ticks", "candles", "analysis", "signals", "simulations", "positions", "performance"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", sub, err)
		}
	}

	s := &Store{
		logger:           logger,
		dataDir:          dataDir,
		retry:            utils.DefaultRetryConfig(),
		retentionDaysRaw: retentionDaysRaw,
		ticks:            make(map[string][]tickRecord),
		candles:          make(map[string][]candleRecord),
		analyses:         make(map[string][]analysisRecord),
		simulations:      make(map[string]*types.Simulation),
		positions:        make(map[string][]positionRecord),
		dailyPerf:        make(map[string][]dailyPerfRecord),
	}

	if err := s.loadAll(); err != nil {
		return nil, err
	}

	return s, nil
}

// readJSON retries transient read failures with an exponential backoff
// schedule. A missing file is not an error; dst is left unchanged.
func (s *Store) readJSON(path string, dst interface{}) error {
	_, err := utils.Retry(s.retry, func() (struct{}, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return struct{}{}, nil
			}
			return struct{}{}, err
		}
		if len(data) == 0 {
			return struct{}{}, nil
		}
		if err := json.Unmarshal(data, dst); err != nil {
			s.logger.Warn("skipping corrupt record file", zap.String("path", path), zap.Error(err))
			return struct{}{}, nil
		}
		return struct{}{}, nil
	})
	if err != nil {
		return errs.TransientIO(fmt.Sprintf("read %s", path), err)
	}
	return nil
}

// writeJSON retries transient write failures and writes via a temp file
// plus rename so a crash mid-write never corrupts the prior contents.
func (s *Store) writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Validation(fmt.Sprintf("marshal %s: %v", path, err))
	}

	_, err = utils.Retry(s.retry, func() (struct{}, error) {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, os.Rename(tmp, path)
	})
	if err != nil {
		return errs.TransientIO(fmt.Sprintf("write %s", path), err)
	}
	return nil
}

func (s *Store) loadAll() error {
	if err := s.loadTicks(); err != nil {
		return err
	}
	if err := s.loadCandles(); err != nil {
		return err
	}
	if err := s.loadAnalyses(); err != nil {
		return err
	}
	if err := s.loadSignals(); err != nil {
		return err
	}
	if err := s.loadSimulations(); err != nil {
		return err
	}
	if err := s.loadPositions(); err != nil {
		return err
	}
	return s.loadDailyPerformance()
}

// StartCompaction launches the daily compaction background task (see
// compaction.go). It is idempotent to call once per Store lifetime.
func (s *Store) StartCompaction(interval time.Duration) {
	if s.stopCompaction != nil {
		return
	}
	s.stopCompaction = make(chan struct{})
	s.compactionDone = make(chan struct{})
	go s.compactionLoop(interval)
}

// Close stops the background compaction task, if running.
func (s *Store) Close() {
	if s.stopCompaction == nil {
		return
	}
	close(s.stopCompaction)
	<-s.compactionDone
}
