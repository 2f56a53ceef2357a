package store

import (
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

type simulationRecord struct {
	Simulation types.Simulation `json:"simulation"`
}

type positionRecord struct {
	Position types.Position `json:"position"`
}

type dailyPerfRecord struct {
	Performance types.DailyPerformance `json:"performance"`
}

func (s *Store) simulationsPath() string {
	return filepath.Join(s.dataDir, "simulations", "simulations.json")
}

func (s *Store) positionsPath(simID string) string {
	return filepath.Join(s.dataDir, "positions", simID+".json")
}

func (s *Store) dailyPerfPath(simID string) string {
	return filepath.Join(s.dataDir, "performance", simID+".json")
}

func (s *Store) loadSimulations() error {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	var recs []simulationRecord
	if err := s.readJSON(s.simulationsPath(), &recs); err != nil {
		return err
	}
	for _, r := range recs {
		sim := r.Simulation
		s.simulations[sim.ID] = &sim
	}
	return nil
}

func (s *Store) loadPositions() error {
	s.posMu.Lock()
	defer s.posMu.Unlock()

	dir := filepath.Join(s.dataDir, "positions")
	names, err := readDirNames(dir)
	if err != nil {
		return err
	}
	for _, simID := range names {
		var recs []positionRecord
		if err := s.readJSON(s.positionsPath(simID), &recs); err != nil {
			return err
		}
		if len(recs) > 0 {
			s.positions[simID] = recs
		}
	}
	return nil
}

func (s *Store) loadDailyPerformance() error {
	s.perfMu.Lock()
	defer s.perfMu.Unlock()

	dir := filepath.Join(s.dataDir, "performance")
	names, err := readDirNames(dir)
	if err != nil {
		return err
	}
	for _, simID := range names {
		var recs []dailyPerfRecord
		if err := s.readJSON(s.dailyPerfPath(simID), &recs); err != nil {
			return err
		}
		if len(recs) > 0 {
			s.dailyPerf[simID] = recs
		}
	}
	return nil
}

func (s *Store) persistSimulationsLocked() error {
	all := make([]simulationRecord, 0, len(s.simulations))
	for _, sim := range s.simulations {
		all = append(all, simulationRecord{Simulation: *sim})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Simulation.ID < all[j].Simulation.ID })
	return s.writeJSON(s.simulationsPath(), all)
}

// ListSimulations returns every known simulation, order unspecified.
func (s *Store) ListSimulations() []types.Simulation {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	out := make([]types.Simulation, 0, len(s.simulations))
	for _, sim := range s.simulations {
		out = append(out, *sim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateSimulation registers a new simulation; cfg.ID must be unique.
func (s *Store) CreateSimulation(cfg types.Simulation) error {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	if _, exists := s.simulations[cfg.ID]; exists {
		return errs.Validation("simulation id already exists: " + cfg.ID)
	}
	sim := cfg
	s.simulations[cfg.ID] = &sim
	return s.persistSimulationsLocked()
}

// SimStateUpdate describes a partial update to a Simulation's mutable
// fields; nil fields are left unchanged.
type SimStateUpdate struct {
	Status       *types.SimStatus
	PauseReason  *string
	PerTFCapital map[types.Timeframe]decimal.Decimal // merged key-by-key
}

// UpdateSimState applies update to the simulation identified by id.
func (s *Store) UpdateSimState(id string, update SimStateUpdate) error {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	sim, ok := s.simulations[id]
	if !ok {
		return errs.Validation("unknown simulation id: " + id)
	}
	if update.Status != nil {
		sim.Status = *update.Status
	}
	if update.PauseReason != nil {
		sim.PauseReason = *update.PauseReason
	}
	if update.PerTFCapital != nil {
		if sim.PerTFCapital == nil {
			sim.PerTFCapital = make(map[types.Timeframe]decimal.Decimal, len(update.PerTFCapital))
		}
		for tf, amt := range update.PerTFCapital {
			sim.PerTFCapital[tf] = amt
		}
	}
	return s.persistSimulationsLocked()
}

// InsertPosition appends a newly opened position.
func (s *Store) InsertPosition(p types.Position) error {
	s.posMu.Lock()
	defer s.posMu.Unlock()

	existing := append(s.positions[p.SimID], positionRecord{Position: p})
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Position.EntryTs.Before(existing[j].Position.EntryTs)
	})
	s.positions[p.SimID] = existing
	return s.writeJSON(s.positionsPath(p.SimID), existing)
}

// UpdatePositionExit replaces the stored position sharing p's (sim_id,
// id) with p, which must already carry its closed-state fields (exit
// price/ts/reason, realized P/L).
func (s *Store) UpdatePositionExit(p types.Position) error {
	s.posMu.Lock()
	defer s.posMu.Unlock()

	existing := s.positions[p.SimID]
	for i, r := range existing {
		if r.Position.ID == p.ID {
			existing[i] = positionRecord{Position: p}
			s.positions[p.SimID] = existing
			return s.writeJSON(s.positionsPath(p.SimID), existing)
		}
	}
	return errs.Validation("unknown position id: " + p.ID)
}

// FetchPositions returns simID's positions. If status is non-nil only
// positions in that status are returned.
func (s *Store) FetchPositions(simID string, status *types.PositionStatus) []types.Position {
	s.posMu.Lock()
	defer s.posMu.Unlock()

	var out []types.Position
	for _, r := range s.positions[simID] {
		if status != nil && r.Position.Status != *status {
			continue
		}
		out = append(out, r.Position)
	}
	return out
}

// UpdateDailyPerformance upserts perf by (sim_id, date).
func (s *Store) UpdateDailyPerformance(perf types.DailyPerformance) error {
	s.perfMu.Lock()
	defer s.perfMu.Unlock()

	existing := s.dailyPerf[perf.SimID]
	day := perf.Date.Format("2006-01-02")
	for i, r := range existing {
		if r.Performance.Date.Format("2006-01-02") == day {
			existing[i] = dailyPerfRecord{Performance: perf}
			s.dailyPerf[perf.SimID] = existing
			return s.writeJSON(s.dailyPerfPath(perf.SimID), existing)
		}
	}
	existing = append(existing, dailyPerfRecord{Performance: perf})
	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Performance.Date.Before(existing[j].Performance.Date)
	})
	s.dailyPerf[perf.SimID] = existing
	return s.writeJSON(s.dailyPerfPath(perf.SimID), existing)
}

// FetchDailyPerformance returns simID's performance roll-ups ordered by
// date ascending.
func (s *Store) FetchDailyPerformance(simID string) []types.DailyPerformance {
	s.perfMu.Lock()
	defer s.perfMu.Unlock()

	recs := s.dailyPerf[simID]
	out := make([]types.DailyPerformance, len(recs))
	for i, r := range recs {
		out[i] = r.Performance
	}
	return out
}
