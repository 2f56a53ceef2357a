// Package api provides the HTTP and WebSocket query surface: read-only
// projections of simulations, positions, analyses and signals, manual
// pause/resume control for a simulation, and a live event feed over
// WebSocket for the same topics the internal bus carries.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/errs"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/metrics"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	logger     *zap.Logger
	config     types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	store      *store.Store
	bus        *events.EventBus
	hub        *Hub
	metrics    *metrics.Registry
}

// NewServer constructs a Server. reg may be nil to disable /metrics.
func NewServer(logger *zap.Logger, config types.ServerConfig, st *store.Store, bus *events.EventBus, reg *metrics.Registry) *Server {
	s := &Server{
		logger:  logger,
		config:  config,
		router:  mux.NewRouter(),
		store:   st,
		bus:     bus,
		hub:     NewHub(logger),
		metrics: reg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/simulations", s.handleListSimulations).Methods("GET")
	s.router.HandleFunc("/api/v1/simulations", s.handleCreateSimulation).Methods("POST")
	s.router.HandleFunc("/api/v1/simulations/{id}/pause", s.handlePauseSimulation).Methods("POST")
	s.router.HandleFunc("/api/v1/simulations/{id}/resume", s.handleResumeSimulation).Methods("POST")
	s.router.HandleFunc("/api/v1/simulations/{id}/positions", s.handleListPositions).Methods("GET")
	s.router.HandleFunc("/api/v1/simulations/{id}/daily", s.handleListDailyPerformance).Methods("GET")

	s.router.HandleFunc("/api/v1/analysis/{timeframe}", s.handleListAnalyses).Methods("GET")
	s.router.HandleFunc("/api/v1/analysis/{timeframe}/latest", s.handleLatestAnalysis).Methods("GET")
	s.router.HandleFunc("/api/v1/signals", s.handleListSignals).Methods("GET")

	if s.metrics != nil && s.config.EnableMetrics {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	s.router.HandleFunc(s.wsPath(), s.handleWebSocket)
}

func (s *Server) wsPath() string {
	if s.config.WebSocketPath == "" {
		return "/ws"
	}
	return s.config.WebSocketPath
}

// Hub returns the server's WebSocket broadcast hub, so the caller can wire
// it to the event bus before Start.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the CORS-wrapped router, for embedding in a test server
// or a caller that manages its own http.Server.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Start runs the hub and the HTTP server; it blocks until the server stops.
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.bus.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"time":              time.Now().UTC(),
		"events_published":  stats.Published,
		"subscribers":       len(stats.Subscribers),
	})
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"simulations": s.store.ListSimulations()})
}

// createSimulationRequest is the JSON body for POST /api/v1/simulations.
type createSimulationRequest struct {
	Name                string              `json:"name"`
	StrategyType        types.StrategyType  `json:"strategy_type"`
	InitialCapitalGrams float64             `json:"initial_capital_grams"`
	Timeframes          []types.Timeframe   `json:"timeframes"`
	Costs               types.SimCosts      `json:"costs"`
	Thresholds          types.SimThresholds `json:"thresholds"`
}

// splitCapitalEqually divides total evenly across tfs, the simplest
// allocation a caller can override later via UpdateSimState.
func splitCapitalEqually(total decimal.Decimal, tfs []types.Timeframe) map[types.Timeframe]decimal.Decimal {
	out := make(map[types.Timeframe]decimal.Decimal, len(tfs))
	if len(tfs) == 0 {
		return out
	}
	share := total.Div(decimal.NewFromInt(int64(len(tfs))))
	for _, tf := range tfs {
		out[tf] = share
	}
	return out
}

// parseLimit reads the optional ?limit= query parameter.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req createSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Timeframes) == 0 {
		req.Timeframes = types.Timeframes
	}

	initialCapital := decimal.NewFromFloat(req.InitialCapitalGrams)
	sim := types.Simulation{
		ID:                  uuid.NewString(),
		Name:                req.Name,
		StrategyType:        req.StrategyType,
		Status:              types.SimActive,
		InitialCapitalGrams: initialCapital,
		PerTFCapital:        splitCapitalEqually(initialCapital, req.Timeframes),
		Timeframes:          req.Timeframes,
		Costs:               req.Costs,
		Thresholds:          req.Thresholds,
	}

	if err := s.store.CreateSimulation(sim); err != nil {
		if errs.OfKind(err, errs.KindValidation) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sim)
}

func (s *Server) handlePauseSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status := types.SimPaused
	reason := "paused via API"
	if err := s.store.UpdateSimState(id, store.SimStateUpdate{Status: &status, PauseReason: &reason}); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(types.SimPaused)})
}

func (s *Server) handleResumeSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status := types.SimActive
	reason := ""
	if err := s.store.UpdateSimState(id, store.SimStateUpdate{Status: &status, PauseReason: &reason}); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(types.SimActive)})
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var status *types.PositionStatus
	if q := r.URL.Query().Get("status"); q != "" {
		st := types.PositionStatus(q)
		status = &st
	}
	positions := s.store.FetchPositions(id, status)
	writeJSON(w, http.StatusOK, map[string]interface{}{"sim_id": id, "positions": positions})
}

func (s *Server) handleListDailyPerformance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sim_id": id,
		"daily":  s.store.FetchDailyPerformance(id),
	})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	tf := types.Timeframe(mux.Vars(r)["timeframe"])
	limit := 100
	if l, err := parseLimit(r); err == nil && l > 0 {
		limit = l
	}
	records := s.store.FetchAnalyses(tf, limit, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe": tf,
		"records":   records,
		"count":     len(records),
	})
}

func (s *Server) handleLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	tf := types.Timeframe(mux.Vars(r)["timeframe"])
	rec := s.store.FetchLatestAnalysis(tf)
	if rec == nil {
		writeError(w, http.StatusNotFound, "no analysis recorded for timeframe "+string(tf))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			since = t
		}
	}
	signals := s.store.FetchSignals(since, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{"signals": signals, "count": len(signals)})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), s.hub, conn)
	s.hub.register <- client
	go client.WritePump()
	go client.ReadPump()
}
