// Package api_test provides tests for the API server.
package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sezginpak/gold-analyzer/internal/api"
	"github.com/sezginpak/gold-analyzer/internal/events"
	"github.com/sezginpak/gold-analyzer/internal/store"
	"github.com/sezginpak/gold-analyzer/pkg/types"
)

func setupTestServer(t *testing.T) (*api.Server, *store.Store, *events.EventBus, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()

	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	bus := events.NewEventBus(logger, 0)
	server := api.NewServer(logger, types.ServerConfig{
		Host:          "127.0.0.1",
		Port:          0,
		WebSocketPath: "/ws",
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		EnableMetrics: false,
	}, st, bus, nil)

	ts := httptest.NewServer(server.Handler())
	return server, st, bus, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", result["status"])
	}
}

func TestCreateAndListSimulations(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	reqBody := `{"name":"demo","strategy_type":"HYBRID","initial_capital_grams":100}`
	resp, err := http.Post(ts.URL+"/api/v1/simulations", "application/json", strings.NewReader(reqBody))
	if err != nil {
		t.Fatalf("create simulation failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created types.Simulation
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode created simulation: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated simulation id")
	}
	if len(created.PerTFCapital) != len(types.Timeframes) {
		t.Errorf("expected capital split across %d timeframes, got %d", len(types.Timeframes), len(created.PerTFCapital))
	}

	listResp, err := http.Get(ts.URL + "/api/v1/simulations")
	if err != nil {
		t.Fatalf("list simulations failed: %v", err)
	}
	defer listResp.Body.Close()
	var listed map[string][]types.Simulation
	if err := json.NewDecoder(listResp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed["simulations"]) != 1 {
		t.Errorf("expected 1 simulation listed, got %d", len(listed["simulations"]))
	}
}

func TestPauseAndResumeSimulation(t *testing.T) {
	_, st, _, ts := setupTestServer(t)
	defer ts.Close()

	sim := types.Simulation{ID: "sim-1", Name: "demo", Status: types.SimActive}
	if err := st.CreateSimulation(sim); err != nil {
		t.Fatalf("CreateSimulation: %v", err)
	}

	resp, err := http.Post(ts.URL+"/api/v1/simulations/sim-1/pause", "application/json", nil)
	if err != nil {
		t.Fatalf("pause request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resumeResp, err := http.Post(ts.URL+"/api/v1/simulations/sim-1/resume", "application/json", nil)
	if err != nil {
		t.Fatalf("resume request failed: %v", err)
	}
	resumeResp.Body.Close()
	if resumeResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resumeResp.StatusCode)
	}

	sims := st.ListSimulations()
	if len(sims) != 1 || sims[0].Status != types.SimActive {
		t.Fatalf("expected simulation resumed to ACTIVE, got %+v", sims)
	}
}

func TestLatestAnalysisNotFound(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/analysis/15m/latest")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for no recorded analysis, got %d", resp.StatusCode)
	}
}

func TestListSignalsEmpty(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/signals")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["count"].(float64) != 0 {
		t.Errorf("expected no signals, got %v", body["count"])
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	logger := zap.NewNop()
	st, err := store.NewStore(logger, t.TempDir(), 7)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	bus := events.NewEventBus(logger, 0)
	server := api.NewServer(logger, types.ServerConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, st, bus, nil)

	go server.Start()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestSimulationPositionFiltersByStatus(t *testing.T) {
	_, st, _, ts := setupTestServer(t)
	defer ts.Close()

	if err := st.CreateSimulation(types.Simulation{ID: "sim-2", Name: "demo"}); err != nil {
		t.Fatalf("CreateSimulation: %v", err)
	}
	if err := st.InsertPosition(types.Position{
		ID: "pos-1", SimID: "sim-2", Status: types.PositionOpen,
		SizeGrams: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(2400),
		EntryTs: time.Now(),
	}); err != nil {
		t.Fatalf("InsertPosition: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/v1/simulations/sim-2/positions?status=OPEN")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	positions, _ := body["positions"].([]interface{})
	if len(positions) != 1 {
		t.Errorf("expected 1 open position, got %d", len(positions))
	}
}
