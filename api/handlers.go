/*
handlers.go - HTTP API handlers for the transfer engine

PURPOSE:
  Exposes the allocation engine over REST. Handles HTTP request/response
  and JSON serialization, and delegates to the engine, the replay store
  and the data access layer.

ENDPOINTS:
  Service:
    GET    /health                     Liveness + database ping
    GET    /metrics                    Prometheus metrics

  Reference:
    GET    /api/outlets                Active outlets
    GET    /api/presets                Parameter presets

  Runs:
    POST   /api/runs                   Execute a run (dry run unless apply)
    GET    /api/runs/last              Latest replay document
    GET    /api/runs/{id}              Replay document of a run
    GET    /api/runs/{id}/workbook     Replay as an xlsx workbook

  Scenarios (sqlite, development only):
    GET    /api/scenarios              List demo scenarios
    GET    /api/scenarios/current      Currently loaded scenario
    POST   /api/scenarios/load         Reset and load a scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Factory: loose input to engine.Params
  - Replay: per-run documents on disk
  - Metrics: optional Prometheus recorder

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid parameters or request body
  - 404: Unknown run
  - 409: A run is already in progress
  - 422: Store has no hub or freight rules
  - 500: Database or write failures
  - 503: Database unreachable (health)

SECURITY NOTE:
  No authentication. Deploy behind the existing admin proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - runs.go: Run execution and replay endpoints
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/factory"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/metrics"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   store.Handle
	Factory *factory.ParamsFactory
	Replay  *replay.Writer
	Metrics *metrics.Recorder

	log      logrus.FieldLogger
	defaults factory.Input
	runLevel audit.Level
	now      func() time.Time

	// runMu serializes runs within this process.
	runMu sync.Mutex

	scenarioMu      sync.Mutex
	currentScenario string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetrics records every run on m.
func WithMetrics(m *metrics.Recorder) HandlerOption {
	return func(h *Handler) { h.Metrics = m }
}

// WithLogger sets the process logger. Run logs are mirrored to it.
func WithLogger(l logrus.FieldLogger) HandlerOption {
	return func(h *Handler) { h.log = l }
}

// WithDefaults sets input applied beneath every request body, typically
// the engine section of the config.
func WithDefaults(in factory.Input) HandlerOption {
	return func(h *Handler) { h.defaults = in }
}

// WithRunLogLevel sets the threshold of the per-run log.
func WithRunLogLevel(l audit.Level) HandlerOption {
	return func(h *Handler) { h.runLevel = l }
}

// WithClock overrides time.Now for runs and replay timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a new handler over st, writing replays with rw.
func NewHandler(st store.Handle, rw *replay.Writer, opts ...HandlerOption) *Handler {
	h := &Handler{
		Store:    st,
		Factory:  factory.NewParamsFactory(),
		Replay:   rw,
		log:      logrus.StandardLogger(),
		defaults: factory.Input{},
		runLevel: audit.LevelInfo,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

// Health pings the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "degraded", Database: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthDTO{Status: "ok", Database: "ok"})
}

// =============================================================================
// REFERENCE HANDLERS
// =============================================================================

// ListOutlets returns active outlets in name order.
func (h *Handler) ListOutlets(w http.ResponseWriter, r *http.Request) {
	outlets, err := h.Store.Outlets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list outlets", err)
		return
	}

	dtos := make([]OutletDTO, len(outlets))
	for i, o := range outlets {
		dtos[i] = OutletDTO{
			ID:                 o.ID,
			Name:               o.Name,
			IsWarehouse:        o.IsWarehouse,
			TurnoverMultiplier: o.TurnoverMultiplier,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPresets returns every preset with the parameters it produces.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets := factory.Presets()
	dtos := make([]PresetDTO, len(presets))
	for i, p := range presets {
		dtos[i] = PresetDTO{Preset: p, Params: p.Params()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		var ce *allocation.ConfigurationError
		if errors.As(err, &ce) {
			resp.Problems = ce.Problems
		}
	}
	writeJSON(w, status, resp)
}
