package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/config"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/factory"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun executes one run. The body is a loose JSON object (see
// factory.Input); query parameters are accepted too and the body wins.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	in, err := h.runInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	params, err := h.Factory.FromInput(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid parameters", err)
		return
	}

	if !h.runMu.TryLock() {
		writeError(w, http.StatusConflict, "A run is already in progress", nil)
		return
	}
	defer h.runMu.Unlock()

	// A client disconnect must not cut an apply short.
	doc, runDir, err := h.execute(context.WithoutCancel(r.Context()), params)
	if doc == nil {
		writeError(w, http.StatusBadRequest, "Invalid parameters", err)
		return
	}

	resp := RunResponse{Document: *doc, ReplayDir: runDir}
	if err != nil {
		resp.Error = err.Error()
		status := http.StatusInternalServerError
		if allocation.IsConfigurationError(err) {
			// No hub or no freight rules.
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLastRun returns the latest replay document.
func (h *Handler) GetLastRun(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Replay.LoadLast()
	if err != nil {
		h.writeReplayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Document: doc})
}

// GetRun returns the replay document of one run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Replay.Load(chi.URLParam(r, "id"))
	if err != nil {
		h.writeReplayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Document: doc})
}

// GetRunWorkbook renders a replay as an xlsx download.
func (h *Handler) GetRunWorkbook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.Replay.Load(id)
	if err != nil {
		h.writeReplayError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := replay.WriteWorkbook(&buf, doc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render workbook", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// RUN EXECUTION
// =============================================================================

// execute runs the engine and stores the replay. doc is nil only when the
// engine rejected params; otherwise it is returned even on failure.
func (h *Handler) execute(ctx context.Context, params engine.Params) (*replay.Document, string, error) {
	if params.RunID == "" {
		params.RunID = engine.NewRunID(h.now())
	}
	runLog := audit.NewLogger(h.runLevel, h.log.WithField("run_id", params.RunID))

	e, err := engine.New(h.Store, params, engine.WithLogger(runLog), engine.WithClock(h.now))
	if err != nil {
		return nil, "", err
	}

	started := time.Now()
	res, runErr := e.Execute(ctx)
	if h.Metrics != nil {
		h.Metrics.Observe(res, runErr, time.Since(started))
	}
	if runErr != nil {
		config.LogError(h.log, "api", "execute", params.RunID, map[string]any{"apply": params.Apply}, runErr)
	}

	doc := replay.Capture(e, res, h.now())
	runDir, err := h.Replay.Write(doc)
	if err != nil {
		config.LogError(h.log, "api", "execute", "replay", map[string]any{"run_id": params.RunID}, err)
		if runErr == nil {
			runErr = err
		}
	}
	return &doc, runDir, runErr
}

// runInput merges config defaults, query parameters and the JSON body,
// later sources winning.
func (h *Handler) runInput(r *http.Request) (factory.Input, error) {
	var body factory.Input
	if r.Body != nil {
		in, err := factory.DecodeJSON(r.Body)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		body = in
	}
	return factory.Merge(h.defaults, factory.FromValues(r.URL.Query()), body), nil
}

func (h *Handler) writeReplayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, replay.ErrInvalidRunID):
		writeError(w, http.StatusBadRequest, "Invalid run id", err)
	case errors.Is(err, replay.ErrNotFound):
		writeError(w, http.StatusNotFound, "Run not found", err)
	default:
		writeError(w, http.StatusInternalServerError, "Failed to read replay", err)
	}
}
