/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Health, outlets and presets
- Run execution (dry run, apply, invalid input, conflicts)
- Replay lookups and the workbook download
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/metrics"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/dal"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/sqlite"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

type testServer struct {
	h      *Handler
	db     *sqlite.Store
	router http.Handler
	dir    string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlite.New(":memory:", dal.WithClock(testClock))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	dir := t.TempDir()
	rec := metrics.New()
	h := NewHandler(db, replay.NewWriter(dir),
		WithMetrics(rec),
		WithLogger(quiet),
		WithClock(testClock),
	)
	return &testServer{
		h:      h,
		db:     db,
		router: NewRouter(h, RouterConfig{Metrics: rec.Handler(), DevRoutes: true}),
		dir:    dir,
	}
}

// seedNetwork loads a hub, two trading stores and one new store.
func (s *testServer) seedNetwork(t *testing.T) {
	t.Helper()
	f := s.db.Fixture(context.Background(), testNow).
		Outlet("hub", "Hub", true, 0).
		Outlet("s1", "Alpha", false, 1.0).
		Outlet("s2", "Bravo", false, 1.0).
		Outlet("s3", "Charlie", false, 1.0).
		StandardFreight().
		Product(sqlite.ProductRow{ID: "P", Name: "Pod", Price: 10, Cost: 4, WeightG: 100}).
		Product(sqlite.ProductRow{ID: "Q", Name: "Coil", Price: 15, Cost: 6, WeightG: 50}).
		Stock("hub", "P", 40).
		Stock("hub", "Q", 40).
		Sale("s1", "P", 90, 10).Sale("s1", "Q", 90, 10).
		Sale("s2", "P", 90, 10).Sale("s2", "Q", 90, 10)
	require.NoError(t, f.Err())
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// =============================================================================
// SERVICE + REFERENCE
// =============================================================================

func TestHealth_OK(t *testing.T) {
	s := setupTestServer(t)

	rr := s.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, HealthDTO{Status: "ok", Database: "ok"}, decode[HealthDTO](t, rr))
}

func TestHealth_ClosedDatabase(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.db.Close())

	rr := s.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "degraded", decode[HealthDTO](t, rr).Status)
}

func TestListOutlets(t *testing.T) {
	s := setupTestServer(t)
	s.seedNetwork(t)

	rr := s.do(t, http.MethodGet, "/api/outlets", "")

	require.Equal(t, http.StatusOK, rr.Code)
	outlets := decode[[]OutletDTO](t, rr)
	require.Len(t, outlets, 4)
	var hubs int
	for _, o := range outlets {
		if o.IsWarehouse {
			hubs++
			assert.Equal(t, "hub", string(o.ID))
		}
	}
	assert.Equal(t, 1, hubs)
}

func TestListPresets(t *testing.T) {
	s := setupTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/presets", "")

	require.Equal(t, http.StatusOK, rr.Code)
	var presets []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &presets))
	byName := map[string]map[string]any{}
	for _, p := range presets {
		byName[p["name"].(string)] = p
	}
	require.Contains(t, byName, "standard")
	require.Contains(t, byName, "conservative")
	params := byName["conservative"]["params"].(map[string]any)
	assert.EqualValues(t, 21, params["cover_days"])
}

// =============================================================================
// RUNS
// =============================================================================

func TestCreateRun_DryRun(t *testing.T) {
	// GIVEN: A hub with stock and three stores
	s := setupTestServer(t)
	s.seedNetwork(t)

	// WHEN: A dry run is posted
	rr := s.do(t, http.MethodPost, "/api/runs", `{"target_mos": 100, "run_id": "run_dry"}`)

	// THEN: The plan is returned and nothing is written
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[RunResponse](t, rr)
	require.NotNil(t, resp.Results)
	assert.True(t, resp.Results.OK)
	assert.False(t, resp.Meta.Apply)
	assert.Equal(t, "run_dry", resp.Meta.RunID)
	assert.Len(t, resp.Results.Transfers, 3)
	assert.Equal(t, 3, resp.Results.CreatedCount)
	assert.NotEmpty(t, resp.Ledger)
	assert.NotEmpty(t, resp.Logs)
	assert.Equal(t, filepath.Join(s.dir, "run_dry"), resp.ReplayDir)

	rows, err := s.db.Transfers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = os.Stat(filepath.Join(s.dir, "run_dry", replay.OutputsFile))
	assert.NoError(t, err)
}

func TestCreateRun_ApplyWritesTransfers(t *testing.T) {
	s := setupTestServer(t)
	s.seedNetwork(t)

	rr := s.do(t, http.MethodPost, "/api/runs?mode=apply", `{"target_mos": 100}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[RunResponse](t, rr)
	assert.True(t, resp.Meta.Apply)
	assert.Equal(t, 3, resp.Results.CreatedCount)

	rows, err := s.db.Transfers(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCreateRun_DefaultsUnderBody(t *testing.T) {
	// GIVEN: Config defaults selecting a filter the body overrides
	s := setupTestServer(t)
	s.seedNetwork(t)
	s.h.defaults = map[string]any{"store_filter_list": "s2", "target_mos": 100}

	// WHEN
	rr := s.do(t, http.MethodPost, "/api/runs", `{"store_filter_list": ["s1"]}`)

	// THEN: Only s1 is planned, target_mos still comes from defaults
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[RunResponse](t, rr)
	require.Len(t, resp.Results.Transfers, 1)
	assert.Equal(t, "s1", string(resp.Results.Transfers[0].Destination))
	assert.Equal(t, 100.0, resp.Meta.Params.TargetMOS)
}

func TestCreateRun_InvalidParams(t *testing.T) {
	s := setupTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/runs", `{"transfer_mode": "specific_transfer"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	assert.Equal(t, "Invalid parameters", resp.Error)
	require.Len(t, resp.Problems, 1)
	assert.Contains(t, resp.Problems[0], "source_outlet")
}

func TestCreateRun_UnknownPreset(t *testing.T) {
	s := setupTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/runs", `{"preset": "reckless"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRun_MalformedBody(t *testing.T) {
	s := setupTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/runs", `{"cover_days":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid request body", decode[ErrorResponse](t, rr).Error)
}

func TestCreateRun_EmptyBodyUsesDefaults(t *testing.T) {
	s := setupTestServer(t)
	s.seedNetwork(t)

	rr := s.do(t, http.MethodPost, "/api/runs", "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[RunResponse](t, rr)
	assert.Equal(t, 14, resp.Meta.Params.CoverDays)
	assert.True(t, strings.HasPrefix(resp.Meta.RunID, "run_20250602_090000_"))
}

func TestCreateRun_EmptyStoreIsUnprocessable(t *testing.T) {
	// GIVEN: No outlets, so no hub
	s := setupTestServer(t)

	// WHEN
	rr := s.do(t, http.MethodPost, "/api/runs", `{"run_id": "run_empty"}`)

	// THEN: The failure is reported with the captured run
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decode[RunResponse](t, rr)
	assert.Equal(t, "run_empty", resp.Meta.RunID)
	assert.Nil(t, resp.Results)
	assert.NotEmpty(t, resp.Error)
}

func TestCreateRun_ConflictWhileRunning(t *testing.T) {
	// GIVEN: A run holding the lock
	s := setupTestServer(t)
	s.h.runMu.Lock()
	defer s.h.runMu.Unlock()

	// WHEN
	rr := s.do(t, http.MethodPost, "/api/runs", `{}`)

	// THEN
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateRun_RecordsMetrics(t *testing.T) {
	s := setupTestServer(t)
	s.seedNetwork(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/runs", `{"target_mos": 100}`).Code)

	rr := s.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `transfer_engine_runs_total{apply="false",status="ok"} 1`)
}

// =============================================================================
// REPLAYS
// =============================================================================

func TestGetRun_RoundTrip(t *testing.T) {
	s := setupTestServer(t)
	s.seedNetwork(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/runs", `{"target_mos": 100, "run_id": "run_a"}`).Code)

	rr := s.do(t, http.MethodGet, "/api/runs/run_a", "")

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[RunResponse](t, rr)
	assert.Equal(t, "run_a", resp.Meta.RunID)
	assert.Len(t, resp.Results.Transfers, 3)
}

func TestGetLastRun(t *testing.T) {
	s := setupTestServer(t)

	// GIVEN: No runs yet
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/runs/last", "").Code)

	// WHEN: Two runs complete
	s.seedNetwork(t)
	s.do(t, http.MethodPost, "/api/runs", `{"run_id": "run_1"}`)
	s.do(t, http.MethodPost, "/api/runs", `{"run_id": "run_2"}`)

	// THEN: The last one is served
	rr := s.do(t, http.MethodGet, "/api/runs/last", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "run_2", decode[RunResponse](t, rr).Meta.RunID)
}

func TestGetRun_Errors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing run", "/api/runs/run_missing", http.StatusNotFound},
		{"unsafe id", "/api/runs/..bad!", http.StatusBadRequest},
		{"missing workbook", "/api/runs/run_missing/workbook", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.do(t, http.MethodGet, tt.path, "").Code)
		})
	}
}

func TestGetRunWorkbook(t *testing.T) {
	s := setupTestServer(t)
	s.seedNetwork(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/runs", `{"run_id": "run_x"}`).Code)

	rr := s.do(t, http.MethodGet, "/api/runs/run_x/workbook", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `run_x.xlsx`)
	// xlsx is a zip archive
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")))
}
