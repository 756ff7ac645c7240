package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	memstore "github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation/store"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
)

func (s *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "`+id+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func (s *testServer) dryRun(t *testing.T, body string) RunResponse {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[RunResponse](t, rr)
	require.NotNil(t, resp.Results)
	require.True(t, resp.Results.OK, resp.Results.Message)
	return resp
}

func TestScenario_AllScenariosLoadAndRun(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s := setupTestServer(t)

			s.loadScenario(t, sc.ID)
			s.dryRun(t, `{}`)

			rr := s.do(t, http.MethodGet, "/api/scenarios/current", "")
			require.Equal(t, http.StatusOK, rr.Code)
			current := decode[map[string]ScenarioDTO](t, rr)
			assert.Equal(t, sc.ID, current["scenario"].ID)
		})
	}
}

func TestScenario_ReloadReplacesData(t *testing.T) {
	// GIVEN: One scenario loaded over another
	s := setupTestServer(t)
	s.loadScenario(t, "scarce-hub")
	s.loadScenario(t, "profit-squeeze")

	// WHEN
	rr := s.do(t, http.MethodGet, "/api/outlets", "")

	// THEN: Only the second network remains
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]OutletDTO](t, rr), 3)
}

func TestScenario_NewStoreOpeningSeedsNewStore(t *testing.T) {
	s := setupTestServer(t)
	s.loadScenario(t, "new-store-opening")

	resp := s.dryRun(t, `{}`)

	var seeded int
	for _, e := range resp.Ledger {
		if e.Step == engine.StepSeed && e.Reason == engine.ReasonNewStoreSeed {
			assert.Equal(t, "s3", e.StoreID)
			seeded++
		}
	}
	assert.Positive(t, seeded)

	var toS3 *engine.Transfer
	for i := range resp.Results.Transfers {
		if resp.Results.Transfers[i].Destination == "s3" {
			toS3 = &resp.Results.Transfers[i]
		}
	}
	require.NotNil(t, toS3)
	assert.Equal(t, allocation.OutletID("hub"), toS3.Source)
}

func TestScenario_ScarceHubRespectsBuffer(t *testing.T) {
	// GIVEN: 30 units per product at the hub and a 20% buffer
	s := setupTestServer(t)
	s.loadScenario(t, "scarce-hub")

	// WHEN
	resp := s.dryRun(t, `{"buffer_pct": 20}`)

	// THEN: No product draws more than 30 - ceil(6) = 24 from the hub
	drawn := map[allocation.ProductID]int{}
	for _, tr := range resp.Results.Transfers {
		require.Equal(t, allocation.OutletID("hub"), tr.Source)
		for _, l := range tr.Lines {
			drawn[l.ProductID] += l.Qty
		}
	}
	require.NotEmpty(t, drawn)
	for pid, n := range drawn {
		assert.LessOrEqual(t, n, 24, pid)
	}
}

func TestScenario_Errors(t *testing.T) {
	s := setupTestServer(t)

	t.Run("unknown scenario", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "nope"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
	t.Run("bad body", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/api/scenarios/load", `nope`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
	t.Run("nothing loaded", func(t *testing.T) {
		rr := s.do(t, http.MethodGet, "/api/scenarios/current", "")
		assert.JSONEq(t, `{"scenario": null}`, rr.Body.String())
	})
}

// memoryHandle adapts the in-memory store to store.Handle.
type memoryHandle struct{ *memstore.Memory }

func (memoryHandle) Validate(context.Context) error { return nil }
func (memoryHandle) Ping(context.Context) error     { return nil }
func (memoryHandle) Close() error                   { return nil }

func TestScenario_RequiresSQLite(t *testing.T) {
	h := NewHandler(memoryHandle{memstore.NewMemory()}, replay.NewWriter(t.TempDir()))
	router := NewRouter(h, RouterConfig{DevRoutes: true})
	s := &testServer{h: h, router: router}

	rr := s.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id": "scarce-hub"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Scenarios require the sqlite store", decode[ErrorResponse](t, rr).Error)
}

func TestScenario_RoutesHiddenOutsideDev(t *testing.T) {
	s := setupTestServer(t)
	s.router = NewRouter(s.h, RouterConfig{})

	rr := s.do(t, http.MethodGet, "/api/scenarios", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
