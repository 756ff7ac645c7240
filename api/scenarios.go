/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate a SQLite store with a
	realistic outlet network, catalog, stock and sales history. Each
	scenario exercises a different part of the allocation run.

AVAILABLE SCENARIOS:

	balanced-network:  Healthy hub, three trading stores
	new-store-opening: A fresh outlet with no sales gets a seed range
	scarce-hub:        Hub stock short of demand, split by fair share
	profit-squeeze:    Cheap heavy lines where freight eats the margin

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Add outlets and freight bands
 3. Add the catalog
 4. Add hub and store stock
 5. Add sales history relative to the handler clock

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "scarce-hub"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxx(f *sqlite.Fixture)
 3. Add it to the 'loaders' map

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	They require the sqlite store.

SEE ALSO:
  - handlers.go: Handler and route overview
  - store/sqlite/fixture.go: Fixture builder
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "balanced-network",
		Name:        "Balanced Network",
		Description: "Well stocked hub topping up three trading stores",
		Category:    "allocation",
	},
	{
		ID:          "new-store-opening",
		Name:        "New Store Opening",
		Description: "Outlet with no sales history receives a starter range",
		Category:    "seeding",
	},
	{
		ID:          "scarce-hub",
		Name:        "Scarce Hub",
		Description: "Hub cannot cover every store; stock is split by need",
		Category:    "allocation",
	},
	{
		ID:          "profit-squeeze",
		Name:        "Profit Squeeze",
		Description: "Low value, heavy products where freight exceeds margin",
		Category:    "freight",
	},
}

var loaders = map[string]func(f *sqlite.Fixture) *sqlite.Fixture{
	"balanced-network":  loadBalancedNetwork,
	"new-store-opening": loadNewStoreOpening,
	"scarce-hub":        loadScarceHub,
	"profit-squeeze":    loadProfitSqueeze,
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the scenario loaded last, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	db, ok := h.Store.(*sqlite.Store)
	if !ok {
		writeError(w, http.StatusBadRequest, "Scenarios require the sqlite store", nil)
		return
	}

	// Loading must not interleave with a run.
	h.runMu.Lock()
	defer h.runMu.Unlock()

	ctx := r.Context()
	if err := db.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.setScenario("")

	f := load(db.Fixture(ctx, h.now()))
	if err := f.Err(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.setScenario(req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) setScenario(id string) {
	h.scenarioMu.Lock()
	h.currentScenario = id
	h.scenarioMu.Unlock()
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// network adds the hub and the given stores with standard freight.
func network(f *sqlite.Fixture, stores ...string) *sqlite.Fixture {
	f = f.Outlet("hub", "Distribution Centre", true, 0).StandardFreight()
	for i, name := range stores {
		f = f.Outlet(fmt.Sprintf("s%d", i+1), name, false, 1.0)
	}
	return f
}

var demoCatalog = []sqlite.ProductRow{
	{ID: "coil-04", Name: "Mesh Coil 0.4ohm 5pk", Price: 24.90, Cost: 9.50, WeightG: 40, Type: "coil"},
	{ID: "pod-kit", Name: "Pod Starter Kit", Price: 49.00, Cost: 21.00, WeightG: 180, Type: "device"},
	{ID: "liquid-30", Name: "Berry Ice 30ml", Price: 19.90, Cost: 6.20, WeightG: 60, Type: "eliquid"},
	{ID: "liquid-60", Name: "Mango Tango 60ml", Price: 29.90, Cost: 9.80, WeightG: 95, Type: "eliquid"},
	{ID: "battery-18", Name: "18650 Battery", Price: 14.50, Cost: 5.10, WeightG: 48, Type: "battery"},
}

func catalog(f *sqlite.Fixture, rows []sqlite.ProductRow) *sqlite.Fixture {
	for _, p := range rows {
		f = f.Product(p)
	}
	return f
}

func loadBalancedNetwork(f *sqlite.Fixture) *sqlite.Fixture {
	f = catalog(network(f, "Queen Street", "Ponsonby", "Newmarket"), demoCatalog)
	for _, p := range demoCatalog {
		f = f.Stock("hub", p.ID, 200)
		for i, store := range []string{"s1", "s2", "s3"} {
			f = f.Stock(store, p.ID, 4+i*2).
				Sale(store, p.ID, float64(12+i*4), 5).
				Sale(store, p.ID, float64(10+i*3), 20)
		}
	}
	return f
}

func loadNewStoreOpening(f *sqlite.Fixture) *sqlite.Fixture {
	f = catalog(network(f, "Queen Street", "Ponsonby", "Hamilton East"), demoCatalog).
		ProductType("coil", 6, 40).
		ProductType("eliquid", 4, 80)
	for _, p := range demoCatalog {
		f = f.Stock("hub", p.ID, 120).
			Stock("s1", p.ID, 10).Sale("s1", p.ID, 18, 7).
			Stock("s2", p.ID, 8).Sale("s2", p.ID, 14, 12)
	}
	return f
}

func loadScarceHub(f *sqlite.Fixture) *sqlite.Fixture {
	f = catalog(network(f, "Queen Street", "Ponsonby", "Newmarket", "Takapuna"), demoCatalog)
	for _, p := range demoCatalog {
		f = f.Stock("hub", p.ID, 30)
		for i, store := range []string{"s1", "s2", "s3", "s4"} {
			f = f.Stock(store, p.ID, 1).Sale(store, p.ID, float64(20+i*10), 10)
		}
	}
	return f
}

func loadProfitSqueeze(f *sqlite.Fixture) *sqlite.Fixture {
	cheap := []sqlite.ProductRow{
		{ID: "cleaner-1l", Name: "Glass Cleaner 1L", Price: 4.50, Cost: 2.90, WeightG: 1100, Type: "sundry"},
		{ID: "tray-steel", Name: "Steel Drip Tray", Price: 6.00, Cost: 3.80, WeightG: 900, Type: "sundry"},
		{ID: "coil-04", Name: "Mesh Coil 0.4ohm 5pk", Price: 24.90, Cost: 9.50, WeightG: 40, Type: "coil"},
	}
	f = catalog(network(f, "Gisborne", "Invercargill"), cheap)
	for _, p := range cheap {
		f = f.Stock("hub", p.ID, 80)
		for _, store := range []string{"s1", "s2"} {
			f = f.Stock(store, p.ID, 0).Sale(store, p.ID, 9, 15)
		}
	}
	return f
}
