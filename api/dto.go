/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Run results and
  replay documents are served as-is (they are already the public
  contract); the types here wrap them or describe everything else.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go, runs.go, scenarios.go: Use these types
  - replay/replay.go: Document, the body of run responses
*/
package api

import (
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/factory"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// HealthDTO reports liveness and database reachability.
type HealthDTO struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// OutletDTO is an outlet as listed to the dashboard.
type OutletDTO struct {
	ID                 allocation.OutletID `json:"id"`
	Name               string              `json:"name"`
	IsWarehouse        bool                `json:"is_warehouse"`
	TurnoverMultiplier float64             `json:"turnover_multiplier"`
}

// PresetDTO is a preset with the parameters it produces.
type PresetDTO struct {
	factory.Preset
	Params engine.Params `json:"params"`
}

// RunResponse is the replay document of a run plus an error when the
// run failed part way.
type RunResponse struct {
	replay.Document
	ReplayDir string `json:"replay_dir,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}
