package factory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
)

// =============================================================================
// PRESETS - Named parameter sets for common runs
// =============================================================================

// Preset is a named adjustment of the default parameters.
type Preset struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`

	apply func(*engine.Params)
}

// Params returns the defaults with the preset applied. The result is not
// validated: inter_store still needs source and destination outlets.
func (p Preset) Params() engine.Params {
	params := engine.DefaultParams()
	p.apply(&params)
	return params
}

var presets = []Preset{
	{
		Name:        "standard",
		Label:       "Standard",
		Description: "Balanced defaults suitable for most runs.",
		apply:       func(*engine.Params) {},
	},
	{
		Name:        "conservative",
		Label:       "Conservative",
		Description: "Longer cover, larger hub buffer and stricter economics.",
		apply: func(p *engine.Params) {
			p.CoverDays = 21
			p.BufferPct = 30
			p.ProfitFactor = 1.5
			p.TurnoverMinMult = 0.5
			p.TurnoverMaxMult = 1.2
			p.FloorSalesThreshold = 0.30
			p.Seed.DefaultQty = 3
			p.TargetMOS = 4.0
			p.MinLineValue = decimal.NewFromInt(20)
			p.MinUnitPrice = decimal.NewFromInt(4)
			p.MaxLines = 50
		},
	},
	{
		Name:        "aggressive",
		Label:       "Aggressive",
		Description: "Short cover and a thin buffer to push stock out quickly.",
		apply: func(p *engine.Params) {
			p.CoverDays = 10
			p.BufferPct = 15
			p.ProfitFactor = 1.1
			p.TurnoverMinMult = 0.8
			p.TurnoverMaxMult = 1.6
			p.FloorSalesThreshold = 0.15
			p.Seed.DefaultQty = 1
			p.TargetMOS = 2.0
			p.MinLineValue = decimal.NewFromInt(10)
			p.MinUnitPrice = decimal.NewFromInt(2)
			p.MaxLines = 150
		},
	},
	{
		Name:        "new_store",
		Label:       "New Store Seeding",
		Description: "Higher seed quantities and a broad range for a newly opened store.",
		apply: func(p *engine.Params) {
			p.CoverDays = 30
			p.BufferPct = 50
			p.ProfitFactor = 1.3
			p.Seed.DefaultQty = 5
			p.TargetMOS = 2.5
			p.MinLineValue = decimal.NewFromInt(8)
			p.MinUnitPrice = decimal.RequireFromString("1.50")
			p.MaxLines = 200
		},
	},
	{
		Name:        "emergency",
		Label:       "Emergency Restock",
		Description: "One week of cover from the hub with a minimal buffer.",
		apply: func(p *engine.Params) {
			p.TransferMode = engine.ModeHubToStores
			p.CoverDays = 7
			p.BufferPct = 10
			p.ProfitFactor = 1.1
		},
	},
	{
		Name:        "inter_store",
		Label:       "Store to Store",
		Description: "Conservative balancing between two named outlets.",
		apply: func(p *engine.Params) {
			p.TransferMode = engine.ModeSpecific
			p.CoverDays = 21
			p.BufferPct = 30
			p.ProfitFactor = 1.5
		},
	},
	{
		Name:        "warehouse_to_all",
		Label:       "Warehouse to All Stores",
		Description: "Hub distribution to every trading store.",
		apply: func(p *engine.Params) {
			p.TransferMode = engine.ModeAllStores
			p.ExcludeWarehouses = true
			p.CoverDays = 14
			p.BufferPct = 20
			p.ProfitFactor = 1.2
			p.TurnoverMinMult = 0.7
			p.TurnoverMaxMult = 1.4
			p.MinUnitsPerLine = 1
		},
	},
}

var presetAliases = map[string]string{
	"new_store_seed":     "new_store",
	"emergency_transfer": "emergency",
	"default":            "standard",
}

// Presets returns every preset in display order.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// LookupPreset finds a preset by name or alias, case-insensitively.
func LookupPreset(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := presetAliases[name]; ok {
		name = canonical
	}
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// ApplyPreset adjusts p in place.
func ApplyPreset(p *engine.Params, name string) error {
	preset, ok := LookupPreset(name)
	if !ok {
		return &allocation.ConfigurationError{
			Reason:   fmt.Sprintf("unknown preset %q", name),
			Problems: []string{"preset must be one of " + strings.Join(PresetNames(), ", ")},
			Err:      allocation.ErrInvalidParams,
		}
	}
	preset.apply(p)
	return nil
}

// PresetNames lists canonical preset names.
func PresetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}
