/*
params_test.go - Tests for loose parameter parsing and presets

Tests for:
- Defaults, clamping and fallback of unparseable values
- Aliases, list parsing and boolean spellings
- Preset application and override order
*/
package factory

import (
	"encoding/json"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
)

func TestParseParams_EmptyObjectIsDefaults(t *testing.T) {
	p, err := NewParamsFactory().ParseParams(`{}`)

	require.NoError(t, err)
	assert.Equal(t, engine.DefaultParams(), p)
}

func TestParseParams_ClampsNumericInputs(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		check func(t *testing.T, p engine.Params)
	}{
		{"cover above range", `{"cover_days": 365}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 90, p.CoverDays)
		}},
		{"cover below range", `{"cover_days": "0"}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 1, p.CoverDays)
		}},
		{"non numeric keeps default", `{"buffer_pct": "lots"}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 20, p.BufferPct)
		}},
		{"buffer above range", `{"buffer_pct": 95}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 90, p.BufferPct)
		}},
		{"min units floor", `{"min_units": -4}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 1, p.MinUnitsPerLine)
		}},
		{"turnover bounds", `{"turnover_min_mult": 0.01, "turnover_max_mult": 50}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 0.1, p.TurnoverMinMult)
			assert.Equal(t, 10.0, p.TurnoverMaxMult)
		}},
		{"fractional cover truncates", `{"cover": "7.9"}`, func(t *testing.T, p engine.Params) {
			assert.Equal(t, 7, p.CoverDays)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParamsFactory().ParseParams(tt.json)
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestParseParams_PassThroughFields(t *testing.T) {
	// GIVEN: A request using string forms and aliases
	in := `{
		"rounding": "UP",
		"transfer_mode": "specific_transfer",
		"source_outlet": " hub ",
		"dest_outlet": "s2",
		"store_filter_list": "s1, s2,,s3",
		"new_store": "s9",
		"exclude_warehouses": "0",
		"margin_factor": "1.3",
		"min_line_value": "15.50",
		"mode": "apply",
		"run_id": "run_manual"
	}`

	// WHEN
	p, err := NewParamsFactory().ParseParams(in)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, allocation.RoundUp, p.RoundingMode)
	assert.Equal(t, engine.ModeSpecific, p.TransferMode)
	assert.Equal(t, allocation.OutletID("hub"), p.SourceOutlet)
	assert.Equal(t, []allocation.OutletID{"s1", "s2", "s3"}, p.StoreFilterList)
	assert.Equal(t, allocation.OutletID("s9"), p.NewStoreID)
	assert.False(t, p.ExcludeWarehouses)
	assert.Equal(t, 1.3, p.ProfitFactor)
	assert.True(t, decimal.RequireFromString("15.5").Equal(p.MinLineValue))
	assert.True(t, p.Apply)
	assert.Equal(t, "run_manual", p.RunID)
}

func TestParseParams_InvalidValuesReachValidation(t *testing.T) {
	// GIVEN: A rounding mode no clamp can repair
	_, err := NewParamsFactory().ParseParams(`{"rounding_mode": "sideways"}`)

	// THEN: Validation reports it as a configuration error
	require.Error(t, err)
	assert.True(t, allocation.IsConfigurationError(err))
	assert.ErrorIs(t, err, allocation.ErrInvalidParams)
}

func TestParseParams_MalformedJSON(t *testing.T) {
	_, err := NewParamsFactory().ParseParams(`{"cover_days":`)
	assert.Error(t, err)
}

func TestBoolish(t *testing.T) {
	tests := []struct {
		in   any
		def  bool
		want bool
	}{
		{"1", false, true},
		{"yes", false, true},
		{"ON", false, true},
		{true, false, true},
		{"0", true, false},
		{"off", true, false},
		{"", true, false},
		{"maybe", true, true},
		{nil, true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, boolish(tt.in, tt.def), "boolish(%v, %v)", tt.in, tt.def)
	}
}

func TestFromValues_QueryString(t *testing.T) {
	// GIVEN: A query string as sent by the dashboard
	q, err := url.ParseQuery("preset=aggressive&cover_days=12&apply=1&store_filter_list=a,b")
	require.NoError(t, err)

	// WHEN
	p, err := NewParamsFactory().FromInput(FromValues(q))

	// THEN: Preset values apply, then explicit keys override them
	require.NoError(t, err)
	assert.Equal(t, 12, p.CoverDays)
	assert.Equal(t, 15, p.BufferPct)
	assert.Equal(t, 2.0, p.TargetMOS)
	assert.True(t, p.Apply)
	assert.Len(t, p.StoreFilterList, 2)
}

// =============================================================================
// PRESETS
// =============================================================================

func TestPresets_AllKnownNames(t *testing.T) {
	names := PresetNames()
	for _, want := range []string{"standard", "conservative", "aggressive", "new_store", "emergency", "inter_store"} {
		assert.Contains(t, names, want)
	}
}

func TestPresets_Values(t *testing.T) {
	conservative, ok := LookupPreset("conservative")
	require.True(t, ok)
	p := conservative.Params()
	assert.Equal(t, 21, p.CoverDays)
	assert.Equal(t, 30, p.BufferPct)
	assert.Equal(t, 1.5, p.ProfitFactor)
	assert.Equal(t, 4.0, p.TargetMOS)
	assert.True(t, decimal.NewFromInt(20).Equal(p.MinLineValue))

	emergency, ok := LookupPreset("Emergency_Transfer")
	require.True(t, ok, "aliases are case-insensitive")
	assert.Equal(t, engine.ModeHubToStores, emergency.Params().TransferMode)
	assert.Equal(t, 7, emergency.Params().CoverDays)

	newStore, ok := LookupPreset("new_store_seed")
	require.True(t, ok)
	assert.Equal(t, 5, newStore.Params().Seed.DefaultQty)

	standard, ok := LookupPreset("standard")
	require.True(t, ok)
	assert.Equal(t, engine.DefaultParams(), standard.Params())
}

func TestPresets_EveryValidPresetValidates(t *testing.T) {
	for _, preset := range Presets() {
		t.Run(preset.Name, func(t *testing.T) {
			p := preset.Params()
			if p.TransferMode == engine.ModeSpecific {
				p.SourceOutlet, p.DestOutlet = "a", "b"
			}
			assert.NoError(t, p.Validate())
		})
	}
}

func TestApplyPreset_Unknown(t *testing.T) {
	p := engine.DefaultParams()

	err := ApplyPreset(&p, "yolo")

	require.Error(t, err)
	assert.ErrorIs(t, err, allocation.ErrInvalidParams)
	assert.Equal(t, engine.DefaultParams(), p, "params untouched")
}

func TestFromInput_InterStoreNeedsOutlets(t *testing.T) {
	// GIVEN: The inter_store preset without outlets
	_, err := NewParamsFactory().FromInput(Input{"preset": "inter_store"})

	// THEN: Validation rejects it
	require.Error(t, err)

	// AND: With outlets it passes
	p, err := NewParamsFactory().FromInput(Input{"preset": "inter_store", "source_outlet": "s1", "dest_outlet": "s2"})
	require.NoError(t, err)
	assert.Equal(t, engine.ModeSpecific, p.TransferMode)
}

func TestMerge_LaterLayersWin(t *testing.T) {
	// GIVEN: Config defaults, query values and a body
	defaults := Input{"cover_days": 21, "buffer_pct": 30}
	query := FromValues(url.Values{"cover_days": {"10"}})
	body, err := DecodeJSON(strings.NewReader(`{"buffer_pct": 5}`))
	require.NoError(t, err)

	// WHEN
	merged := Merge(defaults, query, nil, body)

	// THEN
	p, err := NewParamsFactory().FromInput(merged)
	require.NoError(t, err)
	assert.Equal(t, 10, p.CoverDays)
	assert.Equal(t, 5, p.BufferPct)
	assert.Equal(t, 21, defaults["cover_days"], "layers are not modified")
}

func TestDecodeJSON_KeepsNumbers(t *testing.T) {
	in, err := DecodeJSON(strings.NewReader(`{"max_lines": 12345678901}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("12345678901"), in["max_lines"])
}
