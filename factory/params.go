/*
Package factory turns loose run input into validated engine.Params.

PURPOSE:
  Run parameters arrive from query strings, CLI flags, config files and
  JSON bodies, usually as strings. The factory accepts any of them,
  starts from a named preset (or the defaults), overlays every recognised
  key with clamping, then validates the result. Operators can change run
  behaviour without code changes.

JSON SCHEMA:
  {
    "preset": "conservative",
    "cover_days": "21",
    "buffer_pct": 30,
    "rounding_mode": "nearest",
    "store_filter_list": "s1,s2",
    "apply": "1"
  }

CLAMPING:
  Numeric keys that do not parse keep the preset value; parsed values are
  clamped into range rather than rejected:
    cover_days          1..90     (default 14)
    buffer_pct          0..90     (default 20)
    min_units_per_line  1..1000   (default 2)
    floor_sales_threshold 0..100  (default 0.05)
    turnover_min_mult   0.1..5    (default 0.8)
    turnover_max_mult   0.1..10   (default 1.4)
  Everything else is passed through and checked by Params.Validate.

USAGE:
  f := factory.NewParamsFactory()
  params, err := f.ParseParams(`{"preset":"aggressive","apply":true}`)

SEE ALSO:
  - presets.go: named parameter sets
  - engine/params.go: Params and Validate
*/
package factory

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
)

// =============================================================================
// INPUT
// =============================================================================

// Input is loose run input keyed by parameter name. Values may be strings,
// numbers, booleans or lists.
type Input map[string]any

// aliases maps accepted spellings to canonical keys.
var aliases = map[string]string{
	"rounding":      "rounding_mode",
	"min_units":     "min_units_per_line",
	"margin_factor": "profit_factor",
	"new_store":     "new_store_id",
	"cover":         "cover_days",
}

// FromValues builds Input from query parameters or form values. The first
// value of each key wins.
func FromValues(v url.Values) Input {
	in := make(Input, len(v))
	for k, vals := range v {
		if len(vals) > 0 {
			in[k] = vals[0]
		}
	}
	return in
}

// Merge layers inputs; keys in later layers win. Nil layers are skipped.
func Merge(layers ...Input) Input {
	out := Input{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// DecodeJSON reads a JSON object, keeping numbers as json.Number.
func DecodeJSON(r io.Reader) (Input, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var in Input
	if err := dec.Decode(&in); err != nil {
		return nil, err
	}
	return in, nil
}

func (in Input) lookup(key string) (any, bool) {
	if v, ok := in[key]; ok {
		return v, true
	}
	for alias, canonical := range aliases {
		if canonical == key {
			if v, ok := in[alias]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// =============================================================================
// PARAMS FACTORY
// =============================================================================

// ParamsFactory converts loose input to engine.Params.
type ParamsFactory struct{}

// NewParamsFactory creates a new params factory.
func NewParamsFactory() *ParamsFactory {
	return &ParamsFactory{}
}

// ParseParams parses a JSON object into validated Params.
func (f *ParamsFactory) ParseParams(jsonStr string) (engine.Params, error) {
	in, err := DecodeJSON(strings.NewReader(jsonStr))
	if err != nil {
		return engine.Params{}, fmt.Errorf("failed to parse params JSON: %w", err)
	}
	return f.FromInput(in)
}

// FromInput applies the requested preset, overlays input keys and validates.
func (f *ParamsFactory) FromInput(in Input) (engine.Params, error) {
	p := engine.DefaultParams()
	if name := asString(in["preset"]); name != "" {
		if err := ApplyPreset(&p, name); err != nil {
			return engine.Params{}, err
		}
	}

	f.overlay(&p, in)

	if err := p.Validate(); err != nil {
		return engine.Params{}, err
	}
	return p, nil
}

func (f *ParamsFactory) overlay(p *engine.Params, in Input) {
	intKey := func(key string, dst *int, lo, hi int) {
		if v, ok := in.lookup(key); ok {
			*dst = clampInt(v, *dst, lo, hi)
		}
	}
	floatKey := func(key string, dst *float64, lo, hi float64) {
		if v, ok := in.lookup(key); ok {
			*dst = clampFloat(v, *dst, lo, hi)
		}
	}
	boolKey := func(key string, dst *bool) {
		if v, ok := in.lookup(key); ok {
			*dst = boolish(v, *dst)
		}
	}
	stringKey := func(key string, dst *string) {
		if v, ok := in.lookup(key); ok {
			*dst = strings.TrimSpace(asString(v))
		}
	}
	outletKey := func(key string, dst *allocation.OutletID) {
		var s string
		stringKey(key, &s)
		if s != "" {
			*dst = allocation.OutletID(s)
		}
	}
	moneyKey := func(key string, dst *decimal.Decimal) {
		if v, ok := in.lookup(key); ok {
			if d, err := decimal.NewFromString(strings.TrimSpace(asString(v))); err == nil && !d.IsNegative() {
				*dst = d
			}
		}
	}

	intKey("cover_days", &p.CoverDays, 1, 90)
	intKey("buffer_pct", &p.BufferPct, 0, 90)
	intKey("min_units_per_line", &p.MinUnitsPerLine, 1, 1000)
	floatKey("floor_sales_threshold", &p.FloorSalesThreshold, 0, 100)
	floatKey("turnover_min_mult", &p.TurnoverMinMult, 0.1, 5)
	floatKey("turnover_max_mult", &p.TurnoverMaxMult, 0.1, 10)

	if v, ok := in.lookup("rounding_mode"); ok {
		raw := asString(v)
		if m, err := allocation.ParseRoundingMode(raw); err == nil {
			p.RoundingMode = m
		} else {
			p.RoundingMode = allocation.RoundingMode(raw)
		}
	}

	if v, ok := in.lookup("transfer_mode"); ok {
		if s := strings.TrimSpace(asString(v)); s != "" {
			p.TransferMode = engine.TransferMode(s)
		}
	}
	outletKey("source_outlet", &p.SourceOutlet)
	outletKey("dest_outlet", &p.DestOutlet)
	stringKey("store_filter", &p.StoreFilter)
	if v, ok := in.lookup("store_filter_list"); ok {
		p.StoreFilterList = outletList(v)
	}
	outletKey("new_store_id", &p.NewStoreID)
	boolKey("exclude_warehouses", &p.ExcludeWarehouses)
	boolKey("warehouse_only", &p.WarehouseOnly)

	floatKey("profit_factor", &p.ProfitFactor, 0.1, 10)
	boolKey("enforce_profit_guard", &p.EnforceProfitGuard)
	moneyKey("min_line_value", &p.MinLineValue)
	moneyKey("min_unit_price", &p.MinUnitPrice)
	intKey("max_lines", &p.MaxLines, 1, 100000)
	boolKey("pack_rounding", &p.PackRounding)
	floatKey("target_mos", &p.TargetMOS, 0.1, 120)

	if v, ok := in.lookup("seed_mode"); ok {
		if s := strings.ToLower(strings.TrimSpace(asString(v))); s != "" {
			p.SeedMode = engine.SeedMode(s)
		}
	}
	intKey("seed_max_lines", &p.Seed.MaxLines, 0, 10000)
	intKey("seed_default_qty", &p.Seed.DefaultQty, 0, 1000)
	intKey("default_floor_qty", &p.Seed.DefaultQty, 0, 1000)
	intKey("seed_priority_limit", &p.Seed.PriorityLimit, 0, 100000)
	intKey("skim_default_qty", &p.Seed.SkimDefaultQty, 0, 1000)
	intKey("skim_cap", &p.Seed.SkimCap, 0, 1000)

	if v, ok := in.lookup("mode"); ok && strings.EqualFold(asString(v), "apply") {
		p.Apply = true
	}
	boolKey("apply", &p.Apply)
	stringKey("run_id", &p.RunID)
	intKey("created_by_user", &p.CreatedByUser, 0, math.MaxInt32)
}

// =============================================================================
// VALUE COERCION
// =============================================================================

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clampInt(v any, def, lo, hi int) int {
	x := def
	if f, ok := asFloat(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		x = int(f)
	}
	return max(lo, min(hi, x))
}

func clampFloat(v any, def, lo, hi float64) float64 {
	x := def
	if f, ok := asFloat(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		x = f
	}
	return math.Max(lo, math.Min(hi, x))
}

// boolish accepts 1/0, true/false, yes/no and on/off. Anything else keeps def.
func boolish(v any, def bool) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return def
	}
	switch strings.ToLower(strings.TrimSpace(asString(v))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off", "":
		return false
	}
	return def
}

// outletList accepts a comma separated string or a list. Empty means no filter.
func outletList(v any) []allocation.OutletID {
	var raw []string
	switch x := v.(type) {
	case []string:
		raw = x
	case []any:
		for _, e := range x {
			raw = append(raw, asString(e))
		}
	default:
		raw = strings.Split(asString(v), ",")
	}
	var out []allocation.OutletID
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, allocation.OutletID(s))
		}
	}
	return out
}
