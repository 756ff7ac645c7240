package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// TransferMode selects how source and destinations are chosen.
type TransferMode string

const (
	ModeAllStores   TransferMode = "all_stores"
	ModeSpecific    TransferMode = "specific_transfer"
	ModeHubToStores TransferMode = "hub_to_stores"
)

// SeedMode selects the new-store seeding strategy for a run.
type SeedMode string

const (
	// SeedHub draws seed lines from the hub.
	SeedHub SeedMode = "hub"
	// SeedMulti skims small quantities from whichever outlet holds most.
	SeedMulti SeedMode = "multi"
)

// SeedSettings tune new-store seeding.
type SeedSettings struct {
	MaxLines       int                    `json:"max_lines" mapstructure:"max_lines"`
	DefaultQty     int                    `json:"default_qty" mapstructure:"default_qty"`
	PriorityLimit  int                    `json:"priority_limit" mapstructure:"priority_limit"`
	SkimDefaultQty int                    `json:"skim_default_qty" mapstructure:"skim_default_qty"`
	SkimCap        int                    `json:"skim_cap" mapstructure:"skim_cap"`
	Bonuses        allocation.SeedBonuses `json:"bonuses" mapstructure:"bonuses"`
}

// DefaultSeedSettings: 120 lines, 3 units (+bonus), top 500 sellers,
// skim 2 units capped at 10.
func DefaultSeedSettings() SeedSettings {
	return SeedSettings{
		MaxLines:       120,
		DefaultQty:     3,
		PriorityLimit:  500,
		SkimDefaultQty: 2,
		SkimCap:        10,
		Bonuses:        allocation.DefaultSeedBonuses,
	}
}

// Params is the immutable input of one run.
type Params struct {
	CoverDays           int                     `json:"cover_days"`
	BufferPct           int                     `json:"buffer_pct"`
	RoundingMode        allocation.RoundingMode `json:"rounding_mode"`
	MinUnitsPerLine     int                     `json:"min_units_per_line"`
	FloorSalesThreshold float64                 `json:"floor_sales_threshold"`
	TurnoverMinMult     float64                 `json:"turnover_min_mult"`
	TurnoverMaxMult     float64                 `json:"turnover_max_mult"`

	TransferMode      TransferMode          `json:"transfer_mode"`
	SourceOutlet      allocation.OutletID   `json:"source_outlet,omitempty"`
	DestOutlet        allocation.OutletID   `json:"dest_outlet,omitempty"`
	StoreFilter       string                `json:"store_filter,omitempty"`
	StoreFilterList   []allocation.OutletID `json:"store_filter_list,omitempty"`
	NewStoreID        allocation.OutletID   `json:"new_store_id,omitempty"`
	ExcludeWarehouses bool                  `json:"exclude_warehouses"`
	WarehouseOnly     bool                  `json:"warehouse_only"`

	ProfitFactor       float64         `json:"profit_factor"`
	EnforceProfitGuard bool            `json:"enforce_profit_guard"`
	MinLineValue       decimal.Decimal `json:"min_line_value"`
	MinUnitPrice       decimal.Decimal `json:"min_unit_price"`
	MaxLines           int             `json:"max_lines"`
	PackRounding       bool            `json:"pack_rounding"`
	TargetMOS          float64         `json:"target_mos"`

	SeedMode SeedMode     `json:"seed_mode"`
	Seed     SeedSettings `json:"seed"`

	Apply         bool   `json:"apply"`
	RunID         string `json:"run_id"`
	CreatedByUser int    `json:"created_by_user"`
}

// DefaultParams returns the standard run: 14 days cover, 20% hub buffer,
// nearest rounding, dry run.
func DefaultParams() Params {
	return Params{
		CoverDays:           14,
		BufferPct:           20,
		RoundingMode:        allocation.RoundNearest,
		MinUnitsPerLine:     2,
		FloorSalesThreshold: 0.05,
		TurnoverMinMult:     0.8,
		TurnoverMaxMult:     1.4,
		TransferMode:        ModeAllStores,
		ExcludeWarehouses:   true,
		ProfitFactor:        1.0,
		MinLineValue:        decimal.NewFromInt(12),
		MinUnitPrice:        decimal.NewFromInt(2),
		MaxLines:            1000,
		PackRounding:        true,
		TargetMOS:           3.0,
		SeedMode:            SeedHub,
		Seed:                DefaultSeedSettings(),
		CreatedByUser:       allocation.DefaultCreatedByUser,
	}
}

// Validate reports every out-of-range field at once.
func (p Params) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if p.CoverDays < 1 || p.CoverDays > 90 {
		add("cover_days %d not in 1..90", p.CoverDays)
	}
	if p.BufferPct < 0 || p.BufferPct > 90 {
		add("buffer_pct %d not in 0..90", p.BufferPct)
	}
	if !p.RoundingMode.Valid() {
		add("rounding_mode %q not one of up, down, nearest", p.RoundingMode)
	}
	if p.MinUnitsPerLine < 1 {
		add("min_units_per_line must be >= 1")
	}
	if p.FloorSalesThreshold < 0 {
		add("floor_sales_threshold must be >= 0")
	}
	if p.TurnoverMinMult <= 0 || p.TurnoverMaxMult < p.TurnoverMinMult {
		add("turnover multipliers [%g, %g] invalid", p.TurnoverMinMult, p.TurnoverMaxMult)
	}
	switch p.TransferMode {
	case ModeAllStores, ModeHubToStores:
	case ModeSpecific:
		if p.SourceOutlet == "" || p.DestOutlet == "" {
			add("specific_transfer needs source_outlet and dest_outlet")
		} else if p.SourceOutlet == p.DestOutlet {
			add("source_outlet and dest_outlet are both %s", p.SourceOutlet)
		}
	default:
		add("transfer_mode %q unknown", p.TransferMode)
	}
	if p.ProfitFactor <= 0 {
		add("profit_factor must be > 0")
	}
	if p.MinLineValue.IsNegative() || p.MinUnitPrice.IsNegative() {
		add("min_line_value and min_unit_price must be >= 0")
	}
	if p.MaxLines < 1 {
		add("max_lines must be >= 1")
	}
	if p.TargetMOS <= 0 {
		add("target_mos must be > 0")
	}
	switch p.SeedMode {
	case SeedHub, SeedMulti:
	default:
		add("seed_mode %q not one of hub, multi", p.SeedMode)
	}
	if p.Seed.MaxLines < 0 || p.Seed.DefaultQty < 0 || p.Seed.PriorityLimit < 0 ||
		p.Seed.SkimDefaultQty < 0 || p.Seed.SkimCap < 0 {
		add("seed settings must be >= 0")
	}

	if len(problems) == 0 {
		return nil
	}
	return &allocation.ConfigurationError{
		Reason:   "invalid run parameters",
		Problems: problems,
		Err:      allocation.ErrInvalidParams,
	}
}

// NewRunID returns run_YYYYMMDD_HHMMSS_<8 hex>.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "run_" + now.Format("20060102_150405") + "_" + suffix
}
