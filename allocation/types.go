/*
types.go - Core domain types for stock transfer allocation

PURPOSE:
  Defines the vocabulary every other package speaks: outlets, products,
  inventory and demand snapshots, freight rules and the transfer records
  the engine emits. Nothing here touches a database.

DESIGN PRINCIPLES:
  1. Money is decimal.Decimal. Never float64 for prices or costs.
  2. Identifiers are typed strings. Vend ids are UUID-ish text in some
     installs and integers in others, so string covers both.
  3. Snapshots are plain nested maps keyed by product then outlet, read
     once per run and never re-queried.

KEY TYPES:
  Outlet, Product, Classification  - reference data (read-only per run)
  Inventory, Demand                - per-run snapshots
  FreightRule, ProductTypeDefault  - static lookup tables
  TransferHeader, TransferLine     - what gets written
  Line                             - an in-flight allocation before merge

SEE ALSO:
  - store.go: Store contract producing these types
  - freight.go, profit.go, fairshare.go: pure functions over them
*/
package allocation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OutletID identifies a store or warehouse.
type OutletID string

// ProductID identifies a product.
type ProductID string

// AllScope is the wildcard used in ledger entries that concern no single
// product or store.
const AllScope = "ALL"

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Outlet is a retail store or warehouse.
type Outlet struct {
	ID                 OutletID `json:"id"`
	Name               string   `json:"name"`
	IsWarehouse        bool     `json:"is_warehouse"`
	TurnoverMultiplier float64  `json:"turnover_multiplier"`
	Active             bool     `json:"active"`
}

// NormalizeTurnover returns the multiplier to use for demand scaling.
// Missing or implausible values (below 0.1) mean "no adjustment".
func NormalizeTurnover(m float64) float64 {
	if m < 0.1 {
		return 1.0
	}
	return m
}

// Product is the per-product data the engine needs.
type Product struct {
	ID              ProductID       `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Cost            decimal.Decimal `json:"cost"`
	AvgWeightGrams  float64         `json:"avg_weight_grams"`
	ProductTypeCode string          `json:"product_type_code"`
	SupplierID      string          `json:"supplier_id,omitempty"`
	BrandID         string          `json:"brand_id,omitempty"`
}

// Classification is the optional category/type tagging of a product.
// A missing row is the zero value, never an error.
type Classification struct {
	ProductID    ProductID `json:"product_id"`
	CategoryCode string    `json:"category_code"`
	TypeCode     string    `json:"type_code"`
	Confidence   float64   `json:"confidence"`
}

// ProductTypeDefault carries per-type fallbacks.
type ProductTypeDefault struct {
	Code                  string  `json:"code"`
	DefaultSeedQty        int     `json:"default_seed_qty"`
	AvgWeightGramsDefault float64 `json:"avg_weight_grams_default"`
}

// FreightRule is one weight band. Rules are ordered ascending by MaxWeightGrams.
type FreightRule struct {
	Container      string          `json:"container"`
	MaxWeightGrams int             `json:"max_weight_grams"`
	Cost           decimal.Decimal `json:"cost"`
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// Inventory maps product -> outlet -> on-hand units.
type Inventory map[ProductID]map[OutletID]int

// OnHand returns units for a product at an outlet (0 if unknown).
func (inv Inventory) OnHand(pid ProductID, oid OutletID) int {
	return inv[pid][oid]
}

// Total sums units for a product across every outlet in the snapshot.
func (inv Inventory) Total(pid ProductID) int {
	total := 0
	for _, q := range inv[pid] {
		total += q
	}
	return total
}

// Set records units for a product at an outlet.
func (inv Inventory) Set(pid ProductID, oid OutletID, qty int) {
	if inv[pid] == nil {
		inv[pid] = make(map[OutletID]int)
	}
	inv[pid][oid] = qty
}

// DemandRecord is trailing 90-day sales for a product at an outlet.
type DemandRecord struct {
	UnitsSold90d float64    `json:"units_sold_90d"`
	LastSoldAt   *time.Time `json:"last_sold_at"`
}

// Demand maps product -> outlet -> DemandRecord.
type Demand map[ProductID]map[OutletID]DemandRecord

// Units returns 90-day units for a product at an outlet.
func (d Demand) Units(pid ProductID, oid OutletID) float64 {
	return d[pid][oid].UnitsSold90d
}

// CompanyUnits sums 90-day units for a product across all outlets.
func (d Demand) CompanyUnits(pid ProductID) float64 {
	total := 0.0
	for _, rec := range d[pid] {
		total += rec.UnitsSold90d
	}
	return total
}

// Add accumulates units into a record, keeping the latest sale date.
func (d Demand) Add(pid ProductID, oid OutletID, units float64, soldAt *time.Time) {
	if d[pid] == nil {
		d[pid] = make(map[OutletID]DemandRecord)
	}
	rec := d[pid][oid]
	rec.UnitsSold90d += units
	if soldAt != nil && (rec.LastSoldAt == nil || soldAt.After(*rec.LastSoldAt)) {
		t := *soldAt
		rec.LastSoldAt = &t
	}
	d[pid][oid] = rec
}

// =============================================================================
// TRANSFERS
// =============================================================================

// Header defaults written on every transfer.
const (
	StatusOpen           = 0
	MicroStatusReady     = "READY_FOR_DELIVERY"
	SourceModule         = "transfer_engine"
	CreatedBySystem      = "automatic_stock_transfers"
	DefaultCreatedByUser = 1
)

// TransferHeader is one (donor, destination) transfer.
type TransferHeader struct {
	ID                  int64     `json:"transfer_id"`
	SourceOutletID      OutletID  `json:"source_outlet_id"`
	DestOutletID        OutletID  `json:"dest_outlet_id"`
	Status              int       `json:"status"`
	MicroStatus         string    `json:"micro_status"`
	DeliveryMode        string    `json:"delivery_mode"`
	RunID               string    `json:"run_id"`
	ProductCount        int       `json:"product_count"`
	TotalQuantity       int       `json:"total_quantity"`
	CreatedAt           time.Time `json:"created_at"`
	CreatedByUser       int       `json:"created_by_user"`
	SourceModule        string    `json:"source_module"`
	CreatedBySystem     string    `json:"created_by_system"`
	AutomationTriggered bool      `json:"automation_triggered"`
}

// TransferLine is one product on a transfer.
type TransferLine struct {
	ID             int64     `json:"id,omitempty"`
	TransferID     int64     `json:"transfer_id"`
	ProductID      ProductID `json:"product_id"`
	QtyToTransfer  int       `json:"qty_to_transfer"`
	OptimalQty     int       `json:"optimal_qty"`
	DemandForecast int       `json:"demand_forecast"`
	SalesVelocity  float64   `json:"sales_velocity"`
}

// Line is an allocation decision before it is merged into a transfer.
// An empty Donor means the hub.
type Line struct {
	ProductID      ProductID `json:"product_id"`
	Qty            int       `json:"qty"`
	OptimalQty     int       `json:"optimal_qty"`
	SalesVelocity  float64   `json:"sales_velocity"`
	DemandForecast int       `json:"demand_forecast"`
	Donor          OutletID  `json:"donor,omitempty"`
}

// MergeLines collapses duplicate products: quantities sum, OptimalQty takes
// the max, the first-seen donor and velocity win. Order of first appearance
// is preserved.
func MergeLines(lines []Line) []Line {
	idx := make(map[ProductID]int, len(lines))
	var out []Line
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			out[i].Qty += l.Qty
			if l.OptimalQty > out[i].OptimalQty {
				out[i].OptimalQty = l.OptimalQty
			}
			if l.DemandForecast > out[i].DemandForecast {
				out[i].DemandForecast = l.DemandForecast
			}
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

// SortByValue orders lines by price*qty descending, product id ascending on ties.
func SortByValue(lines []Line, products map[ProductID]Product) {
	sort.SliceStable(lines, func(i, j int) bool {
		vi := products[lines[i].ProductID].Price.Mul(decimal.NewFromInt(int64(lines[i].Qty)))
		vj := products[lines[j].ProductID].Price.Mul(decimal.NewFromInt(int64(lines[j].Qty)))
		if c := vi.Cmp(vj); c != 0 {
			return c > 0
		}
		return lines[i].ProductID < lines[j].ProductID
	})
}

// SortedProductIDs returns the keys of m in ascending order.
func SortedProductIDs[V any](m map[ProductID]V) []ProductID {
	ids := make([]ProductID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
