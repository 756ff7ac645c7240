package sqlite

import (
	"context"
	"fmt"
	"time"
)

// ProductRow is a vend_products row for fixtures.
type ProductRow struct {
	ID         string
	SKU        string
	Name       string
	SupplierID string
	BrandID    string
	Price      float64
	Cost       float64
	WeightG    float64 // 0 leaves avg_weight_grams NULL
	Type       string
	Inactive   bool
}

// Fixture inserts test and demo rows. The first error sticks; check Err
// after building.
type Fixture struct {
	s    *Store
	ctx  context.Context
	now  time.Time
	sale int
	err  error
}

// Fixture starts a builder. now anchors Sale's daysAgo.
func (s *Store) Fixture(ctx context.Context, now time.Time) *Fixture {
	return &Fixture{s: s, ctx: ctx, now: now}
}

func (f *Fixture) exec(query string, args ...any) *Fixture {
	if f.err != nil {
		return f
	}
	if err := f.s.Exec(f.ctx, query, args...); err != nil {
		f.err = fmt.Errorf("fixture: %w", err)
	}
	return f
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Outlet adds an outlet. turnover 0 leaves the column NULL.
func (f *Fixture) Outlet(id, name string, warehouse bool, turnover float64) *Fixture {
	var t any
	if turnover != 0 {
		t = turnover
	}
	return f.exec(`INSERT INTO vend_outlets (id, name, is_warehouse, turn_over_rate) VALUES (?, ?, ?, ?)`,
		id, name, warehouse, t)
}

// ClosedOutlet adds an outlet that is no longer trading.
func (f *Fixture) ClosedOutlet(id, name string) *Fixture {
	return f.exec(`INSERT INTO vend_outlets (id, name, website_active) VALUES (?, ?, 0)`, id, name)
}

// Supplier adds a supplier. autoTransfer false opts its products out.
func (f *Fixture) Supplier(id, name string, autoTransfer bool) *Fixture {
	return f.exec(`INSERT INTO vend_suppliers (id, name, automatic_transferring) VALUES (?, ?, ?)`,
		id, name, autoTransfer)
}

// Brand adds a brand. storeTransfers false opts its products out.
func (f *Fixture) Brand(id, name string, storeTransfers bool) *Fixture {
	return f.exec(`INSERT INTO vend_brands (id, name, enable_store_transfers) VALUES (?, ?, ?)`,
		id, name, storeTransfers)
}

// Product adds a product.
func (f *Fixture) Product(p ProductRow) *Fixture {
	var w any
	if p.WeightG > 0 {
		w = p.WeightG
	}
	sku := p.SKU
	if sku == "" {
		sku = p.ID
	}
	return f.exec(`INSERT INTO vend_products
		(id, handle, name, supplier_id, brand_id, price_including_tax, supply_price, avg_weight_grams, type, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, sku, p.Name, nullable(p.SupplierID), nullable(p.BrandID), p.Price, p.Cost, w, nullable(p.Type), !p.Inactive)
}

// Stock sets on-hand units for a product at an outlet.
func (f *Fixture) Stock(outlet, product string, qty int) *Fixture {
	return f.exec(`INSERT INTO vend_inventory (outlet_id, product_id, current_amount) VALUES (?, ?, ?)
		ON CONFLICT (outlet_id, product_id) DO UPDATE SET current_amount = excluded.current_amount`,
		outlet, product, qty)
}

// Sale records one sale of qty units daysAgo days before now.
func (f *Fixture) Sale(outlet, product string, qty float64, daysAgo int) *Fixture {
	f.sale++
	id := fmt.Sprintf("sale-%d", f.sale)
	at := f.now.AddDate(0, 0, -daysAgo).Format("2006-01-02 15:04:05")
	f.exec(`INSERT INTO vend_sales (id, outlet_id, sale_date) VALUES (?, ?, ?)`, id, outlet, at)
	return f.exec(`INSERT INTO vend_sales_line_items (sale_id, product_id, quantity) VALUES (?, ?, ?)`,
		id, product, qty)
}

// Classify tags a product with a type and category.
func (f *Fixture) Classify(product, typeCode, category string) *Fixture {
	return f.exec(`INSERT INTO product_classification_unified (product_id, type_code, category_code, confidence)
		VALUES (?, ?, ?, 1.0)`, product, nullable(typeCode), nullable(category))
}

// CategoryWeight sets the average grams for a category.
func (f *Fixture) CategoryWeight(category string, grams float64) *Fixture {
	return f.exec(`INSERT INTO category_weights (category_code, avg_weight_grams) VALUES (?, ?)`, category, grams)
}

// ProductType adds a product type default row.
func (f *Fixture) ProductType(code string, seedQty int, grams float64) *Fixture {
	return f.exec(`INSERT INTO product_types (code, default_seed_qty, avg_weight_grams) VALUES (?, ?, ?)`,
		code, seedQty, grams)
}

// Freight adds a freight band.
func (f *Fixture) Freight(container string, maxGrams int, cost float64) *Fixture {
	return f.exec(`INSERT INTO freight_rules (container, max_weight_grams, cost) VALUES (?, ?, ?)`,
		container, maxGrams, cost)
}

// StandardFreight adds the bag/box/carton bands used by demos.
func (f *Fixture) StandardFreight() *Fixture {
	return f.Freight("satchel_small", 1000, 6.50).
		Freight("satchel_large", 3000, 9.50).
		Freight("box_medium", 10000, 15.00).
		Freight("carton_large", 25000, 28.00)
}

// Err returns the first error encountered.
func (f *Fixture) Err() error {
	return f.err
}
