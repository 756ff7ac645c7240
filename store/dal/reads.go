package dal

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/schema"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Outlets returns active, non-deleted outlets ordered by name.
func (d *DAL) Outlets(ctx context.Context) ([]allocation.Outlet, error) {
	t := schema.TableOutlets
	id, err := d.col(ctx, t, "outlet_id", "o")
	if err != nil {
		return nil, err
	}
	name, err := d.col(ctx, t, "name", "o")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s FROM %s o ORDER BY %s`,
		id, name,
		d.optCol(ctx, t, "is_warehouse", "o"),
		d.optCol(ctx, t, "turnover_multiplier", "o"),
		d.optCol(ctx, t, "status", "o"),
		d.optCol(ctx, t, "deleted_at", "o"),
		t, name)

	rows, err := d.query(ctx, d.db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query outlets: %w", err)
	}
	defer rows.Close()

	_, hasStatus := d.schema.Optional(ctx, t, "status")
	var out []allocation.Outlet
	for rows.Next() {
		var (
			oid, oname, deleted sql.NullString
			warehouse, status   any
			turnover            sql.NullFloat64
		)
		if err := rows.Scan(&oid, &oname, &warehouse, &turnover, &status, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan outlet: %w", err)
		}
		if isSetTimestamp(deleted) {
			continue
		}
		if hasStatus && !enabled(status) {
			continue
		}
		out = append(out, allocation.Outlet{
			ID:                 allocation.OutletID(oid.String),
			Name:               oname.String,
			IsWarehouse:        enabled(warehouse),
			TurnoverMultiplier: allocation.NormalizeTurnover(turnover.Float64),
			Active:             true,
		})
	}
	return out, rows.Err()
}

// FreightRules returns active rules ordered by max weight ascending.
func (d *DAL) FreightRules(ctx context.Context) ([]allocation.FreightRule, error) {
	t := schema.TableFreightRules
	container, err := d.col(ctx, t, "container", "")
	if err != nil {
		return nil, err
	}
	maxW, err := d.col(ctx, t, "max_weight_grams", "")
	if err != nil {
		return nil, err
	}
	cost, err := d.col(ctx, t, "cost", "")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s ORDER BY %s ASC`,
		container, maxW, cost, d.optCol(ctx, t, "is_active", ""), t, maxW)

	rows, err := d.query(ctx, d.db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query freight rules: %w", err)
	}
	defer rows.Close()

	var out []allocation.FreightRule
	for rows.Next() {
		var (
			c, price sql.NullString
			w        sql.NullFloat64
			active   any
		)
		if err := rows.Scan(&c, &w, &price, &active); err != nil {
			return nil, fmt.Errorf("failed to scan freight rule: %w", err)
		}
		if disabled(active) {
			continue
		}
		out = append(out, allocation.FreightRule{
			Container:      c.String,
			MaxWeightGrams: int(w.Float64),
			Cost:           money(price),
		})
	}
	return out, rows.Err()
}

// CategoryWeights maps category code to average grams.
func (d *DAL) CategoryWeights(ctx context.Context) (map[string]float64, error) {
	t := schema.TableCategoryWeights
	out := make(map[string]float64)
	if ok, err := d.hasTable(ctx, t); err != nil || !ok {
		return out, err
	}
	code, err := d.col(ctx, t, "category_code", "")
	if err != nil {
		return nil, err
	}
	grams, err := d.col(ctx, t, "avg_weight_grams", "")
	if err != nil {
		return nil, err
	}

	rows, err := d.query(ctx, d.db, fmt.Sprintf(`SELECT %s, %s FROM %s`, code, grams, t))
	if err != nil {
		return nil, fmt.Errorf("failed to query category weights: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c sql.NullString
		var g sql.NullFloat64
		if err := rows.Scan(&c, &g); err != nil {
			return nil, fmt.Errorf("failed to scan category weight: %w", err)
		}
		if c.String != "" {
			out[c.String] = g.Float64
		}
	}
	return out, rows.Err()
}

// ProductTypeDefaults maps type code to seed and weight defaults.
func (d *DAL) ProductTypeDefaults(ctx context.Context) (map[string]allocation.ProductTypeDefault, error) {
	t := schema.TableProductTypes
	out := make(map[string]allocation.ProductTypeDefault)
	if ok, err := d.hasTable(ctx, t); err != nil || !ok {
		return out, err
	}
	code, err := d.col(ctx, t, "product_type_code", "")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s`, code,
		d.optCol(ctx, t, "default_seed_qty", ""),
		d.optCol(ctx, t, "avg_weight_grams_default", ""), t)

	rows, err := d.query(ctx, d.db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query product types: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c sql.NullString
		var seed, grams sql.NullFloat64
		if err := rows.Scan(&c, &seed, &grams); err != nil {
			return nil, fmt.Errorf("failed to scan product type: %w", err)
		}
		out[c.String] = allocation.ProductTypeDefault{
			Code:                  c.String,
			DefaultSeedQty:        int(seed.Float64),
			AvgWeightGramsDefault: grams.Float64,
		}
	}
	return out, rows.Err()
}

// =============================================================================
// CANDIDATES
// =============================================================================

// CandidatesFromHub returns hub on-hand units for products that may move:
// in stock, not deleted or inactive, supplier and brand not opted out of
// automatic transfers, and not a block-listed beverage.
func (d *DAL) CandidatesFromHub(ctx context.Context, hub allocation.OutletID) (map[allocation.ProductID]int, error) {
	inv, prod := schema.TableInventory, schema.TableProducts

	iPID, err := d.col(ctx, inv, "product_id", "i")
	if err != nil {
		return nil, err
	}
	iOID, err := d.col(ctx, inv, "outlet_id", "i")
	if err != nil {
		return nil, err
	}
	iQty, err := d.col(ctx, inv, "on_hand", "i")
	if err != nil {
		return nil, err
	}
	pID, err := d.col(ctx, prod, "product_id", "p")
	if err != nil {
		return nil, err
	}
	pName, err := d.col(ctx, prod, "name", "p")
	if err != nil {
		return nil, err
	}

	selects := []string{
		iPID, iQty, pName,
		d.optCol(ctx, prod, "active", "p"),
		d.optCol(ctx, prod, "is_active", "p"),
		d.optCol(ctx, prod, "is_deleted", "p"),
		d.optCol(ctx, prod, "deleted_at", "p"),
		d.optCol(ctx, prod, "has_inventory", "p"),
	}
	from := fmt.Sprintf("%s i JOIN %s p ON %s = %s", inv, prod, pID, iPID)

	supplierJoin, supplierSel, err := d.partyJoin(ctx, schema.TableSuppliers, "supplier_id", "s")
	if err != nil {
		return nil, err
	}
	brandJoin, brandSel, err := d.partyJoin(ctx, schema.TableBrands, "brand_id", "b")
	if err != nil {
		return nil, err
	}
	selects = append(selects, supplierSel...)
	selects = append(selects, brandSel...)

	query := fmt.Sprintf(`SELECT %s FROM %s%s%s WHERE %s = ? AND %s > 0`,
		strings.Join(selects, ", "), from, supplierJoin, brandJoin, iOID, iQty)

	rows, err := d.query(ctx, d.db, query, string(hub))
	if err != nil {
		return nil, fmt.Errorf("failed to query hub candidates: %w", err)
	}
	defer rows.Close()

	out := make(map[allocation.ProductID]int)
	for rows.Next() {
		var pid, name, deletedAt, sName, bName sql.NullString
		var qty sql.NullFloat64
		var active, isActive, isDeleted, hasInv, sAuto, bAuto any
		if err := rows.Scan(&pid, &qty, &name, &active, &isActive, &isDeleted, &deletedAt, &hasInv,
			&sName, &sAuto, &bName, &bAuto); err != nil {
			return nil, fmt.Errorf("failed to scan hub candidate: %w", err)
		}
		switch {
		case disabled(active), disabled(isActive), enabled(isDeleted), isSetTimestamp(deletedAt), disabled(hasInv):
			continue
		case disabled(sAuto), disabled(bAuto):
			continue
		case allocation.IsBlockedBeverage(name.String, sName.String, bName.String):
			continue
		}
		out[allocation.ProductID(pid.String)] += int(qty.Float64)
	}
	return out, rows.Err()
}

// partyJoin builds an optional LEFT JOIN to suppliers or brands and the two
// selected expressions (name, automatic_transferring). A missing table or
// key column yields NULLs.
func (d *DAL) partyJoin(ctx context.Context, table, productRole, alias string) (string, []string, error) {
	nulls := []string{"NULL", "NULL"}
	ok, err := d.hasTable(ctx, table)
	if err != nil || !ok {
		return "", nulls, err
	}
	fk, ok := d.schema.Optional(ctx, schema.TableProducts, productRole)
	if !ok {
		return "", nulls, nil
	}
	pk, ok := d.schema.Optional(ctx, table, productRole)
	if !ok {
		return "", nulls, nil
	}
	join := fmt.Sprintf(" LEFT JOIN %s %s ON %s.%s = p.%s", table, alias, alias, pk, fk)
	return join, []string{
		d.optCol(ctx, table, "name", alias),
		d.optCol(ctx, table, "automatic_transferring", alias),
	}, nil
}

// =============================================================================
// PRODUCTS, INVENTORY, CLASSIFICATION
// =============================================================================

// ProductInfoBulk returns product data for ids.
func (d *DAL) ProductInfoBulk(ctx context.Context, ids []allocation.ProductID) (map[allocation.ProductID]allocation.Product, error) {
	out := make(map[allocation.ProductID]allocation.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	t := schema.TableProducts
	id, err := d.col(ctx, t, "product_id", "")
	if err != nil {
		return nil, err
	}
	name, err := d.col(ctx, t, "name", "")
	if err != nil {
		return nil, err
	}
	price, err := d.col(ctx, t, "price", "")
	if err != nil {
		return nil, err
	}
	selects := strings.Join([]string{
		id,
		d.optCol(ctx, t, "sku", ""),
		name,
		d.optCol(ctx, t, "supplier_id", ""),
		d.optCol(ctx, t, "brand_id", ""),
		price,
		d.optCol(ctx, t, "cost", ""),
		d.optCol(ctx, t, "avg_weight_grams", ""),
		d.optCol(ctx, t, "product_type_code", ""),
	}, ", ")

	for _, part := range chunk(ids, d.opts.ChunkSize) {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s IN (%s)`, selects, t, id, placeholders(len(part)))
		if err := d.scanProducts(ctx, query, productIDs(part), out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DAL) scanProducts(ctx context.Context, query string, args []any, out map[allocation.ProductID]allocation.Product) error {
	rows, err := d.query(ctx, d.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid, sku, name, supplier, brand, price, cost, ptype sql.NullString
		var weight sql.NullFloat64
		if err := rows.Scan(&pid, &sku, &name, &supplier, &brand, &price, &cost, &weight, &ptype); err != nil {
			return fmt.Errorf("failed to scan product: %w", err)
		}
		out[allocation.ProductID(pid.String)] = allocation.Product{
			ID:              allocation.ProductID(pid.String),
			SKU:             sku.String,
			Name:            name.String,
			SupplierID:      supplier.String,
			BrandID:         brand.String,
			Price:           money(price),
			Cost:            money(cost),
			AvgWeightGrams:  weight.Float64,
			ProductTypeCode: ptype.String,
		}
	}
	return rows.Err()
}

// InventoryFor returns on-hand units for ids at outlets.
func (d *DAL) InventoryFor(ctx context.Context, ids []allocation.ProductID, outlets []allocation.OutletID) (allocation.Inventory, error) {
	out := allocation.Inventory{}
	if len(ids) == 0 || len(outlets) == 0 {
		return out, nil
	}
	t := schema.TableInventory
	pid, err := d.col(ctx, t, "product_id", "")
	if err != nil {
		return nil, err
	}
	oid, err := d.col(ctx, t, "outlet_id", "")
	if err != nil {
		return nil, err
	}
	qty, err := d.col(ctx, t, "on_hand", "")
	if err != nil {
		return nil, err
	}

	for _, part := range chunk(ids, d.opts.ChunkSize) {
		query := fmt.Sprintf(`SELECT %s, %s, %s FROM %s WHERE %s IN (%s) AND %s IN (%s)`,
			pid, oid, qty, t, pid, placeholders(len(part)), oid, placeholders(len(outlets)))
		args := append(productIDs(part), outletIDs(outlets)...)

		rows, err := d.query(ctx, d.db, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query inventory: %w", err)
		}
		for rows.Next() {
			var p, o sql.NullString
			var q sql.NullFloat64
			if err := rows.Scan(&p, &o, &q); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan inventory: %w", err)
			}
			cur := out.OnHand(allocation.ProductID(p.String), allocation.OutletID(o.String))
			out.Set(allocation.ProductID(p.String), allocation.OutletID(o.String), cur+int(q.Float64))
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ClassificationFor returns category/type tags. Absent table means none.
func (d *DAL) ClassificationFor(ctx context.Context, ids []allocation.ProductID) (map[allocation.ProductID]allocation.Classification, error) {
	out := make(map[allocation.ProductID]allocation.Classification)
	if len(ids) == 0 {
		return out, nil
	}
	t := schema.TableClassification
	if ok, err := d.hasTable(ctx, t); err != nil || !ok {
		return out, err
	}
	pid, err := d.col(ctx, t, "product_id", "")
	if err != nil {
		return nil, err
	}
	selects := strings.Join([]string{
		pid,
		d.optCol(ctx, t, "type_code", ""),
		d.optCol(ctx, t, "category_code", ""),
		d.optCol(ctx, t, "confidence", ""),
	}, ", ")

	for _, part := range chunk(ids, d.opts.ChunkSize) {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s IN (%s)`, selects, t, pid, placeholders(len(part)))
		rows, err := d.query(ctx, d.db, query, productIDs(part)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query classification: %w", err)
		}
		for rows.Next() {
			var p, typ, cat sql.NullString
			var conf sql.NullFloat64
			if err := rows.Scan(&p, &typ, &cat, &conf); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan classification: %w", err)
			}
			out[allocation.ProductID(p.String)] = allocation.Classification{
				ProductID:    allocation.ProductID(p.String),
				TypeCode:     typ.String,
				CategoryCode: cat.String,
				Confidence:   conf.Float64,
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// =============================================================================
// DEMAND
// =============================================================================

// DemandBulk returns trailing-window units per product and outlet. The
// 90-day summary table wins when present; otherwise sale line items are
// aggregated, joined to sales headers for whatever outlet or date column
// the line items lack.
func (d *DAL) DemandBulk(ctx context.Context, ids []allocation.ProductID, outlets []allocation.OutletID) (allocation.Demand, error) {
	out := allocation.Demand{}
	if len(ids) == 0 || len(outlets) == 0 {
		return out, nil
	}

	ok, err := d.hasTable(ctx, schema.TableSalesSummary)
	if err != nil {
		return nil, err
	}
	if ok {
		return d.demandFromSummary(ctx, ids, outlets)
	}
	return d.demandFromLineItems(ctx, ids, outlets)
}

func (d *DAL) demandFromSummary(ctx context.Context, ids []allocation.ProductID, outlets []allocation.OutletID) (allocation.Demand, error) {
	t := schema.TableSalesSummary
	pid, err := d.col(ctx, t, "product_id", "")
	if err != nil {
		return nil, err
	}
	oid, err := d.col(ctx, t, "outlet_id", "")
	if err != nil {
		return nil, err
	}
	units, err := d.col(ctx, t, "units_sold_90d", "")
	if err != nil {
		return nil, err
	}
	last := d.optCol(ctx, t, "last_sold_at", "")

	out := allocation.Demand{}
	for _, part := range chunk(ids, d.opts.ChunkSize) {
		query := fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s WHERE %s IN (%s) AND %s IN (%s)`,
			pid, oid, units, last, t, pid, placeholders(len(part)), oid, placeholders(len(outlets)))
		args := append(productIDs(part), outletIDs(outlets)...)
		if err := d.scanDemand(ctx, query, args, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DAL) demandFromLineItems(ctx context.Context, ids []allocation.ProductID, outlets []allocation.OutletID) (allocation.Demand, error) {
	out := allocation.Demand{}
	li := schema.TableSaleLines
	if ok, err := d.hasTable(ctx, li); err != nil || !ok {
		return out, err
	}
	pid, err := d.col(ctx, li, "product_id", "li")
	if err != nil {
		return nil, err
	}
	qty, err := d.col(ctx, li, "quantity", "li")
	if err != nil {
		return nil, err
	}

	src, err := d.saleSource(ctx)
	if err != nil || src.outlet == "" || src.date == "" {
		return out, err
	}

	for _, part := range chunk(ids, d.opts.ChunkSize) {
		query := fmt.Sprintf(`SELECT %s, %s, SUM(ABS(%s)), MAX(%s) FROM %s
			WHERE %s >= ? AND %s IN (%s) AND %s IN (%s)
			GROUP BY %s, %s`,
			pid, src.outlet, qty, src.date, src.from,
			src.date, pid, placeholders(len(part)), src.outlet, placeholders(len(outlets)),
			pid, src.outlet)
		args := append([]any{d.since(d.opts.DemandWindowDays)}, productIDs(part)...)
		args = append(args, outletIDs(outlets)...)
		if err := d.scanDemand(ctx, query, args, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// saleSource describes how to reach outlet and date for a sale line.
type saleSource struct {
	from   string
	outlet string
	date   string
}

func (d *DAL) saleSource(ctx context.Context) (saleSource, error) {
	li, s := schema.TableSaleLines, schema.TableSales
	liOutlet, hasOutlet := d.schema.Optional(ctx, li, "outlet_id")
	liDate, hasDate := d.schema.Optional(ctx, li, "sold_at")

	src := saleSource{from: li + " li"}
	if hasOutlet {
		src.outlet = "li." + liOutlet
	}
	if hasDate {
		src.date = "li." + liDate
	}
	if hasOutlet && hasDate {
		return src, nil
	}

	ok, err := d.hasTable(ctx, s)
	if err != nil || !ok {
		return src, err
	}
	liSale, ok := d.schema.Optional(ctx, li, "sale_id")
	if !ok {
		return src, nil
	}
	sID, ok := d.schema.Optional(ctx, s, "sale_id")
	if !ok {
		return src, nil
	}
	src.from = fmt.Sprintf("%s li LEFT JOIN %s s ON li.%s = s.%s", li, s, liSale, sID)
	if sOutlet, ok := d.schema.Optional(ctx, s, "outlet_id"); ok {
		src.outlet = coalesce(src.outlet, "s."+sOutlet)
	}
	if sDate, ok := d.schema.Optional(ctx, s, "sold_at"); ok {
		src.date = coalesce(src.date, "s."+sDate)
	}
	return src, nil
}

func coalesce(primary, fallback string) string {
	if primary == "" {
		return fallback
	}
	return "COALESCE(" + primary + ", " + fallback + ")"
}

func (d *DAL) scanDemand(ctx context.Context, query string, args []any, out allocation.Demand) error {
	rows, err := d.query(ctx, d.db, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query demand: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p, o, last sql.NullString
		var units sql.NullFloat64
		if err := rows.Scan(&p, &o, &units, &last); err != nil {
			return fmt.Errorf("failed to scan demand: %w", err)
		}
		if o.String == "" {
			continue
		}
		out.Add(allocation.ProductID(p.String), allocation.OutletID(o.String), math.Abs(units.Float64), parseTimestamp(last))
	}
	return rows.Err()
}

// =============================================================================
// NEW-STORE HEURISTIC
// =============================================================================

// IsNewStoreCandidate: fewer than NewStoreMinInventoryRows stocked
// products and no sales within NoSalesDays.
func (d *DAL) IsNewStoreCandidate(ctx context.Context, outlet allocation.OutletID) (bool, error) {
	n, err := d.stockedProductCount(ctx, outlet)
	if err != nil {
		return false, err
	}
	if n >= d.opts.NewStoreMinInventoryRows {
		return false, nil
	}
	sold, err := d.hasSalesSince(ctx, outlet, d.since(d.opts.NoSalesDays))
	if err != nil {
		return false, err
	}
	return !sold, nil
}

func (d *DAL) stockedProductCount(ctx context.Context, outlet allocation.OutletID) (int, error) {
	t := schema.TableInventory
	oid, err := d.col(ctx, t, "outlet_id", "")
	if err != nil {
		return 0, err
	}
	qty, err := d.col(ctx, t, "on_hand", "")
	if err != nil {
		return 0, err
	}
	var n int
	query := d.dialect.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ? AND %s > 0`, t, oid, qty))
	if err := d.db.QueryRowContext(ctx, query, string(outlet)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count inventory for %s: %w", outlet, err)
	}
	return n, nil
}

func (d *DAL) hasSalesSince(ctx context.Context, outlet allocation.OutletID, since string) (bool, error) {
	var query string
	var args []any

	ok, err := d.hasTable(ctx, schema.TableSalesSummary)
	if err != nil {
		return false, err
	}
	if ok {
		oid, err := d.col(ctx, schema.TableSalesSummary, "outlet_id", "")
		if err != nil {
			return false, err
		}
		query = fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = ? LIMIT 1`, schema.TableSalesSummary, oid)
		args = []any{string(outlet)}
	} else {
		if ok, err := d.hasTable(ctx, schema.TableSaleLines); err != nil || !ok {
			return false, err
		}
		src, err := d.saleSource(ctx)
		if err != nil {
			return false, err
		}
		if src.outlet == "" || src.date == "" {
			return false, nil
		}
		query = fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = ? AND %s >= ? LIMIT 1`, src.from, src.outlet, src.date)
		args = []any{string(outlet), since}
	}

	rows, err := d.query(ctx, d.db, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to check sales for %s: %w", outlet, err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}
