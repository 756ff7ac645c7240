/*
mapping.go - Versioned logical-to-physical column mapping

PURPOSE:
  Retail databases grown over years name the same thing many ways
  (inventory_level, current_amount, qty_on_hand...). The engine speaks in
  logical roles; this table lists the physical names each role may carry,
  in preference order.

  The mapping is static and versioned. Resolver.Validate checks it against
  the live database once at startup so a missing required column fails
  fast instead of mid-run.

OPTIONALITY:
  A table marked Optional may be absent (the feature it feeds degrades).
  A role marked Optional may be absent from a present table.

SEE ALSO:
  - resolver.go: resolution against live columns
  - store/dal/: the only consumer
*/
package schema

// MappingVersion identifies the synonym table shipped with this build.
const MappingVersion = "2025.09"

// Role is a logical column and its physical candidates in preference order.
type Role struct {
	Name     string
	Synonyms []string
	Optional bool
}

// Table is a physical table and the roles read from or written to it.
type Table struct {
	Name     string
	Optional bool
	Roles    []Role
}

// Mapping is the full synonym table.
type Mapping struct {
	Version string
	Tables  map[string]Table
}

// Role looks up a role definition.
func (m Mapping) Role(table, role string) (Role, bool) {
	t, ok := m.Tables[table]
	if !ok {
		return Role{}, false
	}
	for _, r := range t.Roles {
		if r.Name == role {
			return r, true
		}
	}
	return Role{}, false
}

func req(name string, synonyms ...string) Role {
	return Role{Name: name, Synonyms: synonyms}
}

func opt(name string, synonyms ...string) Role {
	return Role{Name: name, Synonyms: synonyms, Optional: true}
}

func tables(ts ...Table) map[string]Table {
	out := make(map[string]Table, len(ts))
	for _, t := range ts {
		out[t.Name] = t
	}
	return out
}

// Table names.
const (
	TableProducts        = "vend_products"
	TableInventory       = "vend_inventory"
	TableSaleLines       = "vend_sales_line_items"
	TableSales           = "vend_sales"
	TableSalesSummary    = "sales_summary_90d"
	TableOutlets         = "vend_outlets"
	TableProductTypes    = "product_types"
	TableClassification  = "product_classification_unified"
	TableCategoryWeights = "category_weights"
	TableFreightRules    = "freight_rules"
	TableSuppliers       = "vend_suppliers"
	TableBrands          = "vend_brands"
	TableTransfers       = "stock_transfers"
	TableTransferLines   = "stock_products_to_transfer"
	TableEventLog        = "system_event_log"
)

// DefaultMapping is the synonym table for Vend-style retail schemas.
var DefaultMapping = Mapping{
	Version: MappingVersion,
	Tables: tables(
		Table{Name: TableProducts, Roles: []Role{
			req("product_id", "id", "product_id", "productID"),
			opt("sku", "handle", "sku", "product_handle"),
			req("name", "name", "title", "product_name"),
			opt("supplier_id", "supplier_id", "vendor_id", "supplier"),
			opt("brand_id", "brand_id", "brand", "brandID"),
			req("price", "price_including_tax", "retail_price", "price", "sell_price", "rrp"),
			opt("cost", "supply_price", "cost_price", "cost", "buy_price", "cogs", "last_cost"),
			opt("avg_weight_grams", "avg_weight_grams", "weight_grams", "avg_weight", "weight_g"),
			opt("product_type_code", "type", "product_type_code", "type_code"),
			opt("active", "active"),
			opt("is_active", "is_active"),
			opt("is_deleted", "is_deleted"),
			opt("deleted_at", "deleted_at"),
			opt("has_inventory", "has_inventory"),
		}},
		Table{Name: TableInventory, Roles: []Role{
			req("outlet_id", "outlet_id", "store_id", "location_id"),
			req("product_id", "product_id", "id_product", "productID"),
			req("on_hand", "inventory_level", "current_amount", "on_hand", "stock_on_hand", "quantity", "qty", "qty_on_hand"),
		}},
		Table{Name: TableSaleLines, Optional: true, Roles: []Role{
			opt("sale_id", "sale_id", "id_sale"),
			req("product_id", "product_id"),
			opt("outlet_id", "outlet_id"),
			req("quantity", "quantity", "qty", "units"),
			opt("sold_at", "sold_at", "sale_date", "created_at"),
		}},
		Table{Name: TableSales, Optional: true, Roles: []Role{
			req("sale_id", "id", "sale_id"),
			opt("outlet_id", "outlet_id"),
			opt("sold_at", "sale_date", "sold_at", "created_at"),
		}},
		Table{Name: TableSalesSummary, Optional: true, Roles: []Role{
			req("product_id", "product_id"),
			req("outlet_id", "outlet_id"),
			req("units_sold_90d", "qty_sold", "units_sold_90d", "qty_90d", "units_sold"),
			opt("last_sold_at", "last_updated", "last_sold_at", "last_sale_at", "last_sale_date"),
		}},
		Table{Name: TableOutlets, Roles: []Role{
			req("outlet_id", "id", "outlet_id", "store_id"),
			req("name", "name", "outlet_name"),
			opt("is_warehouse", "is_warehouse", "is_hub", "is_distribution_centre"),
			opt("turnover_multiplier", "turn_over_rate", "turnover_multiplier", "turnover_mult", "turnover_pct"),
			opt("status", "website_active", "status", "active", "enabled"),
			opt("deleted_at", "deleted_at"),
		}},
		Table{Name: TableProductTypes, Optional: true, Roles: []Role{
			req("product_type_code", "code", "product_type_code", "type_code"),
			opt("default_seed_qty", "default_seed_qty", "seed_qty_default"),
			opt("avg_weight_grams_default", "avg_weight_grams", "avg_weight_grams_default", "default_weight_grams"),
		}},
		Table{Name: TableClassification, Optional: true, Roles: []Role{
			req("product_id", "product_id"),
			opt("type_code", "type_code", "product_type_code"),
			opt("category_code", "category_code", "cat_code", "category"),
			opt("confidence", "confidence", "clf_confidence"),
		}},
		Table{Name: TableCategoryWeights, Optional: true, Roles: []Role{
			req("category_code", "category_code"),
			req("avg_weight_grams", "avg_weight_grams"),
		}},
		Table{Name: TableFreightRules, Roles: []Role{
			req("container", "container"),
			req("max_weight_grams", "max_weight_grams"),
			req("cost", "cost"),
			opt("is_active", "active", "is_active", "enabled"),
		}},
		Table{Name: TableSuppliers, Optional: true, Roles: []Role{
			req("supplier_id", "id"),
			opt("automatic_transferring", "automatic_transferring", "auto_transfer"),
			opt("name", "name"),
		}},
		Table{Name: TableBrands, Optional: true, Roles: []Role{
			req("brand_id", "id"),
			opt("automatic_transferring", "enable_store_transfers", "automatic_transferring"),
			opt("name", "name"),
		}},
		Table{Name: TableTransfers, Roles: []Role{
			req("transfer_id", "transfer_id", "id"),
			req("outlet_from", "outlet_from", "source_outlet_id"),
			req("outlet_to", "outlet_to", "dest_outlet_id"),
			opt("status", "status"),
			opt("micro_status", "micro_status"),
			opt("transfer_created_by_user", "transfer_created_by_user"),
			opt("source_module", "source_module"),
			opt("delivery_mode", "delivery_mode", "freight_container"),
			opt("automation_triggered", "automation_triggered"),
			opt("run_id", "run_id"),
			opt("created_by_system", "created_by_system"),
			opt("product_count", "product_count"),
			opt("total_quantity", "total_quantity"),
			opt("date_created", "date_created", "created_at"),
		}},
		Table{Name: TableTransferLines, Roles: []Role{
			opt("primary_key", "primary_key", "line_id", "id"),
			req("transfer_id", "transfer_id"),
			req("product_id", "product_id"),
			req("qty_to_transfer", "qty_to_transfer", "qty"),
			opt("optimal_qty", "optimal_qty"),
			opt("demand_forecast", "demand_forecast"),
			opt("sales_velocity", "sales_velocity"),
			opt("min_qty_to_remain", "min_qty_to_remain"),
		}},
		Table{Name: TableEventLog, Optional: true, Roles: []Role{
			req("event_type", "event_type"),
			opt("event_data", "event_data"),
			opt("source_module", "source_module"),
			opt("actor_type", "actor_type"),
			opt("actor_id", "actor_id"),
			opt("target_type", "target_type"),
			opt("target_id", "target_id"),
			opt("summary", "summary"),
			opt("details_json", "details_json"),
			opt("severity", "severity"),
			opt("created_at", "created_at"),
		}},
	),
}
