package schema_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/schema"
)

// fakeIntrospector serves a fixed schema and counts lookups.
type fakeIntrospector struct {
	tables map[string][]string
	calls  int
	err    error
}

func (f *fakeIntrospector) ListColumns(_ context.Context, table string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[table], nil
}

func (f *fakeIntrospector) TableExists(_ context.Context, table string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.tables[table]
	return ok, nil
}

func TestResolveColumn_ExactBeforeCaseInsensitive(t *testing.T) {
	// GIVEN: Inventory spells on-hand as "Current_Amount" and also has "qty"
	// WHEN: Resolving the on_hand role
	// THEN: An exact match on a later synonym beats a case-insensitive match on an earlier one

	intro := &fakeIntrospector{tables: map[string][]string{
		"vend_inventory": {"id", "outlet_id", "product_id", "Current_Amount", "qty"},
	}}
	r := schema.NewResolver(intro, schema.DefaultMapping)

	col, err := r.Column(context.Background(), "vend_inventory", "on_hand")
	require.NoError(t, err)
	assert.Equal(t, "qty", col)

	intro.tables["vend_inventory"] = []string{"outlet_id", "product_id", "Current_Amount"}
	r = schema.NewResolver(intro, schema.DefaultMapping)
	col, err = r.Column(context.Background(), "vend_inventory", "on_hand")
	require.NoError(t, err)
	assert.Equal(t, "Current_Amount", col)
}

func TestResolveColumn_StrictVersusDegraded(t *testing.T) {
	intro := &fakeIntrospector{tables: map[string][]string{
		"vend_products": {"id", "name", "price"},
	}}
	r := schema.NewResolver(intro, schema.DefaultMapping)
	ctx := context.Background()

	_, err := r.Column(ctx, "vend_products", "cost")
	var se *schema.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "cost", se.Role)
	assert.ErrorIs(t, err, allocation.ErrSchema)

	name, ok := r.Optional(ctx, "vend_products", "cost")
	assert.False(t, ok)
	assert.Empty(t, name)

	_, err = r.Column(ctx, "vend_products", "no_such_role")
	assert.ErrorIs(t, err, allocation.ErrSchema)
}

func TestResolveColumn_Cached(t *testing.T) {
	intro := &fakeIntrospector{tables: map[string][]string{
		"freight_rules": {"container", "max_weight_grams", "cost"},
	}}
	r := schema.NewResolver(intro, schema.DefaultMapping)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Column(ctx, "freight_rules", "container")
		require.NoError(t, err)
		_, _ = r.Optional(ctx, "freight_rules", "is_active")
	}

	assert.Equal(t, 1, intro.calls)
}

func TestResolveColumn_IntrospectionFailure(t *testing.T) {
	intro := &fakeIntrospector{err: errors.New("connection refused")}
	r := schema.NewResolver(intro, schema.DefaultMapping)

	_, err := r.Column(context.Background(), "vend_outlets", "name")
	assert.ErrorContains(t, err, "connection refused")

	_, ok := r.Optional(context.Background(), "vend_outlets", "deleted_at")
	assert.False(t, ok)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	// GIVEN: A database missing freight_rules and the inventory on-hand column
	// WHEN: Validating at startup
	// THEN: One ConfigurationError lists both problems; optional tables are ignored

	intro := &fakeIntrospector{tables: map[string][]string{
		"vend_products":              {"id", "name", "price_including_tax"},
		"vend_inventory":             {"outlet_id", "product_id"},
		"vend_outlets":               {"id", "name"},
		"stock_transfers":            {"transfer_id", "outlet_from", "outlet_to"},
		"stock_products_to_transfer": {"transfer_id", "product_id", "qty_to_transfer"},
	}}
	r := schema.NewResolver(intro, schema.DefaultMapping)

	err := r.Validate(context.Background())

	var ce *allocation.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, allocation.ErrSchema)
	require.Len(t, ce.Problems, 2)
	assert.Contains(t, ce.Problems[0], "missing table freight_rules")
	assert.Contains(t, ce.Problems[1], "vend_inventory.on_hand")
}

func TestValidate_Passes(t *testing.T) {
	intro := &fakeIntrospector{tables: map[string][]string{
		"vend_products":              {"id", "name", "price"},
		"vend_inventory":             {"outlet_id", "product_id", "inventory_level"},
		"vend_outlets":               {"id", "name"},
		"freight_rules":              {"container", "max_weight_grams", "cost"},
		"stock_transfers":            {"transfer_id", "outlet_from", "outlet_to"},
		"stock_products_to_transfer": {"transfer_id", "product_id", "qty"},
	}}

	assert.NoError(t, schema.NewResolver(intro, schema.DefaultMapping).Validate(context.Background()))
}
