package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

func TestMemory_OutletsFiltersInactiveAndSortsByName(t *testing.T) {
	// GIVEN: three outlets, one closed
	m := NewMemory()
	m.OutletList = []allocation.Outlet{
		{ID: "b", Name: "Zeta", Active: true},
		{ID: "c", Name: "Closed", Active: false},
		{ID: "a", Name: "Alpha", Active: true},
	}

	// WHEN: listing outlets
	out, err := m.Outlets(context.Background())

	// THEN: only active outlets, ordered by name
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, allocation.OutletID("a"), out[0].ID)
	assert.Equal(t, allocation.OutletID("b"), out[1].ID)
}

func TestMemory_CandidatesFromHub(t *testing.T) {
	// GIVEN: hub stock for a normal, a blocked, a beverage and an empty product
	m := NewMemory()
	m.Products["ok"] = allocation.Product{ID: "ok", Name: "Coil Pack"}
	m.Products["blocked"] = allocation.Product{ID: "blocked", Name: "Tank"}
	m.Products["drink"] = allocation.Product{ID: "drink", Name: "Red Bull 250ml"}
	m.Products["empty"] = allocation.Product{ID: "empty", Name: "Battery"}
	m.Stock.Set("ok", "hub", 10)
	m.Stock.Set("blocked", "hub", 10)
	m.Stock.Set("drink", "hub", 10)
	m.Stock.Set("empty", "hub", 0)
	m.Stock.Set("ok", "store", 3)
	m.Blocked["blocked"] = true

	// WHEN: reading candidates
	got, err := m.CandidatesFromHub(context.Background(), "hub")

	// THEN: only the transferable product with positive stock is returned
	require.NoError(t, err)
	assert.Equal(t, map[allocation.ProductID]int{"ok": 10}, got)
}

func TestMemory_FreightRulesSorted(t *testing.T) {
	m := NewMemory()
	m.Freight = []allocation.FreightRule{
		{Container: "box", MaxWeightGrams: 10000},
		{Container: "bag", MaxWeightGrams: 1000},
	}

	rules, err := m.FreightRules(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "bag", rules[0].Container)
	assert.Equal(t, "box", rules[1].Container)
	assert.Equal(t, "box", m.Freight[0].Container, "source slice is untouched")
}

func TestMemory_InventoryForOnlyRequestedOutlets(t *testing.T) {
	m := NewMemory()
	m.Stock.Set("p", "a", 1)
	m.Stock.Set("p", "b", 2)

	inv, err := m.InventoryFor(context.Background(), []allocation.ProductID{"p"}, []allocation.OutletID{"a"})

	require.NoError(t, err)
	assert.Equal(t, 1, inv.Total("p"))
}

func TestMemory_CommitKeepsWrites(t *testing.T) {
	// GIVEN: an empty store
	ctx := context.Background()
	m := NewMemory()

	// WHEN: writing a header and a line in one transaction
	err := allocation.WithTx(ctx, m, func(w allocation.Writer) error {
		id, err := w.CreateTransferHeader(ctx, allocation.TransferHeader{SourceOutletID: "hub", DestOutletID: "s1"})
		if err != nil {
			return err
		}
		_, err = w.CreateTransferLine(ctx, allocation.TransferLine{TransferID: id, ProductID: "p", QtyToTransfer: 3})
		return err
	})

	// THEN: both rows are visible with assigned ids
	require.NoError(t, err)
	require.Len(t, m.Headers(), 1)
	require.Len(t, m.Lines(), 1)
	assert.Equal(t, int64(1), m.Headers()[0].ID)
	assert.Equal(t, int64(1), m.Lines()[0].TransferID)
}

func TestMemory_RollbackRestoresSnapshot(t *testing.T) {
	// GIVEN: one committed transfer
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, allocation.WithTx(ctx, m, func(w allocation.Writer) error {
		_, err := w.CreateTransferHeader(ctx, allocation.TransferHeader{DestOutletID: "s1"})
		return err
	}))

	// WHEN: a second transaction fails after writing a header
	boom := errors.New("boom")
	err := allocation.WithTx(ctx, m, func(w allocation.Writer) error {
		if _, err := w.CreateTransferHeader(ctx, allocation.TransferHeader{DestOutletID: "s2"}); err != nil {
			return err
		}
		return boom
	})

	// THEN: only the first transfer remains
	assert.ErrorIs(t, err, boom)
	require.Len(t, m.Headers(), 1)
	assert.Equal(t, allocation.OutletID("s1"), m.Headers()[0].DestOutletID)

	// AND: the store accepts new transactions
	tx, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
}

func TestMemory_FailHooksWrapWriteError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	dbErr := errors.New("disk full")
	m.FailLine = func(allocation.TransferLine) error { return dbErr }

	err := allocation.WithTx(ctx, m, func(w allocation.Writer) error {
		id, err := w.CreateTransferHeader(ctx, allocation.TransferHeader{DestOutletID: "s1"})
		if err != nil {
			return err
		}
		_, err = w.CreateTransferLine(ctx, allocation.TransferLine{TransferID: id, ProductID: "p"})
		return err
	})

	var we *allocation.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "stock_products_to_transfer", we.Table)
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, m.Headers())
}

func TestMemory_CommitTwiceIsSafe(t *testing.T) {
	m := NewMemory()
	tx, err := m.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback())
}
