package replay_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation/store"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/audit"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/engine"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/replay"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// runEngine executes a dry run that plans one transfer of 14 units.
func runEngine(t *testing.T) (*engine.Engine, *engine.Result) {
	t.Helper()
	m := store.NewMemory()
	m.OutletList = []allocation.Outlet{
		{ID: "hub", Name: "Warehouse", IsWarehouse: true, Active: true},
		{ID: "s1", Name: "Store One", Active: true},
	}
	m.Freight = []allocation.FreightRule{{Container: "satchel", MaxWeightGrams: 5000, Cost: decimal.NewFromInt(5)}}
	m.Products["P"] = allocation.Product{ID: "P", Name: "Coil Pod", Price: decimal.NewFromInt(10), Cost: decimal.NewFromInt(4), AvgWeightGrams: 100}
	m.Stock.Set("P", "hub", 40)
	m.Sales.Add("P", "s1", 90, nil)

	p := engine.DefaultParams()
	p.RunID = "run_replay"
	p.TargetMOS = 100
	e, err := engine.New(m, p,
		engine.WithClock(func() time.Time { return testNow }),
		engine.WithLogger(audit.NewLogger(audit.LevelDebug, nil)),
	)
	require.NoError(t, err)
	res, err := e.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Transfers, 1)
	return e, res
}

func TestWriter_WriteAndLoad(t *testing.T) {
	// GIVEN: A finished run
	e, res := runEngine(t)
	doc := replay.Capture(e, res, testNow)
	w := replay.NewWriter(t.TempDir())

	// WHEN: Writing the replay
	runDir, err := w.Write(doc)
	require.NoError(t, err)

	// THEN: Every file exists
	for _, name := range []string{replay.InputsFile, replay.DecisionsFile, replay.LogsFile, replay.OutputsFile} {
		assert.FileExists(t, filepath.Join(runDir, name))
	}
	assert.FileExists(t, filepath.Join(w.Dir(), replay.LastRunFile))
	assert.NoFileExists(t, filepath.Join(runDir, replay.WorkbookFile))

	// AND: Loading rebuilds the same plan
	loaded, err := w.Load("run_replay")
	require.NoError(t, err)
	assert.Equal(t, "run_replay", loaded.Meta.RunID)
	assert.Equal(t, doc.Meta.Params.CoverDays, loaded.Meta.Params.CoverDays)
	require.NotNil(t, loaded.Results)
	require.Len(t, loaded.Results.Transfers, 1)
	assert.Equal(t, 14, loaded.Results.Transfers[0].TotalQuantity)
	assert.True(t, res.Transfers[0].FreightCost.Equal(loaded.Results.Transfers[0].FreightCost))
	assert.Len(t, loaded.Ledger, len(doc.Ledger))
	assert.Len(t, loaded.Logs, len(doc.Logs))

	last, err := w.LoadLast()
	require.NoError(t, err)
	assert.Equal(t, "run_replay", last.Meta.RunID)
	assert.True(t, last.Meta.TS.Equal(testNow))
}

func TestWriter_LoadMissingRun(t *testing.T) {
	w := replay.NewWriter(t.TempDir())

	_, err := w.Load("run_nope")

	assert.ErrorIs(t, err, replay.ErrNotFound)
}

func TestWriter_RejectsUnsafeRunIDs(t *testing.T) {
	w := replay.NewWriter(t.TempDir())

	for _, id := range []string{"", "../etc", "a/b", ".hidden"} {
		_, err := w.Load(id)
		assert.ErrorIs(t, err, replay.ErrInvalidRunID, id)
	}

	_, err := w.Write(replay.Document{Meta: replay.Meta{RunID: "../up"}})
	assert.ErrorIs(t, err, replay.ErrInvalidRunID)
}

func TestWriter_OverwritesLastRun(t *testing.T) {
	// GIVEN: Two runs written in sequence
	e, res := runEngine(t)
	w := replay.NewWriter(t.TempDir())
	first := replay.Capture(e, res, testNow)
	second := first
	second.Meta.RunID = "run_second"

	_, err := w.Write(first)
	require.NoError(t, err)
	_, err = w.Write(second)
	require.NoError(t, err)

	// THEN: LAST_RUN_RESULTS points at the latest run, both directories remain
	last, err := w.LoadLast()
	require.NoError(t, err)
	assert.Equal(t, "run_second", last.Meta.RunID)
	entries, err := os.ReadDir(w.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestWorkbook_Sheets(t *testing.T) {
	// GIVEN: A run written with the workbook enabled
	e, res := runEngine(t)
	w := replay.NewWriter(t.TempDir(), replay.WithWorkbook(true))
	runDir, err := w.Write(replay.Capture(e, res, testNow))
	require.NoError(t, err)

	// WHEN: Opening the workbook
	f, err := excelize.OpenFile(filepath.Join(runDir, replay.WorkbookFile))
	require.NoError(t, err)
	defer f.Close()

	// THEN: Three sheets with a header row plus data
	assert.Equal(t, []string{replay.SheetTransfers, replay.SheetLines, replay.SheetDecisions}, f.GetSheetList())

	transfers, err := f.GetRows(replay.SheetTransfers)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, "transfer_id", transfers[0][0])
	assert.Equal(t, "s1", transfers[1][2])
	assert.Equal(t, "14", transfers[1][8])

	lines, err := f.GetRows(replay.SheetLines)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "P", lines[1][3])

	decisions, err := f.GetRows(replay.SheetDecisions)
	require.NoError(t, err)
	assert.Len(t, decisions, 1+len(e.Ledger().Entries()))
}

func TestCapture_FailedRunHasEmptySlices(t *testing.T) {
	e, _ := runEngine(t)

	doc := replay.Capture(e, nil, testNow)

	assert.Nil(t, doc.Results)
	assert.NotNil(t, doc.Ledger)
	assert.Equal(t, e.Params().Apply, doc.Meta.Apply)
}
