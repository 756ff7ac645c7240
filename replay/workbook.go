package replay

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the run workbook.
const (
	SheetTransfers = "Transfers"
	SheetLines     = "Lines"
	SheetDecisions = "Decisions"
)

// Workbook renders a document as a spreadsheet with one sheet each for
// transfers, lines and ledger decisions. The caller closes the file.
func Workbook(doc Document) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetTransfers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetLines, SheetDecisions} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	transfers := [][]any{{
		"transfer_id", "source", "destination", "delivery_mode", "freight_cost",
		"margin", "profitable", "product_count", "total_quantity", "total_weight_g",
	}}
	lines := [][]any{{
		"transfer_id", "source", "destination", "product_id", "qty", "optimal_qty",
		"sales_velocity", "demand_forecast", "donor",
	}}
	if doc.Results != nil {
		for _, t := range doc.Results.Transfers {
			transfers = append(transfers, []any{
				t.TransferID, string(t.Source), string(t.Destination), t.DeliveryMode,
				t.FreightCost.InexactFloat64(), t.Margin.InexactFloat64(), t.Profitable,
				t.ProductCount, t.TotalQuantity, t.TotalWeightG,
			})
			for _, l := range t.Lines {
				lines = append(lines, []any{
					t.TransferID, string(t.Source), string(t.Destination), string(l.ProductID),
					l.Qty, l.OptimalQty, l.SalesVelocity, l.DemandForecast, string(l.Donor),
				})
			}
		}
	}

	decisions := [][]any{{"at", "product_id", "store_id", "step", "reason", "context"}}
	for _, e := range doc.Ledger {
		decisions = append(decisions, []any{
			e.At.Format("2006-01-02 15:04:05"), e.ProductID, e.StoreID, e.Step, e.Reason, contextString(e.Context),
		})
	}

	for _, s := range []struct {
		name string
		rows [][]any
	}{
		{SheetTransfers, transfers},
		{SheetLines, lines},
		{SheetDecisions, decisions},
	} {
		if err := setRows(f, s.name, s.rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// WriteWorkbook streams the workbook for doc to w.
func WriteWorkbook(w io.Writer, doc Document) error {
	f, err := Workbook(doc)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeWorkbook(path string, doc Document) error {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, doc); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func contextString(ctx map[string]any) string {
	if len(ctx) == 0 {
		return ""
	}
	return fmt.Sprint(ctx)
}
