package dal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/schema"
)

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Begin opens a write transaction. Column lists of the transfer tables
// are loaded first so no introspection query runs while the transaction
// holds the connection.
func (d *DAL) Begin(ctx context.Context) (allocation.Tx, error) {
	for _, t := range []string{schema.TableTransfers, schema.TableTransferLines} {
		if _, err := d.schema.Columns(ctx, t); err != nil {
			return nil, err
		}
	}
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &txWriter{d: d, tx: sqlTx}, nil
}

// txWriter writes transfers inside one database transaction.
type txWriter struct {
	d  *DAL
	tx *sql.Tx
}

func (w *txWriter) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (w *txWriter) Rollback() error {
	if err := w.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// CreateTransferHeader inserts a stock_transfers row and returns its id.
func (w *txWriter) CreateTransferHeader(ctx context.Context, h allocation.TransferHeader) (int64, error) {
	return w.d.insert(ctx, w.tx, schema.TableTransfers, "transfer_id", []field{
		{"outlet_from", string(h.SourceOutletID)},
		{"outlet_to", string(h.DestOutletID)},
		{"status", h.Status},
		{"micro_status", h.MicroStatus},
		{"transfer_created_by_user", h.CreatedByUser},
		{"source_module", h.SourceModule},
		{"delivery_mode", h.DeliveryMode},
		{"automation_triggered", h.AutomationTriggered},
		{"run_id", h.RunID},
		{"created_by_system", h.CreatedBySystem},
		{"product_count", h.ProductCount},
		{"total_quantity", h.TotalQuantity},
		{"date_created", h.CreatedAt.Format(timestampLayout)},
	})
}

// CreateTransferLine inserts a stock_products_to_transfer row.
func (w *txWriter) CreateTransferLine(ctx context.Context, l allocation.TransferLine) (int64, error) {
	return w.d.insert(ctx, w.tx, schema.TableTransferLines, "primary_key", []field{
		{"transfer_id", l.TransferID},
		{"product_id", string(l.ProductID)},
		{"qty_to_transfer", l.QtyToTransfer},
		{"optimal_qty", l.OptimalQty},
		{"demand_forecast", l.DemandForecast},
		{"sales_velocity", l.SalesVelocity},
		{"min_qty_to_remain", 0},
	})
}

// field is a logical role and the value to write into it.
type field struct {
	role  string
	value any
}

// insert writes one row. Required roles must resolve; optional roles that
// do not exist in the live table are skipped.
func (d *DAL) insert(ctx context.Context, q querier, table, idRole string, fields []field) (int64, error) {
	var cols []string
	var args []any
	for _, f := range fields {
		def, _ := d.mapping.Role(table, f.role)
		name, err := d.schema.ResolveColumn(ctx, table, f.role, !def.Optional)
		if err != nil {
			return 0, &allocation.WriteError{Table: table, Op: "insert", Err: err}
		}
		if name == "" {
			continue
		}
		cols = append(cols, name)
		args = append(args, f.value)
	}
	idCol, _ := d.schema.Optional(ctx, table, idRole)

	query := d.dialect.Rebind(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(cols, ", "), placeholders(len(cols))))

	id, err := d.dialect.InsertID(ctx, q, query, idCol, args...)
	if err != nil {
		return 0, &allocation.WriteError{Table: table, Op: "insert", Err: err}
	}
	return id, nil
}

// =============================================================================
// RUN EVENTS
// =============================================================================

// LogRunEvent writes a run event into system_event_log when that table
// exists. A missing table is not an error.
func (d *DAL) LogRunEvent(ctx context.Context, ev allocation.RunEvent) error {
	ok, err := d.hasTable(ctx, schema.TableEventLog)
	if err != nil || !ok {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = d.now()
	}
	data, err := json.Marshal(map[string]any{"event_id": ev.ID, "run_id": ev.RunID})
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("failed to encode event details: %w", err)
	}

	_, err = d.insert(ctx, d.db, schema.TableEventLog, "", []field{
		{"event_type", ev.Type},
		{"event_data", string(data)},
		{"source_module", allocation.SourceModule},
		{"actor_type", "system"},
		{"actor_id", allocation.SourceModule},
		{"target_type", "transfer_run"},
		{"target_id", ev.RunID},
		{"summary", ev.Summary},
		{"details_json", string(details)},
		{"severity", ev.Severity},
		{"created_at", ev.CreatedAt.Format(timestampLayout)},
	})
	return err
}
