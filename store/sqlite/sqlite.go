/*
Package sqlite provides a SQLite-backed allocation store for development,
demos and tests.

PURPOSE:
  Opens a SQLite database, applies the embedded goose migrations (a
  Vend-shaped retail schema) and exposes the SQL data access layer over
  it. Production runs against MySQL through store/mysql; the queries are
  the same, only the dialect differs.

SCHEMA NOTES:
  The dev schema deliberately uses alternate column spellings
  (current_amount, turn_over_rate, website_active) and keeps outlet and
  date on vend_sales rather than on line items, so the synonym resolver
  and the sales join path are exercised on every test run.

CONCURRENCY:
  One open connection. ":memory:" databases live on a single connection,
  and SQLite allows one writer anyway.

USAGE:
  store, err := sqlite.New(":memory:")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/dal: the data access layer
  - fixture.go: test/demo data builder
  - migrations/: goose SQL migrations
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/dal"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a DAL over a migrated SQLite database.
type Store struct {
	*dal.DAL
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...dal.Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{DAL: dal.New(db, dal.SQLite{}, opts...), db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Exec runs a statement directly. Used by tests and demo loaders.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

var resetOrder = []string{
	"system_event_log",
	"stock_products_to_transfer",
	"stock_transfers",
	"freight_rules",
	"category_weights",
	"product_classification_unified",
	"product_types",
	"vend_sales_line_items",
	"vend_sales",
	"vend_inventory",
	"vend_products",
	"vend_brands",
	"vend_suppliers",
	"vend_outlets",
}

// Reset deletes every row. Dev only.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, t := range resetOrder {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// TransferRow is a persisted transfer header as read back for inspection.
type TransferRow struct {
	ID            int64
	From, To      string
	DeliveryMode  string
	RunID         string
	ProductCount  int
	TotalQuantity int
}

// TransferLineRow is a persisted transfer line.
type TransferLineRow struct {
	TransferID int64
	ProductID  string
	Qty        int
	OptimalQty int
}

// Transfers lists persisted transfer headers ordered by id.
func (s *Store) Transfers(ctx context.Context) ([]TransferRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transfer_id, outlet_from, outlet_to, COALESCE(delivery_mode, ''), COALESCE(run_id, ''),
		       product_count, total_quantity
		FROM stock_transfers ORDER BY transfer_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var out []TransferRow
	for rows.Next() {
		var r TransferRow
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.DeliveryMode, &r.RunID, &r.ProductCount, &r.TotalQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransferLines lists persisted lines ordered by transfer then product.
func (s *Store) TransferLines(ctx context.Context) ([]TransferLineRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transfer_id, product_id, qty_to_transfer, COALESCE(optimal_qty, 0)
		FROM stock_products_to_transfer ORDER BY transfer_id, product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer lines: %w", err)
	}
	defer rows.Close()

	var out []TransferLineRow
	for rows.Next() {
		var r TransferLineRow
		if err := rows.Scan(&r.TransferID, &r.ProductID, &r.Qty, &r.OptimalQty); err != nil {
			return nil, fmt.Errorf("failed to scan transfer line: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
