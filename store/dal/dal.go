/*
Package dal is the SQL data access layer for the allocation engine.

PURPOSE:
  Implements allocation.Store over database/sql. Every physical column
  name comes from the schema resolver, so the same queries run against
  differently-named Vend installs. Reads are bulk; writes only happen on
  a transaction obtained from Begin.

DIALECTS:
  MySQL (production), PostgreSQL, SQLite (dev/test). Queries are written
  with ? placeholders and rebound by the dialect.

CONSTRAINTS:
  - Reads never mutate.
  - Writes fail loudly: every prepare/exec error is returned wrapped with
    the driver's message. Nothing retries.
  - Timestamps are passed as 'YYYY-MM-DD HH:MM:SS' strings so comparisons
    behave the same on TEXT (sqlite) and DATETIME/TIMESTAMP columns.

USAGE:
  d := dal.New(db, dal.MySQL{})
  if err := d.Validate(ctx); err != nil { ... }
  eng, _ := engine.New(d, params)

SEE ALSO:
  - allocation/store.go: the contract
  - schema/: column resolution
  - store/sqlite, store/mysql, store/postgres: connection setup
*/
package dal

import (
	"context"
	"database/sql"
	"time"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/schema"
)

// Compile-time checks.
var (
	_ allocation.Store       = (*DAL)(nil)
	_ allocation.EventLogger = (*DAL)(nil)
	_ schema.Introspector    = (*introspector)(nil)
)

const timestampLayout = "2006-01-02 15:04:05"

// Options tune the new-store heuristic and demand window.
type Options struct {
	// NewStoreMinInventoryRows: an outlet stocking fewer products is a new-store candidate.
	NewStoreMinInventoryRows int
	// NoSalesDays: a new-store candidate must have no sales in this window.
	NoSalesDays int
	// DemandWindowDays is the trailing sales window read by DemandBulk.
	DemandWindowDays int
	// ChunkSize caps the number of ids bound into one IN list.
	ChunkSize int
}

// DefaultOptions are 20 rows, 90 days, 90 days, 500 ids.
func DefaultOptions() Options {
	return Options{
		NewStoreMinInventoryRows: 20,
		NoSalesDays:              90,
		DemandWindowDays:         90,
		ChunkSize:                500,
	}
}

// Option configures a DAL.
type Option func(*DAL)

// WithOptions replaces the tuning options. Zero fields keep their defaults.
func WithOptions(o Options) Option {
	return func(d *DAL) {
		def := DefaultOptions()
		if o.NewStoreMinInventoryRows <= 0 {
			o.NewStoreMinInventoryRows = def.NewStoreMinInventoryRows
		}
		if o.NoSalesDays <= 0 {
			o.NoSalesDays = def.NoSalesDays
		}
		if o.DemandWindowDays <= 0 {
			o.DemandWindowDays = def.DemandWindowDays
		}
		if o.ChunkSize <= 0 {
			o.ChunkSize = def.ChunkSize
		}
		d.opts = o
	}
}

// WithClock overrides the time source used for trailing windows.
func WithClock(now func() time.Time) Option {
	return func(d *DAL) { d.now = now }
}

// WithMapping overrides the synonym table.
func WithMapping(m schema.Mapping) Option {
	return func(d *DAL) { d.mapping = m }
}

// DAL implements allocation.Store over database/sql.
type DAL struct {
	db      *sql.DB
	dialect Dialect
	mapping schema.Mapping
	schema  *schema.Resolver
	opts    Options
	now     func() time.Time
}

// New builds a DAL. The resolver caches column lists for the DAL's
// lifetime, so build a new DAL after schema changes.
func New(db *sql.DB, dialect Dialect, opts ...Option) *DAL {
	d := &DAL{
		db:      db,
		dialect: dialect,
		mapping: schema.DefaultMapping,
		opts:    DefaultOptions(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.schema = schema.NewResolver(&introspector{db: db, dialect: dialect}, d.mapping)
	return d
}

// DB returns the underlying handle.
func (d *DAL) DB() *sql.DB { return d.db }

// Dialect returns the SQL dialect.
func (d *DAL) Dialect() Dialect { return d.dialect }

// Resolver returns the schema resolver.
func (d *DAL) Resolver() *schema.Resolver { return d.schema }

// Validate checks the synonym table against the live database.
func (d *DAL) Validate(ctx context.Context) error {
	return d.schema.Validate(ctx)
}

// Ping checks connectivity.
func (d *DAL) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

type introspector struct {
	db      *sql.DB
	dialect Dialect
}

func (i *introspector) ListColumns(ctx context.Context, table string) ([]string, error) {
	return i.dialect.ListColumns(ctx, i.db, table)
}

func (i *introspector) TableExists(ctx context.Context, table string) (bool, error) {
	return i.dialect.TableExists(ctx, i.db, table)
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// col resolves a required column qualified by alias.
func (d *DAL) col(ctx context.Context, table, role, alias string) (string, error) {
	name, err := d.schema.Column(ctx, table, role)
	if err != nil {
		return "", err
	}
	if alias == "" {
		return name, nil
	}
	return alias + "." + name, nil
}

// optCol resolves an optional column qualified by alias, or NULL.
func (d *DAL) optCol(ctx context.Context, table, role, alias string) string {
	name, ok := d.schema.Optional(ctx, table, role)
	if !ok {
		return "NULL"
	}
	if alias == "" {
		return name
	}
	return alias + "." + name
}

func (d *DAL) hasTable(ctx context.Context, table string) (bool, error) {
	return d.schema.TableExists(ctx, table)
}

func (d *DAL) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *DAL) since(days int) string {
	return d.now().AddDate(0, 0, -days).Format("2006-01-02") + " 00:00:00"
}
