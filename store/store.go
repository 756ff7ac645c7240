// Package store opens an allocation store for a configured driver.
package store

import (
	"context"
	"fmt"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/dal"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/mysql"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/postgres"
	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/sqlite"
)

// Handle is an open store.
type Handle interface {
	allocation.Store
	allocation.EventLogger
	Validate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to driver ("mysql", "postgres", "sqlite3") at dsn. For
// sqlite the dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string, opts ...dal.Option) (Handle, error) {
	switch driver {
	case "mysql":
		return mysql.New(ctx, mysql.Config{DSN: dsn}, opts...)
	case "postgres", "pgx":
		return postgres.New(ctx, dsn, opts...)
	case "sqlite", "sqlite3":
		return sqlite.New(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
