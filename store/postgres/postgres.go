// Package postgres opens a PostgreSQL copy of the retail schema through
// pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/dal"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var (
	credentialsPattern = regexp.MustCompile(`://[^@\s]+@`)
	passwordPattern    = regexp.MustCompile(`(?i)(password=)([^\s&]+)`)
)

// Store is a DAL over a PostgreSQL connection pool.
type Store struct {
	*dal.DAL
	db *sql.DB
}

// New opens the pool for a pgx connection string and pings it.
func New(ctx context.Context, dsn string, opts ...dal.Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %s", sanitize(err))
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %s", sanitize(err))
	}
	return &Store{DAL: dal.New(db, dal.Postgres{}, opts...), db: db}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// sanitize strips credentials that drivers echo back in errors.
func sanitize(err error) string {
	msg := credentialsPattern.ReplaceAllString(err.Error(), "://***@")
	return passwordPattern.ReplaceAllString(msg, "${1}***")
}
