/*
Package mysql opens the production Vend database.

PURPOSE:
  Builds a DSN with go-sql-driver's Config (parseTime on, UTC), sizes the
  connection pool and returns the SQL data access layer over it. Schema is
  owned by Vend; nothing here migrates.

SEE ALSO:
  - store/dal: queries and writes
  - store/postgres: the PostgreSQL equivalent
*/
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/store/dal"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// Config is the connection setup.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// DSN, when set, is used as-is and the fields above are ignored.
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// FormatDSN renders the driver DSN.
func (c Config) FormatDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	cfg := driver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Store is a DAL over a MySQL connection pool.
type Store struct {
	*dal.DAL
	db *sql.DB
}

// New opens the pool and pings it.
func New(ctx context.Context, c Config, opts ...dal.Option) (*Store, error) {
	db, err := sql.Open("mysql", c.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	maxOpen, maxIdle := c.MaxOpenConns, c.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return &Store{DAL: dal.New(db, dal.MySQL{}, opts...), db: db}, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsDuplicateKey reports a unique-constraint violation (error 1062).
func IsDuplicateKey(err error) bool {
	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
