package dal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect hides the SQL differences between supported databases.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect interface {
	Name() string
	Rebind(query string) string
	ListColumns(ctx context.Context, q querier, table string) ([]string, error)
	TableExists(ctx context.Context, q querier, table string) (bool, error)
	// InsertID executes an INSERT and returns the generated key of idColumn.
	InsertID(ctx context.Context, q querier, query, idColumn string, args ...any) (int64, error)
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func listColumns(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func countPositive(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func lastInsertID(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// =============================================================================
// MYSQL
// =============================================================================

// MySQL uses INFORMATION_SCHEMA scoped to the connected database.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Rebind(query string) string { return query }

func (MySQL) ListColumns(ctx context.Context, q querier, table string) ([]string, error) {
	return listColumns(ctx, q, `
		SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
}

func (MySQL) TableExists(ctx context.Context, q querier, table string) (bool, error) {
	return countPositive(ctx, q, `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, table)
}

func (MySQL) InsertID(ctx context.Context, q querier, query, _ string, args ...any) (int64, error) {
	return lastInsertID(ctx, q, query, args...)
}

// =============================================================================
// SQLITE
// =============================================================================

// SQLite reads pragma_table_info and sqlite_master.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) Rebind(query string) string { return query }

func (SQLite) ListColumns(ctx context.Context, q querier, table string) ([]string, error) {
	return listColumns(ctx, q, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
}

func (SQLite) TableExists(ctx context.Context, q querier, table string) (bool, error) {
	return countPositive(ctx, q, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ?`, table)
}

func (SQLite) InsertID(ctx context.Context, q querier, query, _ string, args ...any) (int64, error) {
	return lastInsertID(ctx, q, query, args...)
}

// =============================================================================
// POSTGRES
// =============================================================================

// Postgres uses $n placeholders and RETURNING for generated keys.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

// Rebind rewrites ? placeholders as $1..$n. Queries never carry a literal ?.
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (p Postgres) ListColumns(ctx context.Context, q querier, table string) ([]string, error) {
	return listColumns(ctx, q, p.Rebind(`
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
		ORDER BY ordinal_position`), table)
}

func (p Postgres) TableExists(ctx context.Context, q querier, table string) (bool, error) {
	return countPositive(ctx, q, p.Rebind(`
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = ?`), table)
}

func (Postgres) InsertID(ctx context.Context, q querier, query, idColumn string, args ...any) (int64, error) {
	if idColumn == "" {
		_, err := q.ExecContext(ctx, query, args...)
		return 0, err
	}
	var id int64
	err := q.QueryRowContext(ctx, query+" RETURNING "+idColumn, args...).Scan(&id)
	return id, err
}
