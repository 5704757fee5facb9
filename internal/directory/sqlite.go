/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - SQLite Member Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/database"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(predicate.SQLiteLowerFunc, 1, foldCase)
}

// foldCase backs predicate.SQLiteLowerFunc. Non-text values pass through
// so comparisons against numeric columns behave like LOWER.
func foldCase(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return predicate.FoldCase(v), nil
	case []byte:
		return predicate.FoldCase(string(v)), nil
	default:
		return v, nil
	}
}

// SQLiteStore reads members from a local SQLite export of the member table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle for imports and test fixtures.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Dialect() predicate.Dialect {
	return predicate.SQLite
}

// SortCollation is empty: SQLite's default BINARY collation is byte-wise.
func (s *SQLiteStore) SortCollation() string {
	return ""
}

func (s *SQLiteStore) Columns(ctx context.Context, table string) ([]registry.Column, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		database.LogIntrospection(table, 0, time.Since(start), err)
		return nil, fmt.Errorf("failed to introspect %s: %w", table, err)
	}
	defer rows.Close()

	var columns []registry.Column
	for rows.Next() {
		var col registry.Column
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, col)
	}
	err = rows.Err()
	database.LogIntrospection(table, len(columns), time.Since(start), err)
	return columns, err
}

func (s *SQLiteStore) QueryMembers(ctx context.Context, query string, args ...any) ([]Member, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, args, time.Since(start), 0, err)
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var members []Member
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			database.LogQuery(query, args, time.Since(start), len(members), err)
			return nil, err
		}
		m := make(Member, len(names))
		for i, name := range names {
			m[name] = stringify(values[i])
		}
		members = append(members, m)
	}
	err = rows.Err()
	database.LogQuery(query, args, time.Since(start), len(members), err)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *SQLiteStore) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, args, time.Since(start), 0, err)
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	err = rows.Err()
	database.LogQuery(query, args, time.Since(start), len(out), err)
	return out, err
}

func (s *SQLiteStore) Count(ctx context.Context, query string, args ...any) (int, error) {
	start := time.Now()
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	database.LogQuery(query, args, time.Since(start), 1, err)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
