/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - PostgreSQL Member Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/database"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

// PostgresStore reads members through a pgx pool.
type PostgresStore struct {
	pool    *pgxpool.Pool
	connStr string
}

// OpenPostgres connects to the directory database.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, connStr: cfg.BuildConnectionString()}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Dialect() predicate.Dialect {
	return predicate.Postgres
}

// SortCollation forces byte-wise ordering regardless of the database locale.
func (s *PostgresStore) SortCollation() string {
	return ` COLLATE "C"`
}

func (s *PostgresStore) Columns(ctx context.Context, table string) ([]registry.Column, error) {
	return database.IntrospectColumns(ctx, s.pool, table)
}

func (s *PostgresStore) QueryMembers(ctx context.Context, query string, args ...any) ([]Member, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, args, time.Since(start), 0, err)
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var members []Member
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			database.LogQuery(query, args, time.Since(start), len(members), err)
			return nil, err
		}
		m := make(Member, len(fields))
		for i, fd := range fields {
			m[fd.Name] = stringify(values[i])
		}
		members = append(members, m)
	}
	err = rows.Err()
	database.LogQuery(query, args, time.Since(start), len(members), err)
	if err != nil {
		return nil, err
	}
	if s.connStr != "" {
		database.LogStats(s.pool, s.connStr)
	}
	return members, nil
}

func (s *PostgresStore) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, args, time.Since(start), 0, err)
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v *string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, *v)
		}
	}
	err = rows.Err()
	database.LogQuery(query, args, time.Since(start), len(out), err)
	return out, err
}

func (s *PostgresStore) Count(ctx context.Context, query string, args ...any) (int, error) {
	start := time.Now()
	var n int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&n)
	database.LogQuery(query, args, time.Since(start), 1, err)
	return int(n), err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
