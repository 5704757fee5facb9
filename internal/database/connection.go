/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - PostgreSQL Connection
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

// ApplicationName is reported to PostgreSQL in pg_stat_activity
const ApplicationName = "OPF Community Directory"

// Connect opens a pgx pool for the member directory. Sessions are read-only:
// member records are maintained by the import tooling, never by this service.
func Connect(ctx context.Context, dbConfig config.DatabaseConfig) (*pgxpool.Pool, error) {
	startTime := time.Now()
	connStr := dbConfig.BuildConnectionString()

	enhancedConnStr, err := addApplicationName(connStr, ApplicationName)
	if err != nil {
		return nil, fmt.Errorf("unable to enhance connection string: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(enhancedConnStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if dbConfig.PoolMaxConns > 0 {
		poolConfig.MaxConns = int32(dbConfig.PoolMaxConns)
	}
	if dbConfig.PoolMinConns > 0 {
		poolConfig.MinConns = int32(dbConfig.PoolMinConns)
	}
	if dbConfig.PoolMaxConnIdleTime != "" {
		idleTime, err := time.ParseDuration(dbConfig.PoolMaxConnIdleTime)
		if err != nil {
			return nil, fmt.Errorf("invalid pool_max_conn_idle_time: %w", err)
		}
		poolConfig.MaxConnIdleTime = idleTime
	}

	if GetLogLevel() >= LogLevelDebug {
		LogConnectionDetails(connStr, map[string]interface{}{
			"max_conns":          poolConfig.MaxConns,
			"min_conns":          poolConfig.MinConns,
			"max_conn_lifetime":  poolConfig.MaxConnLifetime,
			"max_conn_idle_time": poolConfig.MaxConnIdleTime,
		})
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}
	poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(connStr, time.Since(startTime), nil)
	return pool, nil
}

// addApplicationName adds application_name parameter to a PostgreSQL connection string
func addApplicationName(connStr, appName string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid connection string: %w", err)
	}

	query := u.Query()
	if !query.Has("application_name") {
		query.Set("application_name", appName)
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

// columnsQuery lists a table's columns in ordinal order within the current
// schema search path.
const columnsQuery = `
	SELECT column_name, data_type
	FROM information_schema.columns
	WHERE table_name = $1
	  AND table_schema = ANY (current_schemas(false))
	ORDER BY ordinal_position`

// IntrospectColumns returns the columns of table as registry input.
func IntrospectColumns(ctx context.Context, pool *pgxpool.Pool, table string) ([]registry.Column, error) {
	startTime := time.Now()

	rows, err := pool.Query(ctx, columnsQuery, table)
	if err != nil {
		LogIntrospection(table, 0, time.Since(startTime), err)
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
	if err := rows.Err(); err != nil {
		LogIntrospection(table, len(columns), time.Since(startTime), err)
		return nil, fmt.Errorf("failed to introspect %s: %w", table, err)
	}

	LogIntrospection(table, len(columns), time.Since(startTime), nil)
	return columns, nil
}

// LogStats records the pool's current usage.
func LogStats(pool *pgxpool.Pool, connStr string) {
	stat := pool.Stat()
	LogPoolStats(connStr, stat.AcquiredConns(), stat.IdleConns(), stat.MaxConns())
}
