/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Member Record Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"context"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

// Store is the read side of the member table.
type Store interface {
	// Dialect selects placeholder syntax for built predicates.
	Dialect() predicate.Dialect
	// Columns introspects the table in ordinal order.
	Columns(ctx context.Context, table string) ([]registry.Column, error)
	// QueryMembers runs a SELECT whose result columns are member fields.
	QueryMembers(ctx context.Context, query string, args ...any) ([]Member, error)
	// QueryStrings runs a single-column SELECT.
	QueryStrings(ctx context.Context, query string, args ...any) ([]string, error)
	// Count runs a SELECT COUNT(*) style query.
	Count(ctx context.Context, query string, args ...any) (int, error)
	// SortCollation is appended to ORDER BY terms for byte-wise ordering.
	SortCollation() string
	Close() error
}
