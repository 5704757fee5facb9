/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Search Predicate Builder
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package predicate turns comma-separated keywords and structured filters
// into a parameterized WHERE clause over the columns of a field registry.
//
// Every keyword becomes one group: a case-insensitive substring match OR-ed
// across all searchable text columns. Groups are combined with AND (primary
// search) or OR (candidate gathering for ranking). Filter clauses are always
// AND-ed onto the result. Values are only ever bound as parameters.
package predicate

import (
	"fmt"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

// Mode controls how keyword groups are combined.
type Mode int

const (
	ModeAND Mode = iota
	ModeOR
)

func (m Mode) String() string {
	if m == ModeOR {
		return "or"
	}
	return "and"
}

// ParseMode accepts "and" / "or" (any case); empty means AND.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return ModeAND, nil
	case "or":
		return ModeOR, nil
	}
	return ModeAND, fmt.Errorf("unknown search mode %q", s)
}

// Filters maps a filter category to the values selected for it.
type Filters map[registry.FilterCategory][]string

// SQLiteLowerFunc is the Unicode-aware lower-casing function the SQLite
// directory store registers. SQLite's built-in LOWER only folds ASCII.
const SQLiteLowerFunc = "opf_lower"

// FoldCase lower-cases a value the way Dialect.Lower folds a column.
func FoldCase(s string) string {
	return strings.ToLower(s)
}

// Dialect renders placeholders and case folding for a SQL engine.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	// Lower wraps a column expression so it compares equal to FoldCase
	// of the same text.
	Lower(expr string) string
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) Lower(expr string) string { return "LOWER(" + expr + ")" }

type sqliteDialect struct{}

func (sqliteDialect) Name() string             { return "sqlite" }
func (sqliteDialect) Placeholder(int) string   { return "?" }
func (sqliteDialect) Lower(expr string) string { return SQLiteLowerFunc + "(" + expr + ")" }

var (
	// Postgres numbers parameters $1, $2, ...
	Postgres Dialect = postgresDialect{}
	// SQLite uses positional ? parameters.
	SQLite Dialect = sqliteDialect{}
)

// Predicate is a built WHERE clause. An empty SQL string matches every row.
type Predicate struct {
	SQL  string
	Args []any

	// Keywords are the normalized keywords the groups were built from.
	Keywords []string
	// KeywordGroups is the number of keyword groups; TermsPerGroup is the
	// number of OR-ed column terms in each.
	KeywordGroups int
	TermsPerGroup int
	// FilterClauses counts the AND-ed filter comparisons.
	FilterClauses int
	Mode          Mode
}

// MatchAll reports whether the predicate selects every row.
func (p Predicate) MatchAll() bool {
	return p.SQL == ""
}

// Where returns " WHERE <sql>" or "" for a match-all predicate.
func (p Predicate) Where() string {
	if p.SQL == "" {
		return ""
	}
	return " WHERE " + p.SQL
}

// ParseKeywords splits on commas, trims, case-folds and drops empty pieces.
func ParseKeywords(keywords string) []string {
	var out []string
	for _, piece := range strings.Split(keywords, ",") {
		piece = FoldCase(strings.TrimSpace(piece))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// QuoteIdent double-quotes a column or table name.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EscapeLike neutralizes LIKE wildcards so a value matches literally. The
// result is meant for use with ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

// Build constructs the predicate. Only columns present in reg are referenced.
func Build(keywords string, filters Filters, reg *registry.Registry, mode Mode, dialect Dialect) Predicate {
	b := &builder{dialect: dialect}
	p := Predicate{Mode: mode, Keywords: ParseKeywords(keywords)}

	fields := reg.SearchableFields()
	p.TermsPerGroup = len(fields)

	var groups []string
	if len(fields) > 0 {
		for _, kw := range p.Keywords {
			pattern := "%" + EscapeLike(kw) + "%"
			terms := make([]string, 0, len(fields))
			for _, field := range fields {
				terms = append(terms, fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, dialect.Lower(QuoteIdent(field)), b.bind(pattern)))
			}
			groups = append(groups, "("+strings.Join(terms, " OR ")+")")
		}
	}
	p.KeywordGroups = len(groups)

	var clauses []string
	if len(groups) > 0 {
		joiner := " AND "
		if mode == ModeOR {
			joiner = " OR "
		}
		keywordExpr := strings.Join(groups, joiner)
		if len(groups) > 1 && mode == ModeOR {
			keywordExpr = "(" + keywordExpr + ")"
		}
		clauses = append(clauses, keywordExpr)
	}

	for _, binding := range reg.Filters() {
		for _, value := range filters[binding.Category] {
			if strings.TrimSpace(value) == "" {
				continue
			}
			col := QuoteIdent(binding.Column)
			switch binding.Match {
			case registry.MatchExact:
				clauses = append(clauses, fmt.Sprintf("%s = %s", col, b.bind(value)))
			default:
				pattern := "%" + EscapeLike(FoldCase(value)) + "%"
				clauses = append(clauses, fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, dialect.Lower(col), b.bind(pattern)))
			}
			p.FilterClauses++
		}
	}

	p.SQL = strings.Join(clauses, " AND ")
	p.Args = b.args
	return p
}
