/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Member Field Registry
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package registry holds the typed list of member-table columns that the
// predicate builder is allowed to reference. It is built once from the live
// schema so columns added to the member table become searchable without code
// changes.
package registry

import (
	"sort"
	"strings"
)

// Kind classifies a column by how it may be searched.
type Kind int

const (
	KindOther Kind = iota
	KindText
	KindNumeric
	KindIdentifier
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindIdentifier:
		return "identifier"
	default:
		return "other"
	}
}

// MatchMode says how a filter value is compared against its column.
// Substring matches fold case on both sides and exact matches compare
// bytes, on every backend. Keyword search follows the substring rule.
// SQLite folds with Go's Unicode tables; Postgres folds with LOWER under the
// database's LC_CTYPE.
type MatchMode int

const (
	// MatchSubstring is used for comma-packed, multi-valued columns.
	// "linkedin" matches "LinkedIn, Referral".
	MatchSubstring MatchMode = iota
	// MatchExact is used for single-valued bucket labels. Case matters.
	MatchExact
)

// FilterCategory names a structured filter offered to clients.
type FilterCategory string

const (
	FilterSource                   FilterCategory = "source"
	FilterExperience               FilterCategory = "experience"
	FilterSustainabilityExperience FilterCategory = "sustainability_experience"
	FilterCompetencies             FilterCategory = "competencies"
	FilterSectors                  FilterCategory = "sectors"
)

// Column is one introspected column in ordinal order.
type Column struct {
	Name     string
	DataType string
}

// Field is a registered column.
type Field struct {
	Name       string
	DataType   string
	Kind       Kind
	Searchable bool
}

// FilterBinding ties a filter category to a column and a match mode.
type FilterBinding struct {
	Category FilterCategory
	Column   string
	Match    MatchMode
}

// DefaultFilterBindings returns the member-table filters. Bucket labels match
// exactly, tag lists match by substring.
func DefaultFilterBindings() []FilterBinding {
	return []FilterBinding{
		{Category: FilterSource, Column: "source", Match: MatchSubstring},
		{Category: FilterExperience, Column: "years_xp", Match: MatchExact},
		{Category: FilterSustainabilityExperience, Column: "years_sustainability_xp", Match: MatchExact},
		{Category: FilterCompetencies, Column: "key_competencies", Match: MatchSubstring},
		{Category: FilterSectors, Column: "key_sectors", Match: MatchSubstring},
	}
}

// Registry is an immutable view of the member table's columns.
type Registry struct {
	fields  []Field
	byName  map[string]int
	filters []FilterBinding
}

// New builds a registry from introspected columns. Filter bindings whose
// column does not exist are dropped.
func New(columns []Column, bindings []FilterBinding) *Registry {
	r := &Registry{byName: make(map[string]int, len(columns))}

	for _, col := range columns {
		if col.Name == "" {
			continue
		}
		if _, dup := r.byName[col.Name]; dup {
			continue
		}
		kind := classify(col.Name, col.DataType)
		r.byName[col.Name] = len(r.fields)
		r.fields = append(r.fields, Field{
			Name:       col.Name,
			DataType:   col.DataType,
			Kind:       kind,
			Searchable: kind == KindText,
		})
	}

	for _, b := range bindings {
		if _, ok := r.byName[b.Column]; ok {
			r.filters = append(r.filters, b)
		}
	}

	return r
}

// Fields returns every registered column in ordinal order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Names returns every registered column name in ordinal order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// SearchableFields returns the text columns keyword groups are built over.
func (r *Registry) SearchableFields() []string {
	var names []string
	for _, f := range r.fields {
		if f.Searchable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Has reports whether name is a registered column.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Field looks up a column by name.
func (r *Registry) Field(name string) (Field, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Filter returns the binding for a category, if its column exists.
func (r *Registry) Filter(category FilterCategory) (FilterBinding, bool) {
	for _, b := range r.filters {
		if b.Category == category {
			return b, true
		}
	}
	return FilterBinding{}, false
}

// Filters returns the active bindings in declaration order.
func (r *Registry) Filters() []FilterBinding {
	out := make([]FilterBinding, len(r.filters))
	copy(out, r.filters)
	return out
}

// Len is the number of registered columns.
func (r *Registry) Len() int {
	return len(r.fields)
}

// Diff lists columns present in other but not in r, sorted. Used to log
// schema drift when the registry is refreshed.
func (r *Registry) Diff(other *Registry) []string {
	var added []string
	for _, f := range other.fields {
		if !r.Has(f.Name) {
			added = append(added, f.Name)
		}
	}
	sort.Strings(added)
	return added
}

func classify(name, dataType string) Kind {
	if strings.EqualFold(name, "id") {
		return KindIdentifier
	}
	switch {
	case isTextColumn(dataType):
		return KindText
	case isNumericColumn(dataType):
		return KindNumeric
	default:
		return KindOther
	}
}

// isTextColumn checks if a data type represents text. Covers PostgreSQL type
// names and SQLite's TEXT affinity rules.
func isTextColumn(dataType string) bool {
	textTypes := []string{
		"text",
		"character varying",
		"varchar",
		"character",
		"char",
		"clob",
		"string",
		"citext",
		"bpchar",
		"name",
	}

	lowerType := strings.ToLower(dataType)
	for _, textType := range textTypes {
		if strings.Contains(lowerType, textType) {
			return true
		}
	}
	return false
}

func isNumericColumn(dataType string) bool {
	numericTypes := []string{"int", "serial", "numeric", "decimal", "real", "double", "float", "money"}

	lowerType := strings.ToLower(dataType)
	for _, numericType := range numericTypes {
		if strings.Contains(lowerType, numericType) {
			return true
		}
	}
	return false
}
