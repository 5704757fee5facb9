/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Directory Search Service
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

// MaxCandidates caps OR-mode searches, which only feed the ranker.
const MaxCandidates = 50

// SearchRequest is a directory search as submitted by clients.
type SearchRequest struct {
	Keyword string
	Filters predicate.Filters
}

// Stats summarises the member table.
type Stats struct {
	TotalRecords         int `json:"total_records"`
	RecordsWithLinkedins int `json:"records_with_linkedins"`
	RecordsWithResumes   int `json:"records_with_resumes"`
}

// Service searches the member directory.
type Service struct {
	store Store
	table string

	mu  sync.RWMutex
	reg *registry.Registry
}

// NewService introspects table once and returns a ready service.
func NewService(ctx context.Context, store Store, table string) (*Service, error) {
	s := &Service{store: store, table: table}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-reads the schema. Newly added columns become searchable.
func (s *Service) Refresh(ctx context.Context) error {
	columns, err := s.store.Columns(ctx, s.table)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "directory.refresh", err)
	}
	if len(columns) == 0 {
		return apperr.New(apperr.KindStoreUnavailable, "directory.refresh",
			fmt.Sprintf("member table %q not found or has no columns", s.table))
	}

	reg := registry.New(columns, registry.DefaultFilterBindings())

	s.mu.Lock()
	if s.reg != nil {
		if added := s.reg.Diff(reg); len(added) > 0 {
			logging.Info("member table gained columns", "table", s.table, "columns", added)
		}
	}
	s.reg = reg
	s.mu.Unlock()

	logging.Debug("member registry loaded", "table", s.table,
		"columns", reg.Len(), "searchable", len(reg.SearchableFields()))
	return nil
}

// Registry returns the current field registry.
func (s *Service) Registry() *registry.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg
}

// Search returns every member matching the request in canonical name order.
// OR mode is capped at MaxCandidates.
func (s *Service) Search(ctx context.Context, req SearchRequest, mode predicate.Mode) ([]Member, error) {
	reg := s.Registry()
	pred := predicate.Build(req.Keyword, req.Filters, reg, mode, s.store.Dialect())

	query := s.selectQuery(reg) + pred.Where() + s.orderBy(reg)
	if mode == predicate.ModeOR {
		query += fmt.Sprintf(" LIMIT %d", MaxCandidates)
	}

	members, err := s.store.QueryMembers(ctx, query, pred.Args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "directory.search", err)
	}

	logging.Debug("directory search", "mode", mode.String(), "keywords", len(pred.Keywords),
		"filters", pred.FilterClauses, "results", len(members))
	if members == nil {
		members = []Member{}
	}
	return members, nil
}

// SearchKeywords runs a keyword-only search over already-split phrases.
func (s *Service) SearchKeywords(ctx context.Context, keywords []string, mode predicate.Mode) ([]Member, error) {
	return s.Search(ctx, SearchRequest{Keyword: strings.Join(keywords, ", ")}, mode)
}

// Stats counts members and how many have a LinkedIn profile or resume.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	reg := s.Registry()
	table := predicate.QuoteIdent(s.table)

	var stats Stats
	var err error
	if stats.TotalRecords, err = s.store.Count(ctx, "SELECT COUNT(*) FROM "+table); err != nil {
		return Stats{}, apperr.Wrap(apperr.KindStoreUnavailable, "directory.stats", err)
	}

	nonEmpty := func(col string) (int, error) {
		if !reg.Has(col) {
			return 0, nil
		}
		c := predicate.QuoteIdent(col)
		return s.store.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s <> ''", table, c, c))
	}
	if stats.RecordsWithLinkedins, err = nonEmpty("linkedin"); err != nil {
		return Stats{}, apperr.Wrap(apperr.KindStoreUnavailable, "directory.stats", err)
	}
	if stats.RecordsWithResumes, err = nonEmpty("resume"); err != nil {
		return Stats{}, apperr.Wrap(apperr.KindStoreUnavailable, "directory.stats", err)
	}
	return stats, nil
}

// GetByEmail looks a member up by their unique email.
func (s *Service) GetByEmail(ctx context.Context, email string) (Member, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.New(apperr.KindInputValidation, "directory.get", "email is required")
	}
	reg := s.Registry()
	if !reg.Has("email") {
		return nil, apperr.New(apperr.KindStoreUnavailable, "directory.get", "member table has no email column")
	}

	query := fmt.Sprintf("%s WHERE %s = %s LIMIT 1", s.selectQuery(reg),
		predicate.QuoteIdent("email"), s.store.Dialect().Placeholder(1))
	members, err := s.store.QueryMembers(ctx, query, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "directory.get", err)
	}
	if len(members) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "directory.get", "no member with email "+email)
	}
	return members[0], nil
}

// FilterOptions lists the distinct values available for each filter.
// Comma-packed columns are split into individual values.
func (s *Service) FilterOptions(ctx context.Context) (map[registry.FilterCategory][]string, error) {
	reg := s.Registry()
	table := predicate.QuoteIdent(s.table)

	out := make(map[registry.FilterCategory][]string)
	for _, b := range reg.Filters() {
		col := predicate.QuoteIdent(b.Column)
		raw, err := s.store.QueryStrings(ctx,
			fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND %s <> ''", col, table, col, col))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "directory.filters", err)
		}

		seen := make(map[string]bool)
		var values []string
		for _, v := range raw {
			parts := []string{v}
			if b.Match == registry.MatchSubstring {
				parts = strings.Split(v, ",")
			}
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" && !seen[p] {
					seen[p] = true
					values = append(values, p)
				}
			}
		}
		sort.Strings(values)
		out[b.Category] = values
	}
	return out, nil
}

func (s *Service) selectQuery(reg *registry.Registry) string {
	names := reg.Names()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = predicate.QuoteIdent(n)
	}
	return "SELECT " + strings.Join(quoted, ", ") + " FROM " + predicate.QuoteIdent(s.table)
}

// orderBy sorts by first then last name with absent names as "", and the row
// id as the final tie-breaker so equal names keep a reproducible order.
func (s *Service) orderBy(reg *registry.Registry) string {
	collation := s.store.SortCollation()
	var terms []string
	for _, col := range []string{"first_name", "last_name"} {
		if reg.Has(col) {
			terms = append(terms, fmt.Sprintf("COALESCE(%s, '')%s", predicate.QuoteIdent(col), collation))
		}
	}
	if reg.Has("id") {
		terms = append(terms, predicate.QuoteIdent("id"))
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}
