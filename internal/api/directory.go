/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Directory Endpoints
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package api

import (
	"net/http"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/registry"
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Keyword                         string   `json:"keyword"`
	SourceFilters                   []string `json:"source_filters"`
	ExperienceFilters               []string `json:"experience_filters"`
	SustainabilityExperienceFilters []string `json:"sustainability_experience_filters"`
	CompetenciesFilters             []string `json:"competencies_filters"`
	SectorsFilters                  []string `json:"sectors_filters"`
	Mode                            string   `json:"mode,omitempty"` // "and" (default) or "or"
}

func (s SearchRequest) filters() predicate.Filters {
	f := predicate.Filters{}
	add := func(cat registry.FilterCategory, values []string) {
		if len(values) > 0 {
			f[cat] = values
		}
	}
	add(registry.FilterSource, s.SourceFilters)
	add(registry.FilterExperience, s.ExperienceFilters)
	add(registry.FilterSustainabilityExperience, s.SustainabilityExperienceFilters)
	add(registry.FilterCompetencies, s.CompetenciesFilters)
	add(registry.FilterSectors, s.SectorsFilters)
	return f
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Success bool               `json:"success"`
	Results []directory.Member `json:"results"`
	Count   int                `json:"count"`
	Keyword string             `json:"keyword"`
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	mode, err := predicate.ParseMode(req.Mode)
	if err != nil {
		sendError(w, r, apperr.Wrap(apperr.KindInputValidation, "api.search", err))
		return
	}

	keyword := strings.TrimSpace(req.Keyword)
	members, err := h.Directory.Search(r.Context(), directory.SearchRequest{
		Keyword: keyword,
		Filters: req.filters(),
	}, mode)
	if err != nil {
		sendError(w, r, err)
		return
	}
	if members == nil {
		members = []directory.Member{}
	}
	sendJSON(w, http.StatusOK, SearchResponse{
		Success: true,
		Results: members,
		Count:   len(members),
		Keyword: keyword,
	})
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Directory.Stats(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		directory.Stats
	}{true, stats})
}

func (h *handler) filters(w http.ResponseWriter, r *http.Request) {
	options, err := h.Directory.FilterOptions(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "filters": options})
}

func (h *handler) member(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		sendFailure(w, http.StatusBadRequest, "email is required")
		return
	}
	m, err := h.Directory.GetByEmail(r.Context(), email)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"success": true, "member": m})
}
