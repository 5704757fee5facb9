/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Member Matching
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package matching finds directory members who could fill the gaps named in
// an RFP analysis.
package matching

import (
	"context"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/keywords"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/predicate"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/ranking"
)

const (
	MessageNoKeywords = "No expertise keywords could be identified from the analysis"
	MessageNoMembers  = "No members found matching the identified expertise requirements"
)

// Searcher runs keyword searches against the member directory.
type Searcher interface {
	SearchKeywords(ctx context.Context, keywords []string, mode predicate.Mode) ([]directory.Member, error)
}

// Result is the member_matching section of an analysis response.
type Result struct {
	Success            bool                   `json:"success"`
	Keywords           []string               `json:"keywords"`
	Members            []ranking.RankedMember `json:"members"`
	TotalMembersFound  int                    `json:"total_members_found"`
	RankedMembersCount int                    `json:"ranked_members_count"`
	Message            string                 `json:"message,omitempty"`
	Error              string                 `json:"error,omitempty"`
}

// Matcher chains keyword extraction, an OR-mode directory search and
// ranking.
type Matcher struct {
	extractor *keywords.Extractor
	search    Searcher
	ranker    *ranking.Ranker
}

func NewMatcher(extractor *keywords.Extractor, search Searcher, ranker *ranking.Ranker) *Matcher {
	return &Matcher{extractor: extractor, search: search, ranker: ranker}
}

// FindRelevantMembers never returns an error; a failed search is reported
// in the result so callers can keep the analysis it belongs to.
func (m *Matcher) FindRelevantMembers(ctx context.Context, goal ranking.Goal) Result {
	kws := m.extractor.Extract(ctx, keywords.Narrative(goal.Gaps, goal.ResourceRequirements))
	result := Result{Success: true, Keywords: kws, Members: []ranking.RankedMember{}}

	if len(kws) == 0 {
		result.Message = MessageNoKeywords
		return result
	}

	candidates, err := m.search.SearchKeywords(ctx, kws, predicate.ModeOR)
	if err != nil {
		logging.Error("member search failed", "keywords", len(kws), "error", err.Error())
		result.Success = false
		result.Error = "Error finding relevant members: " + err.Error()
		return result
	}
	if len(candidates) > directory.MaxCandidates {
		candidates = candidates[:directory.MaxCandidates]
	}
	result.TotalMembersFound = len(candidates)
	if len(candidates) == 0 {
		result.Message = MessageNoMembers
		return result
	}

	result.Members = m.ranker.Rank(ctx, candidates, goal, kws)
	result.RankedMembersCount = len(result.Members)

	logging.Info("member matching complete", "keywords", len(kws),
		"candidates", len(candidates), "ranked", result.RankedMembersCount)
	return result
}
