/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Member Relevance Ranking
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package ranking orders directory candidates by how well their profiles
// cover the gaps identified in an RFP analysis.
package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/directory"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

const (
	// MaxCandidates is how many candidates are sent for scoring.
	MaxCandidates = 20
	// TopN is the length of a ranked list.
	TopN = 10

	FallbackScore       = 5
	FallbackExplanation = "Member matched by keyword search"

	minScore  = 1
	maxScore  = 10
	maxSkills = 3
)

// Goal is the analysis text candidates are ranked against.
type Goal struct {
	Gaps                 string
	ResourceRequirements string
	KeyStrengths         string
}

// RankedMember is one scored candidate.
type RankedMember struct {
	MemberID    int      `json:"member_id"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Score       int      `json:"relevance_score"`
	Explanation string   `json:"explanation"`
	KeySkills   []string `json:"key_skills"`
}

// profile is the compact view of a member sent to the model. Candidate is
// the 1-based position in this request; member tables need not carry an id
// column, so the model refers to candidates by number.
type profile struct {
	Candidate             int    `json:"candidate"`
	Name                  string `json:"name"`
	CurrentJob            string `json:"current_job"`
	CurrentCompany        string `json:"current_company"`
	LinkedinSummary       string `json:"linkedin_summary"`
	ExecutiveSummary      string `json:"executive_summary"`
	LinkedinSkills        string `json:"linkedin_skills"`
	KeyCompetencies       string `json:"key_competencies"`
	KeySectors            string `json:"key_sectors"`
	YearsXP               string `json:"years_xp"`
	YearsSustainabilityXP string `json:"years_sustainability_xp"`
}

func project(candidate int, m directory.Member) profile {
	return profile{
		Candidate:             candidate,
		Name:                  m.Name(),
		CurrentJob:            m.Get("current_job"),
		CurrentCompany:        m.Get("current_company"),
		LinkedinSummary:       m.Get("linkedin_summary"),
		ExecutiveSummary:      m.Get("executive_summary"),
		LinkedinSkills:        m.Get("linkedin_skills"),
		KeyCompetencies:       m.Get("key_competencies"),
		KeySectors:            m.Get("key_sectors"),
		YearsXP:               m.Get("years_xp"),
		YearsSustainabilityXP: m.Get("years_sustainability_xp"),
	}
}

const systemPrompt = "You are an expert at matching team members to project requirements."

const promptTemplate = `RFP Requirements and Gaps:
- Gaps & Challenges: %s
- Resource Requirements: %s
- Key Strengths: %s

Expertise Keywords Identified: %s

Available Team Members:
%s

Rank these team members by their relevance to the RFP requirements. Consider:
1. Direct match with expertise keywords
2. Relevant experience in similar projects
3. Skills that address identified gaps
4. Industry knowledge alignment

Return a JSON array with the top %d most relevant members, identified by their "candidate" number, ranked by relevance score (1-10, where 10 is most relevant).
Include a brief explanation for each ranking and up to %d matched skills.

Format:
[
  {"candidate": 3, "name": "John Doe", "relevance_score": 9, "explanation": "Strong match in carbon accounting and ESG reporting", "key_skills": ["carbon accounting", "ESG reporting"]}
]`

// Ranker scores candidates through a completer. With no completer every
// call takes the fallback path.
type Ranker struct {
	completer llm.Completer
}

// NewRanker returns a ranker backed by c, which may be nil.
func NewRanker(c llm.Completer) *Ranker {
	return &Ranker{completer: c}
}

// Rank returns at most TopN members ordered by descending score, ties in
// candidate order. It never fails: collaborator errors and unusable output
// yield the neutral fallback list.
func (r *Ranker) Rank(ctx context.Context, candidates []directory.Member, goal Goal, keywords []string) []RankedMember {
	if len(candidates) == 0 {
		return []RankedMember{}
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	if r.completer == nil {
		return Fallback(candidates, keywords)
	}

	profiles := make([]profile, len(candidates))
	for i, m := range candidates {
		profiles[i] = project(i+1, m)
	}
	payload, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return Fallback(candidates, keywords)
	}

	resp, err := r.completer.Complete(ctx, llm.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf(promptTemplate,
			orNA(goal.Gaps), orNA(goal.ResourceRequirements), orNA(goal.KeyStrengths),
			strings.Join(keywords, ", "), payload, TopN, maxSkills),
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		logging.Warn("member ranking failed, using keyword order", "error", err.Error())
		return Fallback(candidates, keywords)
	}

	ranked, ok := parseRanking(resp, candidates)
	if !ok {
		logging.Warn("member ranking response unusable, using keyword order", "response_chars", len(resp))
		return Fallback(candidates, keywords)
	}
	return ranked
}

// Fallback lists the first TopN candidates in order with the neutral score.
func Fallback(candidates []directory.Member, keywords []string) []RankedMember {
	if len(candidates) > TopN {
		candidates = candidates[:TopN]
	}
	skills := keywords
	if len(skills) > maxSkills {
		skills = skills[:maxSkills]
	}

	out := make([]RankedMember, len(candidates))
	for i, m := range candidates {
		out[i] = RankedMember{
			MemberID:    m.ID(),
			Name:        m.Name(),
			Email:       m.Email(),
			Score:       FallbackScore,
			Explanation: FallbackExplanation,
			KeySkills:   append([]string{}, skills...),
		}
	}
	return out
}

type rawRanking struct {
	Candidate   json.RawMessage `json:"candidate"`
	Name        string          `json:"name"`
	Score       json.RawMessage `json:"relevance_score"`
	Explanation string          `json:"explanation"`
	KeySkills   []any           `json:"key_skills"`
}

type scored struct {
	RankedMember
	position int
}

// parseRanking validates a model response against the candidate list.
// Entries naming unknown or repeated candidates are dropped.
func parseRanking(resp string, candidates []directory.Member) ([]RankedMember, bool) {
	var raw []rawRanking
	if !llm.DecodeArray(resp, &raw) {
		return nil, false
	}

	seen := make(map[int]bool)
	var entries []scored
	for _, r := range raw {
		n, ok := parseInt(r.Candidate)
		if !ok || n < 1 || n > len(candidates) || seen[n] {
			continue
		}
		seen[n] = true
		pos := n - 1

		score, ok := parseInt(r.Score)
		if !ok {
			score = FallbackScore
		}
		m := candidates[pos]
		entries = append(entries, scored{
			RankedMember: RankedMember{
				MemberID:    m.ID(),
				Name:        m.Name(),
				Email:       m.Email(),
				Score:       clamp(score),
				Explanation: strings.TrimSpace(r.Explanation),
				KeySkills:   skillLabels(r.KeySkills),
			},
			position: pos,
		})
	}
	if len(entries) == 0 {
		return nil, false
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].position < entries[j].position
	})
	if len(entries) > TopN {
		entries = entries[:TopN]
	}

	out := make([]RankedMember, len(entries))
	for i, e := range entries {
		out[i] = e.RankedMember
	}
	return out, true
}

func parseInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	s := strings.Trim(string(raw), `"`)
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(math.Round(f)), true
	}
	return 0, false
}

func clamp(score int) int {
	return max(minScore, min(maxScore, score))
}

func skillLabels(raw []any) []string {
	out := []string{}
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxSkills {
			break
		}
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
