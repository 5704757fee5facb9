/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - RFP Intake Pipeline
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package pipeline runs an RFP from its uploaded documents through fit
// analysis to a ranked list of community members.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/analysis"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/matching"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/ranking"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/rfp"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/textextract"
)

// Store is the part of rfp.Store the pipeline uses.
type Store interface {
	Get(ctx context.Context, id int64) (*rfp.RFP, error)
	ListDocuments(ctx context.Context, rfpID int64, withContent bool) ([]rfp.Document, error)
	AddDocument(ctx context.Context, rfpID int64, name, content string) (*rfp.Document, error)
	SaveAnalysis(ctx context.Context, id int64, result *analysis.Result) ([]string, error)
}

// Analyzer produces a fit analysis for RFP text.
type Analyzer interface {
	Analyze(ctx context.Context, rfpText string, hints analysis.Hints) (*analysis.Result, error)
}

// MemberFinder ranks members against an analysis.
type MemberFinder interface {
	FindRelevantMembers(ctx context.Context, goal ranking.Goal) matching.Result
}

// Outcome is the response to an analysis request.
type Outcome struct {
	Success         bool             `json:"success"`
	Analysis        *analysis.Result `json:"analysis"`
	PopulatedFields []string         `json:"populated_fields"`
	MemberMatching  matching.Result  `json:"member_matching"`
}

// Pipeline coordinates the intake stages.
type Pipeline struct {
	store    Store
	analyzer Analyzer
	matcher  MemberFinder
}

func New(store Store, analyzer Analyzer, matcher MemberFinder) *Pipeline {
	return &Pipeline{store: store, analyzer: analyzer, matcher: matcher}
}

// Upload extracts the text of an uploaded file and attaches it to an RFP.
func (p *Pipeline) Upload(ctx context.Context, rfpID int64, filename string, content []byte) (*rfp.Document, error) {
	if _, err := p.store.Get(ctx, rfpID); err != nil {
		return nil, err
	}
	text, err := textextract.Extract(content, filename)
	if err != nil {
		return nil, err
	}
	doc, err := p.store.AddDocument(ctx, rfpID, filename, text)
	if err != nil {
		return nil, err
	}
	logging.Info("rfp document uploaded", "rfp_id", rfpID, "document", filename, "chars", len(text))
	return doc, nil
}

// Analyze runs the full pipeline for one RFP. Missing documents and
// analysis failures abort the request before anything is persisted; a
// member matching failure is reported inside the outcome.
func (p *Pipeline) Analyze(ctx context.Context, rfpID int64) (*Outcome, error) {
	start := time.Now()

	record, err := p.store.Get(ctx, rfpID)
	if err != nil {
		return nil, err
	}

	docs, err := p.store.ListDocuments(ctx, rfpID, true)
	if err != nil {
		return nil, err
	}
	text := combine(docs)
	if text == "" {
		return nil, apperr.New(apperr.KindNoDocuments, "pipeline.analyze",
			"no documents uploaded for this RFP; upload at least one document before running the analysis")
	}

	result, err := p.analyzer.Analyze(ctx, text, analysis.Hints{
		ProjectName:  record.ProjectName,
		Organization: record.OrganizationGroup,
		ProjectFocus: record.ProjectFocus,
	})
	if err != nil {
		logging.Error("rfp analysis failed", "rfp_id", rfpID, "kind", string(apperr.KindOf(err)), "error", err.Error())
		return nil, err
	}

	filled, err := p.store.SaveAnalysis(ctx, rfpID, result)
	if err != nil {
		return nil, err
	}
	if filled == nil {
		filled = []string{}
	}

	members := p.matcher.FindRelevantMembers(ctx, goalOf(result))

	logging.Info("rfp pipeline complete", "rfp_id", rfpID, "documents", len(docs),
		"populated_fields", len(filled), "ranked_members", members.RankedMembersCount,
		"matching_ok", members.Success, "duration", time.Since(start).String())

	return &Outcome{
		Success:         true,
		Analysis:        result,
		PopulatedFields: filled,
		MemberMatching:  members,
	}, nil
}

// FindMembers re-runs member matching against the saved analysis.
func (p *Pipeline) FindMembers(ctx context.Context, rfpID int64) (matching.Result, error) {
	record, err := p.store.Get(ctx, rfpID)
	if err != nil {
		return matching.Result{}, err
	}
	if !record.HasAnalysis() {
		return matching.Result{}, apperr.New(apperr.KindInputValidation, "pipeline.find_members",
			"this RFP has not been analyzed yet; run the AI analysis first")
	}
	return p.matcher.FindRelevantMembers(ctx, goalOf(record.Analysis())), nil
}

func goalOf(r *analysis.Result) ranking.Goal {
	return ranking.Goal{
		Gaps:                 r.GapsChallenges,
		ResourceRequirements: r.ResourceRequirements,
		KeyStrengths:         r.KeyStrengths,
	}
}

// combine joins document texts under their names.
func combine(docs []rfp.Document) string {
	var parts []string
	for _, d := range docs {
		content := strings.TrimSpace(d.Content)
		if content == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("=== %s ===\n%s", d.DocumentName, content))
	}
	return strings.Join(parts, "\n\n")
}
