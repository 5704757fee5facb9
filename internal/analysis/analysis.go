/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - RFP Fit Analysis
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package analysis assesses an RFP against the company knowledge base and
// extracts structured metadata from its text.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

const (
	maxRFPChars     = 2000
	maxContextChars = 4000
	truncatedMarker = "... [truncated]"

	DegradedFit    = "Analysis completed"
	DegradedDetail = "See full analysis below"
)

// Result is one fit analysis.
type Result struct {
	FitAssessment        string    `json:"fit_assessment"`
	KeyStrengths         string    `json:"key_strengths"`
	GapsChallenges       string    `json:"gaps_challenges"`
	Recommendations      string    `json:"recommendations"`
	ResourceRequirements string    `json:"resource_requirements"`
	RiskAssessment       string    `json:"risk_assessment"`
	CompetitivePosition  string    `json:"competitive_position"`
	FullAnalysis         string    `json:"full_analysis,omitempty"`
	ExtractedMetadata    *Metadata `json:"extracted_metadata,omitempty"`
}

// Degraded reports whether the result came from the unparsed fallback.
func (r *Result) Degraded() bool {
	return r.FullAnalysis != ""
}

// Hints are the user-supplied RFP fields included in the analysis prompt.
type Hints struct {
	ProjectName  string
	Organization string
	ProjectFocus string
}

// Retriever returns knowledge base passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Analyzer runs the metadata and fit analysis calls.
type Analyzer struct {
	completer     llm.Completer
	kb            Retriever
	topK          int
	fallbackModel string
}

func NewAnalyzer(completer llm.Completer, kb Retriever, topK int, fallbackModel string) *Analyzer {
	if topK <= 0 {
		topK = 8
	}
	return &Analyzer{completer: completer, kb: kb, topK: topK, fallbackModel: fallbackModel}
}

// Analyze retrieves knowledge base context for rfpText and analyzes the RFP
// against it. Knowledge base errors are returned unchanged so callers can
// tell KBNotReady from collaborator failures.
func (a *Analyzer) Analyze(ctx context.Context, rfpText string, hints Hints) (*Result, error) {
	if a.completer == nil {
		return nil, apperr.New(apperr.KindCollaboratorUnavailable, "analysis.analyze", "no language model configured")
	}
	passages, err := a.kb.Retrieve(ctx, rfpText, a.topK)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeWithContext(ctx, rfpText, strings.Join(passages, "\n\n"), hints)
}

// AnalyzeWithContext analyzes rfpText against already retrieved context.
func (a *Analyzer) AnalyzeWithContext(ctx context.Context, rfpText, kbContext string, hints Hints) (*Result, error) {
	rfpText = Truncate(rfpText, maxRFPChars)
	kbContext = Truncate(kbContext, maxContextChars)

	metadata := a.extractMetadata(ctx, rfpText)

	req := llm.Request{
		System:      analysisSystemPrompt,
		Prompt:      fmt.Sprintf(analysisPrompt, orNA(hints.ProjectName), orNA(hints.Organization), orNA(hints.ProjectFocus), rfpText, kbContext),
		Temperature: 0.2,
		MaxTokens:   2500,
	}
	text, err := a.completer.Complete(ctx, req)
	if err != nil && llm.IsContextLengthError(err) && a.fallbackModel != "" {
		logging.Warn("context too long for analysis model, retrying with fallback", "model", a.fallbackModel)
		req.Model = a.fallbackModel
		text, err = a.completer.Complete(ctx, req)
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Wrap(apperr.KindCollaboratorUnavailable, "analysis.analyze", err)
		}
		return nil, err
	}

	result := ParseResult(text)
	result.ExtractedMetadata = metadata
	logging.Info("rfp analysis complete", "degraded", result.Degraded(), "metadata", metadata != nil)
	return result, nil
}

func (a *Analyzer) extractMetadata(ctx context.Context, rfpText string) *Metadata {
	text, err := a.completer.Complete(ctx, llm.Request{
		System:      metadataSystemPrompt,
		Prompt:      fmt.Sprintf(metadataPrompt, rfpText),
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	if err != nil {
		logging.Warn("metadata extraction failed", "error", err.Error())
		return nil
	}
	md, ok := ParseMetadata(text)
	if !ok {
		logging.Warn("metadata response was not JSON", "response_chars", len(text))
		return nil
	}
	return md
}

var (
	fitPattern       = regexp.MustCompile(`"fit_assessment":\s*"([^"]+)"`)
	strengthsPattern = regexp.MustCompile(`"key_strengths":\s*"([^"]+)"`)
)

// ParseResult decodes an analysis response. One repair attempt is made
// before falling back to a degraded result that carries the raw text.
func ParseResult(text string) *Result {
	var fields map[string]any
	if llm.DecodeObject(text, &fields) {
		return &Result{
			FitAssessment:        field(fields, "fit_assessment"),
			KeyStrengths:         field(fields, "key_strengths"),
			GapsChallenges:       field(fields, "gaps_challenges"),
			Recommendations:      field(fields, "recommendations"),
			ResourceRequirements: field(fields, "resource_requirements"),
			RiskAssessment:       field(fields, "risk_assessment"),
			CompetitivePosition:  field(fields, "competitive_position"),
		}
	}

	r := &Result{
		FitAssessment:        DegradedFit,
		KeyStrengths:         DegradedDetail,
		GapsChallenges:       DegradedDetail,
		Recommendations:      DegradedDetail,
		ResourceRequirements: DegradedDetail,
		RiskAssessment:       DegradedDetail,
		CompetitivePosition:  DegradedDetail,
		FullAnalysis:         text,
	}
	if m := fitPattern.FindStringSubmatch(text); m != nil {
		r.FitAssessment = m[1]
	}
	if m := strengthsPattern.FindStringSubmatch(text); m != nil {
		r.KeyStrengths = m[1]
	}
	return r
}

// field flattens whatever the model put under key into display text.
func field(m map[string]any, key string) string {
	return flatten(m[key])
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// Truncate cuts s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + truncatedMarker
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
