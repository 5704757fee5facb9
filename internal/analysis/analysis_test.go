/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - RFP Fit Analysis Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
)

type fakeKB struct {
	passages []string
	err      error
	gotK     int
}

func (f *fakeKB) Retrieve(_ context.Context, _ string, k int) ([]string, error) {
	f.gotK = k
	return f.passages, f.err
}

// scripted answers metadata and analysis prompts separately.
type scripted struct {
	metadata    string
	metadataErr error
	analysis    func(req llm.Request) (string, error)
	requests    []llm.Request
}

func (s *scripted) Complete(_ context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	if req.Temperature == 0.1 {
		return s.metadata, s.metadataErr
	}
	return s.analysis(req)
}

const goodAnalysis = `{"fit_assessment":"High","key_strengths":"Delivered carbon audits for the Port of Melbourne",
"gaps_challenges":["No GIS team","Limited French"],"recommendations":"Bid with a partner",
"resource_requirements":"GIS analyst","risk_assessment":"Tight deadline","competitive_position":"Strong"}`

func TestAnalyze(t *testing.T) {
	kb := &fakeKB{passages: []string{"We ran carbon audits.", "We did ESG reporting."}}
	llmFake := &scripted{
		metadata: `{"organization_group":"GIZ","country":null,"project_cost":"$250,000","due_date":"2029-12"}`,
		analysis: func(llm.Request) (string, error) { return goodAnalysis, nil },
	}
	a := NewAnalyzer(llmFake, kb, 8, "gpt-3.5-turbo")

	res, err := a.Analyze(context.Background(), "RFP text", Hints{ProjectName: "Coastal resilience"})
	require.NoError(t, err)

	assert.Equal(t, 8, kb.gotK)
	assert.Equal(t, "High", res.FitAssessment)
	assert.Equal(t, "No GIS team\nLimited French", res.GapsChallenges)
	assert.False(t, res.Degraded())

	require.NotNil(t, res.ExtractedMetadata)
	assert.Equal(t, "GIZ", res.ExtractedMetadata.OrganizationGroup)
	assert.Empty(t, res.ExtractedMetadata.Country)
	assert.Equal(t, "2029-12-01", res.ExtractedMetadata.DueDate)
	require.NotNil(t, res.ExtractedMetadata.ProjectCost)
	assert.Equal(t, 250000.0, *res.ExtractedMetadata.ProjectCost)

	require.Len(t, llmFake.requests, 2)
	analysisReq := llmFake.requests[1]
	assert.Equal(t, 0.2, analysisReq.Temperature)
	assert.Equal(t, 2500, analysisReq.MaxTokens)
	assert.Contains(t, analysisReq.Prompt, "Coastal resilience")
	assert.Contains(t, analysisReq.Prompt, "We ran carbon audits.\n\nWe did ESG reporting.")
	assert.Equal(t, 1000, llmFake.requests[0].MaxTokens)
}

func TestAnalyzeKBNotReady(t *testing.T) {
	kb := &fakeKB{err: apperr.New(apperr.KindKBNotReady, "kb.retrieve", "knowledge base not initialized")}
	llmFake := &scripted{analysis: func(llm.Request) (string, error) { return goodAnalysis, nil }}

	_, err := NewAnalyzer(llmFake, kb, 8, "").Analyze(context.Background(), "RFP", Hints{})
	assert.ErrorIs(t, err, apperr.KBNotReady)
	assert.Empty(t, llmFake.requests)
}

func TestAnalyzeContextTooLargeFallsBack(t *testing.T) {
	llmFake := &scripted{
		metadataErr: errors.New("metadata down"),
		analysis: func(req llm.Request) (string, error) {
			if req.Model == "" {
				return "", apperr.New(apperr.KindContextTooLarge, "llm", "context_length_exceeded")
			}
			return goodAnalysis, nil
		},
	}
	a := NewAnalyzer(llmFake, &fakeKB{}, 8, "gpt-3.5-turbo")

	res, err := a.AnalyzeWithContext(context.Background(), "RFP", "ctx", Hints{})
	require.NoError(t, err)
	assert.Equal(t, "High", res.FitAssessment)
	assert.Nil(t, res.ExtractedMetadata)
	assert.Equal(t, "gpt-3.5-turbo", llmFake.requests[len(llmFake.requests)-1].Model)
}

func TestAnalyzeCollaboratorError(t *testing.T) {
	llmFake := &scripted{analysis: func(llm.Request) (string, error) { return "", errors.New("503 from upstream") }}

	_, err := NewAnalyzer(llmFake, &fakeKB{}, 8, "gpt-3.5-turbo").AnalyzeWithContext(context.Background(), "RFP", "", Hints{})
	assert.ErrorIs(t, err, apperr.CollaboratorUnavailable)
	// Only one analysis attempt; the fallback model is for context length only
	assert.Len(t, llmFake.requests, 2)
}

func TestAnalyzeWithoutCompleter(t *testing.T) {
	_, err := NewAnalyzer(nil, &fakeKB{}, 8, "").Analyze(context.Background(), "RFP", Hints{})
	assert.ErrorIs(t, err, apperr.CollaboratorUnavailable)
}

func TestAnalyzeTruncatesInputs(t *testing.T) {
	var prompt string
	llmFake := &scripted{analysis: func(req llm.Request) (string, error) {
		prompt = req.Prompt
		return goodAnalysis, nil
	}}

	rfp := strings.Repeat("r", 2500)
	kbContext := strings.Repeat("k", 5000)
	_, err := NewAnalyzer(llmFake, &fakeKB{}, 8, "").AnalyzeWithContext(context.Background(), rfp, kbContext, Hints{})
	require.NoError(t, err)

	assert.Contains(t, prompt, strings.Repeat("r", 2000)+truncatedMarker)
	assert.NotContains(t, prompt, strings.Repeat("r", 2001))
	assert.Contains(t, prompt, strings.Repeat("k", 4000)+truncatedMarker)
	assert.NotContains(t, prompt, strings.Repeat("k", 4001))
}

func TestParseResult(t *testing.T) {
	t.Run("truncated json repaired", func(t *testing.T) {
		res := ParseResult(`{"fit_assessment":"Medium","key_strengths":"Audits","gaps_challenges":"We lack GIS and`)
		assert.Equal(t, "Medium", res.FitAssessment)
		assert.Equal(t, "Audits", res.KeyStrengths)
		assert.Empty(t, res.GapsChallenges)
		assert.False(t, res.Degraded())
	})

	t.Run("degraded with recovered fields", func(t *testing.T) {
		raw := `Overall "fit_assessment": "Low" because "key_strengths": "None found" {broken`
		res := ParseResult(raw)
		assert.True(t, res.Degraded())
		assert.Equal(t, "Low", res.FitAssessment)
		assert.Equal(t, "None found", res.KeyStrengths)
		assert.Equal(t, DegradedDetail, res.GapsChallenges)
		assert.Equal(t, raw, res.FullAnalysis)
	})

	t.Run("prose", func(t *testing.T) {
		res := ParseResult("This RFP is a reasonable fit.")
		assert.Equal(t, DegradedFit, res.FitAssessment)
		assert.Equal(t, DegradedDetail, res.RiskAssessment)
		assert.Equal(t, "This RFP is a reasonable fit.", res.FullAnalysis)
	})
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2029":             "2029-01-01",
		"2029-12":          "2029-12-01",
		"2029-3":           "2029-03-01",
		"2029-12-31":       "2029-12-31",
		"2029-12-31T10:00": "2029-12-31",
		"March 5, 2026":    "2026-03-05",
		"5 March 2026":     "2026-03-05",
		"March 2026":       "2026-03-01",
		"2029-13":          "",
		"2029-02-30":       "",
		"soon":             "",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDate(in), in)
	}
}

func TestParseMetadata(t *testing.T) {
	md, ok := ParseMetadata("```json\n{\"region\":\"N/A\",\"currency\":\"EUR\",\"project_cost\":1200000,\"deliverables\":[\"Report\",\"Workshop\"]}\n```")
	require.True(t, ok)
	assert.Empty(t, md.Region)
	assert.Equal(t, "EUR", md.Currency)
	assert.Equal(t, 1200000.0, *md.ProjectCost)
	assert.Equal(t, "Report\nWorkshop", md.Deliverables)
	assert.Equal(t, map[string]string{"currency": "EUR", "deliverables": "Report\nWorkshop"}, md.Fields())

	_, ok = ParseMetadata("no metadata")
	assert.False(t, ok)

	md, ok = ParseMetadata(`{"project_cost":"about a million"}`)
	require.True(t, ok)
	assert.Nil(t, md.ProjectCost)
}
