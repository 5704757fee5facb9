/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Expertise Keyword Extraction
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package keywords turns gap and requirement narratives into a short list of
// search phrases for the member directory.
package keywords

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

// MaxKeywords bounds the number of phrases returned by Extract.
const MaxKeywords = 15

const systemPrompt = "You are an expert at identifying specific expertise requirements from business analysis."

const promptTemplate = `Based on the following RFP analysis sections that identify gaps and resource requirements,
extract specific expertise keywords or phrases that represent areas where the company needs
additional expertise or team members.

Focus on:
- Technical skills and expertise
- Industry knowledge
- Specific methodologies or tools
- Professional roles or positions
- Domain-specific knowledge

RFP Analysis Text:
%s

Return a JSON array of specific expertise keywords/phrases. Each keyword/phrase should be:
- Specific and actionable (e.g., "carbon accounting", "ESG reporting", "climate risk modeling")
- Short enough to appear word-for-word in a member profile
- Not too generic (avoid terms like "management" or "leadership" unless very specific)
- Listed once

Limit to 10-15 most important keywords/phrases.

Format: ["keyword1", "keyword2", "keyword3"]`

// Extractor derives expertise keywords from narrative text. With no
// completer it uses the requirement-sentence patterns only.
type Extractor struct {
	completer llm.Completer
}

// NewExtractor returns an extractor backed by c, which may be nil.
func NewExtractor(c llm.Completer) *Extractor {
	return &Extractor{completer: c}
}

// Narrative joins the analysis sections keyword extraction reads.
func Narrative(gaps, resourceRequirements string) string {
	return gaps + "\n\n" + resourceRequirements
}

// Extract returns at most MaxKeywords trimmed, case-insensitively unique
// phrases. An empty result is not an error.
func (e *Extractor) Extract(ctx context.Context, narrative string) []string {
	if strings.TrimSpace(narrative) == "" {
		return []string{}
	}

	if e.completer == nil {
		return Normalize(PatternKeywords(narrative))
	}

	resp, err := e.completer.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf(promptTemplate, narrative),
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		logging.Warn("keyword extraction failed, using requirement patterns", "error", err.Error())
		return Normalize(PatternKeywords(narrative))
	}

	keywords := Normalize(ParseResponse(resp))
	logging.Debug("extracted expertise keywords", "count", len(keywords))
	return keywords
}

var quotedPattern = regexp.MustCompile(`"([^"]*)"`)

// ParseResponse reads a keyword list out of a model response: a JSON array
// (whole response or the outermost [...] span), else bullet lines and quoted
// strings.
func ParseResponse(resp string) []string {
	var items []any
	if llm.DecodeArray(resp, &items) {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	var out []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := cutBullet(line); ok {
			kw := strings.Trim(strings.TrimSpace(rest), `"`)
			if len(kw) > 2 {
				out = append(out, kw)
			}
			continue
		}
		for _, m := range quotedPattern.FindAllStringSubmatch(line, -1) {
			out = append(out, m[1])
		}
	}
	return out
}

func cutBullet(line string) (string, bool) {
	for _, marker := range []string{"-", "*", "•"} {
		if rest, ok := strings.CutPrefix(line, marker); ok {
			return rest, true
		}
	}
	return "", false
}

// Normalize trims, splits comma-packed phrases, drops case-insensitive
// duplicates and caps the list at MaxKeywords.
func Normalize(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool)
	for _, item := range raw {
		for _, piece := range strings.Split(item, ",") {
			piece = strings.Join(strings.Fields(piece), " ")
			key := strings.ToLower(piece)
			if piece == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, piece)
			if len(out) == MaxKeywords {
				return out
			}
		}
	}
	return out
}
