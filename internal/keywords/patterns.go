/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Requirement Sentence Patterns
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package keywords

import (
	"regexp"
	"strings"
)

// Triggers that introduce a requirement; the phrase after the match is the
// candidate keyword.
var requirementPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brequired\b.*?\bexperience\b(?:\s+(?:in|with|of))?`),
	regexp.MustCompile(`(?i)\bmust\b.*?\bhave\b`),
	regexp.MustCompile(`(?i)\bminimum\b.*?\byears\b`),
	regexp.MustCompile(`(?i)\bqualifications\b.*?\binclude\b`),
	regexp.MustCompile(`(?i)\bexperience\b.*?\bwith\b`),
	regexp.MustCompile(`(?i)\bknowledge\b.*?\bof\b`),
	regexp.MustCompile(`(?i)\bproficiency\b.*?\bin\b`),
	regexp.MustCompile(`(?i)\bexpertise\b.*?\bin\b`),
	regexp.MustCompile(`(?i)\bfamiliarity\b.*?\bwith\b`),
	regexp.MustCompile(`(?i)\bunderstanding\b.*?\bof\b`),
}

var sentenceSplit = regexp.MustCompile(`[.!?]`)

// Phrases are cut at these separators.
var phraseSplit = regexp.MustCompile(`(?i)\s+and\s+|\s+or\s+|[;:()]|\s+(?:to|for|including|such as|across|within)\s+`)

var noiseWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "with": true, "at": true,
	"least": true, "years": true, "year": true, "experience": true, "strong": true,
	"proven": true, "demonstrated": true, "solid": true, "deep": true, "extensive": true,
	"good": true, "excellent": true, "relevant": true, "working": true, "some": true,
	"be": true, "have": true, "has": true, "and": true, "or": true, "also": true,
	"knowledge": true, "expertise": true, "skills": true, "their": true, "our": true,
}

const maxPhraseWords = 5

// PatternKeywords finds requirement sentences (longer than 20 characters)
// and returns the phrases that follow their trigger words.
func PatternKeywords(text string) []string {
	var out []string
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) <= 20 {
			continue
		}

		end := -1
		for _, p := range requirementPatterns {
			if loc := p.FindStringIndex(sentence); loc != nil && loc[1] > end {
				end = loc[1]
			}
		}
		if end < 0 {
			continue
		}

		for _, piece := range phraseSplit.Split(sentence[end:], -1) {
			if phrase := cleanPhrase(piece); phrase != "" {
				out = append(out, phrase)
			}
		}
	}
	return out
}

func cleanPhrase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '"'
	})
	for len(words) > 0 && isNoise(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && isNoise(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	if len(words) > maxPhraseWords {
		words = words[:maxPhraseWords]
	}
	phrase := strings.Join(words, " ")
	if len(phrase) < 3 {
		return ""
	}
	return phrase
}

func isNoise(word string) bool {
	w := strings.ToLower(strings.Trim(word, "+-"))
	if w == "" || noiseWords[w] {
		return true
	}
	return strings.Trim(w, "0123456789") == ""
}
