/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - MMR Diversity Selection
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package search

import (
	"math"
)

// MMRSelector implements Maximal Marginal Relevance for diversity filtering
type MMRSelector struct {
	lambda float64 // Balance between relevance (1.0) and diversity (0.0)
}

// NewMMRSelector creates a new MMR selector
// lambda: 0.0 = maximum diversity, 1.0 = maximum relevance
func NewMMRSelector(lambda float64) *MMRSelector {
	if lambda < 0.0 {
		lambda = 0.0
	}
	if lambda > 1.0 {
		lambda = 1.0
	}
	return &MMRSelector{lambda: lambda}
}

// SelectPassages picks up to maxPassages from candidates, which must be
// sorted by score descending. Selected passages keep their BM25 scores.
func (m *MMRSelector) SelectPassages(candidates []ScoredPassage, maxPassages int) []ScoredPassage {
	if len(candidates) <= maxPassages {
		return candidates
	}

	maxScore := candidates[0].Score
	if maxScore == 0 {
		maxScore = 1.0
	}

	tokens := make([]map[string]bool, len(candidates))
	for i, c := range candidates {
		tokens[i] = tokenSet(c.Text)
	}

	selected := make([]int, 0, maxPassages)
	used := make([]bool, len(candidates))

	for len(selected) < maxPassages {
		bestIdx := -1
		bestMMRScore := -math.MaxFloat64

		for i, candidate := range candidates {
			if used[i] {
				continue
			}
			relevance := candidate.Score / maxScore
			diversity := m.diversityScore(i, selected, candidates, tokens)

			// MMR formula: λ * relevance + (1-λ) * diversity
			mmrScore := m.lambda*relevance + (1.0-m.lambda)*diversity
			if mmrScore > bestMMRScore {
				bestMMRScore = mmrScore
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, bestIdx)
	}

	out := make([]ScoredPassage, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

// diversityScore is 1 minus the highest similarity between the candidate and
// anything already selected
func (m *MMRSelector) diversityScore(candidate int, selected []int, passages []ScoredPassage, tokens []map[string]bool) float64 {
	if len(selected) == 0 {
		return 1.0
	}

	maxSimilarity := 0.0
	for _, s := range selected {
		similarity := similarity(passages[candidate].Passage, passages[s].Passage, tokens[candidate], tokens[s])
		if similarity > maxSimilarity {
			maxSimilarity = similarity
		}
	}
	return 1.0 - maxSimilarity
}

// similarity returns a value from 0.0 (unrelated) to 1.0 (identical)
func similarity(a, b Passage, tokensA, tokensB map[string]bool) float64 {
	if a.Source != "" && a.Source == b.Source {
		if abs(a.Position-b.Position) <= 1 {
			return 0.9 // Adjacent chunks overlap by construction
		}
		return math.Max(0.5, jaccard(tokensA, tokensB))
	}
	return jaccard(tokensA, tokensB)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range Tokenize(text) {
		set[token] = true
	}
	return set
}

// jaccard calculates |A ∩ B| / |A ∪ B|
func jaccard(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range set1 {
		if set2[token] {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	return float64(intersection) / float64(union)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
