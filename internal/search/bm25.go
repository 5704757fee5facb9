/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - BM25 Retrieval
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package search

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// BM25Scorer implements the BM25 ranking algorithm
type BM25Scorer struct {
	k1 float64 // Term frequency saturation parameter (typical: 1.2-2.0)
	b  float64 // Length normalization parameter (typical: 0.75)
}

// NewBM25Scorer creates a new BM25 scorer with default parameters
func NewBM25Scorer() *BM25Scorer {
	return &BM25Scorer{
		k1: 1.5,
		b:  0.75,
	}
}

// stopWords carry no signal when matching RFP text against company documents
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "was": true, "will": true, "from": true,
	"have": true, "has": true, "our": true, "their": true, "its": true,
	"into": true, "than": true, "then": true, "also": true, "such": true,
	"these": true, "those": true, "which": true, "who": true, "all": true,
	"any": true, "can": true, "may": true, "must": true, "should": true,
	"would": true, "been": true, "being": true, "not": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "an": true, "or": true,
	"is": true, "be": true, "by": true, "as": true, "at": true, "it": true,
}

// Tokenize converts text to lowercase tokens (words only, no punctuation).
// Single letters and stop words are dropped; single digits are kept.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var filtered []string
	for _, word := range words {
		if stopWords[word] {
			continue
		}
		if len(word) > 1 || unicode.IsNumber(rune(word[0])) {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// CalculateIDF computes inverse document frequency for all terms in the corpus
// IDF formula: log((N - df + 0.5) / (df + 0.5) + 1)
func CalculateIDF(documents [][]string) map[string]float64 {
	totalDocs := float64(len(documents))
	if totalDocs == 0 {
		return make(map[string]float64)
	}

	docFreq := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, token := range doc {
			if !seen[token] {
				docFreq[token]++
				seen[token] = true
			}
		}
	}

	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		idf[term] = math.Log((totalDocs-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
	}
	return idf
}

// Score computes the BM25 score of one document for a query. termFreq holds
// the document's token counts and docLength its token count.
func (bm *BM25Scorer) Score(
	queryTokens []string,
	termFreq map[string]int,
	docLength int,
	avgDocLength float64,
	idf map[string]float64,
) float64 {
	if len(queryTokens) == 0 || docLength == 0 {
		return 0.0
	}

	score := 0.0
	for _, queryToken := range queryTokens {
		tf, exists := termFreq[queryToken]
		if !exists {
			continue
		}
		// score += IDF(qi) * (f(qi, D) * (k1 + 1)) / (f(qi, D) + k1 * (1 - b + b * |D| / avgdl))
		numerator := float64(tf) * (bm.k1 + 1)
		denominator := float64(tf) + bm.k1*(1-bm.b+bm.b*float64(docLength)/avgDocLength)
		score += idf[queryToken] * (numerator / denominator)
	}
	return score
}

// Index holds a tokenized corpus so repeated queries don't re-tokenize it.
// An Index is immutable once built and safe for concurrent use.
type Index struct {
	passages  []Passage
	termFreqs []map[string]int
	lengths   []int
	avgLength float64
	idf       map[string]float64
	scorer    *BM25Scorer
}

// NewIndex tokenizes passages and computes corpus statistics
func NewIndex(passages []Passage) *Index {
	idx := &Index{
		passages:  passages,
		termFreqs: make([]map[string]int, len(passages)),
		lengths:   make([]int, len(passages)),
		scorer:    NewBM25Scorer(),
	}

	documents := make([][]string, len(passages))
	totalLength := 0
	for i, p := range passages {
		tokens := Tokenize(p.Text)
		documents[i] = tokens
		idx.lengths[i] = len(tokens)
		totalLength += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		idx.termFreqs[i] = tf
	}
	if len(passages) > 0 {
		idx.avgLength = float64(totalLength) / float64(len(passages))
	}
	idx.idf = CalculateIDF(documents)
	return idx
}

// Len returns the number of indexed passages
func (idx *Index) Len() int {
	return len(idx.passages)
}

// Rank scores every passage against the query and returns those with a
// positive score, best first. Equal scores keep corpus order.
func (idx *Index) Rank(query string) []ScoredPassage {
	queryTokens := uniqueTokens(Tokenize(query))
	if len(queryTokens) == 0 || len(idx.passages) == 0 {
		return []ScoredPassage{}
	}

	ranked := make([]ScoredPassage, 0, len(idx.passages))
	for i, p := range idx.passages {
		score := idx.scorer.Score(queryTokens, idx.termFreqs[i], idx.lengths[i], idx.avgLength, idx.idf)
		if score > 0 {
			ranked = append(ranked, ScoredPassage{Passage: p, Score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Retrieve returns up to opts.Limit passages for the query: BM25 picks a
// candidate pool and MMR diversifies it.
func (idx *Index) Retrieve(query string, opts Options) []ScoredPassage {
	if opts.Limit <= 0 {
		return []ScoredPassage{}
	}
	ranked := idx.Rank(query)

	pool := opts.Limit * opts.Pool
	if pool < opts.Limit {
		pool = opts.Limit
	}
	if len(ranked) > pool {
		ranked = ranked[:pool]
	}
	return NewMMRSelector(opts.Lambda).SelectPassages(ranked, opts.Limit)
}

// uniqueTokens drops repeated query terms; a long RFP excerpt would otherwise
// weight its most frequent words several times over.
func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
