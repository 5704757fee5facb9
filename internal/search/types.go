/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Retrieval Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package search

// Passage is a unit of retrievable text, typically one knowledge base chunk
type Passage struct {
	ID       int64  // Store identifier
	Source   string // Document the passage was cut from
	Position int    // Index of the passage within its source
	Text     string
}

// ScoredPassage is a passage with its relevance to a query
type ScoredPassage struct {
	Passage
	Score float64 // BM25 score
}

// Options controls a retrieval
type Options struct {
	Limit  int     // Passages returned
	Lambda float64 // MMR diversity parameter (0=max diversity, 1=max relevance)
	Pool   int     // BM25 candidates considered by MMR, as a multiple of Limit
}

// DefaultOptions returns the retrieval settings used for RFP analysis
func DefaultOptions() Options {
	return Options{
		Limit:  8,
		Lambda: 0.7,
		Pool:   3,
	}
}
