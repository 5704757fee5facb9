/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base Chunker
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package kbchunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbtypes"
)

const (
	// DefaultChunkSize is the target number of characters per chunk
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters shared by adjacent chunks
	DefaultOverlap = 200
)

// separators are tried in order: paragraphs, lines, sentences, words
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits documents into overlapping character windows
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// New creates a chunker. Non-positive sizes fall back to the defaults and an
// overlap that is not smaller than the size is reduced to a fifth of it.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
		),
	}
}

// Size returns the chunk size in characters
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the overlap in characters
func (c *Chunker) Overlap() int {
	return c.overlap
}

// ChunkDocument breaks a document into chunks. Empty documents yield no chunks.
func (c *Chunker) ChunkDocument(doc *kbtypes.Document) ([]*kbtypes.Chunk, error) {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", doc.FilePath, err)
	}

	chunks := make([]*kbtypes.Chunk, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, &kbtypes.Chunk{
			Text:               part,
			Title:              doc.Title,
			FilePath:           doc.FilePath,
			Index:              len(chunks),
			SourceFileChecksum: doc.Checksum,
		})
	}
	return chunks, nil
}
