/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base Types
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package kbtypes

import "time"

// SourceFile is a company document found under the documents path
type SourceFile struct {
	Path    string // Absolute path
	RelPath string // Path relative to the documents root; the document's key
	Size    int64
	ModTime time.Time
}

// Document is a converted source file
type Document struct {
	Title    string
	Content  string // Extracted text
	FilePath string // Relative path
	Checksum string // SHA256 of the source file content
	Format   string
}

// Chunk is a piece of a document stored for retrieval
type Chunk struct {
	ID                 int64 // Database ID (populated when retrieved from DB)
	Text               string
	Title              string // Document title
	FilePath           string
	Index              int // Position of the chunk within its document
	SourceFileChecksum string
}
