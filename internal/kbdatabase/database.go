/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base Chunk Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package kbdatabase

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbtypes"
)

// Database represents the knowledge base chunk store
type Database struct {
	db *sql.DB
}

// Stats summarises the stored corpus
type Stats struct {
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
}

// SourceRecord describes a processed document
type SourceRecord struct {
	FilePath  string
	Checksum  string
	Title     string
	Format    string
	NumChunks int
}

// Open opens or creates the knowledge base database
func Open(path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; ingestion already serialises its writes
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return d, nil
}

// Close closes the database
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) createSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS source_files (
        file_path TEXT PRIMARY KEY,
        checksum TEXT NOT NULL,
        title TEXT,
        doc_type TEXT,
        num_chunks INTEGER DEFAULT 0,
        processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        file_path TEXT NOT NULL REFERENCES source_files(file_path) ON DELETE CASCADE,
        chunk_index INTEGER NOT NULL,
        text TEXT NOT NULL,
        title TEXT,
        source_file_checksum TEXT NOT NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path, chunk_index);
    CREATE INDEX IF NOT EXISTS idx_chunks_checksum ON chunks(source_file_checksum);
    `

	_, err := d.db.Exec(schema)
	return err
}

// ReplaceDocument stores the chunks of one document, replacing whatever was
// stored for the same path
func (d *Database) ReplaceDocument(doc *kbtypes.Document, chunks []*kbtypes.Chunk) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_path = ?`, doc.FilePath); err != nil {
		return fmt.Errorf("failed to delete old chunks for %s: %w", doc.FilePath, err)
	}

	_, err = tx.Exec(`
        INSERT INTO source_files (file_path, checksum, title, doc_type, num_chunks)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(file_path)
        DO UPDATE SET checksum = excluded.checksum, title = excluded.title,
                      doc_type = excluded.doc_type, num_chunks = excluded.num_chunks,
                      processed_at = CURRENT_TIMESTAMP
    `, doc.FilePath, doc.Checksum, doc.Title, doc.Format, len(chunks))
	if err != nil {
		return fmt.Errorf("failed to record source file %s: %w", doc.FilePath, err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO chunks (file_path, chunk_index, text, title, source_file_checksum)
        VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.Exec(doc.FilePath, chunk.Index, chunk.Text, chunk.Title, doc.Checksum); err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s: %w", i, doc.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Checksums returns the stored checksum of every processed document, keyed
// by file path
func (d *Database) Checksums() (map[string]string, error) {
	rows, err := d.db.Query(`SELECT file_path, checksum FROM source_files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[string]string)
	for rows.Next() {
		var path, sum string
		if err := rows.Scan(&path, &sum); err != nil {
			return nil, err
		}
		sums[path] = sum
	}
	return sums, rows.Err()
}

// FileNeedsProcessing reports whether a file is new or changed since it was
// last stored
func (d *Database) FileNeedsProcessing(filePath, checksum string) (bool, error) {
	var count int
	err := d.db.QueryRow(`
        SELECT COUNT(*) FROM source_files WHERE file_path = ? AND checksum = ?
    `, filePath, checksum).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// GetAllChunks retrieves all chunks ordered by document and position
func (d *Database) GetAllChunks() ([]*kbtypes.Chunk, error) {
	rows, err := d.db.Query(`
        SELECT id, text, COALESCE(title, ''), file_path, chunk_index, source_file_checksum
        FROM chunks
        ORDER BY file_path, chunk_index
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*kbtypes.Chunk
	for rows.Next() {
		c := &kbtypes.Chunk{}
		if err := rows.Scan(&c.ID, &c.Text, &c.Title, &c.FilePath, &c.Index, &c.SourceFileChecksum); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ListDocuments returns the processed documents ordered by path
func (d *Database) ListDocuments() ([]SourceRecord, error) {
	rows, err := d.db.Query(`
        SELECT file_path, checksum, COALESCE(title, ''), COALESCE(doc_type, ''), num_chunks
        FROM source_files
        ORDER BY file_path
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []SourceRecord
	for rows.Next() {
		var r SourceRecord
		if err := rows.Scan(&r.FilePath, &r.Checksum, &r.Title, &r.Format, &r.NumChunks); err != nil {
			return nil, err
		}
		docs = append(docs, r)
	}
	return docs, rows.Err()
}

// GetStats counts stored chunks and documents
func (d *Database) GetStats() (Stats, error) {
	var s Stats
	err := d.db.QueryRow(`
        SELECT (SELECT COUNT(*) FROM chunks), (SELECT COUNT(*) FROM source_files)
    `).Scan(&s.Chunks, &s.Documents)
	return s, err
}

// CleanupStaleDocuments removes documents whose paths are not in validPaths
// and returns how many were removed. An empty list removes nothing.
func (d *Database) CleanupStaleDocuments(validPaths []string) (int64, error) {
	if len(validPaths) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(validPaths)), ",")
	args := make([]interface{}, len(validPaths))
	for i, p := range validPaths {
		args[i] = p
	}

	// Chunks follow through ON DELETE CASCADE
	result, err := d.db.Exec(`DELETE FROM source_files WHERE file_path NOT IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Clear removes every stored document and chunk
func (d *Database) Clear() error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM source_files`); err != nil {
		return err
	}
	return tx.Commit()
}
