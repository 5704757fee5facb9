/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Application Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package appstore owns the SQLite file that holds RFPs, their documents and
// scraped tenders.
package appstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store is an open application database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the application database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps PRAGMAs in effect and serialises writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// DB returns the underlying handle shared by the rfp and tenders stores.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS rfps (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_name TEXT NOT NULL,
        organization_group TEXT NOT NULL DEFAULT '',
        country TEXT NOT NULL DEFAULT '',
        region TEXT NOT NULL DEFAULT '',
        industry TEXT NOT NULL DEFAULT '',
        project_focus TEXT NOT NULL DEFAULT '',
        opf_gap_size TEXT NOT NULL DEFAULT '',
        opf_gaps TEXT NOT NULL DEFAULT '',
        deliverables TEXT NOT NULL DEFAULT '',
        posting_contact TEXT NOT NULL DEFAULT '',
        potential_experts TEXT NOT NULL DEFAULT '',
        project_cost REAL,
        currency TEXT NOT NULL DEFAULT '',
        specific_staffing_needs TEXT NOT NULL DEFAULT '',
        due_date TEXT NOT NULL DEFAULT '',
        link TEXT NOT NULL DEFAULT '',
        ai_fit_assessment TEXT NOT NULL DEFAULT '',
        ai_key_strengths TEXT NOT NULL DEFAULT '',
        ai_gaps_challenges TEXT NOT NULL DEFAULT '',
        ai_recommendations TEXT NOT NULL DEFAULT '',
        ai_resource_requirements TEXT NOT NULL DEFAULT '',
        ai_risk_assessment TEXT NOT NULL DEFAULT '',
        ai_competitive_position TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_rfps_created_at
        ON rfps(created_at DESC);

    CREATE TABLE IF NOT EXISTS rfp_documents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        rfp_id INTEGER NOT NULL REFERENCES rfps(id) ON DELETE CASCADE,
        document_name TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_rfp_documents_rfp_id
        ON rfp_documents(rfp_id);

    CREATE TABLE IF NOT EXISTS scraped_tenders (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        closing_date TEXT NOT NULL DEFAULT '',
        organization TEXT NOT NULL DEFAULT '',
        link TEXT NOT NULL DEFAULT '',
        source TEXT NOT NULL,
        scraped_at DATETIME NOT NULL,
        is_climate_related INTEGER NOT NULL DEFAULT 1,
        processed INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        UNIQUE (title, source)
    );

    CREATE INDEX IF NOT EXISTS idx_scraped_tenders_source
        ON scraped_tenders(source);

    CREATE INDEX IF NOT EXISTS idx_scraped_tenders_processed
        ON scraped_tenders(processed);
    `
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Migrations for databases created before these columns existed.
	// SQLite doesn't support IF NOT EXISTS for ALTER TABLE, so check first.
	if err := s.addColumn("rfps", "ai_analysis_date", "DATETIME"); err != nil {
		return err
	}
	return s.addColumn("scraped_tenders", "updated_at", "DATETIME")
}

func (s *Store) addColumn(table, column, definition string) error {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)); err != nil {
		return fmt.Errorf("failed to add %s.%s column: %w", table, column, err)
	}
	return nil
}
