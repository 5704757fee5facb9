/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Knowledge Base Chunk Store Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package kbdatabase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbtypes"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "kb", "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testDocument(path, checksum string, texts ...string) (*kbtypes.Document, []*kbtypes.Chunk) {
	doc := &kbtypes.Document{Title: "Doc " + path, FilePath: path, Checksum: checksum, Format: "txt"}
	var chunks []*kbtypes.Chunk
	for i, text := range texts {
		chunks = append(chunks, &kbtypes.Chunk{Text: text, Title: doc.Title, FilePath: path, Index: i})
	}
	return doc, chunks
}

func TestOpenDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kb.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestReplaceAndGetAllChunks(t *testing.T) {
	db := openTestDB(t)

	doc, chunks := testDocument("b.txt", "sum-b", "second doc")
	if err := db.ReplaceDocument(doc, chunks); err != nil {
		t.Fatalf("ReplaceDocument failed: %v", err)
	}
	doc, chunks = testDocument("a.txt", "sum-a", "first", "second", "third")
	if err := db.ReplaceDocument(doc, chunks); err != nil {
		t.Fatalf("ReplaceDocument failed: %v", err)
	}

	all, err := db.GetAllChunks()
	if err != nil {
		t.Fatalf("GetAllChunks failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(all))
	}

	want := []string{"first", "second", "third", "second doc"}
	for i, c := range all {
		if c.Text != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], c.Text)
		}
		if c.ID == 0 {
			t.Errorf("chunk %d: ID not populated", i)
		}
	}
	if all[0].SourceFileChecksum != "sum-a" || all[0].Title != "Doc a.txt" {
		t.Errorf("chunk metadata not stored: %+v", all[0])
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Chunks != 4 || stats.Documents != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestReplaceDocumentOverwrites(t *testing.T) {
	db := openTestDB(t)

	doc, chunks := testDocument("a.txt", "v1", "old one", "old two")
	if err := db.ReplaceDocument(doc, chunks); err != nil {
		t.Fatal(err)
	}
	doc, chunks = testDocument("a.txt", "v2", "new")
	if err := db.ReplaceDocument(doc, chunks); err != nil {
		t.Fatal(err)
	}

	all, _ := db.GetAllChunks()
	if len(all) != 1 || all[0].Text != "new" {
		t.Errorf("expected only the new chunk, got %+v", all)
	}

	docs, err := db.ListDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Checksum != "v2" || docs[0].NumChunks != 1 {
		t.Errorf("unexpected source records %+v", docs)
	}
}

func TestFileNeedsProcessing(t *testing.T) {
	db := openTestDB(t)

	needs, err := db.FileNeedsProcessing("a.txt", "v1")
	if err != nil {
		t.Fatal(err)
	}
	if !needs {
		t.Error("new file should need processing")
	}

	doc, chunks := testDocument("a.txt", "v1", "text")
	if err := db.ReplaceDocument(doc, chunks); err != nil {
		t.Fatal(err)
	}

	if needs, _ := db.FileNeedsProcessing("a.txt", "v1"); needs {
		t.Error("unchanged file should not need processing")
	}
	if needs, _ := db.FileNeedsProcessing("a.txt", "v2"); !needs {
		t.Error("changed file should need processing")
	}

	sums, err := db.Checksums()
	if err != nil {
		t.Fatal(err)
	}
	if sums["a.txt"] != "v1" {
		t.Errorf("Checksums = %v", sums)
	}
}

func TestCleanupStaleDocuments(t *testing.T) {
	db := openTestDB(t)

	for _, p := range []string{"keep.txt", "gone.txt"} {
		doc, chunks := testDocument(p, "sum-"+p, "text of "+p)
		if err := db.ReplaceDocument(doc, chunks); err != nil {
			t.Fatal(err)
		}
	}

	if n, err := db.CleanupStaleDocuments(nil); err != nil || n != 0 {
		t.Errorf("empty list should remove nothing, got %d, %v", n, err)
	}

	n, err := db.CleanupStaleDocuments([]string{"keep.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 document removed, got %d", n)
	}

	all, _ := db.GetAllChunks()
	if len(all) != 1 || all[0].FilePath != "keep.txt" {
		t.Errorf("stale chunks not removed: %+v", all)
	}
}

func TestClear(t *testing.T) {
	db := openTestDB(t)

	doc, chunks := testDocument("a.txt", "v1", "one", "two")
	if err := db.ReplaceDocument(doc, chunks); err != nil {
		t.Fatal(err)
	}
	if err := db.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	stats, _ := db.GetStats()
	if stats.Chunks != 0 || stats.Documents != 0 {
		t.Errorf("expected empty store, got %+v", stats)
	}
}
