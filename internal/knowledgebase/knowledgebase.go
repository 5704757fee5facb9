/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Company Knowledge Base
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package knowledgebase loads the company's capability documents and serves
// the passages most relevant to an RFP.
package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/apperr"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/config"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbchunker"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbdatabase"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbsource"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/kbtypes"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/search"
	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/textextract"
)

// State is the lifecycle state of the knowledge base
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// InitResult reports the outcome of Initialize
type InitResult struct {
	AlreadyInitialized bool     `json:"already_initialized"`
	Chunks             int      `json:"chunks"`
	Documents          int      `json:"documents"`
	Processed          int      `json:"processed,omitempty"` // Documents converted in this run
	Unchanged          int      `json:"unchanged,omitempty"` // Documents reused from the store
	Failed             []string `json:"failed,omitempty"`
}

// Status is a snapshot of the knowledge base
type Status struct {
	Status        State      `json:"status"`
	Chunks        int        `json:"chunks"`
	Documents     int        `json:"documents"`
	DocumentsPath string     `json:"documents_path"`
	InitializedAt *time.Time `json:"initialized_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// Base is the company knowledge base. Initialization is single-flight: a call
// made while another is running fails with a Busy error.
type Base struct {
	cfg     config.KnowledgebaseConfig
	db      *kbdatabase.Database
	chunker *kbchunker.Chunker

	mu            sync.Mutex
	state         State
	index         *search.Index
	documents     int
	initializedAt time.Time
	lastError     string

	// extract converts file content to text; replaceable in tests
	extract func(content []byte, name string) (textextract.Document, error)
}

// New creates a knowledge base over an open chunk store
func New(cfg config.KnowledgebaseConfig, db *kbdatabase.Database) *Base {
	return &Base{
		cfg:     cfg,
		db:      db,
		chunker: kbchunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		state:   StateUninitialized,
		extract: textextract.Convert,
	}
}

// Open opens the chunk store named in cfg and loads any existing corpus
func Open(ctx context.Context, cfg config.KnowledgebaseConfig) (*Base, error) {
	path, err := kbsource.ExpandPath(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	db, err := kbdatabase.Open(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "knowledgebase.open", err)
	}

	b := New(cfg, db)
	if err := b.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the chunk store
func (b *Base) Close() error {
	return b.db.Close()
}

// Load builds the in-memory index from the chunk store. A non-empty store
// makes the knowledge base Ready without re-reading the documents.
func (b *Base) Load(ctx context.Context) error {
	chunks, err := b.db.GetAllChunks()
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "knowledgebase.load", err)
	}
	if len(chunks) == 0 {
		return nil
	}
	stats, err := b.db.GetStats()
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "knowledgebase.load", err)
	}

	idx := buildIndex(chunks)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateInitializing {
		return nil
	}
	b.index = idx
	b.documents = stats.Documents
	b.state = StateReady
	b.initializedAt = time.Now()

	logging.Info("knowledge base loaded", "chunks", idx.Len(), "documents", stats.Documents)
	return nil
}

// Initialize reads the documents path and (re)builds the chunk store. An
// already Ready knowledge base is left alone unless force is set.
func (b *Base) Initialize(ctx context.Context, force bool) (InitResult, error) {
	const op = "knowledgebase.initialize"

	b.mu.Lock()
	switch {
	case b.state == StateInitializing:
		b.mu.Unlock()
		return InitResult{}, apperr.New(apperr.KindBusy, op,
			"knowledge base initialization is already in progress, please retry in a few moments")
	case b.state == StateReady && !force:
		res := InitResult{AlreadyInitialized: true, Chunks: b.index.Len(), Documents: b.documents}
		b.mu.Unlock()
		return res, nil
	}
	previous := b.state
	b.state = StateInitializing
	b.mu.Unlock()

	// Restore the previous state on every exit that doesn't reach Ready,
	// including panics in document conversion
	done := false
	defer func() {
		if !done {
			b.mu.Lock()
			b.state = previous
			b.mu.Unlock()
		}
	}()

	start := time.Now()
	res, idx, err := b.build(ctx, force)
	if err != nil {
		b.mu.Lock()
		b.lastError = err.Error()
		b.mu.Unlock()
		logging.Error("knowledge base initialization failed", "error", err.Error())
		return InitResult{}, err
	}

	b.mu.Lock()
	b.index = idx
	b.documents = res.Documents
	b.state = StateReady
	b.initializedAt = time.Now()
	b.lastError = ""
	b.mu.Unlock()
	done = true

	logging.Info("knowledge base initialized", "chunks", res.Chunks, "documents", res.Documents,
		"processed", res.Processed, "unchanged", res.Unchanged, "failed", len(res.Failed),
		"duration", time.Since(start).String())
	return res, nil
}

// converted is the outcome of processing one source file
type converted struct {
	file   kbtypes.SourceFile
	doc    *kbtypes.Document
	chunks []*kbtypes.Chunk
	skip   bool
	err    error
}

func (b *Base) build(ctx context.Context, force bool) (InitResult, *search.Index, error) {
	const op = "knowledgebase.initialize"

	files, err := kbsource.Scan(b.cfg.DocumentsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return InitResult{}, nil, apperr.New(apperr.KindNoDocuments, op,
			fmt.Sprintf("documents folder %s not found", b.cfg.DocumentsPath))
	}
	if err != nil {
		return InitResult{}, nil, apperr.Wrap(apperr.KindNoDocuments, op, err)
	}
	if len(files) == 0 {
		return InitResult{}, nil, apperr.New(apperr.KindNoDocuments, op,
			fmt.Sprintf("no documents found in %s", b.cfg.DocumentsPath))
	}

	if force {
		if err := b.db.Clear(); err != nil {
			return InitResult{}, nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
		}
	}
	stored, err := b.db.Checksums()
	if err != nil {
		return InitResult{}, nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}

	results, err := b.convertAll(ctx, files, stored)
	if err != nil {
		return InitResult{}, nil, err
	}

	var res InitResult
	var valid []string
	for _, r := range results {
		switch {
		case r.err != nil:
			logging.Warn("skipping document", "file", r.file.RelPath, "error", r.err.Error())
			res.Failed = append(res.Failed, r.file.RelPath)
		case r.skip:
			res.Unchanged++
			valid = append(valid, r.file.RelPath)
		default:
			if err := b.db.ReplaceDocument(r.doc, r.chunks); err != nil {
				return InitResult{}, nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
			}
			res.Processed++
			valid = append(valid, r.file.RelPath)
		}
	}

	if len(valid) == 0 {
		return InitResult{}, nil, apperr.New(apperr.KindNoDocuments, op,
			fmt.Sprintf("none of the %d documents in %s could be read", len(files), b.cfg.DocumentsPath))
	}
	if removed, err := b.db.CleanupStaleDocuments(valid); err != nil {
		return InitResult{}, nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	} else if removed > 0 {
		logging.Info("removed stale documents from knowledge base", "count", removed)
	}

	chunks, err := b.db.GetAllChunks()
	if err != nil {
		return InitResult{}, nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}
	if len(chunks) == 0 {
		return InitResult{}, nil, apperr.New(apperr.KindNoDocuments, op, "documents contained no text")
	}

	res.Chunks = len(chunks)
	res.Documents = len(valid)
	return res, buildIndex(chunks), nil
}

// convertAll reads, converts and chunks files on a worker pool. Results keep
// the order of files.
func (b *Base) convertAll(ctx context.Context, files []kbtypes.SourceFile, stored map[string]string) ([]converted, error) {
	workers := b.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]converted, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		i, f := i, f
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = b.convertFile(f, stored[f.RelPath])
		}); err != nil {
			wg.Done()
			results[i] = converted{file: f, err: err}
		}
	}
	wg.Wait()
	return results, nil
}

func (b *Base) convertFile(f kbtypes.SourceFile, storedChecksum string) (out converted) {
	out.file = f
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("conversion panicked: %v", r)
		}
	}()

	content, err := os.ReadFile(f.Path)
	if err != nil {
		out.err = fmt.Errorf("failed to read file: %w", err)
		return out
	}
	checksum := kbsource.Checksum(content)
	if checksum == storedChecksum {
		out.skip = true
		return out
	}

	text, err := b.extract(content, f.RelPath)
	if err != nil {
		out.err = err
		return out
	}

	doc := &kbtypes.Document{
		Title:    text.Title,
		Content:  text.Text,
		FilePath: f.RelPath,
		Checksum: checksum,
		Format:   string(text.Format),
	}
	chunks, err := b.chunker.ChunkDocument(doc)
	if err != nil {
		out.err = err
		return out
	}
	out.doc = doc
	out.chunks = chunks
	return out
}

// Retrieve returns the text of the k passages most relevant to query. It
// fails with KBNotReady until the knowledge base has been initialized, and
// with Busy while the first initialization is still running. A rebuild of
// a Ready knowledge base keeps serving the previous index.
func (b *Base) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	const op = "knowledgebase.retrieve"

	b.mu.Lock()
	idx, state := b.index, b.state
	b.mu.Unlock()

	if idx == nil {
		if state == StateInitializing {
			return nil, apperr.New(apperr.KindBusy, op,
				"knowledge base initialization is in progress, please retry in a few moments")
		}
		return nil, apperr.New(apperr.KindKBNotReady, op,
			"knowledge base not initialized, initialize it before running an analysis")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if k <= 0 {
		k = b.cfg.TopK
	}
	opts := search.DefaultOptions()
	opts.Limit = k

	passages := idx.Retrieve(query, opts)
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return texts, nil
}

// State returns the current lifecycle state
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status returns a snapshot for the status endpoint
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Status{
		Status:        b.state,
		Documents:     b.documents,
		DocumentsPath: b.cfg.DocumentsPath,
		LastError:     b.lastError,
	}
	if b.index != nil {
		s.Chunks = b.index.Len()
	}
	if !b.initializedAt.IsZero() {
		t := b.initializedAt
		s.InitializedAt = &t
	}
	return s
}

func buildIndex(chunks []*kbtypes.Chunk) *search.Index {
	passages := make([]search.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = search.Passage{
			ID:       c.ID,
			Source:   c.FilePath,
			Position: c.Index,
			Text:     c.Text,
		}
	}
	return search.NewIndex(passages)
}
