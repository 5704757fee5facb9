/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Credential File Watcher Tests
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type reloadCounter struct {
	mu    sync.Mutex
	count int
	err   error
}

func (c *reloadCounter) reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.err
}

func (c *reloadCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func startWatcher(t *testing.T, path string, c *reloadCounter) *FileWatcher {
	t.Helper()
	watcher, err := NewFileWatcher(path, c.reload)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	watcher.Start()
	t.Cleanup(watcher.Stop)
	return watcher
}

func TestNewFileWatcherInvalidDirectory(t *testing.T) {
	_, err := NewFileWatcher("/nonexistent/directory/file.yaml", func() error { return nil })
	if err == nil {
		t.Fatal("Expected error for invalid directory, got nil")
	}
}

func TestWatcherReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeFile(t, path, "initial")

	var c reloadCounter
	startWatcher(t, path, &c)

	writeFile(t, path, "updated")
	time.Sleep(300 * time.Millisecond)

	if c.value() == 0 {
		t.Error("Expected reload to be called after write")
	}
}

func TestWatcherReloadOnCreate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.yaml")

	var c reloadCounter
	startWatcher(t, path, &c)

	writeFile(t, path, "created")
	time.Sleep(300 * time.Millisecond)

	if c.value() == 0 {
		t.Error("Expected reload to be called after create")
	}
}

func TestWatcherDebouncing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeFile(t, path, "initial")

	var c reloadCounter
	startWatcher(t, path, &c)

	for i := 0; i < 5; i++ {
		writeFile(t, path, "rapid update")
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	count := c.value()
	if count == 0 {
		t.Error("Expected at least one reload call")
	}
	if count > 2 {
		t.Errorf("Expected debouncing to limit reloads, got %d calls for 5 writes", count)
	}
}

func TestWatcherStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeFile(t, path, "initial")

	var c reloadCounter
	watcher := startWatcher(t, path, &c)
	time.Sleep(50 * time.Millisecond)
	watcher.Stop()
	watcher.Stop()
	time.Sleep(50 * time.Millisecond)

	writeFile(t, path, "after stop")
	time.Sleep(300 * time.Millisecond)

	if count := c.value(); count > 0 {
		t.Errorf("Expected no reloads after Stop(), got %d", count)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.yaml")
	other := filepath.Join(dir, "other.yaml")
	writeFile(t, path, "users")
	writeFile(t, other, "other")

	var c reloadCounter
	startWatcher(t, path, &c)

	writeFile(t, other, "updated other")
	time.Sleep(300 * time.Millisecond)
	if count := c.value(); count > 0 {
		t.Errorf("Expected no reload for other file, got %d calls", count)
	}

	writeFile(t, path, "updated users")
	time.Sleep(300 * time.Millisecond)
	if c.value() == 0 {
		t.Error("Expected reload after target file write")
	}
}

func TestWatcherSurvivesReloadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeFile(t, path, "initial")

	c := reloadCounter{err: errors.New("parse failure")}
	startWatcher(t, path, &c)

	writeFile(t, path, "first")
	time.Sleep(300 * time.Millisecond)
	writeFile(t, path, "second")
	time.Sleep(300 * time.Millisecond)

	if count := c.value(); count < 2 {
		t.Errorf("Expected watcher to keep reloading after errors, got %d calls", count)
	}
}

func TestTokenStoreWatchReloadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store, err := LoadOrInitTokenStore(path)
	if err != nil {
		t.Fatalf("LoadOrInitTokenStore failed: %v", err)
	}
	if err := SaveTokenStore(path, store); err != nil {
		t.Fatalf("SaveTokenStore failed: %v", err)
	}
	if err := store.StartWatching(); err != nil {
		t.Fatalf("StartWatching failed: %v", err)
	}
	defer store.StopWatching()

	writer := InitializeTokenStore()
	if err := writer.AddToken("script", HashToken("secret"), "", nil); err != nil {
		t.Fatalf("AddToken failed: %v", err)
	}
	if err := SaveTokenStore(path, writer); err != nil {
		t.Fatalf("SaveTokenStore failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if id, err := store.ValidateToken("secret"); err == nil && id == "script" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Expected token written by another process to be picked up")
}
