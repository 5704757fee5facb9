/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Credential File Watcher
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/logging"
)

const reloadDebounce = 100 * time.Millisecond

// FileWatcher calls reloadFn after a credential file is written or
// recreated. Bursts of events collapse into one reload.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	filePath string
	reloadFn func() error
	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher watches the directory holding filePath, since editors
// often replace a file rather than write it in place.
func NewFileWatcher(filePath string, reloadFn func() error) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &FileWatcher{
		watcher:  watcher,
		filePath: filepath.Clean(filePath),
		reloadFn: reloadFn,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop in the background.
func (fw *FileWatcher) Start() {
	go fw.watch()
}

// Stop ends the event loop. Safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.done)
		_ = fw.watcher.Close()
	})
}

func (fw *FileWatcher) reload() {
	if err := fw.reloadFn(); err != nil {
		logging.Warn("credential reload failed", "file", fw.filePath, "error", err.Error())
		return
	}
	logging.Info("credentials reloaded", "file", fw.filePath)
}

func (fw *FileWatcher) watch() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, fw.reload)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("credential watcher error", "file", fw.filePath, "error", err.Error())
		case <-fw.done:
			return
		}
	}
}
