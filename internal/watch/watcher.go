// Package watch re-runs a callback whenever the files under a root change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mainbong/path_lister/internal/logger"
)

// DefaultDebounce coalesces bursts of events (editors, git checkouts) into one run
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches a directory tree
type Watcher struct {
	root     string
	ignore   map[string]bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for root. Events on any path in ignore, or
// below it when it is a directory (the output file, the backup dir), never
// trigger the callback.
func NewWatcher(root string, ignore ...string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		ignore:   make(map[string]bool),
		debounce: DefaultDebounce,
		watcher:  watcher,
	}
	for _, path := range ignore {
		if path != "" {
			w.ignore[absPath(path)] = true
		}
	}
	return w, nil
}

// SetDebounce changes the quiet period between the last event and the callback
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run watches until ctx is cancelled or the watcher fails, calling onChange
// once per burst of relevant events. It returns ctx.Err() on cancellation.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.watcher.Close()

	if err := w.addTree(w.root); err != nil {
		return err
	}

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("Change detected: %s %s", event.Op, event.Name)
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.Warn("Failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true
		case <-timer.C:
			pending = false
			onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if w.ignored(event.Name) {
		return false
	}
	const ops = fsnotify.Create | fsnotify.Remove | fsnotify.Rename | fsnotify.Write
	return event.Op&ops != 0
}

// addTree adds dir and every directory below it; fsnotify is not recursive.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to add %s to watcher: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	abs := absPath(path)
	for prefix := range w.ignore {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
