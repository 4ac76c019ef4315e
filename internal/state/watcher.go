package state

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

const evictOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher evicts cache entries of files that change inside a directory.
type Watcher struct {
	dir     string
	cache   *Cache
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching dir. Call Run to process events.
func NewWatcher(dir string, cache *Cache) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{dir: dir, cache: cache, watcher: w}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&evictOps == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if n := w.cache.Evict(name); n > 0 {
				slog.Info("file changed, evicted cached results", "file", name, "op", event.Op.String(), "entries", n)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "dir", w.dir, "err", err)
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
