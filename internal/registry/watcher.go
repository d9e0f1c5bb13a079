package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher refreshes a Loader when the registry file changes.
type Watcher struct {
	path     string
	loader   *Loader
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the file at path. A zero debounce uses
// DefaultDebounce.
func NewWatcher(path string, loader *Loader, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: filepath.Clean(path), loader: loader, debounce: debounce, logger: logger}
}

// Run watches until ctx is cancelled. The parent directory is watched rather
// than the file, so atomic rename-over saves are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("registry: create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("registry: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("registry: watching for changes", "path", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("registry: watcher stopped", "path", w.path)
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("registry: change detected", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("registry: watcher error", "error", err)

		case <-timer.C:
			st := w.loader.Refresh(ctx)
			if st.Fallback {
				w.logger.Warn("registry: reload fell back", "source", st.Source, "error", st.Error)
			}
		}
	}
}
