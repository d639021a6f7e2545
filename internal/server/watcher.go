package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openmercato/catalog-search/internal/engine"
	"github.com/openmercato/catalog-search/pkg/resilience"
)

// Watcher rebuilds the index when the catalog source file changes, so a
// long-running server picks up new catalog drops without a restart. Events
// are debounced because bulk copies arrive as many small writes.
type Watcher struct {
	provider *engine.Provider
	source   string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for the given source file.
func NewWatcher(provider *engine.Provider, source string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		provider: provider,
		source:   source,
		debounce: debounce,
		logger:   slog.Default().With("component", "source-watcher"),
	}
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file itself so atomic replace-by-rename is observed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.source)
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.logger.Info("watching catalog source", "dir", dir, "file", w.source)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.source) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info("catalog source changed, rebuilding")
			// A drop may still be mid-write when the debounce fires, so a
			// failed rebuild is retried with backoff before giving up.
			err := resilience.Retry(ctx, "source-rebuild", resilience.RetryConfig{
				MaxAttempts:  3,
				InitialDelay: time.Second,
			}, func() error {
				return w.provider.Rebuild(ctx)
			})
			if err != nil {
				w.logger.Error("rebuild after source change failed", "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}
