package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last write to
// a file before re-indexing it. Editors and copies produce bursts of
// writes; the window coalesces each burst into one indexing run.
const DefaultDebounce = 500 * time.Millisecond

// Watcher keeps the index in sync with a directory: supported files are
// re-indexed after creation or modification and dropped on deletion.
type Watcher struct {
	pipeline *Pipeline
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher) error

// WithDebounce sets the quiet window before a changed file re-indexes.
// Default is DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) error {
		if d <= 0 {
			return fmt.Errorf("debounce must be positive, got %v", d)
		}
		w.debounce = d
		return nil
	}
}

// WithWatcherLogger sets a custom logger.
// Default is slog.Default().
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatcher creates a watcher feeding the given pipeline.
func NewWatcher(pipeline *Pipeline, opts ...WatcherOption) (*Watcher, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline required")
	}

	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		pipeline: pipeline,
		watcher:  inner,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "watcher"),
		pending:  make(map[string]*time.Timer),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(w); err != nil {
			inner.Close()
			return nil, err
		}
	}

	return w, nil
}

// Watch blocks processing events for dir until ctx is cancelled (which
// returns nil) or the underlying watcher fails. Use the same dir string
// the initial indexing used so event paths line up with registry paths.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir, "debounce", w.debounce)

	defer w.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("event stream closed for %s", dir)
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("error stream closed for %s", dir)
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// Close stops the underlying file watcher. A blocked Watch returns.
func (w *Watcher) Close() error {
	w.cancelPending()
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if DetectFormat(event.Name) == "" {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		w.scheduleIndex(ctx, event.Name)
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		w.cancelTimer(event.Name)
		if err := w.pipeline.RemovePath(ctx, event.Name); err != nil {
			w.logger.Error("failed to remove file from index", "file", event.Name, "err", err)
		}
	}
}

// scheduleIndex (re)arms the debounce timer for path. The indexing run
// fires on the timer's goroutine once the file has been quiet.
func (w *Watcher) scheduleIndex(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.pipeline.IndexPath(ctx, path); err != nil {
			w.logger.Error("failed to index changed file", "file", path, "err", err)
		}
	})
}

func (w *Watcher) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
