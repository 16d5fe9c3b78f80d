// Package watcher watches the playlist upload directory and triggers a
// guide rebuild when a user playlist changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last change before the
// trigger fires.
const DefaultDebounce = 2 * time.Second

// TriggerFunc is called with the path of the playlist that changed last.
type TriggerFunc func(ctx context.Context, path string)

// Watcher debounces playlist file events in a single directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	trigger  TriggerFunc
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

// New creates a watcher for dir.
func New(dir string, trigger TriggerFunc) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		trigger:  trigger,
		logger:   slog.Default(),
	}
}

// WithDebounce sets the quiet period.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithLogger sets a custom logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// IsPlaylist reports whether name is a playlist file worth tracking.
func IsPlaylist(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".m3u", ".m3u8":
		return true
	}
	return false
}

// IsUserPlaylist reports whether name is a playlist that triggers a rebuild:
// user_playlist.txt or any playlist named user_playlist_*.
func IsUserPlaylist(name string) bool {
	base := filepath.Base(name)
	if !IsPlaylist(base) {
		return false
	}
	return base == "user_playlist.txt" || strings.HasPrefix(base, "user_playlist_")
}

// Existing returns the playlist files currently in the directory.
func (w *Watcher) Existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", w.dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsPlaylist(e.Name()) {
			files = append(files, filepath.Join(w.dir, e.Name()))
		}
	}
	return files, nil
}

// Run creates the directory if needed and watches it until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("creating watch directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	if files, err := w.Existing(); err == nil {
		w.logger.Info("playlist watcher started",
			slog.String("dir", w.dir),
			slog.Int("playlists", len(files)))
	}

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("playlist watcher overflowed, events may be lost")
				continue
			}
			w.logger.Error("playlist watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !IsPlaylist(event.Name) {
		return
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.logger.Debug("playlist removed", slog.String("file", event.Name))
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !IsUserPlaylist(event.Name) {
		w.logger.Debug("playlist changed", slog.String("file", event.Name))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = event.Name
	if w.timer != nil {
		w.timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timer != timer {
			// Superseded by a later event.
			w.mu.Unlock()
			return
		}
		path := w.pending
		w.timer = nil
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Info("user playlist changed, triggering rebuild", slog.String("file", path))
		w.trigger(ctx, path)
	})
	w.timer = timer
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
