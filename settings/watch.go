package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a burst of file events is coalesced before
// the settings file is re-read.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a settings file whenever it changes on disk.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch blocks until ctx is done, calling onChange with every valid
// reload. Invalid files are logged and skipped; the previous settings
// stay in effect.
//
// The parent directory is watched rather than the file because editors
// and Save replace the file by rename.
func (w *Watcher) Watch(ctx context.Context, onChange func(Settings)) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default().With("component", "settings")
	}
	interval := w.Debounce
	if interval <= 0 {
		interval = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer fsw.Close()

	target := filepath.Clean(w.Path)
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %q: %w", filepath.Dir(target), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		s, err := Load(target)
		if err != nil {
			logger.Error("settings reload failed", "path", target, "error", err)
			return
		}
		logger.Info("settings reloaded", "path", target)
		onChange(s)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	logger.Info("settings watcher started", "path", target, "debounce_ms", interval.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("settings watcher events channel closed")
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(interval, func() {
				if ctx.Err() != nil {
					return
				}
				reload()
			})
			mu.Unlock()
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("settings watcher errors channel closed")
			}
			logger.Error("settings watcher error", "error", err)
		}
	}
}
