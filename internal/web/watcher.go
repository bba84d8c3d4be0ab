package web

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
	"github.com/tchow-twistedxcom/tgarchive/internal/platform"
)

var watchDebounce = 300 * time.Millisecond

// archiveWatcher calls onChange once writes to the watched files settle.
// Directories are watched rather than files so editors that replace files
// by rename are still seen.
type archiveWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	onChange func()
	debounce time.Duration

	closeOnce sync.Once
	stopCh    chan struct{}
}

func newArchiveWatcher(paths []string, onChange func()) (*archiveWatcher, error) {
	files := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, p := range paths {
		if p == "" || archive.IsURL(p) {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no local archive files to watch")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for dir := range dirs {
		if warning := platform.WatchCaveat(dir); warning != "" {
			webLog.Warn("archive_watch_unreliable", slog.String("dir", dir), slog.String("reason", warning))
		}
		if err := fsWatcher.Add(dir); err != nil {
			_ = fsWatcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return &archiveWatcher{
		watcher:  fsWatcher,
		files:    files,
		onChange: onChange,
		debounce: watchDebounce,
		stopCh:   make(chan struct{}),
	}, nil
}

// Run handles events until ctx ends or Close is called.
func (w *archiveWatcher) Run(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			// restart the quiet period
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			webLog.Info("archive_changed")
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			webLog.Warn("archive_watch_error", slog.String("error", err.Error()))
		}
	}
}

func (w *archiveWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Close stops the watcher. Safe to call multiple times.
func (w *archiveWatcher) Close() {
	w.closeOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}
