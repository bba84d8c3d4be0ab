package ui

import (
	"context"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows OS dark mode changes while the "system" theme is
// configured.
type ThemeWatcher struct {
	changeCh  chan bool     // true=dark, false=light (buffered, non-blocking send)
	closeCh   chan struct{} // signals the watch goroutine to stop
	closeOnce sync.Once
}

// themeChangedMsg carries the new OS appearance.
type themeChangedMsg struct{ dark bool }

// NewThemeWatcher creates and starts a theme watcher.
// Returns nil if WatchDarkMode fails; the theme then stays fixed.
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}

	go tw.watchLoop(ctx, cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watchLoop(ctx context.Context, cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case <-ctx.Done():
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			// drop if the model hasn't read the previous change yet
			select {
			case tw.changeCh <- isDark:
			default:
			}
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// listen waits for the next appearance change.
func (tw *ThemeWatcher) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case isDark := <-tw.changeCh:
			return themeChangedMsg{dark: isDark}
		case <-tw.closeCh:
			return nil
		}
	}
}

// Close stops the watcher goroutine. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
