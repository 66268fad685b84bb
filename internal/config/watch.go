package config

import (
	"context"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-reads an optional overlay file whenever it changes on disk and
// keeps the merged Config available through Current. The workers and the
// HTTP surface are built from the Config read at startup and do not pick up
// a reloaded one.
type Watcher struct {
	path   string
	base   *Config
	log    *zap.Logger
	mu     sync.RWMutex
	latest *Config
}

func NewWatcher(base *Config, overlayPath string, log *zap.Logger) *Watcher {
	w := &Watcher{path: overlayPath, base: base, log: log}
	w.latest = base
	return w
}

// Current returns the most recently merged configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

// Run watches the overlay file for writes until ctx is cancelled. A missing
// overlay path disables watching entirely.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.path); err != nil {
		w.log.Warn("config overlay not watchable, continuing with static config", zap.String("path", w.path), zap.Error(err))
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	merged := *w.base
	if err := merged.LoadOverlayFile(w.path); err != nil {
		w.log.Warn("failed to reload config overlay, keeping previous config", zap.Error(err))
		return
	}
	w.mu.Lock()
	w.latest = &merged
	w.mu.Unlock()
	w.log.Info("config overlay reloaded", zap.String("path", w.path))
}
