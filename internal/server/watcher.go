package server

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/studio/logging"
	"github.com/grovetools/studio/pkg/paths"
)

// ConfigWatcher watches config directories and notifies clients when a
// studio config file changes. The daemon does not hot-swap its own config;
// it tells clients so they can decide to reload.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	lastChange time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(file string)
}

// NewConfigWatcher watches the XDG config dir plus any extra dirs (open
// project roots, typically). The onReload callback receives the changed
// file's base name.
func NewConfigWatcher(debounce time.Duration, extraDirs []string, onReload func(string)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("config-watcher")

	watched := map[string]bool{}
	for _, dir := range append([]string{paths.ConfigDir()}, extraDirs...) {
		if dir == "" || watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			logger.WithError(err).Warnf("Failed to watch %s", dir)
			continue
		}
		watched[dir] = true
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &ConfigWatcher{
		watcher:  watcher,
		debounce: debounce,
		logger:   logger,
		onReload: onReload,
	}, nil
}

// Watch adds a directory at runtime (a newly opened project).
func (w *ConfigWatcher) Watch(dir string) error {
	return w.watcher.Add(dir)
}

// isConfigFile reports whether a changed path is a studio config file.
func isConfigFile(name string) bool {
	base := filepath.Base(name)
	switch base {
	case "studio.yml", "studio.yaml", ".studio.yml", ".studio.yaml", "studio.toml":
		return true
	}
	return strings.HasPrefix(base, "studio.") && (strings.HasSuffix(base, ".yml") ||
		strings.HasSuffix(base, ".yaml") || strings.HasSuffix(base, ".toml"))
}

// Start blocks until the context is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isConfigFile(event.Name) {
				continue
			}
			w.handleChange(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// handleChange debounces rapid writes before notifying.
func (w *ConfigWatcher) handleChange(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastChange) < w.debounce {
		return
	}
	w.lastChange = time.Now()

	w.logger.Infof("Config changed: %s", filepath.Base(file))
	if w.onReload != nil {
		w.onReload(filepath.Base(file))
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
