package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mangabot/internal/logger"
)

// Watcher watches the configuration file for changes. Its main consumer is
// the permission gate, which picks up edited allow/deny lists without a
// restart.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	onChange   func(*Config)
	stopCh     chan struct{}
	mu         sync.Mutex
	debounce   *time.Timer
}

// NewWatcher creates a new configuration watcher
func NewWatcher(configPath string, onChange func(*Config)) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory containing the config file
	// This is necessary because some editors delete and recreate files on save
	configDir := filepath.Dir(configPath)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", configDir, err)
	}

	w := &Watcher{
		configPath: configPath,
		watcher:    watcher,
		onChange:   onChange,
		stopCh:     make(chan struct{}),
	}

	go w.watch()

	logger.Infof("Config watcher started for: %s", configPath)
	return w, nil
}

// watch monitors file changes
func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Match both exact path and basename (for editor recreate scenarios)
			configBase := filepath.Base(w.configPath)
			eventBase := filepath.Base(event.Name)

			if event.Name == w.configPath || eventBase == configBase {
				if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
					logger.Infof("Config file changed: %s (op: %s)", event.Name, event.Op)
					w.debounceReload()
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorf("Config watcher error: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

// debounceReload debounces reload events to avoid multiple reloads
func (w *Watcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}

	w.debounce = time.AfterFunc(500*time.Millisecond, func() {
		w.reload()
	})
}

// reload reads and validates the new configuration
func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.configPath)
	if err != nil {
		logger.Errorf("Failed to reload config: %v", err)
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Errorf("Config validation failed: %v", err)
		return
	}

	logger.Infof("Configuration reloaded successfully")

	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// TriggerReload manually triggers a configuration reload
func (w *Watcher) TriggerReload() error {
	cfg, err := LoadFrom(w.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if w.onChange != nil {
		w.onChange(cfg)
	}

	return nil
}

// Stop stops the watcher and cleans up resources
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.mu.Unlock()

	close(w.stopCh)
	w.watcher.Close()

	logger.Infof("Config watcher stopped")
}
