package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly loaded configuration after a file change.
type ReloadFunc func(*Config)

// Watcher monitors the configuration file and triggers reloads.
type Watcher struct {
	configPath   string
	watcher      *fsnotify.Watcher
	onReload     ReloadFunc
	debounceTime time.Duration
}

// NewWatcher creates a configuration file watcher. onReload is called with
// the new configuration after every successful reload.
func NewWatcher(configPath string, onReload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		configPath:   absPath,
		watcher:      fw,
		onReload:     onReload,
		debounceTime: 2 * time.Second,
	}, nil
}

// Start begins monitoring. Watching the containing directory is more reliable
// than watching the file itself (editors replace files on save).
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	slog.Info("Starting configuration watcher", "config_path", w.configPath)
	go w.watchLoop(ctx)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error { return w.watcher.Close() }

func (w *Watcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce rapid successive writes from editors.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounceTime, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.configPath)
	if err != nil {
		slog.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}
	slog.Info("Configuration reloaded", "config_path", w.configPath)
	w.onReload(cfg)
}
