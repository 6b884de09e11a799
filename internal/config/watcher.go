package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/droidrun/droidrun-portal-sub000/internal/flow"
	"github.com/droidrun/droidrun-portal-sub000/internal/heuristic"
)

var _ flow.GeometryProvider = (*Watcher)(nil)

// reloadDebounce coalesces the burst of fsnotify events editors and
// atomic writers emit for a single save.
const reloadDebounce = 300 * time.Millisecond

// Watcher reloads the config file on change and hands out the current
// snapshot. Flows read geometry through it, so threshold edits land on
// the next capture without a restart. A broken edit keeps the previous
// config and logs the validation error.
type Watcher struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[Config]

	// onReload, when set, runs after every successful swap.
	onReload func(*Config)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewWatcher wraps an already loaded config. Start is optional; without
// it the watcher is just a static provider.
func NewWatcher(path string, initial *Config, logger *zap.Logger) *Watcher {
	w := &Watcher{
		path:   path,
		logger: logger,
	}
	w.current.Store(initial)
	return w
}

// OnReload registers a callback invoked with each successfully reloaded
// config. Must be called before Start.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.onReload = fn
}

// Start begins watching the config file's directory. Watching the
// directory instead of the file survives editors that replace the file
// by rename.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return fmt.Errorf("config watcher already started")
	}
	if w.path == "" {
		return fmt.Errorf("config watcher needs a file path")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	go w.watch(fw, w.stopCh)

	w.logger.Info("config watcher started", zap.String("path", w.path))
	return nil
}

// Stop ends the watch loop. Safe to call when never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	close(w.stopCh)
	w.watcher.Close()
	w.watcher = nil
	w.stopCh = nil
}

func (w *Watcher) watch(fw *fsnotify.Watcher, stopCh chan struct{}) {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}
	w.current.Store(cfg)
	w.logger.Info("config reloaded", zap.String("path", w.path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Current returns the latest valid config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Geometry returns the current heuristic thresholds.
func (w *Watcher) Geometry() heuristic.Geometry {
	return w.current.Load().Geometry
}
