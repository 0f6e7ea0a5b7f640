package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig represents runtime-changeable configuration
type DynamicConfig struct {
	Collaboration CollaborationConfig `yaml:"collaboration"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
}

// CollaborationConfig tunes the synchronization engine
type CollaborationConfig struct {
	DebounceWindowMs int `yaml:"debounceWindowMs"`
	BatchChunkSize   int `yaml:"batchChunkSize"`
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	MaxConnections   int `yaml:"maxConnections"`
	MessageQueueSize int `yaml:"messageQueueSize"`
}

// DefaultDynamicConfig returns the built-in defaults used when no
// dynamic config file is configured.
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		Collaboration: CollaborationConfig{
			DebounceWindowMs: 100,
			BatchChunkSize:   50,
		},
		WebSocket: WebSocketConfig{
			MaxConnections:   1000,
			MessageQueueSize: 256,
		},
	}
}

// Watcher watches the dynamic configuration file for changes
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher loads the initial dynamic configuration and begins
// watching the file.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := loadDynamicConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fileWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fileWatcher.Add(path); err != nil {
		fileWatcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	w := &Watcher{
		path:    path,
		watcher: fileWatcher,
		current: current,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.watch()
	return w, nil
}

// Current returns the active dynamic configuration.
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after every successful reload.
func (w *Watcher) OnChange(fn func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) watch() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	updated, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Warn("Ignoring invalid config update",
			zap.String("path", w.path),
			zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = updated
	callbacks := make([]func(*DynamicConfig), len(w.onChange))
	copy(callbacks, w.onChange)
	w.mu.Unlock()

	w.logger.Info("Dynamic configuration reloaded",
		zap.Int("debounceWindowMs", updated.Collaboration.DebounceWindowMs),
		zap.Int("batchChunkSize", updated.Collaboration.BatchChunkSize))
	for _, fn := range callbacks {
		fn(updated)
	}
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultDynamicConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Collaboration.DebounceWindowMs <= 0 {
		return nil, fmt.Errorf("debounceWindowMs must be positive")
	}
	if cfg.Collaboration.BatchChunkSize <= 0 {
		return nil, fmt.Errorf("batchChunkSize must be positive")
	}
	return cfg, nil
}
