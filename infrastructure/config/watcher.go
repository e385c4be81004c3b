package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig represents runtime-changeable settings. Unlike the
// static Config it can be reloaded without a restart.
type DynamicConfig struct {
	Limits   Limits         `yaml:"limits"`
	Metadata ConfigMetadata `yaml:"metadata"`
}

// Limits holds application limits enforced at the API boundary.
type Limits struct {
	MaxReferencesPerItem  int `yaml:"maxReferencesPerItem"`
	MaxMilestonesPerItem  int `yaml:"maxMilestonesPerItem"`
	MaxHistoryDepth       int `yaml:"maxHistoryDepth"`
	RequestTimeoutSeconds int `yaml:"requestTimeoutSeconds"`
}

// ConfigMetadata holds metadata about the configuration.
type ConfigMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// DefaultLimits are used when no dynamic config file is supplied.
func DefaultLimits() Limits {
	return Limits{
		MaxReferencesPerItem:  200,
		MaxMilestonesPerItem:  100,
		MaxHistoryDepth:       1000,
		RequestTimeoutSeconds: 30,
	}
}

// Watcher watches a dynamic configuration file for changes and
// hot-reloads it, keeping the last valid version on parse or
// validation failure.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewWatcher creates a watcher over the given file. The file and its
// directory are both watched so atomic saves (write temp, rename) are
// picked up.
func NewWatcher(configPath string, logger *zap.Logger) (*Watcher, error) {
	cfg, err := loadDynamicConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		logger.Warn("Failed to watch config directory", zap.Error(err))
	}

	return &Watcher{
		path:    configPath,
		watcher: watcher,
		current: cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes.
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.logger.Info("Configuration watcher stopped")
}

func (w *Watcher) watchLoop() {
	// Debounce; editors and atomic saves fire multiple events per write.
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	w.logger.Info("Configuration file changed, reloading", zap.String("path", w.path))

	cfg, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}
	if err := validateLimits(cfg.Limits); err != nil {
		w.logger.Error("Invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	handlers := append([]func(*DynamicConfig){}, w.onChange...)
	w.mu.Unlock()

	for _, handler := range handlers {
		go handler(cfg)
	}

	w.logger.Info("Configuration reloaded",
		zap.String("version", cfg.Metadata.Version),
	)
}

// OnChange registers a callback for configuration changes.
func (w *Watcher) OnChange(handler func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the current configuration.
func (w *Watcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// GetLimits returns the current limits.
func (w *Watcher) GetLimits() Limits {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current.Limits
}

func validateLimits(l Limits) error {
	if l.MaxReferencesPerItem <= 0 {
		return fmt.Errorf("maxReferencesPerItem must be positive")
	}
	if l.MaxMilestonesPerItem <= 0 {
		return fmt.Errorf("maxMilestonesPerItem must be positive")
	}
	if l.MaxHistoryDepth <= 0 {
		return fmt.Errorf("maxHistoryDepth must be positive")
	}
	if l.RequestTimeoutSeconds <= 0 || l.RequestTimeoutSeconds > 300 {
		return fmt.Errorf("requestTimeoutSeconds must be between 1 and 300")
	}
	return nil
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &DynamicConfig{Limits: DefaultLimits()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Metadata.Version == "" {
		cfg.Metadata.Version = "1.0.0"
	}
	return cfg, nil
}
