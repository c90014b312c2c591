package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig holds configuration for the config file watcher
type WatcherConfig struct {
	// Debounce delay to avoid multiple rapid reloads
	DebounceDelay time.Duration
	// Callback function when config is successfully reloaded
	OnReload func(config *Config, result *ValidationResult)
	// Callback function when reload fails
	OnError func(err error)
	// Whether to validate config before reload
	ValidateBeforeReload bool
}

// DefaultWatcherConfig returns default watcher configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		DebounceDelay:        500 * time.Millisecond,
		ValidateBeforeReload: true,
	}
}

// ConfigWatcher reloads the configuration file when it changes on disk.
// Scans over large port ranges can run for hours; hot reload lets the probe
// timeout and inter-port delay be retuned mid-run. The watcher holds the
// latest good config and ignores edits that fail validation.
type ConfigWatcher struct {
	path string
	opts WatcherConfig
	fs   *fsnotify.Watcher

	mu      sync.RWMutex
	current *Config

	quit chan struct{}
	done chan struct{}
}

// NewConfigWatcher loads the configuration and starts watching it for
// changes. The file must exist and validate cleanly up front; only later
// edits are allowed to be bad.
func NewConfigWatcher(configPath string, opts WatcherConfig) (*ConfigWatcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = 500 * time.Millisecond
	}
	if opts.OnReload == nil {
		opts.OnReload = func(*Config, *ValidationResult) {}
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}

	initial, result, err := ValidateAndLoad(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}
	if !result.Valid {
		return nil, errors.New("initial configuration is invalid")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory rather than the file so editor save patterns
	// (delete+create, atomic rename) keep the watch alive
	if err := fs.Add(filepath.Dir(absPath)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &ConfigWatcher{
		path:    filepath.Clean(absPath),
		opts:    opts,
		fs:      fs,
		current: initial,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// GetConfig returns the current configuration (thread-safe)
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// loop coalesces bursts of filesystem events into one reload per debounce
// window. The debounce timer lives in the select so no reload can fire
// concurrently with event handling.
func (w *ConfigWatcher) loop() {
	defer close(w.done)

	debounce := time.NewTimer(w.opts.DebounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-w.quit:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.touchesConfig(event) {
				continue
			}
			// Restart the window; a burst of writes collapses into
			// the state after the last one
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(w.opts.DebounceDelay)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.opts.OnError(fmt.Errorf("watcher error: %w", err))

		case <-debounce.C:
			w.reload()
		}
	}
}

// touchesConfig reports whether a filesystem event concerns the watched file
func (w *ConfigWatcher) touchesConfig(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload swaps in the new configuration, or reports why it cannot
func (w *ConfigWatcher) reload() {
	cfg, result, err := ValidateAndLoad(w.path)
	if err != nil {
		w.opts.OnError(fmt.Errorf("failed to reload config: %w", err))
		return
	}

	if w.opts.ValidateBeforeReload && !result.Valid {
		msgs := make([]string, 0, len(result.Errors))
		for _, verr := range result.Errors {
			msgs = append(msgs, verr.Error())
		}
		w.opts.OnError(fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; ")))
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	w.opts.OnReload(cfg, result)
}

// Stop stops watching for configuration changes
func (w *ConfigWatcher) Stop() error {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	err := w.fs.Close()
	<-w.done
	return err
}
