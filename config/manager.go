package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Manager owns the JSON configuration file. The file is seeded on first
// use and reloaded whenever it changes on disk.
type Manager struct {
	path     string
	debounce time.Duration
	log      zerolog.Logger

	mu  sync.RWMutex
	cfg Config
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	logger        zerolog.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

// WithInitialConfig is written to disk when no file exists yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.initialConfig = cfg
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		debounce: 300 * time.Millisecond,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.configPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			if dir, err = os.Getwd(); err != nil {
				return nil, err
			}
		}
		path = filepath.Join(dir, "CortexTrade", "config.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	cfg, err := readConfig(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConfigWithRoot(filepath.Dir(path))
		if options.initialConfig != nil {
			cfg = options.initialConfig
		}
		if err := writeConfig(path, *cfg); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		path:     path,
		debounce: options.debounce,
		log:      options.logger.With().Str("component", "config").Logger(),
		cfg:      *cfg,
	}, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

// Reload reads the file again. It reports whether the stored value changed;
// an invalid file leaves the previous value in place.
func (m *Manager) Reload() (Config, bool, error) {
	cfg, err := readConfig(m.path)
	if err != nil {
		return m.Get(), false, err
	}
	if err := cfg.Validate(); err != nil {
		return m.Get(), false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if reflect.DeepEqual(m.cfg, *cfg) {
		return m.cfg, false, nil
	}
	m.cfg = *cfg
	return m.cfg, true, nil
}

// Watch calls onChange with every valid new configuration until ctx ends.
// Bursts of file events inside the debounce window cause a single reload.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// editors replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) == filepath.Clean(m.path) &&
					evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.After(m.debounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.log.Warn().Err(err).Msg("config watcher error")
			case <-pending:
				pending = nil
				cfg, changed, err := m.Reload()
				if err != nil {
					m.log.Error().Err(err).Str("path", m.path).Msg("config reload rejected")
					continue
				}
				if changed {
					m.log.Info().Str("path", m.path).Msg("config reloaded")
					onChange(cfg)
				}
			}
		}
	}()
	return nil
}

// readConfig overlays the file on the defaults, so missing keys keep them.
func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfigWithRoot(filepath.Dir(path))
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// writeConfig replaces path atomically so the watcher never reads half a file.
func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
