package settings

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dshills/puppetext/internal/host"
)

// EnvPrefix is the prefix of environment variables that override settings.
// "puppet.editorService.timeout" is read from PUPPETEXT_PUPPET_EDITORSERVICE_TIMEOUT.
const EnvPrefix = "PUPPETEXT"

// MapStore is a flat ConfigStore keyed by dotted setting name.
type MapStore map[string]any

var _ host.ConfigStore = MapStore(nil)

// Get returns the raw value stored under name.
func (m MapStore) Get(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// ViperStore reads settings from a configuration file (YAML, TOML or JSON)
// with environment overrides.
type ViperStore struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string

	debounce time.Duration
}

var _ host.ConfigStore = (*ViperStore)(nil)

// OpenViperStore loads the file at path. An empty path yields a store backed
// by the environment only.
func OpenViperStore(path string) (*ViperStore, error) {
	s := &ViperStore{debounce: 100 * time.Millisecond}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("settings path: %w", err)
		}
		s.path = abs
	}
	v, err := s.load()
	if err != nil {
		return nil, err
	}
	s.v = v
	return s, nil
}

func (s *ViperStore) load() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if s.path == "" {
		return v, nil
	}
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}
	return v, nil
}

// Path returns the absolute settings file path, or "".
func (s *ViperStore) Path() string {
	return s.path
}

// Get returns the raw value for a dotted setting name.
func (s *ViperStore) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.v.IsSet(name) {
		return nil, false
	}
	return s.v.Get(name), true
}

// Reload rereads the settings file. On error the previous values are kept.
func (s *ViperStore) Reload() error {
	v, err := s.load()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
	return nil
}

// Watch reloads the store whenever the settings file is written and calls
// onChange after each successful reload. It returns once the watcher is
// running; watching stops when ctx is cancelled.
func (s *ViperStore) Watch(ctx context.Context, onChange func(error)) error {
	if s.path == "" {
		return errors.New("settings: no file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	// Editors often replace the file rather than write it in place, so
	// watch the directory.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("settings watcher: %w", err)
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(s.debounce)
				} else {
					timer.Reset(s.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				err := s.Reload()
				if onChange != nil {
					onChange(err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if onChange != nil {
					onChange(err)
				}
			}
		}
	}()
	return nil
}
