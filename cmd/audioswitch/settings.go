package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// SettingsStore persists one instance's slot settings as a flat YAML map:
//
//	sink_a: alsa_output.usb-headset
//	icon_a: Headphones
//	icon_color: white
//
// Missing keys take the defaults (icons Speaker, color white).
type SettingsStore struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last Settings
}

// settingsPath is <data_dir>/settings/<instance>.yaml.
func settingsPath(dataDir, instanceID string) string {
	return filepath.Join(dataDir, "settings", instanceID+".yaml")
}

func NewSettingsStore(path string, logger *slog.Logger) (*SettingsStore, error) {
	if path == "" {
		return nil, errors.New("settings path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	return &SettingsStore{path: path, logger: logger, last: DefaultSettings()}, nil
}

func (s *SettingsStore) Path() string { return s.path }

func (s *SettingsStore) read() (Settings, error) {
	v := viper.New()
	for k, val := range DefaultSettings().ToMap() {
		v.SetDefault(k, val)
	}
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return Settings{}, err
	}
	return settingsFromLookup(v.GetString), nil
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

// Load reads the settings file, creating it with defaults on first use.
func (s *SettingsStore) Load() (Settings, error) {
	st, err := s.read()
	if err != nil {
		if !isNotFound(err) {
			return DefaultSettings(), fmt.Errorf("read settings %s: %w", s.path, err)
		}
		st = DefaultSettings()
		if err := s.Save(st); err != nil {
			return st, err
		}
		s.logger.Info("settings created with defaults", "path", s.path)
		return st, nil
	}

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
	return st, nil
}

// Save writes st to a temp file and renames it over the previous contents,
// so the watcher never sees a half-written file.
func (s *SettingsStore) Save(st Settings) error {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfigMap(st.ToMap()); err != nil {
		return fmt.Errorf("merge settings: %w", err)
	}

	// viper picks the encoder from the extension.
	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+"."+uuid.NewString()+".tmp.yaml")
	if err := v.WriteConfigAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
	return nil
}

// Watch reports external edits of the settings file until ctx is canceled.
// onChange only runs when the parsed settings differ from the last ones
// loaded or saved, so the store's own writes are not echoed back.
func (s *SettingsStore) Watch(ctx context.Context, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors often replace the file by rename.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			s.reload(onChange)

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("settings watcher error", "error", werr)
		}
	}
}

func (s *SettingsStore) reload(onChange func(Settings)) {
	// An editor that truncates before writing shows an empty file first.
	if fi, err := os.Stat(s.path); err != nil || fi.Size() == 0 {
		return
	}

	st, err := s.read()
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn("settings reload failed", "path", s.path, "error", err)
		}
		return
	}

	s.mu.Lock()
	changed := st != s.last
	if changed {
		s.last = st
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info("settings changed on disk", "path", s.path)
		onChange(st)
	}
}
