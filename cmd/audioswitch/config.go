package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the audioswitch daemon.
//
// Keep defaults and validation centralized so the rest of the code can
// assume a well-formed config.
type Config struct {
	// Instance identifies the action instance hosted by this daemon.
	Instance InstanceConfig `yaml:"instance"`

	// Pactl configures the audio utility invocations.
	Pactl PactlConfig `yaml:"pactl"`

	// Listener configures the background "pactl subscribe" listener.
	Listener ListenerConfig `yaml:"listener"`

	// Display configures tick-driven refresh and press classification.
	Display DisplayConfig `yaml:"display"`

	// Cache configures the shared icon cache.
	Cache CacheConfig `yaml:"cache"`

	// Input configures optional evdev key devices.
	Input InputConfig `yaml:"input"`

	// IPC configuration (host events and ctl tool)
	IPC IPCConfig `yaml:"ipc"`

	// HTTP serves the display websocket and rendered media.
	HTTP HTTPConfig `yaml:"http"`

	// NATS bridge (optional)
	NATS NATSConfig `yaml:"nats"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InstanceConfig struct {
	ID        string `yaml:"id"`
	DataDir   string `yaml:"data_dir"`
	AssetsDir string `yaml:"assets_dir"`
}

type PactlConfig struct {
	Binary    string `yaml:"binary"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type ListenerConfig struct {
	Enabled       bool `yaml:"enabled"`
	DebounceMS    int  `yaml:"debounce_ms"`
	StopTimeoutMS int  `yaml:"stop_timeout_ms"`
}

type DisplayConfig struct {
	TickMS            int `yaml:"tick_ms"`
	RefreshEveryTicks int `yaml:"refresh_every_ticks"`
	LongPressMS       int `yaml:"long_press_ms"`
	ErrorDurationMS   int `yaml:"error_duration_ms"`
}

type CacheConfig struct {
	// Dir defaults to <instance.data_dir>/cache.
	Dir            string `yaml:"dir,omitempty"`
	RetentionHours int    `yaml:"retention_hours"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`
	KeyCode int      `yaml:"key_code"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	// Port 0 disables the HTTP server.
	Port int `yaml:"port"`
}

type NATSConfig struct {
	// URL empty disables the bridge.
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go defaults and current CLI defaults.
func DefaultConfig() Config {
	return Config{
		Instance: InstanceConfig{
			ID:        "default",
			DataDir:   "~/.local/share/audioswitch",
			AssetsDir: "/usr/share/audioswitch/assets",
		},
		Pactl: PactlConfig{
			Binary:    defaultPactlBinary,
			TimeoutMS: defaultPactlTimeoutMS,
		},
		Listener: ListenerConfig{
			Enabled:       true,
			DebounceMS:    defaultListenerDebounceMS,
			StopTimeoutMS: defaultListenerStopTimeoutMS,
		},
		Display: DisplayConfig{
			TickMS:            defaultTickMS,
			RefreshEveryTicks: defaultRefreshEveryTicks,
			LongPressMS:       defaultLongPressMS,
			ErrorDurationMS:   defaultErrorDurationSec * 1000,
		},
		Cache: CacheConfig{
			RetentionHours: defaultRetentionHours,
		},
		Input: InputConfig{
			KeyCode: KEY_PLAYPAUSE,
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/audioswitch.sock",
		},
		HTTP: HTTPConfig{
			Port: 3011,
		},
		NATS: NATSConfig{
			SubjectPrefix: "audioswitch",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Notes:
//   - The file must be valid YAML.
//   - Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Ensure there's no trailing garbage (only whitespace/comments are allowed after the document).
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line overrides. Each non-nil pointer is
// applied on top of the loaded config, even if it holds a zero value.
type FlagOverrides struct {
	InstanceID *string
	DataDir    *string
	AssetsDir  *string

	PactlBinary *string

	ListenerEnabled *bool

	InputDevice *string

	IPCSocketPath *string
	HTTPPort      *int
	NATSURL       *string

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InstanceID != nil {
		cfg.Instance.ID = *o.InstanceID
	}
	if o.DataDir != nil {
		cfg.Instance.DataDir = *o.DataDir
	}
	if o.AssetsDir != nil {
		cfg.Instance.AssetsDir = *o.AssetsDir
	}
	if o.PactlBinary != nil {
		cfg.Pactl.Binary = *o.PactlBinary
	}
	if o.ListenerEnabled != nil {
		cfg.Listener.Enabled = *o.ListenerEnabled
	}
	if o.InputDevice != nil {
		if *o.InputDevice == "" {
			cfg.Input.Devices = nil
		} else {
			cfg.Input.Devices = []string{*o.InputDevice}
		}
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.NATSURL != nil {
		cfg.NATS.URL = *o.NATSURL
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	id := strings.TrimSpace(c.Instance.ID)
	if id == "" {
		return errors.New("instance.id must not be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("instance.id %q must be a plain name", id)
	}
	if c.Instance.DataDir == "" {
		return errors.New("instance.data_dir must not be empty")
	}
	if c.Instance.AssetsDir == "" {
		return errors.New("instance.assets_dir must not be empty")
	}

	if c.Pactl.Binary == "" {
		return errors.New("pactl.binary must not be empty")
	}
	if c.Pactl.TimeoutMS <= 0 {
		return errors.New("pactl.timeout_ms must be > 0")
	}

	if c.Listener.DebounceMS < 0 {
		return errors.New("listener.debounce_ms must be >= 0")
	}
	if c.Listener.StopTimeoutMS <= 0 {
		return errors.New("listener.stop_timeout_ms must be > 0")
	}

	if c.Display.TickMS <= 0 {
		return errors.New("display.tick_ms must be > 0")
	}
	if c.Display.RefreshEveryTicks < 0 {
		return errors.New("display.refresh_every_ticks must be >= 0")
	}
	if c.Display.LongPressMS <= 0 {
		return errors.New("display.long_press_ms must be > 0")
	}
	if c.Display.ErrorDurationMS < 0 {
		return errors.New("display.error_duration_ms must be >= 0")
	}

	if c.Cache.RetentionHours <= 0 {
		return errors.New("cache.retention_hours must be > 0")
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if len(c.Input.Devices) > 0 && c.Input.KeyCode <= 0 {
		return errors.New("input.key_code must be > 0 when input.devices is set")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		return errors.New("nats.subject_prefix must not be empty when nats.url is set")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// CacheDir resolves the icon cache directory.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return ExpandPath(c.Cache.Dir)
	}
	return filepath.Join(ExpandPath(c.Instance.DataDir), "cache")
}

// SettingsPath resolves this instance's settings file.
func (c *Config) SettingsPath() string {
	return settingsPath(ExpandPath(c.Instance.DataDir), c.Instance.ID)
}

// DaemonConfig converts the display section into loop timing.
func (c *Config) DaemonConfig() DaemonConfig {
	return DaemonConfig{
		TickInterval: ms(c.Display.TickMS),
		Reducer: ReducerConfig{
			LongPress:         ms(c.Display.LongPressMS),
			RefreshEveryTicks: c.Display.RefreshEveryTicks,
		},
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
