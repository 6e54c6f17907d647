package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "audioswitch.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	dc := cfg.DaemonConfig()
	assert.Equal(t, time.Second, dc.TickInterval)
	assert.Equal(t, 500*time.Millisecond, dc.Reducer.LongPress)
	assert.Equal(t, 10, dc.Reducer.RefreshEveryTicks)
}

func TestLoadConfigFile(t *testing.T) {
	p := writeConfig(t, `
instance:
  id: desk
  data_dir: /var/lib/audioswitch
pactl:
  timeout_ms: 500
cache:
  retention_hours: 24
nats:
  url: nats://127.0.0.1:4222
`)
	cfg, err := LoadConfigFile(p)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "desk", cfg.Instance.ID)
	assert.Equal(t, 500, cfg.Pactl.TimeoutMS)
	assert.Equal(t, defaultPactlBinary, cfg.Pactl.Binary, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/audioswitch/cache", cfg.CacheDir())
	assert.Equal(t, "/var/lib/audioswitch/settings/desk.yaml", cfg.SettingsPath())
	assert.Equal(t, "audioswitch", cfg.NATS.SubjectPrefix)
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	_, err := LoadConfigFile(writeConfig(t, "instance:\n  idd: typo\n"))
	assert.Error(t, err)

	_, err = LoadConfigFile("")
	assert.Error(t, err)
}

func TestFlagOverrides(t *testing.T) {
	cfg := DefaultConfig()
	id, dev, port, listener := "kitchen", "/dev/input/event3", 0, false

	FlagOverrides{InstanceID: &id, InputDevice: &dev, HTTPPort: &port, ListenerEnabled: &listener}.Apply(&cfg)

	assert.Equal(t, "kitchen", cfg.Instance.ID)
	assert.Equal(t, []string{"/dev/input/event3"}, cfg.Input.Devices)
	assert.Equal(t, 0, cfg.HTTP.Port)
	assert.False(t, cfg.Listener.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty id":        func(c *Config) { c.Instance.ID = " " },
		"id with slash":   func(c *Config) { c.Instance.ID = "../x" },
		"no pactl":        func(c *Config) { c.Pactl.Binary = "" },
		"zero tick":       func(c *Config) { c.Display.TickMS = 0 },
		"zero retention":  func(c *Config) { c.Cache.RetentionHours = 0 },
		"bad port":        func(c *Config) { c.HTTP.Port = 70000 },
		"bad log level":   func(c *Config) { c.Logging.Level = "loud" },
		"empty device":    func(c *Config) { c.Input.Devices = []string{""} },
		"nats w/o prefix": func(c *Config) { c.NATS.URL = "nats://x"; c.NATS.SubjectPrefix = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "x/y"), ExpandPath("~/x/y"))
	assert.Equal(t, "/abs", ExpandPath("/abs"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}
