package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoader(viper.New()).Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "airsane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: mock
device: "mock:demo"
listen_port: 9000
mdns: false
username: scan
password: secret
button_poll_interval: 2s
`), 0o644))

	l := NewLoader(viper.New())
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendMock, cfg.Backend)
	assert.Equal(t, "mock:demo", cfg.Device)
	assert.Equal(t, 9000, cfg.ListenPort)
	assert.False(t, cfg.MDNS)
	assert.Equal(t, "scan", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 2*time.Second, cfg.ButtonPollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, path, l.ConfigFileUsed())
}

func TestLoadSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airsane.yaml"), []byte("service_name: Office\n"), 0o644))

	cfg, err := NewLoader(viper.New()).Load("")
	require.NoError(t, err)
	assert.Equal(t, "Office", cfg.ServiceName)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AIRSANE_LISTEN_PORT", "9090")
	t.Setenv("AIRSANE_BACKEND", "mock")
	t.Setenv("AIRSANE_LOCAL_ONLY", "true")

	cfg, err := NewLoader(viper.New()).Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ListenPort)
	assert.Equal(t, BackendMock, cfg.Backend)
	assert.True(t, cfg.LocalOnly)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(viper.New()).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airsane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: twain\n"), 0o644))

	_, err := NewLoader(viper.New()).Load(path)
	assert.ErrorContains(t, err, "backend")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"mock backend", func(c *Config) { c.Backend = BackendMock }, ""},
		{"unknown backend", func(c *Config) { c.Backend = "twain" }, "backend"},
		{"port zero", func(c *Config) { c.ListenPort = 0 }, "listen_port"},
		{"port too high", func(c *Config) { c.ListenPort = 70000 }, "listen_port"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"log level case", func(c *Config) { c.LogLevel = "DEBUG" }, ""},
		{"negative interval", func(c *Config) { c.ButtonPollInterval = -time.Second }, "button_poll_interval"},
		{"polling disabled", func(c *Config) { c.ButtonPollInterval = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
