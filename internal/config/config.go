package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Backends selectable with the backend setting.
const (
	BackendLibSANE = "libsane"
	BackendMock    = "mock"
)

// Config is the daemon and CLI configuration. It is loaded from a config
// file, AIRSANE_* environment variables and command-line flags.
type Config struct {
	Backend     string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Device      string `mapstructure:"device" yaml:"device" json:"device"`
	LocalOnly   bool   `mapstructure:"local_only" yaml:"local_only" json:"local_only"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	ListenPort  int    `mapstructure:"listen_port" yaml:"listen_port" json:"listen_port"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
	MDNS        bool   `mapstructure:"mdns" yaml:"mdns" json:"mdns"`

	// Username and Password answer backend authorization requests.
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`

	// ButtonPollInterval is how often hardware buttons are read. Zero
	// disables polling.
	ButtonPollInterval time.Duration `mapstructure:"button_poll_interval" yaml:"button_poll_interval" json:"button_poll_interval"`
}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendLibSANE,
		LogLevel:           "info",
		ListenPort:         8080,
		MDNS:               true,
		ButtonPollInterval: 500 * time.Millisecond,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend != BackendLibSANE && c.Backend != BackendMock {
		errs = append(errs, fmt.Errorf("backend must be %q or %q, got %q", BackendLibSANE, BackendMock, c.Backend))
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port must be between 1 and 65535, got %d", c.ListenPort))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(logLevels, ", "), c.LogLevel))
	}
	if c.ButtonPollInterval < 0 {
		errs = append(errs, fmt.Errorf("button_poll_interval must not be negative, got %s", c.ButtonPollInterval))
	}
	return errors.Join(errs...)
}
