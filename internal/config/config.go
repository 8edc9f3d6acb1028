package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Gphoto2Config describes how gphoto2 is launched.
type Gphoto2Config struct {
	Program           string   `yaml:"program"`             // executable, default "gphoto2"
	Locale            string   `yaml:"locale"`              // forced LANG/LC_ALL, default "en_US.UTF-8"
	Prompt            string   `yaml:"prompt"`              // shell prompt token, default "gphoto2:"
	StandardArgs      []string `yaml:"standard_args"`       // passed on every launch, e.g. ["--quiet"]
	Camera            string   `yaml:"camera"`              // --camera model, empty = auto
	Port              string   `yaml:"port"`                // --port, empty = auto
	ResponseTimeoutMs int      `yaml:"response_timeout_ms"` // interactive response bound, 0 = none
}

// WakeConfig describes the optional GPIO line used to wake a sleeping camera.
type WakeConfig struct {
	Enabled  bool `yaml:"enabled"`
	FocusPin int  `yaml:"focus_pin"` // GPIO pin for FOCUS line (BCM)
	PulseMs  int  `yaml:"pulse_ms"`  // half-press duration (ms)
	SettleMs int  `yaml:"settle_ms"` // wait after release for USB enumeration (ms)
	// Note: GND is physically connected to Raspberry Pi ground
}

// WebConfig configures the HTTP control surface.
type WebConfig struct {
	Port int `yaml:"port"` // default port when -web is given without a value
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int    `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	LogFormat  string `yaml:"log_format"`  // "text" or "json"
	MockGPIO   bool   `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Gphoto2  Gphoto2Config  `yaml:"gphoto2"`
	Wake     WakeConfig     `yaml:"wake"`
	Web      WebConfig      `yaml:"web"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ValidateConfigPath rejects paths that are empty, escape through "..",
// are not .yaml files, or do not live directly in a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == ".." {
			return fmt.Errorf("config path %q must not contain ..", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file is %d bytes, limit is %d", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Gphoto2.ResponseTimeoutMs < 0 {
		return fmt.Errorf("gphoto2.response_timeout_ms must be >= 0, got %d", c.Gphoto2.ResponseTimeoutMs)
	}
	for _, arg := range c.Gphoto2.StandardArgs {
		if arg == "--shell" {
			return fmt.Errorf("gphoto2.standard_args must not contain --shell")
		}
	}
	if c.Wake.Enabled && (c.Wake.FocusPin <= 0 || c.Wake.FocusPin > 27) {
		return fmt.Errorf("wake.focus_pin must be a BCM pin between 1 and 27, got %d", c.Wake.FocusPin)
	}
	if c.Wake.PulseMs < 0 || c.Wake.SettleMs < 0 {
		return fmt.Errorf("wake.pulse_ms and wake.settle_ms must be >= 0")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be 1-65535, got %d", c.Web.Port)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	switch strings.ToLower(c.Defaults.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("defaults.log_format must be text or json, got %q", c.Defaults.LogFormat)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Gphoto2.Program == "" {
		c.Gphoto2.Program = "gphoto2"
	}
	if c.Gphoto2.Locale == "" {
		c.Gphoto2.Locale = "en_US.UTF-8"
	}
	if c.Gphoto2.Prompt == "" {
		c.Gphoto2.Prompt = "gphoto2:"
	}
	if c.Wake.PulseMs == 0 {
		c.Wake.PulseMs = 300 // half-press long enough for the D90 to leave standby
	}
	if c.Wake.SettleMs == 0 {
		c.Wake.SettleMs = 1500 // USB re-enumeration
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Defaults.LogFormat == "" {
		c.Defaults.LogFormat = "text"
	}
}

// ResponseTimeout returns the interactive response bound, zero for none.
func (c *Config) ResponseTimeout() time.Duration {
	return time.Duration(c.Gphoto2.ResponseTimeoutMs) * time.Millisecond
}

// WakePulse returns the half-press duration.
func (c *Config) WakePulse() time.Duration {
	return time.Duration(c.Wake.PulseMs) * time.Millisecond
}

// WakeSettle returns the wait after the wake pulse.
func (c *Config) WakeSettle() time.Duration {
	return time.Duration(c.Wake.SettleMs) * time.Millisecond
}
