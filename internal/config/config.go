// Package config stores user defaults and threshold overrides in a YAML file
// under the user config directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const configFileName = "config.yaml"

var configDirFunc = configDir

// pathOverride replaces the default location when set with SetPath.
var pathOverride string

type Config struct {
	Interval    time.Duration               `yaml:"interval,omitempty"`
	Top         int                         `yaml:"top,omitempty"`
	ToolTimeout time.Duration               `yaml:"tool_timeout,omitempty"`
	Disabled    []string                    `yaml:"disabled,omitempty"`
	Thresholds  map[string]report.Threshold `yaml:"thresholds,omitempty"`
}

// SetPath points every later call at path instead of the default location.
// An empty path restores the default.
func SetPath(path string) {
	pathOverride = path
}

func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file. A missing file yields an empty Config.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	if c.Top < 0 {
		return fmt.Errorf("top must not be negative, got %d", c.Top)
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("tool_timeout must not be negative, got %s", c.ToolTimeout)
	}
	for key, t := range c.Thresholds {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("threshold %q: %w", key, err)
		}
	}
	return nil
}

// Apply copies the non-zero settings onto mc. Flags applied afterwards win.
func (c *Config) Apply(mc *module.Config) {
	if c.Interval > 0 {
		mc.Interval = c.Interval
	}
	if c.Top > 0 {
		mc.TopN = c.Top
	}
	if c.ToolTimeout > 0 {
		mc.ToolTimeout = c.ToolTimeout
	}
	if len(c.Thresholds) > 0 {
		th := make(map[string]report.Threshold, len(mc.Thresholds)+len(c.Thresholds))
		for k, v := range mc.Thresholds {
			th[k] = v
		}
		for k, v := range c.Thresholds {
			th[k] = v
		}
		mc.Thresholds = th
	}
}

// Enabled reports whether name takes part in an all-modules run.
func (c *Config) Enabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return false
		}
	}
	return true
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config directory: %w", err)
	}
	return filepath.Join(base, "syswhy"), nil
}

func save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}

	return nil
}

// SetThreshold stores an override for key.
func SetThreshold(key string, t report.Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cfg, err := Load()
	if err != nil {
		return err
	}
	if cfg.Thresholds == nil {
		cfg.Thresholds = map[string]report.Threshold{}
	}
	cfg.Thresholds[key] = t
	return save(cfg)
}

// ResetThreshold drops the override for key, or every override when key is
// empty.
func ResetThreshold(key string) error {
	cfg, err := load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if key == "" {
		cfg.Thresholds = nil
		return save(cfg)
	}
	if _, ok := cfg.Thresholds[key]; !ok {
		return fmt.Errorf("no override for %q", key)
	}
	delete(cfg.Thresholds, key)
	return save(cfg)
}

// Overrides returns the configured threshold keys, sorted.
func (c *Config) Overrides() []string {
	keys := make([]string, 0, len(c.Thresholds))
	for k := range c.Thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const exampleConfig = `# syswhy configuration
#
# Time between watch iterations.
interval: 2s
# Processes, files and units listed per probe.
top: 10
# Upper bound for each external tool invocation (nvidia-smi, ping, ...).
tool_timeout: 5s

# Modules skipped by 'syswhy all'.
# disabled:
#   - boot
#   - sleep

# Threshold overrides, keyed as shown by 'syswhy threshold list'.
# thresholds:
#   cpu.usage:
#     warning: 70
#     critical: 90
#   gpu.temperature:
#     warning: 75
#     critical: 85
`

// ErrExists is returned by Init when a config file is already present.
var ErrExists = errors.New("config file already exists")

// Init writes an example config file and returns its path. An existing file
// is only replaced when force is set.
func Init(force bool) (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%s: %w", path, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return "", fmt.Errorf("writing config %s: %w", path, err)
	}
	return path, nil
}
