package module

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultTopN        = 10
	DefaultToolTimeout = 5 * time.Second
)

// Module is a single diagnostic probe. Run degrades recoverable problems into
// findings and only returns an error when no meaningful report can be built.
type Module interface {
	Name() string
	Description() string
	Run(ctx context.Context, cfg Config) (*report.Report, error)
	RequiredPermissions() []Permission
	IsAvailable() bool
}

// Base supplies the optional parts of Module. Embed it and override as needed.
type Base struct{}

func (Base) RequiredPermissions() []Permission { return nil }
func (Base) IsAvailable() bool                 { return true }

type Config struct {
	Verbose     bool
	Watch       bool
	Interval    time.Duration
	TopN        int
	JSONOutput  bool
	ToolTimeout time.Duration
	Extra       map[string]string
	Thresholds  map[string]report.Threshold
}

func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		TopN:        DefaultTopN,
		ToolTimeout: DefaultToolTimeout,
		Extra:       map[string]string{},
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("top must be positive, got %d", c.TopN)
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("tool timeout must not be negative, got %s", c.ToolTimeout)
	}
	for key, t := range c.Thresholds {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("threshold %q: %w", key, err)
		}
	}
	return nil
}

// Threshold returns the configured override for key, or def.
func (c Config) Threshold(key string, def report.Threshold) report.Threshold {
	if t, ok := c.Thresholds[key]; ok {
		return t
	}
	return def
}

func (c Config) ExtraString(key, def string) string {
	if v, ok := c.Extra[key]; ok && v != "" {
		return v
	}
	return def
}

func (c Config) ExtraBool(key string) bool {
	v, ok := c.Extra[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func (c Config) ExtraInt(key string, def int) int {
	v, ok := c.Extra[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func (c Config) ExtraFloat(key string, def float64) float64 {
	v, ok := c.Extra[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// ThresholdProvider is implemented by modules whose thresholds can be
// overridden from the config file.
type ThresholdProvider interface {
	DefaultThresholds() map[string]report.Threshold
}
