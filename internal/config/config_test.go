package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

func setupTestConfig(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	origFunc := configDirFunc
	configDirFunc = func() (string, error) {
		return tmpDir, nil
	}
	t.Cleanup(func() {
		configDirFunc = origFunc
		SetPath("")
	})
	return tmpDir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	setupTestConfig(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Interval != 0 || cfg.Top != 0 || len(cfg.Thresholds) != 0 {
		t.Errorf("got %+v, want empty config", cfg)
	}
}

func TestLoad_Fields(t *testing.T) {
	dir := setupTestConfig(t)
	writeConfig(t, dir, `
interval: 5s
top: 3
tool_timeout: 1500ms
disabled: [boot, sleep]
thresholds:
  cpu.usage:
    warning: 60
    critical: 80
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", cfg.Interval)
	}
	if cfg.Top != 3 {
		t.Errorf("Top = %d, want 3", cfg.Top)
	}
	if cfg.ToolTimeout != 1500*time.Millisecond {
		t.Errorf("ToolTimeout = %v, want 1.5s", cfg.ToolTimeout)
	}
	if cfg.Enabled("boot") || !cfg.Enabled("cpu") {
		t.Errorf("Disabled = %v", cfg.Disabled)
	}
	if got := cfg.Thresholds["cpu.usage"]; got != (report.Threshold{Warning: 60, Critical: 80}) {
		t.Errorf("cpu.usage = %+v", got)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	dir := setupTestConfig(t)
	writeConfig(t, dir, "thresholds:\n  mem.usage:\n    warning: 95\n    critical: 80\n")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for inverted threshold")
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := setupTestConfig(t)
	writeConfig(t, dir, "interval: [nope\n")

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSetPath(t *testing.T) {
	setupTestConfig(t)
	custom := filepath.Join(t.TempDir(), "nested", "custom.yaml")
	SetPath(custom)

	if err := SetThreshold("temp.sensor", report.Threshold{Warning: 70, Critical: 85}); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Fatalf("config not written to override path: %v", err)
	}
}

func TestApply(t *testing.T) {
	cfg := &Config{
		Interval:    10 * time.Second,
		ToolTimeout: time.Second,
		Thresholds:  map[string]report.Threshold{"disk.fill": {Warning: 70, Critical: 80}},
	}
	mc := module.DefaultConfig()
	cfg.Apply(&mc)

	if mc.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", mc.Interval)
	}
	if mc.TopN != module.DefaultTopN {
		t.Errorf("TopN = %d, want default %d", mc.TopN, module.DefaultTopN)
	}
	if mc.ToolTimeout != time.Second {
		t.Errorf("ToolTimeout = %v, want 1s", mc.ToolTimeout)
	}
	if got := mc.Threshold("disk.fill", report.Threshold{}); got.Warning != 70 {
		t.Errorf("disk.fill = %+v", got)
	}
	if err := mc.Validate(); err != nil {
		t.Errorf("applied config invalid: %v", err)
	}
}

func TestSetThreshold_RoundTrip(t *testing.T) {
	dir := setupTestConfig(t)

	if err := SetThreshold("cpu.usage", report.Threshold{Warning: 50, Critical: 75}); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}
	if err := SetThreshold("cpu.usage", report.Threshold{Warning: 55, Critical: 75}); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}
	if err := SetThreshold("mem.usage", report.Threshold{Warning: 85, Critical: 97}); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	keys := cfg.Overrides()
	if len(keys) != 2 || keys[0] != "cpu.usage" || keys[1] != "mem.usage" {
		t.Errorf("Overrides() = %v, want [cpu.usage mem.usage]", keys)
	}
	if cfg.Thresholds["cpu.usage"].Warning != 55 {
		t.Errorf("cpu.usage not updated: %+v", cfg.Thresholds["cpu.usage"])
	}

	info, err := os.Stat(filepath.Join(dir, configFileName))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestSetThreshold_Invalid(t *testing.T) {
	setupTestConfig(t)

	if err := SetThreshold("cpu.usage", report.Threshold{Warning: 90, Critical: 90}); err == nil {
		t.Fatal("expected error for warning == critical")
	}
}

func TestResetThreshold(t *testing.T) {
	setupTestConfig(t)

	if err := SetThreshold("cpu.usage", report.Threshold{Warning: 50, Critical: 75}); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}
	if err := SetThreshold("mem.usage", report.Threshold{Warning: 85, Critical: 97}); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}

	if err := ResetThreshold("cpu.usage"); err != nil {
		t.Fatalf("ResetThreshold failed: %v", err)
	}
	if err := ResetThreshold("cpu.usage"); err == nil {
		t.Error("expected error resetting a key with no override")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := cfg.Thresholds["cpu.usage"]; ok {
		t.Error("cpu.usage still present")
	}

	if err := ResetThreshold(""); err != nil {
		t.Fatalf("ResetThreshold(all) failed: %v", err)
	}
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Thresholds) != 0 {
		t.Errorf("Thresholds = %v, want none", cfg.Thresholds)
	}
}

func TestResetThreshold_NoConfigFile(t *testing.T) {
	setupTestConfig(t)

	if err := ResetThreshold(""); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInit(t *testing.T) {
	setupTestConfig(t)

	path, err := Init(false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Interval != 2*time.Second || cfg.Top != 10 || cfg.ToolTimeout != 5*time.Second {
		t.Errorf("example config = %+v", cfg)
	}

	if _, err := Init(false); !errors.Is(err, ErrExists) {
		t.Errorf("second Init error = %v, want ErrExists", err)
	}
	if got, err := Init(true); err != nil || got != path {
		t.Errorf("Init(force) = %q, %v", got, err)
	}
}
