package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithWriter_JSONWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, false, "info")
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	l.WithField("module", "cpu").Info("probe finished")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["module"] != "cpu" {
		t.Errorf("module = %v, want cpu", entry["module"])
	}
}

func TestNewWithWriter_TextWhenTTY(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, true, "debug")
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}
	l.Debug("running nvidia-smi")
	if !strings.Contains(buf.String(), "running nvidia-smi") {
		t.Errorf("missing message in %q", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Error("terminal output should not be JSON")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	if err != nil || lvl != logrus.WarnLevel {
		t.Errorf("ParseLevel(\"\") = %v, %v; want warning", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
