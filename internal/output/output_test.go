package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jacobarthurs/syswhy/internal/compare"
	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/runner"
)

func sampleReport() *report.Report {
	r := report.New("cpu", "High CPU utilization detected")
	th := report.Threshold{Warning: 70, Critical: 90}
	r.AddMetric(report.Metric{Name: "CPU usage", Value: report.Float(82.5), Unit: "%", Threshold: &th})
	r.AddMetric(report.Metric{Name: "Memory total", Value: report.Int(2 << 30), Unit: "bytes"})
	r.AddMetric(report.Metric{Name: "Uptime", Value: report.Text("1h2m3s")})
	r.AddFinding(report.Finding{Severity: report.Warning, Category: "usage", Message: "CPU usage at 82.5%", Details: "warning at 70%"})
	r.AddFinding(report.Finding{Severity: report.Ok, Category: "load", Message: "load is fine"})
	r.AddRecommendation(report.Recommendation{Priority: 2, Action: "Second", Explanation: "later"})
	r.AddRecommendation(report.Recommendation{Priority: 1, Action: "First", Command: []string{"ps", "aux", "--sort=-%cpu"}})
	r.Finalize()
	return r
}

func requireContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q\n%s", w, out)
		}
	}
}

func TestTextReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewText(&buf, false).Report(sampleReport()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	out := buf.String()

	requireContains(t, out,
		"cpu [WARNING]",
		"High CPU utilization detected",
		"82.50%",
		"2.0 GiB",
		"1h2m3s",
		"Findings (1)",
		"WARNING  CPU usage at 82.5%",
		"→ warning at 70%",
		"$ ps aux --sort=-%cpu",
	)
	if strings.Contains(out, "load is fine") {
		t.Error("ok findings should be hidden without verbose")
	}
	if strings.Index(out, "1. First") > strings.Index(out, "2. Second") {
		t.Errorf("recommendations not sorted by priority:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("escape sequences emitted with color disabled")
	}
}

func TestTextReport_Verbose(t *testing.T) {
	var buf bytes.Buffer
	txt := NewText(&buf, false)
	txt.Verbose = true
	if err := txt.Report(sampleReport()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	requireContains(t, buf.String(), "Findings (2)", "load is fine")
}

func TestTextReport_NoIssues(t *testing.T) {
	r := report.New("mem", "fine")
	r.Finalize()

	var buf bytes.Buffer
	if err := NewText(&buf, false).Report(r); err != nil {
		t.Fatalf("Report: %v", err)
	}
	requireContains(t, buf.String(), "mem [OK]", "No issues found.")
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestTextReport_WriteError(t *testing.T) {
	if err := NewText(failWriter{}, false).Report(sampleReport()); err == nil {
		t.Error("expected write error")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		m    report.Metric
		want string
	}{
		{report.Metric{Value: report.Int(1536), Unit: "bytes"}, "1.5 KiB"},
		{report.Metric{Value: report.Float(12.5), Unit: "%"}, "12.50%"},
		{report.Metric{Value: report.Int(1200), Unit: "RPM"}, "1200 RPM"},
		{report.Metric{Value: report.Bool(true)}, "true"},
		{report.Metric{Value: report.List("a", "b")}, "a, b"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.m); got != tt.want {
			t.Errorf("FormatValue(%+v) = %q, want %q", tt.m, got, tt.want)
		}
	}
}

func testOutcomes() []runner.Outcome {
	return []runner.Outcome{
		{Module: "cpu", Report: sampleReport(), Missing: []module.Permission{module.Root}, Duration: 210 * time.Millisecond},
		{Module: "gpu", Err: &module.Error{Kind: module.KindBackendExhausted, Op: "gpu", Err: errors.New("all backends failed")}},
		{Module: "boot", Skipped: true, SkipReason: "not available on this system"},
		{Module: "net", Err: errors.New("boom")},
	}
}

func TestTextOutcomes(t *testing.T) {
	var buf bytes.Buffer
	if err := NewText(&buf, false).Outcomes(testOutcomes()); err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	requireContains(t, buf.String(),
		"cpu [WARNING]",
		"note: running without root",
		"gpu [FAILED]",
		"backend_exhausted: gpu: all backends failed",
		"boot skipped: not available on this system",
		"internal: boom",
	)
}

func TestTextChanges(t *testing.T) {
	th := &report.Threshold{Warning: 70, Critical: 90}
	deltas := []compare.Delta{
		{
			Module: "cpu", Metric: "CPU usage", Change: compare.Modified,
			Old:      report.Metric{Value: report.Float(40), Unit: "%", Threshold: th},
			New:      report.Metric{Value: report.Float(80), Unit: "%", Threshold: th},
			OldValue: 40, NewValue: 80, Pct: 100, Direction: compare.Regressed,
		},
		{Module: "usb", Metric: "Devices", Change: compare.Added, New: report.Metric{Value: report.Int(4)}},
		{Module: "usb", Metric: "Hubs", Change: compare.Removed},
		{
			Module: "batt", Metric: "BAT0 status", Change: compare.Modified,
			Old: report.Metric{Value: report.Text("Charging")},
			New: report.Metric{Value: report.Text("Full")},
		},
	}

	var buf bytes.Buffer
	if err := NewText(&buf, false).Changes(deltas); err != nil {
		t.Fatalf("Changes: %v", err)
	}
	requireContains(t, buf.String(),
		"Changes since last run",
		"cpu CPU usage: 40.00% → 80.00% ↑ (+100.0%)",
		"+ usb Devices 4",
		"- usb Hubs",
		"batt BAT0 status: Charging → Full",
	)
}

func TestTextChanges_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewText(&buf, false).Changes(nil); err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("got %q, want no output", buf.String())
	}
}

func TestNewEnvelope(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	env := NewEnvelope(started, testOutcomes())

	if env.RunID == "" {
		t.Error("run id is empty")
	}
	if !env.StartedAt.Equal(started) || env.StartedAt.Location() != time.UTC {
		t.Errorf("StartedAt = %v, want %v in UTC", env.StartedAt, started)
	}
	if len(env.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(env.Results))
	}

	wantStatus := []string{"ok", "failed", "skipped", "failed"}
	for i, res := range env.Results {
		if res.Status != wantStatus[i] {
			t.Errorf("results[%d].Status = %q, want %q", i, res.Status, wantStatus[i])
		}
	}
	if env.Results[0].Report == nil || env.Results[0].Error != nil {
		t.Errorf("ok result = %+v", env.Results[0])
	}
	if got := env.Results[1].Error; got == nil || got.Kind != "backend_exhausted" {
		t.Errorf("failed result error = %+v, want backend_exhausted", got)
	}
	if got := env.Results[3].Error; got == nil || got.Kind != "internal" || got.Message != "boom" {
		t.Errorf("untyped error = %+v, want internal/boom", got)
	}
	if env.Results[2].Report != nil || env.Results[2].Error != nil {
		t.Errorf("skipped result = %+v", env.Results[2])
	}
}

func TestRenderJSON_Envelope(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderJSON(&buf, NewEnvelope(time.Now(), testOutcomes())); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	var decoded struct {
		RunID   string `json:"run_id"`
		Results []struct {
			Module             string   `json:"module"`
			Status             string   `json:"status"`
			MissingPermissions []string `json:"missing_permissions"`
			Report             *struct {
				OverallSeverity string `json:"overall_severity"`
				Metrics         []struct {
					Name  string `json:"name"`
					Value struct {
						Kind  string `json:"kind"`
						Value any    `json:"value"`
					} `json:"value"`
				} `json:"metrics"`
			} `json:"report"`
			Error *struct {
				Kind string `json:"kind"`
			} `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decoding envelope: %v\n%s", err, buf.String())
	}

	cpu := decoded.Results[0]
	if cpu.Report == nil {
		t.Fatal("cpu report missing")
	}
	if cpu.Report.OverallSeverity != "warning" {
		t.Errorf("overall_severity = %q, want warning", cpu.Report.OverallSeverity)
	}
	if got := cpu.Report.Metrics[0].Value.Kind; got != "float" {
		t.Errorf("metric kind = %q, want float", got)
	}
	if len(cpu.MissingPermissions) != 1 || cpu.MissingPermissions[0] != "root" {
		t.Errorf("missing_permissions = %v, want [root]", cpu.MissingPermissions)
	}
	if decoded.Results[1].Error == nil || decoded.Results[1].Report != nil {
		t.Errorf("failed result = %+v", decoded.Results[1])
	}
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syswhy.prom")
	if err := WriteTextfile(path, []*report.Report{sampleReport(), nil}); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	out := string(data)

	requireContains(t, out,
		`syswhy_report_severity{module="cpu"} 2`,
		`syswhy_metric{module="cpu",name="CPU usage",unit="%"} 82.5`,
		`syswhy_metric{module="cpu",name="Memory total",unit="bytes"} 2.147483648e+09`,
		`syswhy_findings{module="cpu",severity="warning"} 1`,
		`syswhy_findings{module="cpu",severity="critical"} 0`,
	)
	if strings.Contains(out, "Uptime") {
		t.Error("text metrics should not be exported")
	}
}
