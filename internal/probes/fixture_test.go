package probes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/sysfs"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

func init() {
	report.Strict = true
}

// tree is a fixture root with /proc and /sys present, which procfs requires.
type tree struct {
	t    *testing.T
	root string
}

func newTree(t *testing.T) *tree {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{"proc", "sys"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return &tree{t: t, root: root}
}

func (tr *tree) write(rel, content string) *tree {
	tr.t.Helper()
	p := filepath.Join(tr.root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tr.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		tr.t.Fatal(err)
	}
	return tr
}

func (tr *tree) path(rel string) string {
	return filepath.Join(tr.root, rel)
}

// proc adds a process with the given CPU ticks and resident pages.
func (tr *tree) proc(pid int, name string, utime, stime, rssPages uint64) *tree {
	dir := fmt.Sprintf("proc/%d", pid)
	tr.write(dir+"/stat", statLine(pid, name, utime, stime, rssPages))
	tr.write(dir+"/comm", name+"\n")
	return tr
}

func (tr *tree) procIO(pid int, read, write uint64) *tree {
	return tr.write(fmt.Sprintf("proc/%d/io", pid), fmt.Sprintf(
		"rchar: %d\nwchar: %d\nsyscr: 1\nsyscw: 1\nread_bytes: %d\nwrite_bytes: %d\ncancelled_write_bytes: 0\n",
		read, write, read, write))
}

func (tr *tree) fs() sysfs.FS {
	return sysfs.New(tr.root)
}

func (tr *tree) env(tools toolexec.Runner) Env {
	if tools == nil {
		tools = toolexec.NewFake()
	}
	return Env{Sys: tr.fs(), Tools: tools}
}

// statLine renders a complete /proc/<pid>/stat line.
func statLine(pid int, name string, utime, stime, rssPages uint64) string {
	fields := make([]string, 50)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = "S"
	fields[1] = "1"
	fields[11] = fmt.Sprint(utime)
	fields[12] = fmt.Sprint(stime)
	fields[17] = "1"
	fields[21] = fmt.Sprint(rssPages)
	return fmt.Sprintf("%d (%s) %s\n", pid, name, strings.Join(fields, " "))
}

func run(t *testing.T, m module.Module, cfg module.Config) *report.Report {
	t.Helper()
	r, err := m.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("%s: Run: %v", m.Name(), err)
	}
	if !r.Finalized() {
		t.Fatalf("%s: report not finalized", m.Name())
	}
	return r
}

func withExtra(kv ...string) module.Config {
	cfg := module.DefaultConfig()
	for i := 0; i+1 < len(kv); i += 2 {
		cfg.Extra[kv[i]] = kv[i+1]
	}
	return cfg
}

func findings(r *report.Report, category string) []report.Finding {
	var out []report.Finding
	for _, f := range r.Findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

func metric(r *report.Report, name string) (report.Metric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return report.Metric{}, false
}

func number(t *testing.T, r *report.Report, name string) float64 {
	t.Helper()
	m, ok := metric(r, name)
	if !ok {
		t.Fatalf("metric %q missing; have %+v", name, r.Metrics)
	}
	v, ok := m.Value.Number()
	if !ok {
		t.Fatalf("metric %q is %s, want numeric", name, m.Value.Kind())
	}
	return v
}
