package probes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/procfs"

	"github.com/jacobarthurs/syswhy/internal/report"
)

func formatBytes(b uint64) string {
	return humanize.IBytes(b)
}

func pct(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

func priorityFor(sev report.Severity) int {
	switch {
	case sev >= report.Critical:
		return 1
	case sev >= report.Warning:
		return 2
	default:
		return 3
	}
}

// procEntry is the per-process view shared by the cpu, mem and io probes.
type procEntry struct {
	pid  int
	comm string
	val  float64
}

func topN(entries []procEntry, n int) []procEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].val != entries[j].val {
			return entries[i].val > entries[j].val
		}
		return entries[i].pid < entries[j].pid
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func procLabel(p procEntry) string {
	return fmt.Sprintf("%s (PID %d)", p.comm, p.pid)
}

// comm reads a process name, falling back to the pid when it has gone away.
func comm(p procfs.Proc) string {
	name, err := p.Comm()
	if err != nil || strings.TrimSpace(name) == "" {
		return fmt.Sprintf("pid %d", p.PID)
	}
	return strings.TrimSpace(name)
}
