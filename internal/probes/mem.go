package probes

import (
	"context"
	"fmt"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	MemUsageWarnPct = 80
	MemUsageCritPct = 95

	memRecommendPct = 85
	swapWarnPct     = 50
	// Processes with a smaller resident set are not listed.
	memMinListBytes = 50 << 20
)

const KeyMemUsage = "mem.usage"

type Mem struct {
	module.Base
	env Env
}

func NewMem(env Env) *Mem { return &Mem{env: env} }

func (m *Mem) Name() string        { return "mem" }
func (m *Mem) Description() string { return "Explain memory consumption and identify top consumers" }

func (m *Mem) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadProc}
}

func (m *Mem) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{KeyMemUsage: {Warning: MemUsageWarnPct, Critical: MemUsageCritPct}}
}

func kb(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v * 1024
}

func (m *Mem) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	fs, err := m.env.proc()
	if err != nil {
		return nil, err
	}
	info, err := fs.Meminfo()
	if err != nil {
		return nil, fmt.Errorf("reading meminfo: %w", err)
	}

	total := kb(info.MemTotal)
	avail := kb(info.MemAvailable)
	if info.MemAvailable == nil {
		// Kernels before 3.14 have no MemAvailable.
		avail = kb(info.MemFree) + kb(info.Buffers) + kb(info.Cached)
	}
	used := total - min(avail, total)
	usage := pct(float64(used), float64(total))

	r := report.New(m.Name(), "Memory analysis")
	th := cfg.Threshold(KeyMemUsage, report.Threshold{Warning: MemUsageWarnPct, Critical: MemUsageCritPct})

	r.AddMetric(report.Metric{Name: "Memory total", Value: report.Int(int64(total)), Unit: "bytes"})
	r.AddMetric(report.Metric{Name: "Memory used", Value: report.Int(int64(used)), Unit: "bytes"})
	r.AddMetric(report.Metric{Name: "Memory usage", Value: report.Float(usage), Unit: "%", Threshold: &th})

	if sev := th.Classify(usage); sev > report.Ok {
		r.AddFinding(report.Finding{
			Severity: sev,
			Category: "mem",
			Message:  fmt.Sprintf("Memory usage is %.0f%%; OOM risk if load increases", usage),
			Details:  fmt.Sprintf("Used %s of %s", formatBytes(used), formatBytes(total)),
		})
	}

	swapTotal := kb(info.SwapTotal)
	if swapTotal > 0 {
		swapUsed := swapTotal - min(kb(info.SwapFree), swapTotal)
		swapPct := pct(float64(swapUsed), float64(swapTotal))
		r.AddMetric(report.Metric{Name: "Swap used", Value: report.Int(int64(swapUsed)), Unit: "bytes"})
		r.AddMetric(report.Metric{Name: "Swap usage", Value: report.Float(swapPct), Unit: "%"})
		if swapPct > swapWarnPct {
			r.AddFinding(report.Finding{
				Severity: report.Warning,
				Category: "swap",
				Message:  fmt.Sprintf("High swap usage (%.0f%%); system may be under memory pressure", swapPct),
				Details:  "Consider adding RAM or reducing memory-hungry processes.",
			})
		}
	}

	var rss, swapped []procEntry
	if procs, err := fs.AllProcs(); err == nil {
		showSwap := cfg.ExtraBool("swap")
		for _, p := range procs {
			if ps, err := p.Stat(); err == nil && ps.ResidentMemory() >= memMinListBytes {
				rss = append(rss, procEntry{pid: p.PID, comm: ps.Comm, val: float64(ps.ResidentMemory())})
			}
			if !showSwap {
				continue
			}
			if st, err := p.NewStatus(); err == nil && st.VmSwap > 0 {
				swapped = append(swapped, procEntry{pid: p.PID, comm: st.Name, val: float64(st.VmSwap)})
			}
		}
	} else {
		m.env.log().WithError(err).Debug("listing processes")
	}

	for _, p := range topN(rss, cfg.TopN) {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "process",
			Message:  fmt.Sprintf("%s uses %s", procLabel(p), formatBytes(uint64(p.val))),
			Details:  "RSS (resident set size)",
		})
	}
	for _, p := range topN(swapped, cfg.TopN) {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "swap",
			Message:  fmt.Sprintf("%s has %s swapped out", procLabel(p), formatBytes(uint64(p.val))),
		})
	}

	if usage > memRecommendPct {
		r.AddRecommendation(report.Recommendation{
			Priority:    1,
			Action:      "Identify and reduce memory-heavy processes or add RAM",
			Command:     []string{"ps", "aux", "--sort=-%mem"},
			Explanation: "High memory usage can cause swapping and slowdowns.",
		})
	}

	r.SetSummary(fmt.Sprintf("%s of %s in use (%.0f%%)", formatBytes(used), formatBytes(total), usage))
	r.Finalize()
	return r, nil
}
