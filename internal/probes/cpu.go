package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	CPUUsageWarnPct = 70
	CPUUsageCritPct = 90

	// Usage above which a recommendation to shed load is made.
	cpuRecommendPct = 80
	// Single process share of one core that is worth a warning.
	cpuHogPct = 50
	// Processes below this share are not listed.
	cpuMinListPct = 0.5
)

const KeyCPUUsage = "cpu.usage"

type CPU struct {
	module.Base
	env Env

	// betweenSamples runs after the first sample; tests use it to advance
	// the fixture.
	betweenSamples func()
}

func NewCPU(env Env) *CPU { return &CPU{env: env} }

func (c *CPU) Name() string        { return "cpu" }
func (c *CPU) Description() string { return "Explain high CPU usage and identify top consumers" }

func (c *CPU) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadProc}
}

func (c *CPU) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{KeyCPUUsage: {Warning: CPUUsageWarnPct, Critical: CPUUsageCritPct}}
}

type cpuSample struct {
	total procfs.CPUStat
	procs map[int]procEntry
}

func (c *CPU) sample(fs procfs.FS) (cpuSample, int, error) {
	stat, err := fs.Stat()
	if err != nil {
		return cpuSample{}, 0, err
	}
	s := cpuSample{total: stat.CPUTotal, procs: map[int]procEntry{}}

	procs, err := fs.AllProcs()
	if err != nil {
		c.env.log().WithError(err).Debug("listing processes")
		return s, len(stat.CPU), nil
	}
	for _, p := range procs {
		ps, err := p.Stat()
		if err != nil {
			continue
		}
		s.procs[p.PID] = procEntry{pid: p.PID, comm: ps.Comm, val: ps.CPUTime()}
	}
	return s, len(stat.CPU), nil
}

func busy(s procfs.CPUStat) (busy, total float64) {
	idle := s.Idle + s.Iowait
	total = s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
	return total - idle, total
}

func (c *CPU) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	fs, err := c.env.proc()
	if err != nil {
		return nil, err
	}

	first, cores, err := c.sample(fs)
	if err != nil {
		return nil, fmt.Errorf("sampling cpu: %w", err)
	}
	if c.betweenSamples != nil {
		c.betweenSamples()
	}
	gap := c.env.CPUSample
	if gap > 0 {
		t := time.NewTimer(gap)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	second, _, err := c.sample(fs)
	if err != nil {
		return nil, fmt.Errorf("sampling cpu: %w", err)
	}
	if cores == 0 {
		cores = 1
	}

	busy1, total1 := busy(first.total)
	busy2, total2 := busy(second.total)
	usage := pct(busy2-busy1, total2-total1)

	th := cfg.Threshold(KeyCPUUsage, report.Threshold{Warning: CPUUsageWarnPct, Critical: CPUUsageCritPct})

	summary := "CPU usage within normal range"
	switch {
	case usage > cpuRecommendPct:
		summary = "High CPU utilization detected"
	case usage > 50:
		summary = "Moderate CPU usage"
	}
	r := report.New(c.Name(), summary)

	r.AddMetric(report.Metric{Name: "CPU usage", Value: report.Float(usage), Unit: "%", Threshold: &th})
	r.AddMetric(report.Metric{Name: "CPU cores", Value: report.Int(int64(cores))})

	if load, err := fs.LoadAvg(); err == nil {
		r.AddMetric(report.Metric{
			Name:  "Load average",
			Value: report.Text(fmt.Sprintf("%.2f / %.2f / %.2f (1m / 5m / 15m)", load.Load1, load.Load5, load.Load15)),
		})
		r.AddMetric(report.Metric{Name: "Load per core", Value: report.Float(load.Load1 / float64(cores))})
		if perCore := load.Load1 / float64(cores); perCore > 1 {
			sev := report.Info
			if perCore > 2 {
				sev = report.Warning
			}
			r.AddFinding(report.Finding{
				Severity: sev,
				Category: "load",
				Message:  fmt.Sprintf("1-minute load %.2f exceeds %d cores", load.Load1, cores),
				Details:  "Runnable tasks are queueing for CPU time.",
			})
		}
	}

	if sev := th.Classify(usage); sev > report.Ok {
		r.AddFinding(report.Finding{
			Severity: sev,
			Category: "usage",
			Message:  fmt.Sprintf("CPU usage at %.1f%%", usage),
			Details:  fmt.Sprintf("warning at %.0f%%, critical at %.0f%%", th.Warning, th.Critical),
		})
	}

	// Process share of one core over the sampling window.
	window := (total2 - total1) / float64(cores)
	var hogs []procEntry
	if window > 0 {
		for pid, after := range second.procs {
			before, ok := first.procs[pid]
			if !ok {
				continue
			}
			share := pct(after.val-before.val, window)
			if share >= cpuMinListPct {
				hogs = append(hogs, procEntry{pid: pid, comm: after.comm, val: share})
			}
		}
	}
	for _, p := range topN(hogs, cfg.TopN) {
		sev := report.Info
		if p.val > cpuHogPct {
			sev = report.Warning
		}
		r.AddFinding(report.Finding{
			Severity: sev,
			Category: "process",
			Message:  fmt.Sprintf("%s consuming %.1f%% CPU", procLabel(p), p.val),
		})
	}

	if usage > cpuRecommendPct {
		r.AddRecommendation(report.Recommendation{
			Priority:    1,
			Action:      "Identify and reduce load from the top processes",
			Command:     []string{"ps", "aux", "--sort=-%cpu"},
			Explanation: "High CPU often comes from browsers, IDEs or background indexing.",
		})
	}

	r.Finalize()
	return r, nil
}
