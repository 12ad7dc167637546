package gpu

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/backend"
	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/sysfs"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

const (
	UtilizationWarnPct = 80
	UtilizationCritPct = 95
	MemoryWarnPct      = 80
	MemoryCritPct      = 95
	TempWarnC          = 75
	TempCritC          = 85
)

// Threshold keys accepted in the config file.
const (
	KeyUtilization = "gpu.utilization"
	KeyMemory      = "gpu.memory"
	KeyTemperature = "gpu.temperature"
)

type Probe struct {
	module.Base
	collector Collector
}

func New(fsys sysfs.FS, tools toolexec.Runner) *Probe {
	return &Probe{collector: Collector{FS: fsys, Tools: tools}}
}

func (p *Probe) Name() string { return "gpu" }

func (p *Probe) Description() string {
	return "Explain GPU utilization, memory and temperature (NVIDIA/AMD/Intel)"
}

func (p *Probe) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadSys}
}

// deviceResult is the raw payload entry for one device.
type deviceResult struct {
	Device   Device   `json:"device"`
	Backend  string   `json:"backend,omitempty"`
	Stats    *Stats   `json:"stats,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

func (p *Probe) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	devices, err := Discover(p.collector.FS)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, &module.Error{Kind: module.KindPermissionDenied, Op: "listing " + drmClass, Err: err}
		}
		return nil, fmt.Errorf("discovering GPUs: %w", err)
	}

	r := report.New(p.Name(), "GPU diagnostics")

	if len(devices) == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "devices",
			Message:  "No GPU devices detected",
			Details:  "Nothing under " + drmClass + " looks like a DRM card.",
		})
		r.SetSummary("No GPU devices detected.")
		r.Finalize()
		return r, nil
	}

	if sel := cfg.ExtraString("device", ""); sel != "" {
		var picked []Device
		for _, d := range devices {
			if d.Matches(sel) {
				picked = append(picked, d)
			}
		}
		if len(picked) == 0 {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "devices",
				Message:  fmt.Sprintf("No GPU matches %q", sel),
				Details:  "Known devices: " + cardList(devices),
			})
			r.SetSummary(fmt.Sprintf("No GPU matches %q.", sel))
			r.Finalize()
			return r, nil
		}
		devices = picked
	}

	thresholds := classifier{
		util: cfg.Threshold(KeyUtilization, report.Threshold{Warning: UtilizationWarnPct, Critical: UtilizationCritPct}),
		mem:  cfg.Threshold(KeyMemory, report.Threshold{Warning: MemoryWarnPct, Critical: MemoryCritPct}),
		temp: cfg.Threshold(KeyTemperature, report.Threshold{Warning: TempWarnC, Critical: TempCritC}),
	}

	var results []deviceResult
	var names []string
	for _, d := range devices {
		label := d.Card
		r.AddMetric(report.Metric{Name: label + " vendor", Value: report.Text(d.Vendor.String())})
		if d.PCIAddress != "" {
			r.AddMetric(report.Metric{Name: label + " pci address", Value: report.Text(d.PCIAddress)})
		}

		stats, res, err := p.collector.Chain(d.Vendor).Resolve(ctx, d)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		result := deviceResult{Device: d, Failures: res.Failures()}
		if err != nil {
			addExhausted(r, d, res)
			names = append(names, fmt.Sprintf("%s (%s, no data)", label, d.Vendor))
			results = append(results, result)
			continue
		}

		result.Backend = res.Winner
		result.Stats = &stats
		results = append(results, result)

		r.AddMetric(report.Metric{Name: label + " backend", Value: report.Text(res.Winner)})
		if stats.Name != "" {
			r.AddMetric(report.Metric{Name: label + " name", Value: report.Text(stats.Name)})
			names = append(names, fmt.Sprintf("%s (%s)", label, stats.Name))
		} else {
			names = append(names, fmt.Sprintf("%s (%s)", label, d.Vendor))
		}
		thresholds.apply(r, d, stats)
	}

	r.SetSummary(fmt.Sprintf("%d GPU device(s): %s", len(devices), strings.Join(names, ", ")))
	if cfg.Verbose {
		r.SetRaw(results)
	}
	r.Finalize()
	return r, nil
}

func addExhausted(r *report.Report, d Device, res backend.Resolution) {
	r.AddFinding(report.Finding{
		Severity: report.Warning,
		Category: "backend",
		Message:  fmt.Sprintf("Could not read %s (%s) through any backend", d.Card, d.Vendor),
		Details:  strings.Join(res.Failures(), "; "),
	})
	if tool := d.Vendor.InstallHint(); tool != "" {
		r.AddRecommendation(report.Recommendation{
			Priority:    2,
			Action:      fmt.Sprintf("Install %s for %s GPU statistics", tool, d.Vendor),
			Explanation: "The kernel driver alone does not publish utilization or memory for this device.",
		})
	}
}

type classifier struct {
	util, mem, temp report.Threshold
}

func (c classifier) apply(r *report.Report, d Device, s Stats) {
	label := d.Card

	if s.UtilizationPct != nil {
		v := *s.UtilizationPct
		r.AddMetric(report.Metric{Name: label + " utilization", Value: report.Float(v), Unit: "%", Threshold: &c.util})
		if sev := c.util.Classify(v); sev > report.Ok {
			r.AddFinding(report.Finding{
				Severity: sev,
				Category: "utilization",
				Message:  fmt.Sprintf("%s utilization at %.0f%%", label, v),
				Details:  fmt.Sprintf("warning at %.0f%%, critical at %.0f%%", c.util.Warning, c.util.Critical),
			})
			r.AddRecommendation(report.Recommendation{
				Priority:    priorityFor(sev),
				Action:      "Identify the processes keeping the GPU busy",
				Command:     processCommand(d.Vendor),
				Explanation: "Sustained high utilization means work is queueing on the GPU.",
			})
		}
	}

	if s.MemoryUsedMiB != nil {
		r.AddMetric(report.Metric{Name: label + " memory used", Value: report.Float(*s.MemoryUsedMiB), Unit: "MiB"})
	}
	if s.MemoryTotalMiB != nil {
		r.AddMetric(report.Metric{Name: label + " memory total", Value: report.Float(*s.MemoryTotalMiB), Unit: "MiB"})
	}
	if pct, ok := s.MemoryPct(); ok {
		r.AddMetric(report.Metric{Name: label + " memory usage", Value: report.Float(pct), Unit: "%", Threshold: &c.mem})
		if sev := c.mem.Classify(pct); sev > report.Ok {
			r.AddFinding(report.Finding{
				Severity: sev,
				Category: "memory",
				Message:  fmt.Sprintf("%s memory %.0f%% used (%.0f of %.0f MiB)", label, pct, *s.MemoryUsedMiB, *s.MemoryTotalMiB),
				Details:  fmt.Sprintf("warning at %.0f%%, critical at %.0f%%", c.mem.Warning, c.mem.Critical),
			})
			r.AddRecommendation(report.Recommendation{
				Priority:    priorityFor(sev),
				Action:      "Free GPU memory or reduce batch sizes",
				Command:     processCommand(d.Vendor),
				Explanation: "Allocations fail or spill to host memory once VRAM is exhausted.",
			})
		}
	}

	if s.TemperatureC != nil {
		v := *s.TemperatureC
		r.AddMetric(report.Metric{Name: label + " temperature", Value: report.Float(v), Unit: "°C", Threshold: &c.temp})
		if sev := c.temp.Classify(v); sev > report.Ok {
			r.AddFinding(report.Finding{
				Severity: sev,
				Category: "temperature",
				Message:  fmt.Sprintf("%s temperature at %.0f°C", label, v),
				Details:  fmt.Sprintf("warning at %.0f°C, critical at %.0f°C", c.temp.Warning, c.temp.Critical),
			})
			r.AddRecommendation(report.Recommendation{
				Priority:    priorityFor(sev),
				Action:      "Check GPU cooling, airflow and fan curves",
				Explanation: "GPUs throttle clocks when they run hot.",
			})
		}
	}

	if s.PowerW != nil {
		r.AddMetric(report.Metric{Name: label + " power", Value: report.Float(*s.PowerW), Unit: "W"})
	}
	if s.ClockMHz != nil {
		r.AddMetric(report.Metric{Name: label + " clock", Value: report.Float(*s.ClockMHz), Unit: "MHz"})
	}
	if s.FanRPM != nil {
		r.AddMetric(report.Metric{Name: label + " fan", Value: report.Float(*s.FanRPM), Unit: "RPM"})
	}
}

func priorityFor(sev report.Severity) int {
	if sev >= report.Critical {
		return 1
	}
	return 2
}

func processCommand(v Vendor) []string {
	switch v {
	case NVIDIA:
		return []string{"nvidia-smi", "--query-compute-apps=pid,process_name,used_memory", "--format=csv"}
	case AMD:
		return []string{"rocm-smi", "--showpids"}
	case Intel:
		return []string{"intel_gpu_top"}
	default:
		return nil
	}
}

func cardList(devices []Device) string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Card
	}
	return strings.Join(names, ", ")
}

func (p *Probe) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{
		KeyUtilization: {Warning: UtilizationWarnPct, Critical: UtilizationCritPct},
		KeyMemory:      {Warning: MemoryWarnPct, Critical: MemoryCritPct},
		KeyTemperature: {Warning: TempWarnC, Critical: TempCritC},
	}
}
