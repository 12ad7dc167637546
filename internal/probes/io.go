package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	sectorBytes = 512
	// Processes with less cumulative I/O are not listed.
	ioMinListBytes = 10 << 20
)

type IO struct {
	module.Base
	env Env
}

func NewIO(env Env) *IO { return &IO{env: env} }

func (m *IO) Name() string { return "io" }
func (m *IO) Description() string {
	return "Explain high disk I/O and identify top readers and writers"
}

func (m *IO) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadProc}
}

type procIO struct {
	procEntry
	read, write uint64
}

func (m *IO) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(m.Name(), "Disk I/O analysis")
	filter := cfg.ExtraString("device", "")

	devices := 0
	if bd, err := m.env.blockdev(); err == nil {
		stats, err := bd.ProcDiskstats()
		if err != nil {
			m.env.log().WithError(err).Debug("reading diskstats")
		}
		for _, s := range stats {
			name := s.DeviceName
			if strings.HasPrefix(name, "ram") || strings.HasPrefix(name, "loop") {
				continue
			}
			if filter != "" && !strings.Contains(name, filter) {
				continue
			}
			read, write := s.ReadSectors*sectorBytes, s.WriteSectors*sectorBytes
			if read+write == 0 {
				continue
			}
			devices++
			r.AddMetric(report.Metric{Name: name + " read", Value: report.Int(int64(read)), Unit: "bytes"})
			r.AddMetric(report.Metric{Name: name + " write", Value: report.Int(int64(write)), Unit: "bytes"})
			r.AddMetric(report.Metric{Name: name + " busy time", Value: report.Int(int64(s.IOsTotalTicks)), Unit: "ms"})
		}
	} else {
		m.env.log().WithError(err).Debug("opening block devices")
	}
	if filter != "" && devices == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "device",
			Message:  fmt.Sprintf("No block device matching %q has recorded I/O", filter),
		})
	}

	var entries []procEntry
	byPID := map[int]procIO{}
	if fs, err := m.env.proc(); err == nil {
		procs, err := fs.AllProcs()
		if err != nil {
			m.env.log().WithError(err).Debug("listing processes")
		}
		for _, p := range procs {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			pio, err := p.IO()
			if err != nil {
				continue
			}
			total := pio.ReadBytes + pio.WriteBytes
			if total <= ioMinListBytes {
				continue
			}
			e := procEntry{pid: p.PID, comm: comm(p), val: float64(total)}
			entries = append(entries, e)
			byPID[p.PID] = procIO{procEntry: e, read: pio.ReadBytes, write: pio.WriteBytes}
		}
	}
	for _, e := range topN(entries, cfg.TopN) {
		p := byPID[e.pid]
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "process",
			Message:  fmt.Sprintf("%s: read %s, write %s", procLabel(e), formatBytes(p.read), formatBytes(p.write)),
			Details:  "Cumulative I/O since process start.",
		})
	}

	if len(r.Findings) == 0 && len(r.Metrics) == 0 {
		r.SetSummary("No significant disk I/O detected")
	} else {
		r.AddRecommendation(report.Recommendation{
			Priority:    2,
			Action:      "Watch live I/O with iotop or pidstat -d",
			Command:     []string{"iotop", "-o", "-b", "-n", "3"},
			Explanation: "Cumulative counters hide short spikes.",
		})
	}
	r.Finalize()
	return r, nil
}
