package probes

import (
	"context"
	"fmt"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

type Fan struct {
	module.Base
	env Env
}

func NewFan(env Env) *Fan { return &Fan{env: env} }

func (f *Fan) Name() string        { return "fan" }
func (f *Fan) Description() string { return "Explain fan activity and correlate with temperature" }

func (f *Fan) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadSys}
}

func (f *Fan) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(f.Name(), "Fan diagnostics")
	fans := hwmonInputs(f.env.Sys, "fan")
	if len(fans) == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "fan",
			Message:  "No fan sensors found under /sys/class/hwmon",
			Details:  "Some laptops expose fans only through ACPI or vendor tools.",
		})
		r.Finalize()
		return r, nil
	}

	for _, fan := range fans {
		r.AddMetric(report.Metric{Name: fan.label, Value: report.Int(fan.value), Unit: "RPM"})
	}

	// The threshold is in °C; fans spinning above threshold×100 RPM are
	// treated as responding to that much heat.
	if limit := cfg.ExtraFloat("threshold", 0); limit > 0 {
		for _, fan := range fans {
			if float64(fan.value) > limit*100 {
				r.AddFinding(report.Finding{
					Severity: report.Info,
					Category: "fan",
					Message:  fmt.Sprintf("%s running at %d RPM (above %.0f°C threshold)", fan.label, fan.value, limit),
					Details:  "High fan speed usually indicates thermal load.",
				})
			}
		}
	}

	if len(r.Findings) == 0 {
		r.SetSummary("Fan speeds within normal range")
	}
	r.Finalize()
	return r, nil
}
