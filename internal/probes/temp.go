package probes

import (
	"context"
	"fmt"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	TempWarnC = 80
	TempCritC = 90
)

const KeyTempSensor = "temp.sensor"

type Temp struct {
	module.Base
	env Env
}

func NewTemp(env Env) *Temp { return &Temp{env: env} }

func (t *Temp) Name() string        { return "temp" }
func (t *Temp) Description() string { return "Analyze temperatures and thermal throttling" }

func (t *Temp) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadSys}
}

func (t *Temp) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{KeyTempSensor: {Warning: TempWarnC, Critical: TempCritC}}
}

func (t *Temp) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(t.Name(), "Temperature analysis")
	sensors := append(thermalZones(t.env), hwmonInputs(t.env.Sys, "temp")...)
	if len(sensors) == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "temp",
			Message:  "No temperature sensors found under /sys/class/thermal or /sys/class/hwmon",
		})
		r.Finalize()
		return r, nil
	}

	th := cfg.Threshold(KeyTempSensor, report.Threshold{Warning: TempWarnC, Critical: TempCritC})
	onlyCritical := cfg.ExtraBool("critical")
	hottest := sensors[0]
	for _, s := range sensors {
		// Sensors report millidegrees.
		c := float64(s.value) / 1000
		if s.value > hottest.value {
			hottest = s
		}
		sev := th.Classify(c)
		if onlyCritical && sev < report.Critical {
			continue
		}
		r.AddMetric(report.Metric{Name: s.label, Value: report.Float(c), Unit: "°C", Threshold: &th})
		switch sev {
		case report.Critical:
			r.AddFinding(report.Finding{
				Severity: report.Critical,
				Category: "temp",
				Message:  fmt.Sprintf("%s at %.0f°C; thermal throttling risk", s.label, c),
				Details:  "Improve cooling or reduce load.",
			})
		case report.Warning:
			r.AddFinding(report.Finding{
				Severity: report.Warning,
				Category: "temp",
				Message:  fmt.Sprintf("%s at %.0f°C; high temperature", s.label, c),
			})
		}
	}

	if r.Worst() >= report.Warning {
		r.AddRecommendation(report.Recommendation{
			Priority:    1,
			Action:      "Improve cooling: clean fans, check thermal paste, reduce load",
			Command:     []string{"sensors"},
			Explanation: "lm-sensors gives per-chip readings with their limits.",
		})
	} else {
		r.SetSummary(fmt.Sprintf("Temperatures within normal range (hottest %s at %.0f°C)", hottest.label, float64(hottest.value)/1000))
	}
	r.Finalize()
	return r, nil
}
