package probes

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sysclass "github.com/prometheus/procfs/sysfs"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	BattLowPct      = 20
	BattCriticalPct = 10
)

const powerSupplyClass = "/sys/class/power_supply"

// battCapacity classifies remaining charge. Capacity falls as things get
// worse, so the negated value is compared against negated bounds.
var battCapacity = report.Threshold{Warning: -BattLowPct, Critical: -BattCriticalPct}

type Batt struct {
	module.Base
	env Env
}

func NewBatt(env Env) *Batt { return &Batt{env: env} }

func (b *Batt) Name() string        { return "batt" }
func (b *Batt) Description() string { return "Explain battery drain and charge state" }

func (b *Batt) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadSys}
}

func (b *Batt) supplies() (sysclass.PowerSupplyClass, error) {
	fs, err := b.env.class()
	if err != nil {
		return nil, err
	}
	return fs.PowerSupplyClass()
}

func (b *Batt) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(b.Name(), "Battery diagnostics")
	supplies, err := b.supplies()
	if err != nil {
		b.env.log().WithError(err).Debug("power_supply class unreadable")
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "batt",
			Message:  "No power_supply class found",
			Details:  "Desktop or no battery exposed by the kernel.",
		})
		r.Finalize()
		return r, nil
	}

	names := make([]string, 0, len(supplies))
	for name := range supplies {
		names = append(names, name)
	}
	sort.Strings(names)

	detailed := cfg.ExtraBool("detailed")
	batteries := 0
	for _, name := range names {
		ps := supplies[name]
		if !strings.EqualFold(ps.Type, "battery") {
			continue
		}
		batteries++

		if ps.Status != "" {
			r.AddMetric(report.Metric{Name: name + " status", Value: report.Text(ps.Status)})
		}
		if ps.Capacity != nil {
			capacity := *ps.Capacity
			r.AddMetric(report.Metric{Name: name + " capacity", Value: report.Int(capacity), Unit: "%"})
			if sev := battCapacity.Classify(-float64(capacity)); sev > report.Ok {
				if ps.Status == "Charging" || ps.Status == "Full" {
					sev = report.Info
				}
				r.AddFinding(report.Finding{
					Severity: sev,
					Category: "batt",
					Message:  fmt.Sprintf("%s at %d%%; low charge", name, capacity),
					Details:  "Plug in or suspend soon.",
				})
			}
		}
		if health, ok := wear(ps); ok {
			r.AddMetric(report.Metric{Name: name + " health", Value: report.Float(health), Unit: "%"})
		}
		if detailed {
			for _, a := range []struct {
				name string
				v    *int64
				unit string
			}{
				{"energy_now", ps.EnergyNow, "µWh"},
				{"power_now", ps.PowerNow, "µW"},
				{"cycle_count", ps.CycleCount, ""},
			} {
				if a.v != nil {
					r.AddMetric(report.Metric{Name: name + " " + a.name, Value: report.Int(*a.v), Unit: a.unit})
				}
			}
		}
	}

	if batteries == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "batt",
			Message:  "No battery device found in " + powerSupplyClass,
			Details:  "This is normal on desktops.",
		})
		r.Finalize()
		return r, nil
	}
	if len(r.Findings) == 0 {
		r.SetSummary("Battery status OK")
	}
	r.AddRecommendation(report.Recommendation{
		Priority:    3,
		Action:      "Inspect charge cycles and time to empty",
		Command:     []string{"upower", "-i", "/org/freedesktop/UPower/devices/battery_BAT0"},
		Explanation: "UPower tracks history the kernel does not expose.",
	})
	r.Finalize()
	return r, nil
}

// wear is full-charge capacity as a share of design capacity.
func wear(ps sysclass.PowerSupply) (float64, bool) {
	for _, pair := range [][2]*int64{
		{ps.EnergyFull, ps.EnergyFullDesign},
		{ps.ChargeFull, ps.ChargeFullDesign},
	} {
		full, design := pair[0], pair[1]
		if full != nil && design != nil && *design > 0 {
			return pct(float64(*full), float64(*design)), true
		}
	}
	return 0, false
}
