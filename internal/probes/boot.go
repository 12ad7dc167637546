package probes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

const (
	BootWarnSeconds = 15
	BootCritSeconds = 30

	// Units faster than this are not listed.
	bootMinUnit  = time.Second
	bootSlowUnit = 5 * time.Second
)

const KeyBootTime = "boot.time"

type Boot struct {
	module.Base
	env Env
}

func NewBoot(env Env) *Boot { return &Boot{env: env} }

func (b *Boot) Name() string        { return "boot" }
func (b *Boot) Description() string { return "Analyze boot performance and slow services via systemd" }

func (b *Boot) IsAvailable() bool {
	return toolexec.Available(b.env.Tools, "systemd-analyze")
}

func (b *Boot) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{KeyBootTime: {Warning: BootWarnSeconds, Critical: BootCritSeconds}}
}

// parseSystemdDuration reads spans such as "1min 2.345s", "812ms" or "1h 3min".
func parseSystemdDuration(s string) (time.Duration, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, "min", "m")
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	return d, err == nil
}

// parseBootTime extracts the total from "Startup finished in ... = 15.801s".
func parseBootTime(out string) (time.Duration, bool) {
	for _, line := range strings.Split(out, "\n") {
		i := strings.LastIndex(line, "= ")
		if !strings.Contains(line, "Startup finished") || i < 0 {
			continue
		}
		return parseSystemdDuration(line[i+2:])
	}
	return 0, false
}

type unitTime struct {
	Unit string        `json:"unit"`
	Took time.Duration `json:"took"`
}

func parseBlame(out string) []unitTime {
	var units []unitTime
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 2 {
			continue
		}
		d, ok := parseSystemdDuration(strings.Join(f[:len(f)-1], " "))
		if !ok {
			continue
		}
		units = append(units, unitTime{Unit: f[len(f)-1], Took: d})
	}
	return units
}

func (b *Boot) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(b.Name(), "Boot analysis (systemd)")
	th := cfg.Threshold(KeyBootTime, report.Threshold{Warning: BootWarnSeconds, Critical: BootCritSeconds})

	out, err := b.env.Tools.Output(ctx, "systemd-analyze", "time")
	switch {
	case module.KindOf(err) == module.KindToolNotFound:
		return nil, err
	case err != nil:
		// Still booting or running in a container without a boot record.
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "boot",
			Message:  "Boot timing is not available",
			Details:  err.Error(),
		})
	default:
		if total, ok := parseBootTime(string(out)); ok {
			secs := total.Seconds()
			r.AddMetric(report.Metric{Name: "Total boot time", Value: report.Float(secs), Unit: "s", Threshold: &th})
			if sev := th.Classify(secs); sev > report.Ok {
				r.AddFinding(report.Finding{
					Severity: sev,
					Category: "boot",
					Message:  fmt.Sprintf("Boot took %.1fs; consider disabling unnecessary services", secs),
					Details:  "systemd-analyze blame lists the slowest units.",
				})
			}
		} else {
			return nil, module.Errorf(module.KindParseError, "systemd-analyze time", "no total in %q", firstNonEmpty(string(out)))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if out, err := b.env.Tools.Output(ctx, "systemd-analyze", "blame", "--no-pager"); err == nil {
		units := parseBlame(string(out))
		if cfg.Verbose {
			r.SetRaw(units)
		}
		var slow []procEntry
		for i, u := range units {
			if u.Took >= bootMinUnit {
				slow = append(slow, procEntry{pid: i, comm: u.Unit, val: u.Took.Seconds()})
			}
		}
		for _, u := range topN(slow, cfg.TopN) {
			sev := report.Info
			if u.val > bootSlowUnit.Seconds() {
				sev = report.Warning
			}
			r.AddFinding(report.Finding{
				Severity: sev,
				Category: "service",
				Message:  fmt.Sprintf("%s took %.2fs to start", u.comm, u.val),
				Details:  fmt.Sprintf("Consider masking or disabling if not needed: systemctl disable %s", u.comm),
			})
		}
	} else {
		b.env.log().WithError(err).Debug("systemd-analyze blame failed")
	}

	if up, err := b.env.Sys.ReadLine("/proc/uptime"); err == nil {
		if f := strings.Fields(up); len(f) > 0 {
			if secs, err := strconv.ParseFloat(f[0], 64); err == nil {
				r.AddMetric(report.Metric{Name: "Uptime", Value: report.Text(time.Duration(secs * float64(time.Second)).Truncate(time.Second).String())})
			}
		}
	}

	switch worst := r.Worst(); {
	case len(r.Findings) == 0:
		r.SetSummary("Boot time within normal range; no slow services reported")
	case worst >= report.Warning:
		r.AddRecommendation(report.Recommendation{
			Priority:    priorityFor(worst),
			Action:      "Review slow services and disable the ones you do not need",
			Command:     []string{"systemctl", "list-unit-files", "--state=enabled"},
			Explanation: "Fewer enabled services shorten boot.",
		})
	}
	r.Finalize()
	return r, nil
}

func firstNonEmpty(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}
