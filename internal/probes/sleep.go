package probes

import (
	"context"
	"fmt"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

// Inhibitors beyond this count are summarised rather than listed.
const sleepListLimit = 5

type Sleep struct {
	module.Base
	env Env
}

func NewSleep(env Env) *Sleep { return &Sleep{env: env} }

func (s *Sleep) Name() string        { return "sleep" }
func (s *Sleep) Description() string { return "Diagnose sleep and suspend issues and inhibitors" }

type inhibitor struct {
	Who  string `json:"who"`
	What string `json:"what"`
	Why  string `json:"why"`
	Mode string `json:"mode"`
}

// parseInhibitors reads the fixed-width table printed by
// systemd-inhibit --list, slicing rows at the header's column offsets.
func parseInhibitors(out string) []inhibitor {
	lines := strings.Split(out, "\n")
	header := -1
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "WHO") && strings.Contains(l, "MODE") {
			header = i
			break
		}
	}
	if header < 0 {
		return nil
	}
	cols := map[string]int{}
	for _, name := range []string{"WHO", "UID", "USER", "PID", "COMM", "WHAT", "WHY", "MODE"} {
		cols[name] = strings.Index(lines[header], name)
	}
	field := func(line, name, next string) string {
		start, end := cols[name], len(line)
		if start < 0 || start >= len(line) {
			return ""
		}
		if next != "" && cols[next] > start && cols[next] < end {
			end = cols[next]
		}
		return strings.TrimSpace(line[start:end])
	}

	var list []inhibitor
	for _, l := range lines[header+1:] {
		if strings.TrimSpace(l) == "" || strings.HasSuffix(strings.TrimSpace(l), "listed.") {
			continue
		}
		list = append(list, inhibitor{
			Who:  field(l, "WHO", "UID"),
			What: field(l, "WHAT", "WHY"),
			Why:  field(l, "WHY", "MODE"),
			Mode: field(l, "MODE", ""),
		})
	}
	return list
}

// inhibitors lists at most sleepListLimit inhibitors unless all is set.
// Sleep blockers are always listed.
func (s *Sleep) inhibitors(ctx context.Context, r *report.Report, all bool) bool {
	out, err := s.env.Tools.Output(ctx, "systemd-inhibit", "--list", "--no-pager")
	if err != nil {
		s.env.log().WithError(err).Debug("listing inhibitors")
		return false
	}
	list := parseInhibitors(string(out))
	r.AddMetric(report.Metric{Name: "Active inhibitors", Value: report.Int(int64(len(list)))})
	if len(list) == 0 {
		r.AddFinding(report.Finding{Severity: report.Ok, Category: "inhibit", Message: "No sleep inhibitors active"})
		return true
	}

	blocking := 0
	for i, in := range list {
		blocksSleep := in.Mode == "block" && strings.Contains(in.What, "sleep")
		if blocksSleep {
			blocking++
		}
		if !all && i >= sleepListLimit && !blocksSleep {
			continue
		}
		sev := report.Info
		if blocksSleep {
			sev = report.Warning
		}
		r.AddFinding(report.Finding{
			Severity: sev,
			Category: "inhibit",
			Message:  fmt.Sprintf("%s holds a %s inhibitor on %s", in.Who, in.Mode, in.What),
			Details:  in.Why,
		})
	}
	if blocking > 0 {
		r.AddRecommendation(report.Recommendation{
			Priority:    2,
			Action:      "Review what is blocking sleep",
			Command:     []string{"systemd-inhibit", "--list"},
			Explanation: "Media players, SSH sessions and updaters can hold block-mode inhibitors.",
		})
	}
	s.env.log().WithField("count", len(list)).Debug("inhibitors parsed")
	return true
}

func (s *Sleep) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(s.Name(), "Sleep and suspend diagnostics")

	sawData := s.inhibitors(ctx, r, cfg.ExtraBool("inhibitors"))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if count, err := s.env.Sys.ReadInt("/sys/power/wakeup_count"); err == nil {
		sawData = true
		r.AddMetric(report.Metric{Name: "Wakeup count", Value: report.Int(count)})
	}
	if states, err := s.env.Sys.ReadLine("/sys/power/state"); err == nil {
		sawData = true
		r.AddMetric(report.Metric{Name: "Supported sleep states", Value: report.List(strings.Fields(states)...)})
		if !strings.Contains(" "+states+" ", " mem ") {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "suspend",
				Message:  "Suspend to RAM is not supported on this system",
			})
		}
	}
	if mode, err := s.env.Sys.ReadLine("/sys/power/mem_sleep"); err == nil {
		r.AddMetric(report.Metric{Name: "Suspend mode", Value: report.Text(mode)})
	}

	if !sawData {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "sleep",
			Message:  "No inhibitor or wakeup data available",
			Details:  "systemd-inhibit and /sys/power are both unavailable.",
		})
	}
	r.AddRecommendation(report.Recommendation{
		Priority:    3,
		Action:      "Check the journal for suspend and resume events",
		Command:     []string{"journalctl", "-b", "-u", "sleep.target"},
		Explanation: "Shows the last sleep and resume attempts.",
	})
	r.Finalize()
	return r, nil
}
