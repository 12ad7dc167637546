package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jacobarthurs/syswhy/internal/compare"
	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/runner"
)

// Text renders reports for a terminal.
type Text struct {
	Verbose bool

	w  io.Writer
	st styles
}

func NewText(w io.Writer, color bool) *Text {
	return &Text{w: w, st: newStyles(w, color)}
}

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (t *Text) Report(r *report.Report) error {
	tw := &textWriter{w: t.w}
	t.renderReport(tw, r)
	return tw.err
}

func (t *Text) renderReport(tw *textWriter, r *report.Report) {
	st := t.st
	sev := st.severity(r.OverallSeverity)
	tw.printf("%s %s\n", st.title.Render(r.Module), sev.Render("["+r.OverallSeverity.Label()+"]"))
	if r.Summary != "" {
		tw.printf("  %s\n", r.Summary)
	}
	tw.printf("\n")

	if len(r.Metrics) > 0 {
		tw.printf("%s\n", st.title.Render("Metrics"))
		width := 0
		for _, m := range r.Metrics {
			width = max(width, len(m.Name))
		}
		for _, m := range r.Metrics {
			value := FormatValue(m)
			if msev, ok := m.Severity(); ok && msev > report.Ok {
				value = st.severity(msev).Render(value)
			}
			tw.printf("  %s  %s\n", st.label.Render(fmt.Sprintf("%-*s", width, m.Name)), value)
		}
		tw.printf("\n")
	}

	visible := 0
	for _, f := range r.Findings {
		if f.Severity > report.Ok || t.Verbose {
			visible++
		}
	}
	if visible == 0 {
		tw.printf("%s\n", st.ok.Bold(true).Render("No issues found."))
	} else {
		tw.printf("%s\n\n", st.title.Render(fmt.Sprintf("Findings (%d)", visible)))
		for _, f := range r.Findings {
			if f.Severity == report.Ok && !t.Verbose {
				continue
			}
			label := st.severity(f.Severity).Render(fmt.Sprintf("%-8s", f.Severity.Label()))
			tw.printf("  %s %s\n", label, f.Message)
			if f.Details != "" {
				tw.printf("  %s\n", st.dim.Render("→ "+f.Details))
			}
		}
	}

	recs := r.ByPriority()
	if len(recs) > 0 {
		tw.printf("\n%s\n\n", st.title.Render("Recommendations"))
		for i, rec := range recs {
			tw.printf("  %d. %s\n", i+1, rec.Action)
			if len(rec.Command) > 0 {
				tw.printf("     %s\n", st.info.Render("$ "+rec.CommandLine()))
			}
			if rec.Explanation != "" {
				tw.printf("     %s\n", st.dim.Render(rec.Explanation))
			}
		}
	}
}

// FormatValue renders a metric value with its unit; byte counts are
// humanized.
func FormatValue(m report.Metric) string {
	if m.Unit == "bytes" {
		if n, ok := m.Value.Number(); ok && n >= 0 {
			return humanize.IBytes(uint64(n))
		}
	}
	if m.Unit == "" {
		return m.Value.String()
	}
	if m.Unit == "%" {
		return m.Value.String() + "%"
	}
	return m.Value.String() + " " + m.Unit
}

// Outcomes renders every outcome of an all-modules run in order.
func (t *Text) Outcomes(outcomes []runner.Outcome) error {
	tw := &textWriter{w: t.w}
	st := t.st
	for i, o := range outcomes {
		if i > 0 {
			tw.printf("\n%s\n\n", st.dim.Render(strings.Repeat("─", 40)))
		}
		switch o.Status() {
		case runner.StatusSkipped:
			tw.printf("%s %s\n", st.title.Render(o.Module), st.dim.Render("skipped: "+o.SkipReason))
			continue
		case runner.StatusFailed:
			tw.printf("%s %s\n", st.title.Render(o.Module), st.crit.Render("[FAILED]"))
			tw.printf("  %s: %v\n", module.KindOf(o.Err), o.Err)
			continue
		}
		t.renderReport(tw, o.Report)
		for _, p := range o.Missing {
			tw.printf("  %s\n", st.dim.Render(fmt.Sprintf("note: running without %s; results may be incomplete", p)))
		}
	}
	return tw.err
}

// Changes renders metric movement between two watch iterations.
func (t *Text) Changes(deltas []compare.Delta) error {
	tw := &textWriter{w: t.w}
	if len(deltas) == 0 {
		return nil
	}
	tw.printf("%s\n", t.st.title.Render("Changes since last run"))
	for _, d := range deltas {
		tw.renderDelta(t.st, d)
	}
	tw.printf("\n")
	return tw.err
}

func (tw *textWriter) renderDelta(st styles, d compare.Delta) {
	name := d.Metric
	if d.Module != "" {
		name = d.Module + " " + name
	}
	switch d.Change {
	case compare.Added:
		tw.printf("  %s %s\n", st.ok.Render("+ "+name), FormatValue(d.New))
	case compare.Removed:
		tw.printf("  %s\n", st.crit.Render("- "+name))
	default:
		if _, numeric := d.New.Value.Number(); !numeric {
			tw.printf("  %s: %s → %s\n", name, FormatValue(d.Old), FormatValue(d.New))
			return
		}
		style := st.dim
		switch d.Direction {
		case compare.Improved:
			style = st.ok
		case compare.Regressed:
			style = st.crit
		}
		tw.printf("  %s: %s → %s\n", name, FormatValue(d.Old), style.Render(fmt.Sprintf("%s %s (%+.1f%%)", FormatValue(d.New), dirArrow(d), d.Pct)))
	}
}

func dirArrow(d compare.Delta) string {
	if d.NewValue > d.OldValue {
		return "↑"
	}
	if d.NewValue < d.OldValue {
		return "↓"
	}
	return "="
}
