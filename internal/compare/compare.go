// Package compare diffs the metrics of consecutive watch iterations.
package compare

import (
	"math"

	"github.com/jacobarthurs/syswhy/internal/report"
)

type Comparator struct {
	// Threshold is the percentage change below which a numeric metric
	// counts as unchanged.
	Threshold float64
}

func New() *Comparator {
	return &Comparator{Threshold: SignificanceThresholdPct}
}

// Compare returns the significant metric changes from old to new, in the
// order metrics appear in new followed by metrics that disappeared.
func (c *Comparator) Compare(old, new *report.Report) []Delta {
	if old == nil || new == nil {
		return nil
	}
	prev := make(map[string]report.Metric, len(old.Metrics))
	for _, m := range old.Metrics {
		prev[m.Name] = m
	}

	var deltas []Delta
	seen := make(map[string]bool, len(new.Metrics))
	for _, m := range new.Metrics {
		seen[m.Name] = true
		o, ok := prev[m.Name]
		if !ok {
			deltas = append(deltas, Delta{Module: new.Module, Metric: m.Name, Change: Added, New: m})
			continue
		}
		if d := c.diffMetric(new.Module, o, m); d.Change != NoChange {
			deltas = append(deltas, d)
		}
	}
	for _, m := range old.Metrics {
		if !seen[m.Name] {
			deltas = append(deltas, Delta{Module: old.Module, Metric: m.Name, Change: Removed, Old: m})
		}
	}
	return deltas
}

// CompareAll matches reports by module name.
func (c *Comparator) CompareAll(old, new []*report.Report) []Delta {
	prev := make(map[string]*report.Report, len(old))
	for _, r := range old {
		if r != nil {
			prev[r.Module] = r
		}
	}
	var deltas []Delta
	for _, r := range new {
		if r == nil {
			continue
		}
		deltas = append(deltas, c.Compare(prev[r.Module], r)...)
	}
	return deltas
}

func (c *Comparator) diffMetric(mod string, old, new report.Metric) Delta {
	d := Delta{Module: mod, Metric: new.Name, Change: Modified, Old: old, New: new}

	ov, oldNumeric := old.Value.Number()
	nv, newNumeric := new.Value.Number()
	if !oldNumeric || !newNumeric {
		if old.Value.String() == new.Value.String() {
			d.Change = NoChange
		}
		return d
	}

	d.OldValue, d.NewValue = ov, nv
	d.Pct = pctChange(ov, nv)
	if math.Abs(d.Pct) <= c.Threshold {
		d.Change = NoChange
		return d
	}
	// Only thresholded metrics have a known polarity: higher is worse.
	if new.Threshold != nil {
		d.Direction = Regressed
		if nv < ov {
			d.Direction = Improved
		}
	}
	return d
}

func pctChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 100
	}
	return ((new - old) / math.Abs(old)) * 100
}
