package compare

import "github.com/jacobarthurs/syswhy/internal/report"

type Direction int

const (
	Unchanged Direction = 0
	Improved  Direction = 1
	Regressed Direction = 2

	SignificanceThresholdPct = 1.0
)

func (d Direction) String() string {
	switch d {
	case Improved:
		return "improved"
	case Regressed:
		return "regressed"
	default:
		return "unchanged"
	}
}

type ChangeType int

const (
	NoChange ChangeType = 0
	Modified ChangeType = 1
	Added    ChangeType = 2
	Removed  ChangeType = 3
)

func (c ChangeType) String() string {
	switch c {
	case Modified:
		return "modified"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "no_change"
	}
}

// Delta is the movement of one metric between two runs of the same module.
type Delta struct {
	Module string
	Metric string
	Change ChangeType

	Old report.Metric
	New report.Metric

	// Numeric metrics only.
	OldValue  float64
	NewValue  float64
	Pct       float64
	Direction Direction
}
