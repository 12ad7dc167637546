package report

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Strict turns appends after Finalize into a panic instead of silently
// reopening the report.
var Strict = os.Getenv("SYSWHY_STRICT") == "1"

type Finding struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Details  string   `json:"details,omitempty"`
}

type Recommendation struct {
	// Priority 1 is the most urgent.
	Priority    int      `json:"priority"`
	Action      string   `json:"action"`
	Command     []string `json:"command,omitempty"`
	Explanation string   `json:"explanation"`
}

// CommandLine renders Command as a single line, quoting arguments that would
// otherwise be split by a shell.
func (r Recommendation) CommandLine() string {
	parts := make([]string, len(r.Command))
	for i, arg := range r.Command {
		if arg == "" || strings.ContainsAny(arg, " \t\"'$`\\|&;<>()*?") {
			parts[i] = strconv.Quote(arg)
		} else {
			parts[i] = arg
		}
	}
	return strings.Join(parts, " ")
}

type Report struct {
	Module          string           `json:"module"`
	Timestamp       time.Time        `json:"timestamp"`
	OverallSeverity Severity         `json:"overall_severity"`
	Summary         string           `json:"summary"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	Metrics         []Metric         `json:"metrics"`
	Raw             any              `json:"raw_data,omitempty"`

	finalized bool
}

func New(module, summary string) *Report {
	return &Report{
		Module:          module,
		Timestamp:       time.Now().UTC(),
		OverallSeverity: Ok,
		Summary:         summary,
		Findings:        []Finding{},
		Recommendations: []Recommendation{},
		Metrics:         []Metric{},
	}
}

func (r *Report) reopen() {
	if !r.finalized {
		return
	}
	if Strict {
		panic("report: " + r.Module + " modified after Finalize")
	}
	r.finalized = false
}

func (r *Report) AddFinding(f Finding) {
	r.reopen()
	r.Findings = append(r.Findings, f)
}

func (r *Report) AddRecommendation(rec Recommendation) {
	r.reopen()
	if rec.Priority < 1 {
		rec.Priority = 1
	}
	r.Recommendations = append(r.Recommendations, rec)
}

func (r *Report) AddMetric(m Metric) {
	r.reopen()
	r.Metrics = append(r.Metrics, m)
}

func (r *Report) SetSummary(summary string) {
	r.reopen()
	r.Summary = summary
}

func (r *Report) SetRaw(raw any) {
	r.reopen()
	r.Raw = raw
}

// Worst is the highest finding severity appended so far.
func (r *Report) Worst() Severity {
	worst := Ok
	for _, f := range r.Findings {
		worst = Max(worst, f.Severity)
	}
	return worst
}

// Finalize derives OverallSeverity from the findings. The report must not be
// modified afterwards.
func (r *Report) Finalize() {
	r.OverallSeverity = r.Worst()
	r.finalized = true
}

func (r *Report) Finalized() bool {
	return r.finalized
}

// ByPriority returns the recommendations ordered by priority, keeping
// insertion order among equal priorities.
func (r *Report) ByPriority() []Recommendation {
	recs := append([]Recommendation(nil), r.Recommendations...)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority < recs[j].Priority
	})
	return recs
}
