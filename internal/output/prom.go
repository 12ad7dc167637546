package output

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacobarthurs/syswhy/internal/report"
)

const promNamespace = "syswhy"

// WriteTextfile exports reports in the node_exporter textfile format. Only
// numeric metrics are exported. The file is replaced atomically.
func WriteTextfile(path string, reports []*report.Report) error {
	reg := prometheus.NewRegistry()

	metrics := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "metric",
		Help:      "Numeric metric reported by a diagnostic module.",
	}, []string{"module", "name", "unit"})
	severity := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "report_severity",
		Help:      "Overall report severity: 0 ok, 1 info, 2 warning, 3 critical.",
	}, []string{"module"})
	findings := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "findings",
		Help:      "Number of findings per severity.",
	}, []string{"module", "severity"})
	timestamp := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "report_timestamp_seconds",
		Help:      "Unix time the report was created.",
	}, []string{"module"})
	reg.MustRegister(metrics, severity, findings, timestamp)

	for _, r := range reports {
		if r == nil {
			continue
		}
		severity.WithLabelValues(r.Module).Set(float64(r.OverallSeverity))
		timestamp.WithLabelValues(r.Module).Set(float64(r.Timestamp.Unix()))

		counts := map[report.Severity]int{}
		for _, f := range r.Findings {
			counts[f.Severity]++
		}
		for sev := report.Ok; sev <= report.Critical; sev++ {
			findings.WithLabelValues(r.Module, sev.String()).Set(float64(counts[sev]))
		}

		for _, m := range r.Metrics {
			v, ok := m.Value.Number()
			if !ok {
				continue
			}
			metrics.WithLabelValues(r.Module, m.Name, m.Unit).Set(v)
		}
	}

	return prometheus.WriteToTextfile(path, reg)
}
