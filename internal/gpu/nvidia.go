package gpu

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
)

var nvidiaQuery = []string{
	"pci.bus_id",
	"name",
	"utilization.gpu",
	"memory.used",
	"memory.total",
	"temperature.gpu",
	"power.draw",
	"clocks.sm",
}

type nvidiaSMI struct{ c Collector }

func (nvidiaSMI) Name() string { return "nvidia-smi" }

func (b nvidiaSMI) Collect(ctx context.Context, d Device) (Stats, error) {
	out, err := b.c.Tools.Output(ctx, "nvidia-smi",
		"--query-gpu="+strings.Join(nvidiaQuery, ","),
		"--format=csv,noheader,nounits")
	if err != nil {
		return Stats{}, err
	}

	rows, err := parseNvidiaSMI(out)
	if err != nil {
		return Stats{}, err
	}
	s, ok := rows[busKey(d.PCIAddress)]
	if !ok {
		return Stats{}, fmt.Errorf("device %s not listed", d.PCIAddress)
	}
	if s.empty() {
		return Stats{}, errNoMetrics
	}
	return s, nil
}

// parseNvidiaSMI reads the CSV query output, keyed by normalised bus id.
func parseNvidiaSMI(out []byte) (map[string]Stats, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, &module.Error{Kind: module.KindParseError, Op: "nvidia-smi", Err: err}
	}

	rows := make(map[string]Stats, len(records))
	for _, rec := range records {
		if len(rec) < len(nvidiaQuery) {
			return nil, module.Errorf(module.KindParseError, "nvidia-smi", "expected %d fields, got %d", len(nvidiaQuery), len(rec))
		}
		rows[busKey(rec[0])] = Stats{
			Name:           strings.TrimSpace(rec[1]),
			UtilizationPct: parseNumber(rec[2]),
			MemoryUsedMiB:  parseNumber(rec[3]),
			MemoryTotalMiB: parseNumber(rec[4]),
			TemperatureC:   parseNumber(rec[5]),
			PowerW:         parseNumber(rec[6]),
			ClockMHz:       parseNumber(rec[7]),
		}
	}
	if len(rows) == 0 {
		return nil, module.Errorf(module.KindParseError, "nvidia-smi", "empty output")
	}
	return rows, nil
}
