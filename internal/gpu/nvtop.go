package gpu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
)

type nvtop struct{ c Collector }

func (nvtop) Name() string { return "nvtop" }

// nvtopDevice is one entry of `nvtop -s`. Every value is a string with its
// unit attached, or null.
type nvtopDevice struct {
	DeviceName *string `json:"device_name"`
	GPUClock   *string `json:"gpu_clock"`
	Temp       *string `json:"temp"`
	PowerDraw  *string `json:"power_draw"`
	GPUUtil    *string `json:"gpu_util"`
	MemTotal   *string `json:"mem_total"`
	MemUsed    *string `json:"mem_used"`
}

func (b nvtop) Collect(ctx context.Context, d Device) (Stats, error) {
	out, err := b.c.Tools.Output(ctx, "nvtop", "-s")
	if err != nil {
		return Stats{}, err
	}
	devices, err := parseNvtop(out)
	if err != nil {
		return Stats{}, err
	}

	// nvtop prints no bus address, so devices are matched by their position
	// among cards of the same vendor.
	var same []Stats
	for _, s := range devices {
		if vendorFromName(s.Name) == d.Vendor {
			same = append(same, s)
		}
	}
	if d.VendorIndex >= len(same) {
		return Stats{}, fmt.Errorf("no %s device at position %d", d.Vendor, d.VendorIndex)
	}
	s := same[d.VendorIndex]
	if s.empty() {
		return Stats{}, errNoMetrics
	}
	return s, nil
}

func parseNvtop(out []byte) ([]Stats, error) {
	var raw []nvtopDevice
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &module.Error{Kind: module.KindParseError, Op: "nvtop", Err: err}
	}

	stats := make([]Stats, 0, len(raw))
	for _, r := range raw {
		s := Stats{
			Name:           deref(r.DeviceName),
			UtilizationPct: parseOptional(r.GPUUtil),
			TemperatureC:   parseOptional(r.Temp),
			PowerW:         parseOptional(r.PowerDraw),
			ClockMHz:       parseOptional(r.GPUClock),
			MemoryUsedMiB:  bytesToMiB(parseOptional(r.MemUsed)),
			MemoryTotalMiB: bytesToMiB(parseOptional(r.MemTotal)),
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func vendorFromName(name string) Vendor {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "nvidia"), strings.Contains(lower, "geforce"),
		strings.Contains(lower, "quadro"), strings.Contains(lower, "tesla"):
		return NVIDIA
	case strings.Contains(lower, "amd"), strings.Contains(lower, "radeon"):
		return AMD
	case strings.Contains(lower, "intel"):
		return Intel
	default:
		return Unknown
	}
}

func parseOptional(s *string) *float64 {
	if s == nil {
		return nil
	}
	return parseNumber(*s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
