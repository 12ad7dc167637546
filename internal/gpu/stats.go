package gpu

import (
	"errors"
	"strconv"
	"strings"
)

var errNoMetrics = errors.New("no metrics reported")

// Stats is one backend reading. Nil fields were not reported.
type Stats struct {
	Name           string   `json:"name,omitempty"`
	UtilizationPct *float64 `json:"utilization_pct"`
	MemoryUsedMiB  *float64 `json:"memory_used_mib"`
	MemoryTotalMiB *float64 `json:"memory_total_mib"`
	TemperatureC   *float64 `json:"temperature_c"`
	PowerW         *float64 `json:"power_w"`
	ClockMHz       *float64 `json:"clock_mhz"`
	FanRPM         *float64 `json:"fan_rpm"`
}

func (s Stats) empty() bool {
	return s.UtilizationPct == nil && s.MemoryUsedMiB == nil && s.MemoryTotalMiB == nil &&
		s.TemperatureC == nil && s.PowerW == nil && s.ClockMHz == nil && s.FanRPM == nil
}

// MemoryPct is used/total memory, when both are known and total is non-zero.
func (s Stats) MemoryPct() (float64, bool) {
	if s.MemoryUsedMiB == nil || s.MemoryTotalMiB == nil || *s.MemoryTotalMiB <= 0 {
		return 0, false
	}
	return *s.MemoryUsedMiB / *s.MemoryTotalMiB * 100, true
}

func ptr(v float64) *float64 { return &v }

// parseNumber reads values like "92", "78.0", "35.20 W", "1710MHz" or "45C".
// Placeholders such as "[N/A]" give nil.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || s[end] == '-' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	if end == 0 {
		return nil
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return nil
	}
	return &v
}

func bytesToMiB(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v / (1024 * 1024))
}
