package gpu

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
)

type rocmSMI struct{ c Collector }

func (rocmSMI) Name() string { return "rocm-smi" }

func (b rocmSMI) Collect(ctx context.Context, d Device) (Stats, error) {
	out, err := b.c.Tools.Output(ctx, "rocm-smi",
		"--showuse", "--showtemp", "--showpower", "--showmeminfo", "vram",
		"--showbus", "--showproductname", "--json")
	if err != nil {
		return Stats{}, err
	}
	cards, err := parseRocmSMI(out)
	if err != nil {
		return Stats{}, err
	}

	s, ok := cards[busKey(d.PCIAddress)]
	if !ok {
		return Stats{}, fmt.Errorf("device %s not listed", d.PCIAddress)
	}
	if s.empty() {
		return Stats{}, errNoMetrics
	}
	return s, nil
}

// parseRocmSMI reads `rocm-smi --json`, keyed by normalised bus id. Field
// names vary between ROCm releases, so they are matched by prefix.
func parseRocmSMI(out []byte) (map[string]Stats, error) {
	var raw map[string]map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, &module.Error{Kind: module.KindParseError, Op: "rocm-smi", Err: err}
	}

	cards := make(map[string]Stats)
	for key, fields := range raw {
		if !strings.HasPrefix(key, "card") {
			continue
		}
		var bus string
		var s Stats
		for name, v := range fields {
			val := fmt.Sprint(v)
			switch {
			case name == "PCI Bus":
				bus = val
			case name == "Card series" || name == "Card Series":
				s.Name = val
			case name == "GPU use (%)":
				s.UtilizationPct = parseNumber(val)
			case strings.HasPrefix(name, "Temperature (Sensor edge)"):
				s.TemperatureC = parseNumber(val)
			case strings.HasPrefix(name, "Average Graphics Package Power"),
				strings.HasPrefix(name, "Current Socket Graphics Package Power"):
				s.PowerW = parseNumber(val)
			case name == "VRAM Total Memory (B)":
				s.MemoryTotalMiB = bytesToMiB(parseNumber(val))
			case name == "VRAM Total Used Memory (B)":
				s.MemoryUsedMiB = bytesToMiB(parseNumber(val))
			}
		}
		if bus == "" {
			continue
		}
		cards[busKey(bus)] = s
	}
	if len(cards) == 0 {
		return nil, module.Errorf(module.KindParseError, "rocm-smi", "no cards with a PCI bus in output")
	}
	return cards, nil
}

type radeontop struct{ c Collector }

func (radeontop) Name() string { return "radeontop" }

func (b radeontop) Collect(ctx context.Context, d Device) (Stats, error) {
	bus, err := pciBusNumber(d.PCIAddress)
	if err != nil {
		return Stats{}, err
	}
	out, err := b.c.Tools.Output(ctx, "radeontop", "-d", "-", "-l", "1", "-b", bus)
	if err != nil {
		return Stats{}, err
	}
	s, err := parseRadeontop(out)
	if err != nil {
		return Stats{}, err
	}
	if s.empty() {
		return Stats{}, errNoMetrics
	}
	return s, nil
}

// pciBusNumber extracts "03" from "0000:03:00.0".
func pciBusNumber(addr string) (string, error) {
	parts := strings.Split(addr, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("unexpected PCI address %q", addr)
	}
	return parts[1], nil
}

// parseRadeontop reads a dump line such as
//
//	1700000000.123: bus 03, gpu 12.50%, ee 0.00%, vram 10.25% 420.00mb, sclk 30.00% 0.600ghz
func parseRadeontop(out []byte) (Stats, error) {
	var line string
	for _, l := range strings.Split(string(out), "\n") {
		if strings.Contains(l, "gpu ") && strings.Contains(l, "bus ") {
			line = l
			break
		}
	}
	if line == "" {
		return Stats{}, module.Errorf(module.KindParseError, "radeontop", "no sample line in output")
	}
	if i := strings.Index(line, ":"); i >= 0 {
		line = line[i+1:]
	}

	var s Stats
	var vramPct *float64
	for _, field := range strings.Split(line, ",") {
		parts := strings.Fields(field)
		if len(parts) < 2 {
			continue
		}
		switch parts[0] {
		case "gpu":
			s.UtilizationPct = parseNumber(parts[1])
		case "vram":
			vramPct = parseNumber(parts[1])
			if len(parts) >= 3 {
				s.MemoryUsedMiB = parseNumber(parts[2])
			}
		case "sclk":
			if len(parts) >= 3 {
				if ghz := parseNumber(parts[2]); ghz != nil {
					s.ClockMHz = ptr(*ghz * 1000)
				}
			}
		}
	}
	if s.MemoryUsedMiB != nil && vramPct != nil && *vramPct > 0 {
		s.MemoryTotalMiB = ptr(*s.MemoryUsedMiB / *vramPct * 100)
	}
	return s, nil
}
