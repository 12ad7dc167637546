package gpu

import (
	"context"
	"path"

	sysclass "github.com/prometheus/procfs/sysfs"
)

// sysfsReader reads the kernel driver attributes directly. It needs no tools
// and works for every vendor, but only exposes what the driver publishes.
type sysfsReader struct{ c Collector }

func (sysfsReader) Name() string { return "sysfs" }

func (b sysfsReader) Collect(ctx context.Context, d Device) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	fs := b.c.FS
	var s Stats

	if d.Vendor == AMD {
		b.amdgpu(d, &s)
	}
	// i915 publishes the GT frequency on the card node, not the PCI device.
	if v, err := fs.ReadUint(path.Join(path.Dir(d.SysfsPath), "gt_cur_freq_mhz")); err == nil {
		s.ClockMHz = ptr(float64(v))
	}

	hwmons, _ := fs.Glob(path.Join(d.SysfsPath, "hwmon", "hwmon*"))
	for _, hw := range hwmons {
		if s.TemperatureC == nil {
			if v, err := fs.ReadInt(path.Join(hw, "temp1_input")); err == nil {
				s.TemperatureC = ptr(float64(v) / 1000)
			}
		}
		if s.PowerW == nil {
			for _, attr := range []string{"power1_average", "power1_input"} {
				if v, err := fs.ReadUint(path.Join(hw, attr)); err == nil {
					s.PowerW = ptr(float64(v) / 1e6)
					break
				}
			}
		}
		if s.FanRPM == nil {
			if v, err := fs.ReadUint(path.Join(hw, "fan1_input")); err == nil {
				s.FanRPM = ptr(float64(v))
			}
		}
	}

	if s.empty() {
		return Stats{}, errNoMetrics
	}
	return s, nil
}

// amdgpu fills busy and VRAM figures from the amdgpu driver attributes. A card
// without a readable uevent fails the whole listing, so errors leave s as is.
func (b sysfsReader) amdgpu(d Device, s *Stats) {
	fs, err := sysclass.NewFS(b.c.FS.Path("/sys"))
	if err != nil {
		return
	}
	cards, err := fs.ClassDRMCardAMDGPUStats()
	if err != nil {
		return
	}
	for _, c := range cards {
		if c.Name != d.Card {
			continue
		}
		s.UtilizationPct = ptr(float64(c.GPUBusyPercent))
		if c.MemoryVRAMSize > 0 {
			s.MemoryUsedMiB = ptr(float64(c.MemoryVRAMUsed) / (1024 * 1024))
			s.MemoryTotalMiB = ptr(float64(c.MemoryVRAMSize) / (1024 * 1024))
		}
		return
	}
}
