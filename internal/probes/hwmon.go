package probes

import (
	"path"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/sysfs"
)

// sensor is one hwmon or thermal zone reading.
type sensor struct {
	label string
	value int64
}

// hwmonInputs reads every <prefix>N_input under /sys/class/hwmon, labelled
// "<chip name> <prefix>N" or by the channel's own label file when present.
func hwmonInputs(fsys sysfs.FS, prefix string) []sensor {
	const class = "/sys/class/hwmon"
	chips, err := fsys.List(class)
	if err != nil {
		return nil
	}
	var out []sensor
	for _, chip := range chips {
		dir := path.Join(class, chip)
		name, err := fsys.ReadLine(path.Join(dir, "name"))
		if err != nil || name == "" {
			name = chip
		}
		files, err := fsys.List(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.HasPrefix(f, prefix) || !strings.HasSuffix(f, "_input") {
				continue
			}
			v, err := fsys.ReadInt(path.Join(dir, f))
			if err != nil {
				continue
			}
			channel := strings.TrimSuffix(f, "_input")
			label := name + " " + channel
			if l, err := fsys.ReadLine(path.Join(dir, channel+"_label")); err == nil && l != "" {
				label = name + " " + l
			}
			out = append(out, sensor{label: label, value: v})
		}
	}
	return out
}

// thermalZones reads every zone procfs can parse; zones missing type, policy
// or temp are skipped.
func thermalZones(env Env) []sensor {
	fs, err := env.class()
	if err != nil {
		return nil
	}
	zones, err := fs.ClassThermalZoneStats()
	if err != nil {
		env.log().WithError(err).Debug("reading thermal zones")
		return nil
	}
	out := make([]sensor, 0, len(zones))
	for _, z := range zones {
		label := z.Type
		if label == "" {
			label = "thermal_zone" + z.Name
		}
		out = append(out, sensor{label: label, value: z.Temp})
	}
	return out
}
