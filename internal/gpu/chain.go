package gpu

import (
	"github.com/jacobarthurs/syswhy/internal/backend"
	"github.com/jacobarthurs/syswhy/internal/sysfs"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

// Collector carries what the backends read from.
type Collector struct {
	FS    sysfs.FS
	Tools toolexec.Runner
}

// Chain returns the backends tried for a vendor, most detailed first. Raw
// sysfs is always last.
func (c Collector) Chain(v Vendor) backend.Chain[Device, Stats] {
	switch v {
	case NVIDIA:
		return backend.Chain[Device, Stats]{nvidiaSMI{c}, nvtop{c}, sysfsReader{c}}
	case AMD:
		return backend.Chain[Device, Stats]{rocmSMI{c}, radeontop{c}, sysfsReader{c}}
	case Intel:
		return backend.Chain[Device, Stats]{nvtop{c}, sysfsReader{c}}
	default:
		return backend.Chain[Device, Stats]{sysfsReader{c}}
	}
}

// InstallHint names the vendor tool worth installing when nothing richer than
// sysfs could be read.
func (v Vendor) InstallHint() string {
	switch v {
	case NVIDIA:
		return "nvidia-smi"
	case AMD:
		return "rocm-smi"
	case Intel:
		return "nvtop"
	default:
		return ""
	}
}
