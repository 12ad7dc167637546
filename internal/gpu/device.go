package gpu

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/sysfs"
)

const drmClass = "/sys/class/drm"

type Vendor int

const (
	Unknown Vendor = iota
	NVIDIA
	AMD
	Intel
)

func (v Vendor) String() string {
	switch v {
	case NVIDIA:
		return "NVIDIA"
	case AMD:
		return "AMD"
	case Intel:
		return "Intel"
	default:
		return "Unknown"
	}
}

// VendorFromID maps a PCI vendor ID as found in sysfs ("0x10de").
func VendorFromID(id string) Vendor {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "0x10de":
		return NVIDIA
	case "0x1002":
		return AMD
	case "0x8086":
		return Intel
	default:
		return Unknown
	}
}

type Device struct {
	Index      int    `json:"index"`
	Card       string `json:"card"`
	Vendor     Vendor `json:"-"`
	VendorName string `json:"vendor"`
	VendorID   string `json:"vendor_id"`
	PCIAddress string `json:"pci_address,omitempty"`
	SysfsPath  string `json:"sysfs_path"`

	// Position among discovered devices of the same vendor. Tools that do not
	// print a bus address are matched on it.
	VendorIndex int `json:"-"`
}

// Matches reports whether sel names this device by card, index or PCI address.
func (d Device) Matches(sel string) bool {
	sel = strings.ToLower(strings.TrimSpace(sel))
	if sel == "" {
		return true
	}
	return sel == d.Card || sel == strconv.Itoa(d.Index) || sel == strings.ToLower(d.PCIAddress)
}

// Discover lists DRM cards. A missing /sys/class/drm yields no devices and no
// error.
func Discover(fsys sysfs.FS) ([]Device, error) {
	names, err := fsys.List(drmClass)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var devices []Device
	for _, name := range names {
		idx, ok := cardIndex(name)
		if !ok {
			continue
		}
		devPath := path.Join(drmClass, name, "device")
		vendorID, err := fsys.ReadLine(path.Join(devPath, "vendor"))
		if err != nil {
			vendorID = "unknown"
		}
		pci, _ := fsys.Link(devPath)

		vendor := VendorFromID(vendorID)
		devices = append(devices, Device{
			Index:      idx,
			Card:       name,
			Vendor:     vendor,
			VendorName: vendor.String(),
			VendorID:   vendorID,
			PCIAddress: pci,
			SysfsPath:  devPath,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Index < devices[j].Index
	})

	seen := map[Vendor]int{}
	for i := range devices {
		devices[i].VendorIndex = seen[devices[i].Vendor]
		seen[devices[i].Vendor]++
	}

	return devices, nil
}

// cardIndex accepts "card0" but not connector entries like "card0-HDMI-A-1".
func cardIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "card")
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// busKey normalises a PCI address for comparison. nvidia-smi prints an
// eight-digit domain ("00000000:01:00.0") where sysfs uses four.
func busKey(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if len(addr) > 12 {
		addr = addr[len(addr)-12:]
	}
	return addr
}
