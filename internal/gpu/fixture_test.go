package gpu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jacobarthurs/syswhy/internal/sysfs"
)

// card describes one DRM card in a fixture tree.
type card struct {
	name   string
	vendor string
	pci    string
	attrs  map[string]string // relative to the PCI device directory
}

func buildTree(t *testing.T, cards ...card) sysfs.FS {
	t.Helper()
	root := t.TempDir()
	drm := filepath.Join(root, "sys/class/drm")
	if err := os.MkdirAll(drm, 0755); err != nil {
		t.Fatal(err)
	}
	for _, c := range cards {
		devDir := filepath.Join(root, "sys/devices/pci0000:00", c.pci)
		writeAttr(t, devDir, "vendor", c.vendor+"\n")
		for name, val := range c.attrs {
			writeAttr(t, devDir, name, val)
		}
		cardDir := filepath.Join(drm, c.name)
		if err := os.MkdirAll(cardDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(devDir, filepath.Join(cardDir, "device")); err != nil {
			t.Fatal(err)
		}
	}
	return sysfs.New(root)
}

func writeAttr(t *testing.T, dir, name, val string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(val), 0644); err != nil {
		t.Fatal(err)
	}
}
