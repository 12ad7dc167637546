// Package probes holds the diagnostic modules other than gpu and the registry
// that orders them.
package probes

import (
	"fmt"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/blockdevice"
	sysclass "github.com/prometheus/procfs/sysfs"
	"github.com/sirupsen/logrus"

	"github.com/jacobarthurs/syswhy/internal/logging"
	"github.com/jacobarthurs/syswhy/internal/sysfs"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

const defaultCPUSample = 200 * time.Millisecond

// Env is what every probe reads from. Tests point Sys at a fixture tree and
// Tools at a toolexec.Fake.
type Env struct {
	Sys   sysfs.FS
	Tools toolexec.Runner
	Log   *logrus.Logger

	// CPUSample is the gap between the two /proc/stat samples.
	CPUSample time.Duration
}

func HostEnv(tools toolexec.Runner, log *logrus.Logger) Env {
	return Env{Sys: sysfs.Host(), Tools: tools, Log: log, CPUSample: defaultCPUSample}
}

func (e Env) log() *logrus.Logger {
	if e.Log == nil {
		return logging.Discard
	}
	return e.Log
}

func (e Env) proc() (procfs.FS, error) {
	fs, err := procfs.NewFS(e.Sys.Path("/proc"))
	if err != nil {
		return procfs.FS{}, fmt.Errorf("opening procfs: %w", err)
	}
	return fs, nil
}

func (e Env) blockdev() (blockdevice.FS, error) {
	fs, err := blockdevice.NewFS(e.Sys.Path("/proc"), e.Sys.Path("/sys"))
	if err != nil {
		return blockdevice.FS{}, fmt.Errorf("opening block device stats: %w", err)
	}
	return fs, nil
}

// class opens the /sys/class readers procfs ships for power supplies and
// thermal zones.
func (e Env) class() (sysclass.FS, error) {
	fs, err := sysclass.NewFS(e.Sys.Path("/sys"))
	if err != nil {
		return sysclass.FS{}, fmt.Errorf("opening sysfs: %w", err)
	}
	return fs, nil
}
