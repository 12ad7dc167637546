package module

import (
	"os"

	"golang.org/x/sys/unix"
)

type Permission int

const (
	Root Permission = iota
	ReadProc
	ReadSys
	NetAdmin
	PerfEvent
)

func (p Permission) String() string {
	switch p {
	case Root:
		return "root"
	case ReadProc:
		return "read_proc"
	case ReadSys:
		return "read_sys"
	case NetAdmin:
		return "net_admin"
	case PerfEvent:
		return "perf_event"
	default:
		return "unknown"
	}
}

func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Checker answers permission questions for the current process. Tests swap the
// probes for fixed answers.
type Checker struct {
	Euid       func() int
	Readable   func(path string) bool
	ProcStatus string
	SysClass   string
}

var HostChecker = Checker{
	Euid:       unix.Geteuid,
	Readable:   readable,
	ProcStatus: "/proc/self/status",
	SysClass:   "/sys/class",
}

func readable(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

func (c Checker) Has(p Permission) bool {
	switch p {
	case Root, NetAdmin, PerfEvent:
		// Capabilities are not inspected; effective root is the bar.
		return c.Euid() == 0
	case ReadProc:
		return c.Readable(c.ProcStatus)
	case ReadSys:
		if !c.Readable(c.SysClass) {
			return false
		}
		_, err := os.ReadDir(c.SysClass)
		return err == nil
	default:
		return false
	}
}

// Missing returns the permissions in perms the process does not hold.
func (c Checker) Missing(perms []Permission) []Permission {
	var missing []Permission
	for _, p := range perms {
		if !c.Has(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

func Check(perms []Permission) []Permission {
	return HostChecker.Missing(perms)
}
