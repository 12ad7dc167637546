package probes

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const mountListLimit = 5

// Pseudo filesystems never hold user data, so their mount options are noise.
var virtualFS = map[string]bool{
	"autofs": true, "binfmt_misc": true, "bpf": true, "cgroup": true, "cgroup2": true,
	"configfs": true, "debugfs": true, "devpts": true, "devtmpfs": true, "efivarfs": true,
	"fusectl": true, "hugetlbfs": true, "mqueue": true, "nsfs": true, "proc": true,
	"pstore": true, "rpc_pipefs": true, "securityfs": true, "sysfs": true, "tmpfs": true,
	"tracefs": true,
}

// Filesystems that can only be mounted read-only.
var readOnlyFS = map[string]bool{"erofs": true, "iso9660": true, "squashfs": true, "udf": true}

type Mount struct {
	module.Base
	env Env
}

func NewMount(env Env) *Mount { return &Mount{env: env} }

func (m *Mount) Name() string        { return "mount" }
func (m *Mount) Description() string { return "Diagnose mount point issues and filesystem options" }

func (m *Mount) RequiredPermissions() []module.Permission {
	return []module.Permission{module.ReadProc}
}

type mountEntry struct {
	Device     string   `json:"device"`
	MountPoint string   `json:"mount_point"`
	FSType     string   `json:"fs_type"`
	Options    []string `json:"options"`
}

func (e mountEntry) hasOption(opt string) bool {
	for _, o := range e.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// unescapeMount decodes the \ooo octal escapes the kernel uses for spaces,
// tabs, newlines and backslashes in /proc/mounts.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func parseMounts(lines []string) []mountEntry {
	var out []mountEntry
	for _, line := range lines {
		f := strings.Fields(line)
		if len(f) < 4 {
			continue
		}
		out = append(out, mountEntry{
			Device:     unescapeMount(f[0]),
			MountPoint: unescapeMount(f[1]),
			FSType:     f[2],
			Options:    strings.Split(f[3], ","),
		})
	}
	return out
}

func (m *Mount) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(m.Name(), "Mount diagnostics")
	lines, err := m.env.Sys.ReadLines("/proc/mounts")
	if err != nil {
		r.AddFinding(report.Finding{
			Severity: report.Critical,
			Category: "mount",
			Message:  "Cannot read /proc/mounts",
			Details:  err.Error(),
		})
		r.Finalize()
		return r, nil
	}

	filter := cfg.ExtraString("mountpoint", "")
	checkNFS := cfg.ExtraBool("nfs")
	showOptions := cfg.ExtraBool("options")

	var (
		count      int
		readOnly   []mountEntry
		nfs        []mountEntry
		unexpected int
		entries    []mountEntry
	)
	for _, e := range parseMounts(lines) {
		if filter != "" && !strings.Contains(e.MountPoint, filter) {
			continue
		}
		count++
		entries = append(entries, e)
		if e.hasOption("ro") && !virtualFS[e.FSType] {
			readOnly = append(readOnly, e)
			if !readOnlyFS[e.FSType] {
				unexpected++
			}
		}
		if checkNFS && strings.HasPrefix(e.FSType, "nfs") {
			nfs = append(nfs, e)
		}
		if showOptions && strings.HasPrefix(e.MountPoint, "/") && !virtualFS[e.FSType] {
			r.AddMetric(report.Metric{Name: e.MountPoint, Value: report.Text(strings.Join(e.Options, ","))})
		}
	}

	r.AddMetric(report.Metric{Name: "Mount count", Value: report.Int(int64(count))})

	for i, e := range readOnly {
		if i == mountListLimit {
			break
		}
		sev := report.Warning
		details := "Filesystem was mounted or remounted read-only; check dmesg for I/O errors."
		if readOnlyFS[e.FSType] {
			sev = report.Info
			details = e.FSType + " is always read-only."
		}
		r.AddFinding(report.Finding{
			Severity: sev,
			Category: "mount",
			Message:  fmt.Sprintf("Read-only: %s on %s (%s)", e.Device, e.MountPoint, e.FSType),
			Details:  details,
		})
	}
	for i, e := range nfs {
		if i == mountListLimit {
			break
		}
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "nfs",
			Message:  fmt.Sprintf("%s from %s (%s)", e.MountPoint, e.Device, strings.Join(e.Options, ",")),
			Details:  "Check the NFS server and network if access hangs.",
		})
	}
	if checkNFS && len(nfs) == 0 {
		r.AddFinding(report.Finding{Severity: report.Info, Category: "nfs", Message: "No NFS mounts found"})
	}

	if fstab, err := m.env.Sys.ReadLines("/etc/fstab"); err == nil {
		n := 0
		for _, l := range fstab {
			if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "#") {
				n++
			}
		}
		r.AddMetric(report.Metric{Name: "fstab entries", Value: report.Int(int64(n))})
	}

	if unexpected > 0 {
		r.AddRecommendation(report.Recommendation{
			Priority:    1,
			Action:      "Check kernel messages for filesystem errors before remounting read-write",
			Command:     []string{"dmesg", "--level=err,warn"},
			Explanation: "The kernel remounts a filesystem read-only after detecting corruption or I/O errors.",
		})
	}
	if len(r.Findings) == 0 {
		r.SetSummary("Mounts look normal")
	}
	r.AddRecommendation(report.Recommendation{
		Priority:    3,
		Action:      "Show the full mount tree",
		Command:     []string{"findmnt"},
		Explanation: "Shows hierarchy and options.",
	})
	if cfg.Verbose {
		r.SetRaw(entries)
	}
	r.Finalize()
	return r, nil
}
