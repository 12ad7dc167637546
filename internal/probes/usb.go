package probes

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

const (
	usbListLimit  = 15
	usbDmesgLimit = 10
	usbSysfsBus   = "/sys/bus/usb/devices"
)

var lsusbLine = regexp.MustCompile(`^Bus (\d+) Device (\d+): ID ([0-9a-fA-F]{4}:[0-9a-fA-F]{4})\s*(.*)$`)

type USB struct {
	module.Base
	env Env
}

func NewUSB(env Env) *USB { return &USB{env: env} }

func (u *USB) Name() string        { return "usb" }
func (u *USB) Description() string { return "Diagnose USB device problems and enumeration" }

type usbDevice struct {
	Bus    string `json:"bus"`
	Device string `json:"device"`
	ID     string `json:"id"`
	Name   string `json:"name"`
}

func (d usbDevice) String() string {
	s := fmt.Sprintf("Bus %s Device %s: ID %s", d.Bus, d.Device, d.ID)
	if d.Name != "" {
		s += " " + d.Name
	}
	return s
}

func parseLsusb(out string) []usbDevice {
	var devs []usbDevice
	for _, line := range strings.Split(out, "\n") {
		m := lsusbLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		devs = append(devs, usbDevice{Bus: m[1], Device: m[2], ID: strings.ToLower(m[3]), Name: strings.TrimSpace(m[4])})
	}
	return devs
}

// sysfsDevices lists devices from /sys/bus/usb/devices, skipping interface
// entries such as 1-1:1.0.
func (u *USB) sysfsDevices() ([]usbDevice, error) {
	entries, err := u.env.Sys.List(usbSysfsBus)
	if err != nil {
		return nil, err
	}
	var devs []usbDevice
	for _, e := range entries {
		if strings.Contains(e, ":") {
			continue
		}
		if !(strings.HasPrefix(e, "usb") || (e[0] >= '0' && e[0] <= '9')) {
			continue
		}
		dir := path.Join(usbSysfsBus, e)
		vendor, _ := u.env.Sys.ReadLine(path.Join(dir, "idVendor"))
		product, _ := u.env.Sys.ReadLine(path.Join(dir, "idProduct"))
		bus, _ := u.env.Sys.ReadLine(path.Join(dir, "busnum"))
		dev, _ := u.env.Sys.ReadLine(path.Join(dir, "devnum"))
		name, _ := u.env.Sys.ReadLine(path.Join(dir, "product"))
		if maker, err := u.env.Sys.ReadLine(path.Join(dir, "manufacturer")); err == nil && maker != "" {
			name = strings.TrimSpace(maker + " " + name)
		}
		devs = append(devs, usbDevice{
			Bus:    padNum(bus),
			Device: padNum(dev),
			ID:     vendor + ":" + product,
			Name:   name,
		})
	}
	return devs, nil
}

// padNum renders sysfs busnum/devnum the way lsusb prints them.
func padNum(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%03d", n)
}

func usbKernelProblem(line string) bool {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "usb") {
		return false
	}
	return strings.Contains(lower, "error") || strings.Contains(lower, "reset") || strings.Contains(lower, "fail")
}

func (u *USB) dmesg(ctx context.Context, r *report.Report) {
	out, err := u.env.Tools.Output(ctx, "dmesg", "-T")
	if err != nil {
		msg := "Could not read kernel messages"
		if module.KindOf(err) == module.KindPermissionDenied {
			msg = "Reading kernel messages requires root"
		}
		r.AddFinding(report.Finding{Severity: report.Info, Category: "dmesg", Message: msg, Details: err.Error()})
		return
	}
	var problems []string
	for _, line := range strings.Split(string(out), "\n") {
		if usbKernelProblem(line) {
			problems = append(problems, strings.TrimSpace(line))
		}
	}
	// Most recent messages are at the end.
	if len(problems) > usbDmesgLimit {
		problems = problems[len(problems)-usbDmesgLimit:]
	}
	for _, line := range problems {
		r.AddFinding(report.Finding{Severity: report.Warning, Category: "dmesg", Message: line})
	}
	if len(problems) > 0 {
		r.AddRecommendation(report.Recommendation{
			Priority:    2,
			Action:      "Reseat the device or try another port and cable",
			Command:     []string{"dmesg", "-w"},
			Explanation: "Resets and enumeration failures usually point at power or cabling.",
		})
	}
}

func (u *USB) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	r := report.New(u.Name(), "USB diagnostics")
	filter := strings.ToLower(cfg.ExtraString("device", ""))

	var (
		devs   []usbDevice
		source string
	)
	if toolexec.Available(u.env.Tools, "lsusb") {
		out, err := u.env.Tools.Output(ctx, "lsusb")
		if err != nil {
			u.env.log().WithError(err).Debug("lsusb failed, falling back to sysfs")
		} else {
			devs, source = parseLsusb(string(out)), "lsusb"
		}
	}
	if source == "" {
		if d, err := u.sysfsDevices(); err == nil {
			devs, source = d, "sysfs"
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if source != "" {
		r.AddMetric(report.Metric{Name: fmt.Sprintf("USB devices (%s)", source), Value: report.Int(int64(len(devs)))})
		listed := 0
		for _, d := range devs {
			if filter != "" && !strings.Contains(strings.ToLower(d.String()), filter) {
				continue
			}
			if listed == usbListLimit {
				break
			}
			listed++
			r.AddFinding(report.Finding{Severity: report.Info, Category: "usb", Message: d.String()})
		}
		if filter != "" && listed == 0 {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "usb",
				Message:  fmt.Sprintf("No USB device matches %q", filter),
			})
		}
		if cfg.Verbose {
			r.SetRaw(devs)
		}
	}

	if cfg.ExtraBool("dmesg") {
		u.dmesg(ctx, r)
	}

	if len(r.Findings) == 0 && len(r.Metrics) == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Info,
			Category: "usb",
			Message:  "No USB data available from lsusb or sysfs",
		})
	}
	r.AddRecommendation(report.Recommendation{
		Priority:    3,
		Action:      "Show the USB topology",
		Command:     []string{"lsusb", "-t"},
		Explanation: "Helps identify enumeration or power issues behind hubs.",
	})
	r.Finalize()
	return r, nil
}
