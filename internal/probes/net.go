package probes

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

const (
	NetLatencyWarnMs = 100
	NetLatencyCritMs = 500

	netDefaultHost = "8.8.8.8"
	// Hostname resolved when the target is an address.
	netDNSProbe = "google.com"
	// Average latency at which a finding is raised.
	netLatencyFindingMs = 200
)

const KeyNetLatency = "net.latency"

var (
	pingTime = regexp.MustCompile(`time[=<]([0-9.]+)`)
	pingLoss = regexp.MustCompile(`([0-9.]+)% packet loss`)
)

type Net struct {
	module.Base
	env Env
}

func NewNet(env Env) *Net { return &Net{env: env} }

func (n *Net) Name() string        { return "net" }
func (n *Net) Description() string { return "Diagnose network connectivity, DNS and interfaces" }

func (n *Net) DefaultThresholds() map[string]report.Threshold {
	return map[string]report.Threshold{KeyNetLatency: {Warning: NetLatencyWarnMs, Critical: NetLatencyCritMs}}
}

type pingResult struct {
	times []float64
	loss  float64
	// hasLoss is false when the summary line was missing.
	hasLoss bool
}

func (p pingResult) avg() float64 {
	if len(p.times) == 0 {
		return 0
	}
	var sum float64
	for _, t := range p.times {
		sum += t
	}
	return sum / float64(len(p.times))
}

func parsePing(out string) pingResult {
	var res pingResult
	for _, line := range strings.Split(out, "\n") {
		if m := pingTime.FindStringSubmatch(line); m != nil {
			if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
				res.times = append(res.times, ms)
			}
		}
		if m := pingLoss.FindStringSubmatch(line); m != nil {
			if loss, err := strconv.ParseFloat(m[1], 64); err == nil {
				res.loss, res.hasLoss = loss, true
			}
		}
	}
	return res
}

func (n *Net) ping(ctx context.Context, r *report.Report, host string, th report.Threshold) {
	out, err := n.env.Tools.Output(ctx, "ping", "-c", "3", "-W", "2", host)
	if err != nil {
		if module.KindOf(err) == module.KindToolNotFound {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "connectivity",
				Message:  "Could not run ping",
				Details:  err.Error(),
			})
			return
		}
		r.AddFinding(report.Finding{
			Severity: report.Warning,
			Category: "connectivity",
			Message:  fmt.Sprintf("Ping to %s failed; host may be unreachable", host),
			Details:  "Check firewall, routing and DNS.",
		})
		return
	}

	res := parsePing(string(out))
	if len(res.times) == 0 {
		r.AddFinding(report.Finding{
			Severity: report.Warning,
			Category: "connectivity",
			Message:  fmt.Sprintf("No replies from %s", host),
		})
		return
	}
	avg := res.avg()
	r.AddMetric(report.Metric{Name: "Ping latency (avg)", Value: report.Float(avg), Unit: "ms", Threshold: &th})
	if res.hasLoss {
		r.AddMetric(report.Metric{Name: "Packet loss", Value: report.Float(res.loss), Unit: "%"})
		if res.loss > 0 {
			r.AddFinding(report.Finding{
				Severity: report.Warning,
				Category: "connectivity",
				Message:  fmt.Sprintf("%.0f%% packet loss to %s", res.loss, host),
			})
		}
	}

	sev := th.Classify(avg)
	if avg > netLatencyFindingMs {
		sev = report.Max(sev, report.Warning)
	}
	if sev >= report.Warning {
		r.AddFinding(report.Finding{
			Severity: sev,
			Category: "latency",
			Message:  fmt.Sprintf("High latency to %s (%.0f ms avg)", host, avg),
			Details:  "Check WiFi, cable or ISP.",
		})
	}
}

func (n *Net) dns(ctx context.Context, r *report.Report, host string) {
	name := host
	if net.ParseIP(host) != nil {
		name = netDNSProbe
	}
	out, err := n.env.Tools.Output(ctx, "getent", "hosts", name)
	if err == nil && strings.TrimSpace(string(out)) != "" {
		r.AddFinding(report.Finding{
			Severity: report.Ok,
			Category: "dns",
			Message:  fmt.Sprintf("DNS resolution for %s OK", name),
			Details:  strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0]),
		})
		return
	}
	if _, err := n.env.Tools.Output(ctx, "host", name); err == nil {
		r.AddFinding(report.Finding{
			Severity: report.Ok,
			Category: "dns",
			Message:  fmt.Sprintf("DNS resolution for %s OK", name),
		})
		return
	}
	r.AddFinding(report.Finding{
		Severity: report.Info,
		Category: "dns",
		Message:  fmt.Sprintf("Could not verify DNS resolution for %s", name),
		Details:  "getent and host are unavailable or failed.",
	})
}

func (n *Net) interfaces(r *report.Report) {
	fs, err := n.env.proc()
	if err != nil {
		n.env.log().WithError(err).Debug("opening procfs")
		return
	}
	dev, err := fs.NetDev()
	if err != nil {
		n.env.log().WithError(err).Debug("reading net/dev")
		return
	}
	names := make([]string, 0, len(dev))
	for name := range dev {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		line := dev[name]
		if name == "lo" || (line.RxBytes == 0 && line.TxBytes == 0) {
			continue
		}
		r.AddMetric(report.Metric{Name: name + " rx", Value: report.Int(int64(line.RxBytes)), Unit: "bytes"})
		r.AddMetric(report.Metric{Name: name + " tx", Value: report.Int(int64(line.TxBytes)), Unit: "bytes"})
		if errs := line.RxErrors + line.TxErrors; errs > 0 {
			r.AddFinding(report.Finding{
				Severity: report.Info,
				Category: "interface",
				Message:  fmt.Sprintf("%s reports %d transmit/receive errors", name, errs),
			})
		}
	}
}

func (n *Net) Run(ctx context.Context, cfg module.Config) (*report.Report, error) {
	host := cfg.ExtraString("host", netDefaultHost)
	if host == "" || strings.HasPrefix(host, "-") {
		return nil, module.Errorf(module.KindParseError, "net", "invalid host %q", host)
	}
	r := report.New(n.Name(), "Network diagnostics")
	r.AddMetric(report.Metric{Name: "Target host", Value: report.Text(host)})

	th := cfg.Threshold(KeyNetLatency, report.Threshold{Warning: NetLatencyWarnMs, Critical: NetLatencyCritMs})
	n.ping(ctx, r, host, th)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.dns(ctx, r, host)
	n.interfaces(r)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Worst() == report.Ok {
		r.SetSummary("Network connectivity looks healthy")
		r.AddRecommendation(report.Recommendation{
			Priority:    3,
			Action:      "For deeper diagnosis inspect interfaces and routes",
			Command:     []string{"ip", "addr", "show"},
			Explanation: "ip route, nmcli and traceroute show routing problems.",
		})
	}
	r.Finalize()
	return r, nil
}
