package probes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

func inhibitTable(rows ...[4]string) string {
	line := func(who, uid, user, pid, comm, what, why, mode string) string {
		return fmt.Sprintf("%-14s%-5s%-6s%-6s%-14s%-28s%-36s%s\n", who, uid, user, pid, comm, what, why, mode)
	}
	var b strings.Builder
	b.WriteString(line("WHO", "UID", "USER", "PID", "COMM", "WHAT", "WHY", "MODE"))
	for _, r := range rows {
		b.WriteString(line(r[0], "0", "root", "900", r[0], r[1], r[2], r[3]))
	}
	fmt.Fprintf(&b, "\n%d inhibitors listed.\n", len(rows))
	return b.String()
}

func TestParseInhibitors(t *testing.T) {
	out := inhibitTable(
		[4]string{"ModemManager", "sleep", "ModemManager needs to reset", "delay"},
		[4]string{"vlc", "sleep:idle", "Playing a movie", "block"},
	)
	got := parseInhibitors(out)
	want := []inhibitor{
		{Who: "ModemManager", What: "sleep", Why: "ModemManager needs to reset", Mode: "delay"},
		{Who: "vlc", What: "sleep:idle", Why: "Playing a movie", Mode: "block"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := parseInhibitors("0 inhibitors listed.\n"); got != nil {
		t.Errorf("no header: got %+v, want nil", got)
	}
}

func TestSleep_BlockingInhibitor(t *testing.T) {
	tools := toolexec.NewFake().Set("systemd-inhibit", inhibitTable(
		[4]string{"ModemManager", "sleep", "reset devices", "delay"},
		[4]string{"vlc", "sleep:idle", "Playing a movie", "block"},
	))
	tr := newTree(t).
		write("sys/power/wakeup_count", "17\n").
		write("sys/power/state", "freeze mem disk\n").
		write("sys/power/mem_sleep", "s2idle [deep]\n")

	r := run(t, NewSleep(tr.env(tools)), module.DefaultConfig())

	inhibit := findings(r, "inhibit")
	if len(inhibit) != 2 || inhibit[0].Severity != report.Info || inhibit[1].Severity != report.Warning {
		t.Fatalf("inhibit findings = %+v", inhibit)
	}
	if got := number(t, r, "Wakeup count"); got != 17 {
		t.Errorf("wakeup count = %v, want 17", got)
	}
	if len(findings(r, "suspend")) != 0 {
		t.Error("suspend finding although mem is supported")
	}
	if len(r.Recommendations) != 2 {
		t.Errorf("recommendations = %+v, want inhibitor review and journal", r.Recommendations)
	}
}

func TestSleep_NoData(t *testing.T) {
	r := run(t, NewSleep(newTree(t).env(nil)), module.DefaultConfig())

	if sl := findings(r, "sleep"); len(sl) != 1 || sl[0].Severity != report.Info {
		t.Errorf("sleep findings = %+v, want one info", sl)
	}
}

func TestSleep_NoSuspendToRAM(t *testing.T) {
	tr := newTree(t).write("sys/power/state", "freeze\n")
	r := run(t, NewSleep(tr.env(nil)), module.DefaultConfig())

	if len(findings(r, "suspend")) != 1 {
		t.Errorf("findings = %+v, want suspend notice", r.Findings)
	}
}

func TestSleep_InhibitorLimit(t *testing.T) {
	var rows [][4]string
	for i := 0; i < 7; i++ {
		rows = append(rows, [4]string{fmt.Sprintf("app%d", i), "shutdown", "saving state", "delay"})
	}
	tools := toolexec.NewFake().Set("systemd-inhibit", inhibitTable(rows...))
	tr := newTree(t)

	r := run(t, NewSleep(tr.env(tools)), module.DefaultConfig())
	if got := len(findings(r, "inhibit")); got != sleepListLimit {
		t.Errorf("default: %d inhibitors listed, want %d", got, sleepListLimit)
	}

	r = run(t, NewSleep(tr.env(tools)), withExtra("inhibitors", "true"))
	if got := len(findings(r, "inhibit")); got != 7 {
		t.Errorf("--inhibitors: %d listed, want 7", got)
	}
}
