package probes

import (
	"strings"
	"testing"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

func sensorTree(t *testing.T) *tree {
	return newTree(t).
		write("sys/class/hwmon/hwmon0/name", "nct6775\n").
		write("sys/class/hwmon/hwmon0/fan1_input", "1200\n").
		write("sys/class/hwmon/hwmon0/fan2_input", "4500\n").
		write("sys/class/hwmon/hwmon0/fan2_label", "CPU_FAN\n").
		write("sys/class/hwmon/hwmon0/temp1_input", "45000\n").
		write("sys/class/hwmon/hwmon1/name", "coretemp\n").
		write("sys/class/hwmon/hwmon1/temp1_input", "84000\n").
		write("sys/class/thermal/thermal_zone0/type", "x86_pkg_temp\n").
		write("sys/class/thermal/thermal_zone0/temp", "93000\n").
		write("sys/class/thermal/thermal_zone0/policy", "step_wise\n").
		write("sys/class/thermal/cooling_device0/type", "Processor\n")
}

func TestHwmonInputs(t *testing.T) {
	fans := hwmonInputs(sensorTree(t).fs(), "fan")
	want := []sensor{{"nct6775 fan1", 1200}, {"nct6775 CPU_FAN", 4500}}
	if len(fans) != len(want) {
		t.Fatalf("got %+v, want %+v", fans, want)
	}
	for i := range want {
		if fans[i] != want[i] {
			t.Errorf("fan %d = %+v, want %+v", i, fans[i], want[i])
		}
	}
}

func TestThermalZones_SkipsIncompleteZones(t *testing.T) {
	tr := sensorTree(t).
		write("sys/class/thermal/thermal_zone1/type", "acpitz\n").
		write("sys/class/thermal/thermal_zone1/temp", "40000\n")

	zones := thermalZones(tr.env(nil))
	want := []sensor{{"x86_pkg_temp", 93000}}
	if len(zones) != len(want) || zones[0] != want[0] {
		t.Errorf("got %+v, want %+v", zones, want)
	}
}

func TestFan_Threshold(t *testing.T) {
	r := run(t, NewFan(sensorTree(t).env(nil)), withExtra("threshold", "30"))

	if got := number(t, r, "nct6775 CPU_FAN"); got != 4500 {
		t.Errorf("CPU_FAN = %v, want 4500", got)
	}
	fans := findings(r, "fan")
	if len(fans) != 1 || !strings.HasPrefix(fans[0].Message, "nct6775 CPU_FAN running at 4500 RPM") {
		t.Errorf("fan findings = %+v, want CPU_FAN above 3000 RPM", fans)
	}
}

func TestFan_NoSensors(t *testing.T) {
	r := run(t, NewFan(newTree(t).env(nil)), module.DefaultConfig())
	if r.OverallSeverity != report.Info || len(r.Metrics) != 0 {
		t.Errorf("overall = %v with %d metrics, want info and none", r.OverallSeverity, len(r.Metrics))
	}
}

func TestTemp_Classification(t *testing.T) {
	r := run(t, NewTemp(sensorTree(t).env(nil)), module.DefaultConfig())

	temps := findings(r, "temp")
	if len(temps) != 2 {
		t.Fatalf("temp findings = %+v, want critical zone and warning core", temps)
	}
	if temps[0].Severity != report.Critical || !strings.HasPrefix(temps[0].Message, "x86_pkg_temp at 93°C") {
		t.Errorf("first = %+v", temps[0])
	}
	if temps[1].Severity != report.Warning || !strings.HasPrefix(temps[1].Message, "coretemp temp1 at 84°C") {
		t.Errorf("second = %+v", temps[1])
	}
	if got := number(t, r, "nct6775 temp1"); got != 45 {
		t.Errorf("nct6775 temp1 = %v, want 45", got)
	}
	if len(r.Recommendations) != 1 || r.Recommendations[0].Priority != 1 {
		t.Errorf("recommendations = %+v", r.Recommendations)
	}
}

func TestTemp_CriticalOnly(t *testing.T) {
	r := run(t, NewTemp(sensorTree(t).env(nil)), withExtra("critical", "true"))

	if len(r.Metrics) != 1 || r.Metrics[0].Name != "x86_pkg_temp" {
		t.Errorf("metrics = %+v, want only the critical zone", r.Metrics)
	}
}

func TestTemp_ThresholdOverride(t *testing.T) {
	cfg := module.DefaultConfig()
	cfg.Thresholds = map[string]report.Threshold{KeyTempSensor: {Warning: 95, Critical: 100}}

	r := run(t, NewTemp(sensorTree(t).env(nil)), cfg)

	if r.OverallSeverity != report.Ok {
		t.Errorf("overall = %v, want ok with raised thresholds", r.OverallSeverity)
	}
	if !strings.Contains(r.Summary, "hottest x86_pkg_temp at 93°C") {
		t.Errorf("summary = %q", r.Summary)
	}
}

func battTree(t *testing.T, status, capacity string) *tree {
	return newTree(t).
		write("sys/class/power_supply/AC/type", "Mains\n").
		write("sys/class/power_supply/AC/online", "0\n").
		write("sys/class/power_supply/BAT0/type", "Battery\n").
		write("sys/class/power_supply/BAT0/status", status+"\n").
		write("sys/class/power_supply/BAT0/capacity", capacity+"\n").
		write("sys/class/power_supply/BAT0/energy_full", "40000000\n").
		write("sys/class/power_supply/BAT0/energy_full_design", "50000000\n").
		write("sys/class/power_supply/BAT0/energy_now", "6000000\n")
}

func TestBatt_Capacity(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		capacity string
		want     report.Severity
	}{
		{"healthy", "Discharging", "80", report.Ok},
		{"low", "Discharging", "20", report.Warning},
		{"critical", "Discharging", "10", report.Critical},
		{"just above low", "Discharging", "21", report.Ok},
		{"charging", "Charging", "5", report.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, NewBatt(battTree(t, tt.status, tt.capacity).env(nil)), module.DefaultConfig())
			if r.OverallSeverity != tt.want {
				t.Errorf("overall = %v, want %v (findings %+v)", r.OverallSeverity, tt.want, r.Findings)
			}
		})
	}
}

func TestBatt_HealthAndDetail(t *testing.T) {
	r := run(t, NewBatt(battTree(t, "Discharging", "50").env(nil)), withExtra("detailed", "true"))

	if got := number(t, r, "BAT0 health"); got != 80 {
		t.Errorf("health = %v, want 80", got)
	}
	if got := number(t, r, "BAT0 energy_now"); got != 6000000 {
		t.Errorf("energy_now = %v, want 6000000", got)
	}
	if _, ok := metric(r, "AC status"); ok {
		t.Error("mains adapter reported as a battery")
	}
}

func TestBatt_NoBattery(t *testing.T) {
	tr := newTree(t).write("sys/class/power_supply/AC/type", "Mains\n")
	r := run(t, NewBatt(tr.env(nil)), module.DefaultConfig())

	if r.OverallSeverity != report.Info || len(r.Recommendations) != 0 {
		t.Errorf("overall = %v, recommendations %+v", r.OverallSeverity, r.Recommendations)
	}
}

func TestBatt_ChargeCounters(t *testing.T) {
	tr := newTree(t).
		write("sys/class/power_supply/BAT1/type", "Battery\n").
		write("sys/class/power_supply/BAT1/status", "Discharging\n").
		write("sys/class/power_supply/BAT1/capacity", "60\n").
		write("sys/class/power_supply/BAT1/charge_full", "3000000\n").
		write("sys/class/power_supply/BAT1/charge_full_design", "4000000\n")
	r := run(t, NewBatt(tr.env(nil)), module.DefaultConfig())

	if got := number(t, r, "BAT1 health"); got != 75 {
		t.Errorf("health = %v, want 75", got)
	}
	if r.Summary != "Battery status OK" {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestBatt_NoPowerSupplyClass(t *testing.T) {
	r := run(t, NewBatt(newTree(t).env(nil)), module.DefaultConfig())

	if r.OverallSeverity != report.Info {
		t.Errorf("overall = %v, want info", r.OverallSeverity)
	}
	if len(r.Findings) != 1 || r.Findings[0].Message != "No power_supply class found" {
		t.Errorf("findings = %+v", r.Findings)
	}
}
