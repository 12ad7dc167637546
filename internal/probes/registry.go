package probes

import (
	"sort"

	"github.com/jacobarthurs/syswhy/internal/gpu"
	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/report"
)

// All returns every module in registration order. The order is what `all`
// reports in.
func All(env Env) []module.Module {
	return []module.Module{
		NewBoot(env),
		NewCPU(env),
		NewMem(env),
		NewDisk(env),
		NewIO(env),
		NewNet(env),
		NewFan(env),
		NewTemp(env),
		gpu.New(env.Sys, env.Tools),
		NewBatt(env),
		NewSleep(env),
		NewUSB(env),
		NewMount(env),
	}
}

func Lookup(mods []module.Module, name string) (module.Module, bool) {
	for _, m := range mods {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// DefaultThresholds collects the overridable thresholds of every module,
// keyed like the config file.
func DefaultThresholds(mods []module.Module) map[string]report.Threshold {
	out := map[string]report.Threshold{}
	for _, m := range mods {
		tp, ok := m.(module.ThresholdProvider)
		if !ok {
			continue
		}
		for k, v := range tp.DefaultThresholds() {
			out[k] = v
		}
	}
	return out
}

func ThresholdKeys(mods []module.Module) []string {
	defaults := DefaultThresholds(mods)
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
