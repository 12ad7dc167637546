/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/probes"
)

type flagKind int

const (
	stringFlag flagKind = iota
	boolFlag
	intFlag
	floatFlag
)

// probeFlag is a module-specific flag. Set values are copied into
// module.Config.Extra under the flag name.
type probeFlag struct {
	name  string
	kind  flagKind
	def   string
	usage string
}

var probeFlags = map[string][]probeFlag{
	"mem": {
		{name: "swap", kind: boolFlag, usage: "List the processes using the most swap"},
	},
	"disk": {
		{name: "path", kind: stringFlag, def: "/", usage: "Directory to analyze"},
		{name: "depth", kind: intFlag, def: "3", usage: "Maximum directory depth (up to 5)"},
		{name: "large", kind: stringFlag, usage: "Only list files at least this large, e.g. 100M or 1G"},
		{name: "old", kind: intFlag, def: "0", usage: "Also list files not modified for this many days"},
		{name: "hidden", kind: boolFlag, usage: "Include hidden files and directories"},
	},
	"io": {
		{name: "device", kind: stringFlag, usage: "Only show block devices whose name contains this"},
	},
	"net": {
		{name: "host", kind: stringFlag, def: "8.8.8.8", usage: "Host to ping"},
	},
	"fan": {
		{name: "threshold", kind: floatFlag, def: "0", usage: "Flag fans spinning faster than this x100 RPM"},
	},
	"temp": {
		{name: "critical", kind: boolFlag, usage: "Only show sensors at or above the critical threshold"},
	},
	"gpu": {
		{name: "device", kind: stringFlag, usage: "Only show this GPU (index, card name or PCI address)"},
	},
	"batt": {
		{name: "detailed", kind: boolFlag, usage: "Show energy, power draw and cycle count"},
	},
	"sleep": {
		{name: "inhibitors", kind: boolFlag, usage: "List every inhibitor, not just the first few"},
	},
	"usb": {
		{name: "device", kind: stringFlag, usage: "Only show devices whose description contains this"},
		{name: "dmesg", kind: boolFlag, usage: "Scan kernel messages for USB errors"},
	},
	"mount": {
		{name: "mountpoint", kind: stringFlag, usage: "Only show mounts whose path contains this"},
		{name: "nfs", kind: boolFlag, usage: "List network filesystems"},
		{name: "options", kind: boolFlag, usage: "Show mount options"},
	},
}

func (f probeFlag) register(fs *pflag.FlagSet) {
	switch f.kind {
	case boolFlag:
		fs.Bool(f.name, false, f.usage)
	case intFlag:
		def, _ := strconv.Atoi(f.def)
		fs.Int(f.name, def, f.usage)
	case floatFlag:
		def, _ := strconv.ParseFloat(f.def, 64)
		fs.Float64(f.name, def, f.usage)
	default:
		fs.String(f.name, f.def, f.usage)
	}
}

// extraFromFlags copies the module-specific flags the user set into cfg.Extra.
// Unset flags are left to the module's own defaults.
func extraFromFlags(fs *pflag.FlagSet, name string, cfg *module.Config) {
	own := map[string]bool{}
	for _, f := range probeFlags[name] {
		own[f.name] = true
	}
	extra := make(map[string]string, len(cfg.Extra))
	for k, v := range cfg.Extra {
		extra[k] = v
	}
	fs.Visit(func(f *pflag.Flag) {
		if own[f.Name] {
			extra[f.Name] = f.Value.String()
		}
	})
	cfg.Extra = extra
}

func newProbeCmd(m module.Module) *cobra.Command {
	name := m.Name()
	cmd := &cobra.Command{
		Use:     name,
		Short:   m.Description(),
		Long:    m.Description() + ".",
		Example: probeExample(name),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			extraFromFlags(cmd.Flags(), name, &s.cfg)

			mod, ok := probes.Lookup(s.mods, name)
			if !ok {
				return fmt.Errorf("unknown module %q", name)
			}
			return runSingle(cmd.Context(), s, mod)
		},
	}
	addRunFlags(cmd.Flags())
	for _, f := range probeFlags[name] {
		f.register(cmd.Flags())
	}
	return cmd
}

func probeExample(name string) string {
	lines := []string{
		"  syswhy " + name,
		"  syswhy " + name + " --watch --interval 5",
		"  syswhy " + name + " --json",
	}
	for _, f := range probeFlags[name] {
		switch f.kind {
		case boolFlag:
			lines = append(lines, "  syswhy "+name+" --"+f.name)
		default:
			if f.def != "" && f.def != "0" {
				lines = append(lines, "  syswhy "+name+" --"+f.name+" "+f.def)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func init() {
	for _, m := range probes.All(probes.Env{}) {
		rootCmd.AddCommand(newProbeCmd(m))
	}
}
