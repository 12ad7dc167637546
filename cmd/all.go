/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/probes"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every probe concurrently",
	Long: `Run every probe concurrently and report them in a fixed order.

A probe that fails or is unavailable is listed as such and never affects the
others. The command only fails when at least one probe failed and none produced
a report; a run where every selected probe is unavailable succeeds. Modules listed
under "disabled" in the config file are skipped.`,
	Example: `  # Full host checkup
  syswhy all

  # Only the thermal picture
  syswhy all --only fan,temp,gpu

  # Everything except the slow probes, as JSON
  syswhy all --skip disk,net --json

  # Refresh every 10 seconds
  syswhy all --watch --interval 10`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		only, _ := cmd.Flags().GetStringSlice("only")
		skip, _ := cmd.Flags().GetStringSlice("skip")

		mods, err := selectModules(s.mods, only, skip, s.file.Enabled)
		if err != nil {
			return err
		}
		if len(mods) == 0 {
			return fmt.Errorf("no modules selected")
		}
		return runAll(cmd.Context(), s, mods)
	},
}

// selectModules narrows mods to only (when given), minus skip and anything
// enabled rejects. Registration order is kept.
func selectModules(mods []module.Module, only, skip []string, enabled func(string) bool) ([]module.Module, error) {
	for _, name := range append(append([]string(nil), only...), skip...) {
		if _, ok := probes.Lookup(mods, name); !ok {
			return nil, fmt.Errorf("unknown module %q", name)
		}
	}
	in := func(list []string, name string) bool {
		for _, n := range list {
			if n == name {
				return true
			}
		}
		return false
	}

	var out []module.Module
	for _, m := range mods {
		name := m.Name()
		switch {
		case len(only) > 0 && !in(only, name):
		case in(skip, name):
		case len(only) == 0 && !enabled(name):
		default:
			out = append(out, m)
		}
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(allCmd)
	addRunFlags(allCmd.Flags())
	allCmd.Flags().StringSlice("only", nil, "Run only these modules")
	allCmd.Flags().StringSlice("skip", nil, "Skip these modules")
	allCmd.MarkFlagsMutuallyExclusive("only", "skip")
}
