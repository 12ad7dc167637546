/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jacobarthurs/syswhy/internal/config"
	"github.com/jacobarthurs/syswhy/internal/probes"
	"github.com/jacobarthurs/syswhy/internal/report"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Manage severity thresholds",
	Long: `Manage the warning and critical thresholds probes classify metrics against.

Overrides are stored in the config file and apply to every later run.`,
}

var thresholdListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List thresholds and overrides",
	Example: `  syswhy threshold list`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		mods := probes.All(probes.Env{})
		defaults := probes.DefaultThresholds(mods)

		for _, key := range probes.ThresholdKeys(mods) {
			def := defaults[key]
			line := fmt.Sprintf("  %-18s warning %-6g critical %-6g", key, def.Warning, def.Critical)
			if o, ok := cfg.Thresholds[key]; ok {
				line += fmt.Sprintf(" (override: warning %g, critical %g)", o.Warning, o.Critical)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var thresholdSetCmd = &cobra.Command{
	Use:   "set <key> <warning> <critical>",
	Short: "Override a threshold",
	Example: `  syswhy threshold set cpu.usage 60 85
  syswhy threshold set gpu.temperature 70 80`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := knownThreshold(key); err != nil {
			return err
		}
		warn, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid warning value %q: %w", args[1], err)
		}
		crit, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid critical value %q: %w", args[2], err)
		}

		if err := config.SetThreshold(key, report.Threshold{Warning: warn, Critical: crit}); err != nil {
			return err
		}
		fmt.Printf("Threshold %q set to warning %g, critical %g.\n", key, warn, crit)
		return nil
	},
}

var thresholdResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Remove a threshold override",
	Example: `  syswhy threshold reset cpu.usage
  syswhy threshold reset --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("specify either a key or --all")
		}

		if all {
			if err := config.ResetThreshold(""); err != nil {
				return err
			}
			fmt.Println("All threshold overrides removed.")
			return nil
		}

		if err := knownThreshold(args[0]); err != nil {
			return err
		}
		if err := config.ResetThreshold(args[0]); err != nil {
			return err
		}
		fmt.Printf("Threshold %q reset to its default.\n", args[0])
		return nil
	},
}

func knownThreshold(key string) error {
	for _, k := range probes.ThresholdKeys(probes.All(probes.Env{})) {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("unknown threshold %q; run 'syswhy threshold list' to see the keys", key)
}

func init() {
	rootCmd.AddCommand(thresholdCmd)
	thresholdCmd.AddCommand(thresholdListCmd)
	thresholdCmd.AddCommand(thresholdSetCmd)
	thresholdCmd.AddCommand(thresholdResetCmd)
	thresholdResetCmd.Flags().Bool("all", false, "Remove every override")
}
