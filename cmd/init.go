/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacobarthurs/syswhy/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with example template",
	Long: `Create <user config dir>/syswhy/config.yaml with an example template.

The config file stores the default watch interval, list length, tool timeout,
modules to leave out of "syswhy all" and threshold overrides. If a config file
already exists, it will not be overwritten.`,
	Example: `  # Create default config
  syswhy init

  # Overwrite existing config
  syswhy init --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path, err := config.Init(force)
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Created config at %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing config file")
}
