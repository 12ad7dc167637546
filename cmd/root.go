/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jacobarthurs/syswhy/internal/config"
	"github.com/jacobarthurs/syswhy/internal/logging"
)

var Version = "dev"

func init() {
	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" {
			Version = info.Main.Version
		}
	}
	rootCmd.Version = Version
}

type globalOptions struct {
	json       bool
	verbose    bool
	noColor    bool
	logLevel   string
	configPath string
}

var (
	globals globalOptions
	log     = logging.Discard
)

var rootCmd = &cobra.Command{
	Use:          "syswhy",
	SilenceUsage: true,
	Short:        "Explain why a Linux host is slow, hot, full or misbehaving",
	Long: `syswhy inspects /proc, /sys and vendor tools and explains what it finds in
plain language, with severity-ranked findings and recommended next steps.

Every probe runs on its own, and "syswhy all" runs them all concurrently.
Probes never modify the system.`,
	Example: `  # Why is the CPU busy?
  syswhy cpu

  # Watch GPU utilization every 5 seconds
  syswhy gpu --watch --interval 5

  # Run every probe and emit JSON
  syswhy all --json

  # Write an example config file
  syswhy init`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.SetPath(globals.configPath)

		level := globals.logLevel
		if globals.verbose && !cmd.Flags().Changed("log-level") {
			level = logrus.DebugLevel.String()
		}
		l, err := logging.New(level)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&globals.json, "json", false, "Emit JSON instead of text")
	pf.BoolVarP(&globals.verbose, "verbose", "v", false, "Show ok findings and debug logging")
	pf.BoolVar(&globals.noColor, "no-color", false, "Disable colored output")
	pf.StringVar(&globals.logLevel, "log-level", "warn", "Diagnostic log level: debug, info, warn, error")
	pf.StringVar(&globals.configPath, "config", "", "Config file (default <user config dir>/syswhy/config.yaml)")
}
