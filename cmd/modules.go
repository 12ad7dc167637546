/*
Copyright © 2026 JACOB ARTHURS
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacobarthurs/syswhy/internal/module"
	"github.com/jacobarthurs/syswhy/internal/output"
	"github.com/jacobarthurs/syswhy/internal/probes"
	"github.com/jacobarthurs/syswhy/internal/toolexec"
)

type moduleInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Permissions []module.Permission `json:"permissions"`
	Missing     []module.Permission `json:"missing_permissions"`
	Available   bool                `json:"available"`
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the available probes",
	Long: `List every probe with its description, the permissions it wants and
whether it can run on this host.`,
	Example: `  syswhy modules
  syswhy modules --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := probes.HostEnv(toolexec.New(module.DefaultToolTimeout, log), log)

		var infos []moduleInfo
		for _, m := range probes.All(env) {
			perms := m.RequiredPermissions()
			infos = append(infos, moduleInfo{
				Name:        m.Name(),
				Description: m.Description(),
				Permissions: perms,
				Missing:     module.Check(perms),
				Available:   m.IsAvailable(),
			})
		}

		if globals.json {
			return output.RenderJSON(os.Stdout, infos)
		}

		width := 0
		for _, info := range infos {
			width = max(width, len(info.Name))
		}
		for _, info := range infos {
			fmt.Printf("  %-*s  %s\n", width, info.Name, info.Description)
			var notes []string
			if !info.Available {
				notes = append(notes, "unavailable")
			}
			if len(info.Missing) > 0 {
				notes = append(notes, "missing "+joinPerms(info.Missing))
			}
			if len(notes) > 0 {
				fmt.Printf("  %-*s  (%s)\n", width, "", strings.Join(notes, "; "))
			}
		}
		return nil
	},
}

func joinPerms(perms []module.Permission) string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
