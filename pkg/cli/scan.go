package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/capload/pkg/api"
)

func newScanCommand(g *globalOptions) *cobra.Command {
	pf := &pluginFlags{}
	var asJSON, withDecisions bool

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Load plugin archives and list the pluggables found",
		Long: `Discover plugin archives under the given files and directories, load them
through one shared loading context and list every pluggable instance.

Paths default to plugins.paths from the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.newSession(cmd, pf)
			if err != nil {
				return err
			}
			registry := s.newRegistry()
			defer registry.Close()

			paths := args
			if len(paths) == 0 {
				paths = s.cfg.Plugins.Paths
			}
			if len(paths) == 0 {
				return fmt.Errorf("no plugin paths given")
			}

			if err := registry.LoadPlugins(cmd.Context(), s.filter, paths...); err != nil {
				return err
			}

			units := registry.Units()
			out := cmd.OutOrStdout()

			if asJSON {
				resp := make([]api.UnitResponse, 0, len(units))
				for i, u := range units {
					resp = append(resp, api.NewUnitResponse(i, u, s.filter, withDecisions))
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			bold := color.New(color.Bold).SprintFunc()
			green := color.New(color.FgGreen).SprintFunc()
			total := 0
			for _, u := range units {
				writef(out, "%s\n", bold(u.Path()))
				for _, inst := range u.Instances() {
					writef(out, "  %s %s\n", green("+"), inst.Type.Name())
					total++
				}
			}
			writef(out, "%d units, %d pluggables\n", len(units), total)
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print units as JSON")
	cmd.Flags().BoolVar(&withDecisions, "decisions", false, "include entry decisions in JSON output")
	return cmd
}
