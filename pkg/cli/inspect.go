package cli

import (
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/capload/pkg/loader"
	"github.com/platinummonkey/capload/pkg/plugins"
)

func newInspectCommand(g *globalOptions) *cobra.Command {
	pf := &pluginFlags{}
	var all bool

	cmd := &cobra.Command{
		Use:   "inspect <archive> [dependency archives...]",
		Short: "Explain what happens to every entry of one archive",
		Long: `Scan a single archive and print the decision taken for each entry. Types
that load but are not pluggable are explained against every capability.

Dependency archives are added to the loading context so that interfaces
defined outside the inspected archive resolve; their entries are not listed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(cmd, pf)
			if err != nil {
				return err
			}
			host, caps, err := defineCapabilities(cfg.Plugins.Capabilities)
			if err != nil {
				return err
			}
			filter := newFilter(cfg.Plugins, caps)

			ctx := loader.New(args,
				loader.WithParent(host),
				loader.WithTypeSuffix(filter.TypeSuffix()),
				loader.WithLogger(log),
			)
			defer ctx.Close()

			unit := plugins.NewUnit(args[0], log).Bind(ctx)
			if err := unit.LoadTypes(filter); err != nil {
				return err
			}

			printDecisions(cmd.OutOrStdout(), unit.Decisions(), filter, all)
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "also list entries rejected by suffix")
	return cmd
}

func printDecisions(out io.Writer, decisions []plugins.Decision, filter *plugins.StandardFilter, all bool) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	counts := make(map[plugins.Outcome]int)
	for _, d := range decisions {
		counts[d.Outcome]++
		if d.Outcome == plugins.OutcomeRejected && !all {
			continue
		}

		var outcome string
		switch d.Outcome {
		case plugins.OutcomePluggable:
			outcome = green(d.Outcome)
		case plugins.OutcomeLoadError:
			outcome = red(d.Outcome)
		default:
			outcome = yellow(d.Outcome)
		}
		writef(out, "%-16s %s", outcome, d.Entry)
		if d.TypeName != "" {
			writef(out, " (%s)", d.TypeName)
		}
		writef(out, "\n")

		if d.Err != nil {
			writef(out, "    %v\n", d.Err)
		}
		if d.Outcome == plugins.OutcomeNotPluggable {
			mismatches := filter.Explain(d.Type)
			names := make([]string, 0, len(mismatches))
			for name := range mismatches {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				writef(out, "    %s: %v\n", name, mismatches[name])
			}
		}
	}

	writef(out, "%d entries, %d pluggable\n", len(decisions), counts[plugins.OutcomePluggable])
}
