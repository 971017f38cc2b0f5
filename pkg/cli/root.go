package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is reported by the server health endpoints
var Version = "dev"

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool
}

// NewRootCommand creates the root command with every subcommand registered
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:           "capload",
		Short:         "Discover and load plugins by structural capability",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&g.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&g.logFormat, "log-format", "", "log format (text or json)")
	flags.BoolVar(&g.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newScanCommand(g),
		newInspectCommand(g),
		newMatchCommand(),
		newPackCommand(),
		newServeCommand(g),
	)

	return root
}
