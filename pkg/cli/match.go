package cli

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/capload/pkg/capability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// ErrMismatch is returned by match when the two types differ
var ErrMismatch = errors.New("types do not match")

func newMatchCommand() *cobra.Command {
	var methodOrder string

	cmd := &cobra.Command{
		Use:   "match <candidate> <capability>",
		Short: "Compare two interface descriptors structurally",
		Long: `Decide whether the interface described by <candidate> structurally matches
the capability described by <capability>. Each descriptor is loaded into
its own namespace, as if the two came from different archives.

Exits non-zero and reports the first differing rule when they do not match.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := capability.ParseMethodOrder(methodOrder)
			if err != nil {
				return err
			}

			candidate, err := typedef.NewUniverse().DefineFile(args[0])
			if err != nil {
				return err
			}
			capType, err := typedef.NewUniverse().DefineFile(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			mm := capability.NewMatcher(capability.WithMethodOrder(order)).Explain(candidate, capType)
			if mm == nil {
				writef(out, "%s %s matches %s\n", color.GreenString("MATCH"), candidate.Name(), capType.Name())
				return nil
			}

			writef(out, "%s %s does not match %s\n", color.RedString("MISMATCH"), candidate.Name(), capType.Name())
			writef(out, "  rule:       %s\n", mm.Rule)
			writef(out, "  location:   %s\n", mm.Location)
			writef(out, "  candidate:  %s\n", mm.Candidate)
			writef(out, "  capability: %s\n", mm.Capability)
			return ErrMismatch
		},
	}

	cmd.Flags().StringVar(&methodOrder, "method-order", "positional", "method pairing (positional or name)")
	return cmd
}
