package cli

import (
	"github.com/spf13/cobra"

	"github.com/platinummonkey/capload/pkg/archive"
)

func newPackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <dir> <archive>",
		Short: "Pack a directory of descriptors into a plugin archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := archive.PackDir(args[0], args[1])
			if err != nil {
				return err
			}
			writef(cmd.OutOrStdout(), "packed %d entries into %s\n", n, args[1])
			return nil
		},
	}
}
