package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove recipe instances and build records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logs, _ := cmd.Flags().GetBool("logs")
			all, _ := cmd.Flags().GetBool("all")

			var opts app.CleanOptions

			switch {
			case all:
				opts.Instances = true
				opts.Store = true
				opts.Logs = true
			case logs:
				opts.Logs = true
			default:
				// Default behavior: clean instances and their records
				opts.Instances = true
				opts.Store = true
			}

			return c.app.Clean(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolP("logs", "l", false, "Clean build logs only")
	cmd.Flags().BoolP("all", "a", false, "Clean instances, build records and logs")

	return cmd
}
