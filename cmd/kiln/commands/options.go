package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newOptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options <recipe>",
		Short: "Show the resolved options and build definitions of a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Options(cmd.Context(), args[0], requestFromFlags(cmd))
		},
	}
	addRequestFlags(cmd)
	return cmd
}
