package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newPackageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package <recipe>",
		Short: "Package a recipe again from its last successful build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Package(cmd.Context(), args[0], app.PackageOptions{
				Request:    requestFromFlags(cmd),
				OutputMode: outputModeFromFlags(cmd),
			})
		},
	}
	addRequestFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}
