package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [recipes...|all]",
		Short: "Fetch, configure, build and package recipes",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			jobs, _ := cmd.Flags().GetInt("jobs")

			return c.app.Build(cmd.Context(), args, app.BuildOptions{
				Request:     requestFromFlags(cmd),
				Parallelism: jobs,
				OutputMode:  outputModeFromFlags(cmd),
			})
		},
	}
	addRequestFlags(cmd)
	addOutputFlags(cmd)
	cmd.Flags().IntP("jobs", "j", 0, "Maximum number of phases running at once (default: number of CPUs)")
	return cmd
}
