package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
)

// addRequestFlags registers the flags that shape a recipe configuration.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("option", "o", nil, "Override a recipe option (name:option=value)")
	cmd.Flags().StringArrayP("setting", "s", nil, "Override a host setting (key=value)")
	cmd.Flags().String("preset", "", "Configure every recipe with this preset (embeddable or full)")
}

// addOutputFlags registers the flags that select the progress renderer.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-mode", "auto", "Output mode: auto, tui, or linear")
	cmd.Flags().Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")
}

func outputModeFromFlags(cmd *cobra.Command) string {
	mode, _ := cmd.Flags().GetString("output-mode")
	if ci, _ := cmd.Flags().GetBool("ci"); ci {
		mode = "linear"
	}
	return mode
}

func requestFromFlags(cmd *cobra.Command) app.Request {
	options, _ := cmd.Flags().GetStringArray("option")
	settings, _ := cmd.Flags().GetStringArray("setting")
	preset, _ := cmd.Flags().GetString("preset")
	return app.Request{
		Options:  options,
		Settings: settings,
		Preset:   preset,
	}
}
