// Package detector picks the renderer for the environment kiln runs in.
package detector

import (
	"io"
	"os"

	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/zerr"
)

// OutputMode is the rendering mode of build progress.
type OutputMode int

const (
	// ModeAuto defers to DetectEnvironment.
	ModeAuto OutputMode = iota
	// ModeTUI selects the interactive renderer.
	ModeTUI
	// ModeLinear selects the line-oriented renderer.
	ModeLinear
)

// ErrUnknownOutputMode is returned for output mode names other than auto,
// tui, linear and ci.
var ErrUnknownOutputMode = zerr.New("unknown output mode, expected auto, tui or linear")

func (m OutputMode) String() string {
	switch m {
	case ModeTUI:
		return "tui"
	case ModeLinear:
		return "linear"
	default:
		return "auto"
	}
}

// ParseMode parses a --output-mode value. The empty string is ModeAuto and
// "ci" is an alias for linear.
func ParseMode(name string) (OutputMode, error) {
	switch name {
	case "", "auto":
		return ModeAuto, nil
	case "tui":
		return ModeTUI, nil
	case "linear", "ci":
		return ModeLinear, nil
	default:
		return ModeAuto, zerr.With(zerr.Wrap(ErrUnknownOutputMode, ""), "mode", name)
	}
}

// DetectEnvironment returns ModeTUI when w is a terminal outside CI and
// ModeLinear otherwise.
func DetectEnvironment(w io.Writer) OutputMode {
	ci := os.Getenv("CI")
	if ci == "true" || ci == "1" || !output.IsTerminal(w) {
		return ModeLinear
	}
	return ModeTUI
}

// ResolveMode applies the requested mode to the detected one.
func ResolveMode(detected, requested OutputMode) OutputMode {
	if requested == ModeAuto {
		return detected
	}
	return requested
}
