// Package style holds the colors and glyphs shared by the log handler and the
// renderers.
package style

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Ember  = lipgloss.Color("#E8590C")
	Slate  = lipgloss.Color("#667085")
	Ash    = lipgloss.Color("#98A2B3")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	White  = lipgloss.Color("#FFFFFF")
)

// Glyphs.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Blocked = "⊘"
	Arrow   = "→"
	Dot     = "●"
)

// Hex returns the color as the hex string termenv expects.
func Hex(c lipgloss.Color) string {
	return string(c)
}
