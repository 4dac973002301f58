package tui

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/kiln/internal/ui/style"
)

var (
	pendingStyle = lipgloss.NewStyle().
			Foreground(style.Slate)

	runningStyle = lipgloss.NewStyle().
			Foreground(style.Ember).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(style.Green)

	errorStyle = lipgloss.NewStyle().
			Foreground(style.Red)

	blockedStyle = lipgloss.NewStyle().
			Foreground(style.Yellow)

	phaseStyle = lipgloss.NewStyle().
			Foreground(style.Ash).
			Faint(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(style.Ember).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(style.Ember).
			Foreground(style.White)

	listStyle = lipgloss.NewStyle().
			MarginRight(1)

	logStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(style.Slate).
			PaddingLeft(1)
)
