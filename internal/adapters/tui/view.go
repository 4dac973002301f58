package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/kiln/internal/ui/style"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.ListHeight <= 0 {
		return "Initializing..."
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.recipeList(),
		m.logPane(),
	)
}

func (m *Model) recipeList() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("RECIPES") + "\n\n")

	end := min(m.ListOffset+m.ListHeight, len(m.Recipes))
	start := min(m.ListOffset, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderRow(i, m.Recipes[i]) + "\n")
	}

	return listStyle.Render(s.String())
}

func (m *Model) renderRow(index int, node *RecipeNode) string {
	cursor := "  "
	rowStyle := statusStyle(node.Status)
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		if node.Status == StatusPending || node.Status == StatusRunning {
			rowStyle = selectedStyle
		}
	}

	row := cursor + rowStyle.Render(statusIcon(node.Status)+" "+node.Name)
	switch node.Status {
	case StatusRunning:
		row += " " + phaseStyle.Render(node.Phase)
	case StatusPending:
		if len(node.Deps) > 0 {
			row += " " + phaseStyle.Render(style.Arrow+" "+strings.Join(node.Deps, ", "))
		}
	case StatusDone, StatusError:
		if !node.StartTime.IsZero() && !node.EndTime.IsZero() {
			row += " " + phaseStyle.Render(node.EndTime.Sub(node.StartTime).Round(100*time.Millisecond).String())
		}
	}
	return row
}

func statusIcon(s RecipeStatus) string {
	switch s {
	case StatusRunning:
		return style.Dot
	case StatusDone:
		return style.Check
	case StatusError:
		return style.Cross
	case StatusBlocked:
		return style.Blocked
	default:
		return "○"
	}
}

func statusStyle(s RecipeStatus) lipgloss.Style {
	switch s {
	case StatusRunning:
		return runningStyle
	case StatusDone:
		return doneStyle
	case StatusError:
		return errorStyle
	case StatusBlocked:
		return blockedStyle
	default:
		return pendingStyle
	}
}

func (m *Model) logPane() string {
	header := titleStyle.Render("LOGS (Waiting...)")
	var content string

	if node, ok := m.RecipeMap[m.ActiveRecipe]; ok {
		mode := "Manual"
		if m.FollowMode {
			mode = "Following"
		}
		header = titleStyle.Render("LOGS: " + node.Name + " (" + mode + ")")
		content = node.Term.View()
	}

	return logStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, content))
}
