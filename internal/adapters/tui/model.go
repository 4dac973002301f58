// Package tui provides the interactive terminal renderer: a recipe list next
// to the live tool output of the selected recipe.
package tui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/ui/output"
)

const (
	listWidthRatio = 0.3
	logPaneChrome  = 4
)

// RecipeStatus is the display state of a recipe.
type RecipeStatus string

// Recipe states.
const (
	StatusPending RecipeStatus = "Pending"
	StatusRunning RecipeStatus = "Running"
	StatusDone    RecipeStatus = "Done"
	StatusError   RecipeStatus = "Error"
	StatusBlocked RecipeStatus = "Blocked"
)

// RecipeNode is one row of the recipe list.
type RecipeNode struct {
	Name      string
	Status    RecipeStatus
	Phase     string
	Deps      []string
	Term      *Vterm
	SpanID    string
	StartTime time.Time
	EndTime   time.Time
}

// Model is the bubbletea model of the renderer.
type Model struct {
	Recipes      []*RecipeNode
	RecipeMap    map[string]*RecipeNode
	SpanMap      map[string]*RecipeNode
	Targets      []string
	ActiveRecipe string
	SelectedIdx  int
	ListOffset   int
	ListHeight   int
	LogWidth     int
	LogHeight    int
	FollowMode   bool
}

// NewModel creates a model whose colors suit w.
func NewModel(w io.Writer) Model {
	if w == nil {
		w = os.Stderr
	}
	lipgloss.SetColorProfile(output.New(w).Profile)

	return Model{
		RecipeMap:  make(map[string]*RecipeNode),
		SpanMap:    make(map[string]*RecipeNode),
		FollowMode: true,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
//
//nolint:cyclop // one case per message type
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case MsgPlan:
		m.Targets = msg.Targets
		m.Recipes = make([]*RecipeNode, len(msg.Recipes))
		m.RecipeMap = make(map[string]*RecipeNode, len(msg.Recipes))
		m.SpanMap = make(map[string]*RecipeNode)
		for i, name := range msg.Recipes {
			term := NewVterm()
			if m.LogWidth > 0 && m.LogHeight > 0 {
				term.Resize(m.LogWidth, m.LogHeight)
			}
			node := &RecipeNode{
				Name:   name,
				Status: StatusPending,
				Deps:   msg.Dependencies[name],
				Term:   term,
			}
			m.Recipes[i] = node
			m.RecipeMap[name] = node
		}

	case MsgSpanStart:
		m.startSpan(msg)

	case MsgSpanLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			_, _ = node.Term.Write(msg.Data)
		}

	case MsgSpanComplete:
		m.completeSpan(msg)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "k", "up":
		m.selectIndex(m.SelectedIdx - 1)
	case "j", "down":
		m.selectIndex(m.SelectedIdx + 1)
	case "esc":
		m.FollowMode = true
		for i, r := range m.Recipes {
			if r.Status == StatusRunning {
				m.SelectedIdx = i
				break
			}
		}
		m.ensureVisible()
		m.activateSelected()
	case "pgup", "pgdown", "home", "end":
		if node := m.selected(); node != nil {
			scrollTerm(node.Term, msg.String())
		}
	}
	return nil
}

func scrollTerm(term *Vterm, key string) {
	switch key {
	case "pgup":
		term.Scroll(-term.Height)
	case "pgdown":
		term.Scroll(term.Height)
	case "home":
		term.ScrollToTop()
	case "end":
		term.ScrollToBottom()
	}
}

func (m *Model) selectIndex(i int) {
	if i < 0 || i >= len(m.Recipes) || i == m.SelectedIdx {
		return
	}
	m.SelectedIdx = i
	m.FollowMode = false
	m.ensureVisible()
	m.activateSelected()
}

func (m *Model) resize(width, height int) {
	listWidth := int(float64(width) * listWidthRatio)
	m.LogWidth = width - listWidth - logPaneChrome
	m.LogHeight = height - lipgloss.Height(titleStyle.Render("LOGS"))
	m.ListHeight = height - lipgloss.Height(titleStyle.Render("RECIPES")+"\n\n")
	m.ensureVisible()

	for _, node := range m.Recipes {
		node.Term.Resize(m.LogWidth, m.LogHeight)
	}
}

func (m *Model) startSpan(msg MsgSpanStart) {
	// Phase spans write into the log of their recipe.
	if node, ok := m.SpanMap[msg.ParentID]; ok {
		node.Phase = msg.Name
		m.SpanMap[msg.SpanID] = node
		_, _ = fmt.Fprintf(node.Term, "── %s ──\r\n", msg.Name)
		return
	}

	node, ok := m.RecipeMap[msg.Name]
	if !ok {
		return
	}
	node.Status = StatusRunning
	node.SpanID = msg.SpanID
	node.StartTime = msg.StartTime
	m.SpanMap[msg.SpanID] = node

	if m.FollowMode {
		for i, r := range m.Recipes {
			if r == node {
				m.SelectedIdx = i
				break
			}
		}
		m.ensureVisible()
		m.activateSelected()
	}
}

func (m *Model) completeSpan(msg MsgSpanComplete) {
	node, ok := m.SpanMap[msg.SpanID]
	if !ok {
		return
	}

	if msg.SpanID != node.SpanID {
		if msg.Err != nil && !errors.Is(msg.Err, domain.ErrDependencyFailed) {
			_, _ = fmt.Fprintf(node.Term, "%s failed: %v\r\n", node.Phase, msg.Err)
		}
		return
	}

	node.EndTime = msg.EndTime
	switch {
	case errors.Is(msg.Err, domain.ErrDependencyFailed):
		node.Status = StatusBlocked
	case msg.Err != nil:
		node.Status = StatusError
	default:
		node.Status = StatusDone
	}
}

func (m *Model) selected() *RecipeNode {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.Recipes) {
		return m.Recipes[m.SelectedIdx]
	}
	return nil
}

func (m *Model) activateSelected() {
	node := m.selected()
	if node == nil {
		return
	}
	m.ActiveRecipe = node.Name
	if m.FollowMode {
		node.Term.ScrollToBottom()
	}
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}
