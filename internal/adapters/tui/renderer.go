package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer runs a Model as a bubbletea program and feeds it span events.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a renderer for model.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	return &Renderer{
		program: tea.NewProgram(model, opts...),
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start runs the program in the background.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop asks the program to quit after drawing the final state.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the program has exited.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// OnPlanEmit implements ports.Renderer.
func (r *Renderer) OnPlanEmit(recipes []string, deps map[string][]string, targets []string) {
	r.program.Send(MsgPlan{Recipes: recipes, Dependencies: deps, Targets: targets})
}

// OnTaskStart implements ports.Renderer.
func (r *Renderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.program.Send(MsgSpanStart{SpanID: spanID, ParentID: parentID, Name: name, StartTime: startTime})
}

// OnTaskLog implements ports.Renderer. data is copied because the caller may
// reuse its buffer before the program handles the message.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.program.Send(MsgSpanLog{SpanID: spanID, Data: append([]byte(nil), data...)})
}

// OnTaskComplete implements ports.Renderer.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.program.Send(MsgSpanComplete{SpanID: spanID, EndTime: endTime, Err: err})
}

// Model returns the model driven by the renderer.
func (r *Renderer) Model() *Model {
	return r.model
}
