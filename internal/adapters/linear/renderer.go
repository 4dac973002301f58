// Package linear provides a synchronous, line-buffered renderer for terminals
// and CI logs.
package linear

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/ui/output"
	"go.trai.ch/kiln/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer. Tool output goes to stdout, one line at
// a time, prefixed with the recipe and phase it belongs to. Status lines go
// to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	tasks   map[string]*taskState
	buffers map[string]*bytes.Buffer
}

type taskState struct {
	label     string
	startTime time.Time
}

// NewRenderer creates a new Renderer. Nil writers select os.Stdout and
// os.Stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  output.New(stderr),
		tasks:   make(map[string]*taskState),
		buffers: make(map[string]*bytes.Buffer),
	}
}

// Start is a no-op.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}
	return nil
}

// Wait is a no-op.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned recipes in execution order.
func (r *Renderer) OnPlanEmit(recipes []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	arrow := r.glyph(style.Arrow, style.Ember)
	_, _ = fmt.Fprintf(r.stderr, "%s Planning %d recipe(s) for %s: %s\n",
		arrow, len(recipes), strings.Join(targets, ", "), strings.Join(recipes, " "+style.Arrow+" "))
}

// OnTaskStart records the span and prints a start line. Phase spans are
// labelled with their recipe, e.g. [libossia:configure].
func (r *Renderer) OnTaskStart(spanID, parentID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := name
	if parent, ok := r.tasks[parentID]; ok {
		label = parent.label + ":" + name
	}

	r.tasks[spanID] = &taskState{label: label, startTime: startTime}
	r.buffers[spanID] = new(bytes.Buffer)

	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", r.prefix(label))
}

// OnTaskLog buffers data and prints complete lines.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	for {
		i := bytes.IndexByte(buf.Bytes(), '\n')
		if i < 0 {
			return
		}
		r.printLineLocked(task.label, buf.Next(i+1))
	}
}

// OnTaskComplete flushes the span's output and prints its outcome. A span
// that ends with domain.ErrDependencyFailed is reported as blocked.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	r.flushBufferLocked(spanID)

	duration := endTime.Sub(task.startTime).Round(time.Millisecond)
	prefix := r.prefix(task.label)

	switch {
	case errors.Is(err, domain.ErrDependencyFailed):
		symbol := r.glyph(style.Blocked, style.Yellow)
		_, _ = fmt.Fprintf(r.stderr, "%s %s Blocked by a failed dependency\n", prefix, symbol)
	case err != nil:
		symbol := r.glyph(style.Cross, style.Red)
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n", prefix, symbol, duration, err)
	default:
		symbol := r.glyph(style.Check, style.Green)
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n", prefix, symbol, duration)
	}

	delete(r.tasks, spanID)
	delete(r.buffers, spanID)
}

func (r *Renderer) prefix(label string) string {
	return r.output.String("[" + label + "]").Faint().String()
}

func (r *Renderer) glyph(s string, c lipgloss.Color) string {
	return r.output.String(s).Foreground(r.output.Color(style.Hex(c))).String()
}

// flushBufferLocked prints a trailing partial line. Must be called with r.mu
// held.
func (r *Renderer) flushBufferLocked(spanID string) {
	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	if buf.Len() > 0 {
		r.printLineLocked(task.label, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(label string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", label, line)
}
