package tui

import (
	"bytes"
	"sync"

	"github.com/vito/midterm"
)

// Vterm keeps the terminal state of one recipe's tool output and the window
// of it that is visible in the log pane.
type Vterm struct {
	mu     sync.Mutex
	vt     *midterm.Terminal
	buf    bytes.Buffer
	Offset int
	Height int
	Width  int
}

// NewVterm creates an empty Vterm.
func NewVterm() *Vterm {
	return &Vterm{vt: midterm.NewAutoResizingTerminal()}
}

// Write feeds tool output to the terminal. A view scrolled to the bottom
// stays there.
func (v *Vterm) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.Offset >= v.maxOffset()
	n, err := v.vt.Write(p)
	if follow {
		v.Offset = v.maxOffset()
	}
	return n, err
}

// Resize sets the visible window. Both dimensions are at least one.
func (v *Vterm) Resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	follow := v.Offset >= v.maxOffset()
	v.Width = max(width, 1)
	v.Height = max(height, 1)
	v.vt.ResizeX(v.Width)
	if follow {
		v.Offset = v.maxOffset()
	}
	v.clamp()
}

// Scroll moves the window by delta lines.
func (v *Vterm) Scroll(delta int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Offset += delta
	v.clamp()
}

// ScrollToTop shows the first line.
func (v *Vterm) ScrollToTop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Offset = 0
}

// ScrollToBottom shows the last line and follows new output again.
func (v *Vterm) ScrollToBottom() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Offset = v.maxOffset()
}

// UsedHeight returns the number of lines written so far.
func (v *Vterm) UsedHeight() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vt.UsedHeight()
}

// View renders the visible window.
func (v *Vterm) View() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.clamp()
	v.buf.Reset()
	for i := range v.Height {
		row := v.Offset + i
		if row >= v.vt.UsedHeight() {
			break
		}
		if i > 0 {
			_ = v.buf.WriteByte('\n')
		}
		_ = v.vt.RenderLine(&v.buf, row)
	}
	return v.buf.String()
}

func (v *Vterm) clamp() {
	v.Offset = min(max(v.Offset, 0), v.maxOffset())
}

func (v *Vterm) maxOffset() int {
	return max(v.vt.UsedHeight()-v.Height, 0)
}
