package tui_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/adapters/tui"
)

func writeLines(v *tui.Vterm, n int) {
	for i := range n {
		_, _ = fmt.Fprintf(v, "line %02d\r\n", i)
	}
}

func TestVterm_FollowsOutput(t *testing.T) {
	v := tui.NewVterm()
	v.Resize(40, 3)

	writeLines(v, 10)

	view := v.View()
	assert.Contains(t, view, "line 09")
	assert.NotContains(t, view, "line 05")
	assert.LessOrEqual(t, len(strings.Split(view, "\n")), 3)
}

func TestVterm_ScrolledViewStaysPut(t *testing.T) {
	v := tui.NewVterm()
	v.Resize(40, 3)
	writeLines(v, 10)

	v.ScrollToTop()
	writeLines(v, 5)

	assert.Equal(t, 0, v.Offset)
	assert.Contains(t, v.View(), "line 00")

	v.ScrollToBottom()
	assert.Contains(t, v.View(), "line 04")
}

func TestVterm_ScrollIsClamped(t *testing.T) {
	v := tui.NewVterm()
	v.Resize(40, 4)
	writeLines(v, 6)

	v.Scroll(-100)
	assert.Equal(t, 0, v.Offset)

	v.Scroll(100)
	assert.Equal(t, v.UsedHeight()-4, v.Offset)
}

func TestVterm_ResizeEnforcesMinimum(t *testing.T) {
	v := tui.NewVterm()
	v.Resize(0, -3)

	assert.Equal(t, 1, v.Width)
	assert.Equal(t, 1, v.Height)
}
