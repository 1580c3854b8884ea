package askcmder

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/x/ansi"

	"github.com/hypedigitaly/streamer/pkg/cliui"
	"github.com/hypedigitaly/streamer/pkg/stream"
)

// terminalMount renders stream views straight into a terminal. Live mounts
// redraw the whole frame in place on every render; others only print the
// final answer.
type terminalMount struct {
	out   io.Writer
	live  bool
	lines int
	last  stream.View
}

func newTerminalMount(out io.Writer, live bool) *terminalMount {
	return &terminalMount{out: out, live: live}
}

func (m *terminalMount) Parent() stream.Node { return nil }

func (m *terminalMount) OverflowY() stream.Overflow { return stream.OverflowVisible }

func (m *terminalMount) Render(v stream.View) {
	m.last = v
	if !m.live {
		return
	}

	frame := cliui.FormatView(v)
	if m.lines > 1 {
		fmt.Fprint(m.out, ansi.CursorUp(m.lines-1))
	}
	fmt.Fprint(m.out, "\r"+ansi.EraseScreenBelow+frame)
	m.lines = cliui.Height(frame)
}

// finish ends the output once the session released its host.
func (m *terminalMount) finish() {
	if m.live {
		fmt.Fprintln(m.out)
		return
	}

	switch m.last.Phase {
	case stream.PhaseFailed:
		fmt.Fprintln(m.out, stream.ErrorText)
	default:
		fmt.Fprintln(m.out, m.last.Text)
	}
}

// lineHeight is how many pixels one terminal line stands for when the
// viewport is measured as a scroll container.
const lineHeight = 20

// viewportScroller exposes a bubbles viewport as a stream.ScrollContainer so
// the TUI follows new text with the same policy as a web page.
type viewportScroller struct {
	vp *viewport.Model
}

func (s viewportScroller) ScrollTop() float64 {
	return float64(s.vp.YOffset * lineHeight)
}

func (s viewportScroller) ScrollHeight() float64 {
	return float64(s.vp.TotalLineCount() * lineHeight)
}

func (s viewportScroller) ClientHeight() float64 {
	return float64(s.vp.Height * lineHeight)
}

func (s viewportScroller) ScrollTo(top float64) {
	s.vp.SetYOffset(int(top) / lineHeight)
}
