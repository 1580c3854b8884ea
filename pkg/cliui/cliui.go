// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, markdown rendering, stream status lines) for streamer CLI
// commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/hypedigitaly/streamer/pkg/stream"
)

var (
	SuccessMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	NameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
	KeyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	WarnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// spinnerFrames matches bubbletea's spinner.Dot pattern used in the ask TUI.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	// Run spinner animation in background
	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Markdown renders answers for the terminal. It satisfies stream.Renderer so
// a terminal mount receives styled text where a web mount would get HTML.
type Markdown struct {
	r *glamour.TermRenderer
}

// NewMarkdown creates a Markdown renderer wrapping at width columns.
func NewMarkdown(width int) (*Markdown, error) {
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Markdown{r: r}, nil
}

// Render returns src styled for the terminal, or src unchanged when glamour
// fails.
func (m *Markdown) Render(src string) string {
	out, err := m.r.Render(src)
	if err != nil {
		return src
	}
	return strings.Trim(out, "\n")
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	m, err := NewMarkdown(80)
	if err != nil {
		return content, err
	}

	rendered, err := m.r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// ThinkingLine is the animated indicator shown before the first delta.
func ThinkingLine(dots int) string {
	if dots < 1 {
		dots = 1
	}
	return ThinkingStyle.Render("Thinking" + strings.Repeat(".", dots))
}

// DebugLine formats one status line of a stream view.
func DebugLine(m stream.DebugMessage) string {
	if m.Level == stream.DebugError {
		return ErrorStyle.Render(m.Text)
	}
	return StepStyle.Render(m.Text)
}

// FormatView renders a full stream view as terminal text: status lines, then
// the thinking indicator or the answer.
func FormatView(v stream.View) string {
	var b strings.Builder
	for _, m := range v.Debug {
		b.WriteString(DebugLine(m))
		b.WriteByte('\n')
	}

	switch v.Phase {
	case stream.PhaseThinking:
		b.WriteString(ThinkingLine(v.Dots))
	case stream.PhaseFailed:
		b.WriteString(ErrorStyle.Render(v.HTML))
	default:
		b.WriteString(v.HTML)
	}
	return b.String()
}

// ColorEnabled reports whether w is a terminal that renders colors.
func ColorEnabled(w io.Writer) bool {
	return termenv.NewOutput(w).Profile != termenv.Ascii
}

// Plain strips ANSI escape sequences from s.
func Plain(s string) string {
	return ansi.Strip(s)
}

// Height is the number of terminal lines s occupies.
func Height(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// Width is the widest line of s in cells, ignoring escape sequences.
func Width(s string) int {
	w := 0
	for _, line := range strings.Split(s, "\n") {
		if n := ansi.StringWidth(line); n > w {
			w = n
		}
	}
	return w
}
