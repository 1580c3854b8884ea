package askcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hypedigitaly/streamer/pkg/cliui"
	"github.com/hypedigitaly/streamer/pkg/stream"
	"github.com/hypedigitaly/streamer/pkg/utils"
)

const (
	tuiHeaderHeight = 2
	tuiFooterHeight = 1
)

var tuiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))

// viewMsg carries a rendered stream view into the bubbletea loop.
type viewMsg stream.View

// doneMsg is sent once the session released its host.
type doneMsg struct{}

// tuiMount forwards every render to the program. The viewport is owned by
// the bubbletea loop, so scrolling happens there and not here.
type tuiMount struct {
	send func(tea.Msg)
	last stream.View
}

func (m *tuiMount) Parent() stream.Node { return nil }

func (m *tuiMount) OverflowY() stream.Overflow { return stream.OverflowVisible }

func (m *tuiMount) Render(v stream.View) {
	m.last = v
	m.send(viewMsg(v))
}

type askModel struct {
	viewport viewport.Model
	ready    bool
	width    int

	prompt string
	view   stream.View
	done   bool
	cancel context.CancelFunc
}

func newAskModel(prompt string, cancel context.CancelFunc) askModel {
	return askModel{prompt: prompt, cancel: cancel}
}

func (m askModel) Init() tea.Cmd {
	return nil
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		height := max(msg.Height-tuiHeaderHeight-tuiFooterHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = tuiHeaderHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.viewport.SetContent(cliui.FormatView(m.view))
		return m, nil

	case viewMsg:
		m.view = stream.View(msg)
		if m.ready {
			stream.FollowBottom(viewportScroller{vp: &m.viewport}, func() {
				m.viewport.SetContent(cliui.FormatView(m.view))
			})
		}
		return m, nil

	case doneMsg:
		m.done = true
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m askModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := fmt.Sprintf("%s %s\n",
		tuiTitleStyle.Render("streamer"),
		cliui.ValueStyle.Render(utils.Truncate(firstLine(m.prompt), max(m.width-10, 10))),
	)

	return header + "\n" + m.viewport.View() + "\n" + m.footer()
}

func (m askModel) footer() string {
	status := m.view.Phase.String()
	switch {
	case m.done && m.view.Phase == stream.PhaseFailed:
		status = cliui.FailMark + " failed"
	case m.done:
		status = cliui.SuccessMark + " done"
	}

	scroll := fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100)
	return cliui.DimStyle.Render(status+" · "+scroll+" · ↑/↓ scroll · q quit")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

// runTUI streams into a full screen view until the user quits. Quitting
// before the answer is complete cancels the stream.
func (c *askCommander) runTUI(ctx context.Context, endpoint string, payload *stream.Payload) (stream.View, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(
		newAskModel(payload.UserData, cancel),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
	)

	md, err := cliui.NewMarkdown(terminalWidth() - 2)
	if err != nil {
		return stream.View{}, fmt.Errorf("creating markdown renderer: %w", err)
	}

	mount := &tuiMount{send: program.Send}
	client := c.newClient(endpoint,
		stream.HostFunc(func() { program.Send(doneMsg{}) }),
		stream.WithRenderer(md),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Initiate(ctx, payload, mount)
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-errCh
		return mount.last, fmt.Errorf("running tui: %w", err)
	}

	cancel()
	streamErr := <-errCh
	return mount.last, streamErr
}
