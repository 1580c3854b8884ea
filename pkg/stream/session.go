package stream

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hypedigitaly/streamer/pkg/sse"
	"github.com/hypedigitaly/streamer/pkg/wire"
)

// ErrStreamError is wrapped around an error frame received from the relay.
var ErrStreamError = errors.New("stream error")

// Session owns all mutable state of one invocation: the SSE decoder, the
// accumulated answer, the phase, and the status lines. Reads happen on the
// caller's goroutine; rendering happens on a dedicated goroutine that always
// draws the latest snapshot.
//
// A Session is created by Client.Initiate and released with Close.
type Session struct {
	mount    Mount
	scroll   ScrollContainer
	renderer Renderer
	host     Host
	logger   *slog.Logger
	debug    bool
	now      func() time.Time

	decoder *sse.Decoder

	mu        sync.Mutex
	phase     Phase
	buf       strings.Builder
	errText   string
	failErr   error
	dots      int
	debugMsgs []DebugMessage
	closed    bool

	thinkingStop chan struct{}
	stopThinking func()
	renderCh     chan struct{}
	renderDone   chan struct{}
	closeOnce    sync.Once
}

type sessionConfig struct {
	mount    Mount
	viewport ScrollContainer
	renderer Renderer
	host     Host
	logger   *slog.Logger
	debug    bool
	thinking time.Duration
}

func newSession(cfg sessionConfig) *Session {
	s := &Session{
		mount:        cfg.mount,
		scroll:       FindScrollContainer(cfg.mount, cfg.viewport),
		renderer:     cfg.renderer,
		host:         cfg.host,
		logger:       cfg.logger,
		debug:        cfg.debug,
		now:          time.Now,
		decoder:      sse.NewDecoder(sse.PerLine()),
		phase:        PhaseThinking,
		dots:         1,
		thinkingStop: make(chan struct{}),
		renderCh:     make(chan struct{}, 1),
		renderDone:   make(chan struct{}),
	}
	s.stopThinking = sync.OnceFunc(func() { close(s.thinkingStop) })

	go s.renderLoop()
	if cfg.thinking > 0 {
		go s.animate(cfg.thinking)
	}
	s.requestRender()

	return s
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Text returns the answer accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// OnChunk feeds the next network chunk. Every complete data line is applied
// as soon as its newline arrives, blank line or not. It returns true once the
// stream has reached a terminal frame; the caller stops reading then. Lines
// after the terminal frame, even within the same chunk, are not applied.
func (s *Session) OnChunk(chunk []byte) bool {
	return s.apply(s.decoder.Feed(chunk))
}

// OnEOF is called when the response body is exhausted. A trailing data line
// without its newline is still applied.
func (s *Session) OnEOF() bool {
	return s.apply(s.decoder.Flush())
}

func (s *Session) apply(events []sse.Event) bool {
	for _, ev := range events {
		if s.applyData(ev.Data) {
			return true
		}
	}
	return s.Phase().Terminal()
}

func (s *Session) applyData(data string) bool {
	p, err := wire.Classify(data)
	if err != nil {
		s.logger.Debug("skipping malformed frame", "error", err, "data", data)
		return false
	}

	switch p.Kind {
	case wire.KindDelta:
		s.Append(p.Text)
	case wire.KindDone:
		s.Finish()
		return true
	case wire.KindError:
		s.Fail(fmt.Errorf("%w: %s", ErrStreamError, p.Text))
		return true
	}
	return false
}

// Append adds a delta to the buffer. The first non-empty delta moves the
// session from thinking to responding.
func (s *Session) Append(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	if s.phase == PhaseThinking {
		s.transition(PhaseResponding)
	}
	s.buf.WriteString(text)
	s.mu.Unlock()

	s.requestRender()
}

// Finish marks the stream as completed normally.
func (s *Session) Finish() {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	s.transition(PhaseDone)
	s.mu.Unlock()

	s.Debug(DebugInfo, "✅ Streaming completed")
}

// Fail replaces the content with ErrorText and records err as an error line.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	if s.phase.Terminal() {
		s.mu.Unlock()
		return
	}
	s.transition(PhaseFailed)
	s.errText = ErrorText
	s.failErr = err
	s.mu.Unlock()

	s.logger.Error("stream failed", "error", err)
	s.Debug(DebugError, "❌ Error: "+err.Error())
}

// Debug records a status line. Error lines are always shown; info lines
// only in debug mode. At most MaxDebugMessages lines are kept.
func (s *Session) Debug(level DebugLevel, text string) {
	if level == DebugInfo && !s.debug {
		return
	}

	s.mu.Lock()
	s.debugMsgs = append(s.debugMsgs, DebugMessage{Level: level, Text: text, At: s.now()})
	if over := len(s.debugMsgs) - MaxDebugMessages; over > 0 {
		s.debugMsgs = append([]DebugMessage(nil), s.debugMsgs[over:]...)
	}
	s.mu.Unlock()

	s.requestRender()
}

// transition moves to next. Leaving the thinking phase stops the indicator
// timer. Callers hold s.mu.
func (s *Session) transition(next Phase) {
	if s.phase == PhaseThinking {
		s.stopThinking()
	}
	s.logger.Debug("session phase", "from", s.phase.String(), "to", next.String())
	s.phase = next
}

func (s *Session) animate(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.thinkingStop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.phase != PhaseThinking {
				s.mu.Unlock()
				return
			}
			s.dots = s.dots%3 + 1
			s.mu.Unlock()
			s.requestRender()
		}
	}
}

// requestRender schedules a render without blocking. Requests made while one
// is pending coalesce into it.
func (s *Session) requestRender() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.renderCh <- struct{}{}:
	default:
	}
}

func (s *Session) renderLoop() {
	defer close(s.renderDone)
	for range s.renderCh {
		s.render()
	}
}

func (s *Session) render() {
	v := s.snapshot()
	if v.Phase != PhaseFailed && v.Text != "" {
		v.HTML = s.renderer.Render(v.Text)
	}
	FollowBottom(s.scroll, func() { s.mount.Render(v) })
}

func (s *Session) snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Phase: s.phase,
		Text:  s.buf.String(),
		Debug: append([]DebugMessage(nil), s.debugMsgs...),
	}
	if s.phase == PhaseThinking {
		v.Dots = s.dots
	}
	if s.phase == PhaseFailed {
		v.HTML = html.EscapeString(s.errText)
	}
	return v
}

// Close stops rendering after a final render of the current state and
// releases the host. It is safe to call more than once; the host is
// continued exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.stopThinking()
		s.requestRender()

		s.mu.Lock()
		s.closed = true
		close(s.renderCh)
		s.mu.Unlock()

		<-s.renderDone

		if s.host != nil {
			s.host.Continue()
		}
	})
}

// terminalErr returns an error when the session ended on an error frame.
func (s *Session) terminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseFailed {
		return s.failErr
	}
	return nil
}
