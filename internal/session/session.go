// Package session owns the conversation: its history, the single slot that
// recording and generation compete for, and the streaming of replies.
package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWindow      = 10
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
)

type Options struct {
	// Window is the number of trailing turns sent to the engine.
	Window int
	Params Params
}

func DefaultOptions() Options {
	return Options{
		Window: DefaultWindow,
		Params: Params{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
	}
}

type Session struct {
	id     string
	engine Engine
	opts   Options
	events *mailbox

	mu      sync.Mutex
	status  Status
	history []Turn
}

func New(engine Engine, listener Listener, opts Options) *Session {
	if listener == nil {
		listener = nopListener{}
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	s := &Session{
		id:     uuid.Must(uuid.NewV7()).String(),
		engine: engine,
		opts:   opts,
		events: newMailbox(listener),
	}

	log.Debug("Session created", "session", s.id, "window", opts.Window)

	return s
}

func (s *Session) ID() string {
	return s.id
}

// Close flushes pending listener events and stops the dispatcher. In-flight
// generations still finish, but their events are no longer delivered.
func (s *Session) Close() {
	s.events.close()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// History returns a copy of every turn of the session.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Window returns a copy of the turns the engine would see right now.
func (s *Session) Window() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowLocked()
}

func (s *Session) windowLocked() []Turn {
	start := 0
	if len(s.history) > s.opts.Window {
		start = len(s.history) - s.opts.Window
	}
	return slices.Clone(s.history[start:])
}

// Submit appends a user turn and starts generating the reply. It never
// blocks on a running generation: if the session is not ready it fails with
// ErrBusy and the history is left untouched.
func (s *Session) Submit(ctx context.Context, text string) (*Generation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTurn
	}

	s.mu.Lock()
	if s.status != StatusReady {
		status := s.status
		s.mu.Unlock()
		log.Debug("Submission rejected", "session", s.id, "status", status)
		return nil, ErrBusy
	}
	g := s.beginLocked(ctx, text)
	s.mu.Unlock()

	go g.run()

	return g, nil
}

// Record captures one utterance with dec and submits it as a user turn.
// Recording takes the same slot as generation, so a text submission made
// while listening is rejected, and the transcription goes straight from
// listening to generating. Silence yields (nil, nil). Decoder errors are
// reported as ErrDeviceUnavailable unless they already wrap ErrEngineFault.
func (s *Session) Record(ctx context.Context, dec Decoder) (*Generation, error) {
	s.mu.Lock()
	if s.status != StatusReady {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.setStatusLocked(StatusListening)
	s.mu.Unlock()

	text, err := dec.Decode(ctx)
	text = strings.TrimSpace(text)

	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, ErrEngineFault):
			// the recognizer failed, the device is fine
		default:
			err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		log.Error("Recording failed", "session", s.id, "err", err)

		s.mu.Lock()
		s.events.post(func(l Listener) { l.OnError(err) })
		s.setStatusLocked(StatusReady)
		s.mu.Unlock()
		return nil, err
	}

	if text == "" {
		log.Info("Nothing recognized", "session", s.id)

		s.mu.Lock()
		s.setStatusLocked(StatusReady)
		s.mu.Unlock()
		return nil, nil
	}

	log.Info("Transcribed", "session", s.id, "text", text)

	s.mu.Lock()
	g := s.beginLocked(ctx, text)
	s.mu.Unlock()

	go g.run()

	return g, nil
}

// Reset clears the history. It fails with ErrBusy while a reply is being
// generated, since the history is being read.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusGenerating {
		return ErrBusy
	}

	s.history = nil
	s.events.post(func(l Listener) { l.OnReset() })

	log.Info("History cleared", "session", s.id)

	return nil
}

func (s *Session) setStatusLocked(status Status) {
	s.status = status
	s.events.post(func(l Listener) { l.OnStatusChange(status) })
}

func (s *Session) appendLocked(turn Turn) {
	s.history = append(s.history, turn)
	s.events.post(func(l Listener) { l.OnTurnCommitted(turn) })
}

func (s *Session) beginLocked(ctx context.Context, text string) *Generation {
	s.appendLocked(Turn{Role: RoleUser, Content: text, At: time.Now()})
	s.setStatusLocked(StatusGenerating)

	ctx, cancel := context.WithCancel(ctx)

	return &Generation{
		s:      s,
		ctx:    ctx,
		cancel: cancel,
		window: s.windowLocked(),
		done:   make(chan struct{}),
	}
}

// commit is the only place an assistant turn enters the history; the turn
// is appended and the slot released in one critical section.
func (s *Session) commit(content string) Turn {
	turn := Turn{Role: RoleAssistant, Content: content, At: time.Now()}

	s.mu.Lock()
	s.appendLocked(turn)
	s.setStatusLocked(StatusReady)
	s.mu.Unlock()

	return turn
}

func (s *Session) abort(err error) {
	s.mu.Lock()
	s.events.post(func(l Listener) { l.OnError(err) })
	s.setStatusLocked(StatusReady)
	s.mu.Unlock()
}
