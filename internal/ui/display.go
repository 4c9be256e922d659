// Package ui connects the session to whatever shows it: a terminal, a
// websocket UI shell, and the feedback hooks around listening.
package ui

import (
	"fmt"
	"io"
	"sync"

	"voxchat/internal/session"
)

// DisplaySink is an append-only view. Text written to it is only ever
// removed by Clear.
type DisplaySink interface {
	Write(fragment string)
	Clear()
}

// TerminalSink renders to a terminal. Appending to the output keeps the
// latest text in view.
type TerminalSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

func (t *TerminalSink) Write(fragment string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.w, fragment)
}

func (t *TerminalSink) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.w, "\033[H\033[2J")
}

// Presenter renders session events onto a DisplaySink and reports status
// lines through status.
type Presenter struct {
	sink   DisplaySink
	status func(string)
}

func NewPresenter(sink DisplaySink, status func(string)) *Presenter {
	if status == nil {
		status = func(string) {}
	}
	return &Presenter{sink: sink, status: status}
}

func (p *Presenter) OnFragment(text string) {
	p.sink.Write(text)
}

func (p *Presenter) OnStatusChange(s session.Status) {
	p.status(StatusText(s))
}

func (p *Presenter) OnTurnCommitted(t session.Turn) {
	switch t.Role {
	case session.RoleUser:
		p.sink.Write("You: " + t.Content + "\n\n")
	case session.RoleAssistant:
		p.sink.Write("\n\n")
	}
}

func (p *Presenter) OnReset() {
	p.sink.Clear()
}

func (p *Presenter) OnError(err error) {
	p.status("Error: " + err.Error())
}

func StatusText(s session.Status) string {
	switch s {
	case session.StatusListening:
		return "Listening..."
	case session.StatusGenerating:
		return "Generating..."
	default:
		return "Ready"
	}
}
