package ui

import "voxchat/internal/session"

// Feedback runs side effects around the conversation: a cue when listening
// starts, cleanup when it ends, and speaking replies aloud. Nil hooks are
// skipped.
type Feedback struct {
	OnListen func()
	OnIdle   func()
	Speak    func(text string)

	listening bool
}

func (f *Feedback) OnFragment(string) {}
func (f *Feedback) OnReset() {}
func (f *Feedback) OnError(error) {}

func (f *Feedback) OnStatusChange(s session.Status) {
	switch {
	case s == session.StatusListening:
		f.listening = true
		if f.OnListen != nil {
			f.OnListen()
		}
	case f.listening:
		f.listening = false
		if f.OnIdle != nil {
			f.OnIdle()
		}
	}
}

func (f *Feedback) OnTurnCommitted(t session.Turn) {
	if t.Role == session.RoleAssistant && t.Content != "" && f.Speak != nil {
		f.Speak(t.Content)
	}
}
