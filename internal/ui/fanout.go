package ui

import "voxchat/internal/session"

// Fanout delivers every event to each listener in order.
type Fanout []session.Listener

func (f Fanout) OnFragment(text string) {
	for _, l := range f {
		l.OnFragment(text)
	}
}

func (f Fanout) OnStatusChange(s session.Status) {
	for _, l := range f {
		l.OnStatusChange(s)
	}
}

func (f Fanout) OnTurnCommitted(t session.Turn) {
	for _, l := range f {
		l.OnTurnCommitted(t)
	}
}

func (f Fanout) OnReset() {
	for _, l := range f {
		l.OnReset()
	}
}

func (f Fanout) OnError(err error) {
	for _, l := range f {
		l.OnError(err)
	}
}
