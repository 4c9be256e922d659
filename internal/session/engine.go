package session

import (
	"context"
	"iter"
)

// Params are the sampling parameters handed to the engine on every request.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Engine streams an assistant reply for the given conversation window.
// The returned sequence yields text fragments in order; a non-nil error ends
// the stream.
type Engine interface {
	StreamChat(ctx context.Context, turns []Turn, p Params) iter.Seq2[string, error]
}

// Decoder captures one utterance and returns its transcription.
type Decoder interface {
	Decode(ctx context.Context) (string, error)
}

// Listener receives session events. Callbacks are delivered in order from a
// single goroutine and never while the session lock is held.
type Listener interface {
	OnFragment(text string)
	OnStatusChange(status Status)
	OnTurnCommitted(turn Turn)
	OnReset()
	OnError(err error)
}

type nopListener struct{}

func (nopListener) OnFragment(string) {}
func (nopListener) OnStatusChange(Status) {}
func (nopListener) OnTurnCommitted(Turn) {}
func (nopListener) OnReset() {}
func (nopListener) OnError(error) {}
