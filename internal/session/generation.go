package session

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
)

// Generation is a reply being streamed. It runs to completion unless its
// context is cancelled; either way the session slot is released when Done
// is closed.
type Generation struct {
	s      *Session
	ctx    context.Context
	cancel context.CancelFunc
	window []Turn
	done   chan struct{}

	turn Turn
	err  error
}

func (g *Generation) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the stream ends and returns the committed assistant
// turn. On failure nothing is committed and the error wraps ErrEngineFault,
// or the context error if the generation was cancelled.
func (g *Generation) Wait() (Turn, error) {
	<-g.done
	return g.turn, g.err
}

func (g *Generation) Cancel() {
	g.cancel()
}

func (g *Generation) run() {
	defer close(g.done)
	defer g.cancel()

	var (
		reply     strings.Builder
		fragments int
	)

	for fragment, err := range g.s.engine.StreamChat(g.ctx, g.window, g.s.opts.Params) {
		if err != nil {
			g.fail(err)
			return
		}
		if fragment == "" {
			continue
		}

		reply.WriteString(fragment)
		fragments++
		g.s.events.post(func(l Listener) { l.OnFragment(fragment) })
	}

	if err := g.ctx.Err(); err != nil {
		g.fail(err)
		return
	}

	g.turn = g.s.commit(reply.String())

	log.Debug("Reply committed", "session", g.s.id, "fragments", fragments, "chars", reply.Len())
}

// fail drops the partial reply. Fragments already delivered stay on the
// display but never reach the history.
func (g *Generation) fail(err error) {
	if ctxErr := g.ctx.Err(); ctxErr != nil {
		g.err = ctxErr
		log.Warn("Generation cancelled", "session", g.s.id)
	} else {
		g.err = fmt.Errorf("%w: %w", ErrEngineFault, err)
		log.Error("Generation failed", "session", g.s.id, "err", err)
	}

	g.s.abort(g.err)
}
