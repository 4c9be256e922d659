package ui

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"voxchat/internal/ipc"
	"voxchat/internal/session"
)

var ErrVoiceDisabled = errors.New("voice input disabled")

// Controller maps control commands onto session operations. Every command
// handled through Handle runs on its own goroutine.
type Controller struct {
	ctx     context.Context
	session *session.Session
	decoder session.Decoder

	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool
	seq    uint64
	cancel context.CancelFunc // of the running send or record
}

// NewController binds s; dec may be nil when no audio input is configured.
func NewController(ctx context.Context, s *session.Session, dec session.Decoder) *Controller {
	return &Controller{ctx: ctx, session: s, decoder: dec}
}

func (c *Controller) Handle(msg ipc.ControlMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Warn("Shutting down, command dropped", "cmd", msg.Cmd)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		err := c.Do(msg)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrBusy):
			log.Warn("Busy, command ignored", "cmd", msg.Cmd)
		case errors.Is(err, context.Canceled):
			log.Info("Command cancelled", "cmd", msg.Cmd)
		default:
			log.Error("Command failed", "cmd", msg.Cmd, "err", err)
		}
	}()
}

// Close stops accepting commands through Handle and waits for the running
// ones to return. The decoder and engine must outlive it.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
}

// Do runs msg and waits until any reply it started is finished. Cancel stops
// a running send or record at any stage, including while listening.
func (c *Controller) Do(msg ipc.ControlMessage) error {
	switch msg.Cmd {
	case ipc.CmdSend:
		ctx, done := c.track()
		defer done()

		g, err := c.session.Submit(ctx, msg.Text)
		if err != nil {
			return err
		}
		_, err = g.Wait()
		return err

	case ipc.CmdRecord:
		if c.decoder == nil {
			return ErrVoiceDisabled
		}

		ctx, done := c.track()
		defer done()

		g, err := c.session.Record(ctx, c.decoder)
		if err != nil || g == nil {
			return err
		}
		_, err = g.Wait()
		return err

	case ipc.CmdClear:
		return c.session.Reset()

	case ipc.CmdCancel:
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", msg.Cmd)
	}
}

// track derives a cancellable context for one command and makes it the
// target of cancel until done is called. A command rejected as busy hands
// the target back to the one it displaced.
func (c *Controller) track() (context.Context, func()) {
	ctx, cancel := context.WithCancel(c.ctx)

	c.mu.Lock()
	c.seq++
	id := c.seq
	prev := c.cancel
	c.cancel = cancel
	c.mu.Unlock()

	return ctx, func() {
		c.mu.Lock()
		if c.seq == id {
			c.cancel = prev
		}
		c.mu.Unlock()
		cancel()
	}
}
