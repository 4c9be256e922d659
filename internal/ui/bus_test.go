package ui_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxchat/internal/ipc"
	"voxchat/internal/session"
	"voxchat/internal/ui"
)

type shell struct {
	*httptest.Server
	received chan ui.BusMessage
	conns    chan *websocket.Conn
}

func newShell(t *testing.T) *shell {
	t.Helper()

	sh := &shell{
		received: make(chan ui.BusMessage, 16),
		conns:    make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}

	sh.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sh.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var m ui.BusMessage
			if json.Unmarshal(data, &m) == nil {
				sh.received <- m
			}
		}
	}))
	t.Cleanup(sh.Close)

	return sh
}

func (sh *shell) url() string {
	return "ws" + strings.TrimPrefix(sh.URL, "http")
}

func (sh *shell) next(t *testing.T) ui.BusMessage {
	t.Helper()
	select {
	case m := <-sh.received:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message from voxchat")
		return ui.BusMessage{}
	}
}

func (sh *shell) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-sh.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("voxchat did not connect")
		return nil
	}
}

func TestBusSink_PublishesEvents(t *testing.T) {
	sh := newShell(t)

	bus, err := ui.DialBus(sh.url(), "voxchat", 10*time.Millisecond)
	require.NoError(t, err)
	defer bus.Close()

	sink := ui.NewBusSink(bus, "ui")
	sink.OnTurnCommitted(session.Turn{Role: session.RoleUser, Content: "Hi"})
	sink.OnStatusChange(session.StatusGenerating)
	sink.OnFragment("Hel")
	sink.OnError(errors.New("boom"))
	sink.OnReset()

	assert.Equal(t, ui.BusMessage{From: "voxchat", To: "ui", Kind: ui.KindTurn, Role: "user", Content: "Hi"}, sh.next(t))
	assert.Equal(t, ui.BusMessage{From: "voxchat", To: "ui", Kind: ui.KindStatus, Content: "generating"}, sh.next(t))
	assert.Equal(t, ui.BusMessage{From: "voxchat", To: "ui", Kind: ui.KindFragment, Content: "Hel"}, sh.next(t))
	assert.Equal(t, ui.BusMessage{From: "voxchat", To: "ui", Kind: ui.KindError, Content: "boom"}, sh.next(t))
	assert.Equal(t, ui.KindReset, sh.next(t).Kind)
}

func TestBus_RunDeliversCommandsAndReconnects(t *testing.T) {
	sh := newShell(t)

	bus, err := ui.DialBus(sh.url(), "voxchat", 10*time.Millisecond)
	require.NoError(t, err)
	defer bus.Close()

	first := sh.conn(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmds := make(chan ipc.ControlMessage, 4)
	go bus.Run(ctx, func(m ipc.ControlMessage) { cmds <- m })

	write := func(c *websocket.Conn, m ui.BusMessage) {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, c.WriteMessage(websocket.TextMessage, data))
	}

	write(first, ui.BusMessage{From: "ui", To: "someone-else", Kind: ipc.CmdClear})
	write(first, ui.BusMessage{From: "voxchat", Kind: ui.KindFragment, Content: "echoed"})
	write(first, ui.BusMessage{From: "voxchat", Kind: ui.KindStatus, Content: "ready"})
	write(first, ui.BusMessage{From: "ui", To: "voxchat", Kind: ipc.CmdSend, Content: "hello"})

	select {
	case m := <-cmds:
		assert.Equal(t, ipc.ControlMessage{Cmd: ipc.CmdSend, Text: "hello"}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}

	// Drop the connection; the bus dials again.
	first.Close()
	second := sh.conn(t)

	write(second, ui.BusMessage{From: "ui", Kind: ipc.CmdRecord})

	select {
	case m := <-cmds:
		assert.Equal(t, ipc.ControlMessage{Cmd: ipc.CmdRecord}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered after reconnect")
	}
}
