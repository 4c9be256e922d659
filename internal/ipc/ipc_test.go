package ipc_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxchat/internal/ipc"
)

func TestSendReachesHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")

	got := make(chan ipc.ControlMessage, 2)
	srv, err := ipc.Listen(path, func(m ipc.ControlMessage) { got <- m })
	require.NoError(t, err)
	defer srv.Close()

	require.NoError(t, ipc.Send(path, ipc.ControlMessage{Cmd: ipc.CmdSend, Text: "hello"}))
	require.NoError(t, ipc.Send(path, ipc.ControlMessage{Cmd: ipc.CmdRecord}))

	var msgs []ipc.ControlMessage
	for len(msgs) < 2 {
		select {
		case m := <-got:
			msgs = append(msgs, m)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for control messages")
		}
	}
	assert.ElementsMatch(t, []ipc.ControlMessage{
		{Cmd: ipc.CmdSend, Text: "hello"},
		{Cmd: ipc.CmdRecord},
	}, msgs)
}

func TestSendWithoutServer(t *testing.T) {
	err := ipc.Send(filepath.Join(t.TempDir(), "none.sock"), ipc.ControlMessage{Cmd: ipc.CmdClear})
	require.Error(t, err)
}

func TestCloseStopsServing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")

	srv, err := ipc.Listen(path, func(ipc.ControlMessage) {})
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	require.Error(t, ipc.Send(path, ipc.ControlMessage{Cmd: ipc.CmdClear}))
}
