package ui

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxchat/internal/ipc"
	"voxchat/internal/session"
)

const (
	KindFragment = "fragment"
	KindStatus   = "status"
	KindTurn     = "turn"
	KindReset    = "reset"
	KindError    = "error"
)

// BusMessage is the frame exchanged with a UI shell on the bus. Outgoing
// frames carry session events; incoming frames addressed to us carry a
// command in Kind and its text in Content.
type BusMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// Bus is a websocket connection to the UI shell that redials when the shell
// goes away.
type Bus struct {
	url   string
	name  string
	retry time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

func DialBus(url, name string, retry time.Duration) (*Bus, error) {
	if retry <= 0 {
		retry = time.Second
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	log.Info("Connected to bus", "url", url)

	return &Bus{url: url, name: name, retry: retry, conn: conn}, nil
}

func (b *Bus) Write(m *BusMessage) error {
	m.From = b.name

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Run reads commands until ctx is done, redialing on connection loss.
// Frames addressed to other recipients, and our own frames, are skipped.
func (b *Bus) Run(ctx context.Context, handle func(ipc.ControlMessage)) error {
	for {
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Bus read failed, reconnecting", "url", b.url, "err", err)
			if err := b.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		var m BusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Failed to parse bus message", "msg", string(data), "err", err)
			continue
		}
		// Hubs may echo broadcasts back to their sender.
		if m.From == b.name || (m.To != "" && m.To != b.name) {
			continue
		}

		handle(ipc.ControlMessage{Cmd: m.Kind, Text: m.Content})
	}
}

func (b *Bus) reconnect(ctx context.Context) error {
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
		if err == nil {
			b.mu.Lock()
			b.conn.Close()
			b.conn = conn
			b.mu.Unlock()

			log.Info("Reconnected to bus", "url", b.url)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retry):
		}
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_ = b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}

// BusSink publishes session events to the bus.
type BusSink struct {
	bus *Bus
	to  string
}

func NewBusSink(bus *Bus, to string) *BusSink {
	return &BusSink{bus: bus, to: to}
}

func (s *BusSink) send(m BusMessage) {
	m.To = s.to
	if err := s.bus.Write(&m); err != nil {
		log.Warn("Failed to publish to bus", "kind", m.Kind, "err", err)
	}
}

func (s *BusSink) OnFragment(text string) {
	s.send(BusMessage{Kind: KindFragment, Content: text})
}

func (s *BusSink) OnStatusChange(st session.Status) {
	s.send(BusMessage{Kind: KindStatus, Content: st.String()})
}

func (s *BusSink) OnTurnCommitted(t session.Turn) {
	s.send(BusMessage{Kind: KindTurn, Role: string(t.Role), Content: t.Content})
}

func (s *BusSink) OnReset() {
	s.send(BusMessage{Kind: KindReset})
}

func (s *BusSink) OnError(err error) {
	s.send(BusMessage{Kind: KindError, Content: err.Error()})
}
