package session

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation. Turns are never modified after
// they are appended to the history.
type Turn struct {
	Role    Role
	Content string
	At      time.Time
}

type Status int

const (
	StatusReady Status = iota
	StatusListening
	StatusGenerating
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusListening:
		return "listening"
	case StatusGenerating:
		return "generating"
	default:
		return "unknown"
	}
}
