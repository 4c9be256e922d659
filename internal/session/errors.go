package session

import "errors"

var (
	// ErrBusy is returned when an operation needs the session slot while a
	// recording or a generation holds it.
	ErrBusy = errors.New("session busy")
	// ErrEmptyTurn is returned for blank user input.
	ErrEmptyTurn = errors.New("empty turn")
	// ErrDeviceUnavailable wraps audio capture failures on the voice path.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrEngineFault wraps failures raised by the inference engine mid-stream.
	ErrEngineFault = errors.New("inference engine fault")
)
