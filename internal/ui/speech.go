package ui

import (
	"context"
	"errors"
	"fmt"

	"voxchat/internal/session"
	"voxchat/pkg/stt"
)

// SpeechDecoder feeds the session from a stt.Decoder. Recognition failures
// are reported as engine faults so they are not mistaken for a broken
// microphone.
type SpeechDecoder struct {
	dec *stt.Decoder
}

func NewSpeechDecoder(dec *stt.Decoder) *SpeechDecoder {
	return &SpeechDecoder{dec: dec}
}

func (d *SpeechDecoder) Decode(ctx context.Context) (string, error) {
	text, err := d.dec.Decode(ctx)
	if errors.Is(err, stt.ErrRecognition) {
		return "", fmt.Errorf("%w: %w", session.ErrEngineFault, err)
	}
	return text, err
}
