// Package stt turns captured audio into text.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"strings"
	"time"
)

// ErrRecognition marks a failure of the speech engine itself, as opposed to
// the audio source.
var ErrRecognition = errors.New("speech recognition failed")

const (
	DefaultSampleRate  = 16000
	DefaultFrameSize   = 4096
	DefaultMaxDuration = 15 * time.Second
)

// AudioStream yields mono float32 frames. Read returns io.EOF once the
// source is exhausted.
type AudioStream interface {
	Read() ([]float32, error)
	Close() error
}

type AudioSource interface {
	Open(sampleRate, frameSize int) (AudioStream, error)
}

// SpeechEngine consumes frames of one utterance. Feed reports true once the
// engine considers the utterance finished.
type SpeechEngine interface {
	Feed(frame []float32) (bool, error)
	FinalText(ctx context.Context) (string, error)
	Reset()
}

// Decoder reads from Source until Engine finalizes, and returns exactly one
// transcription per call.
type Decoder struct {
	Source      AudioSource
	Engine      SpeechEngine
	SampleRate  int
	FrameSize   int
	MaxDuration time.Duration
}

func (d *Decoder) Decode(ctx context.Context) (string, error) {
	rate := d.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	size := d.FrameSize
	if size <= 0 {
		size = DefaultFrameSize
	}
	maxDur := d.MaxDuration
	if maxDur <= 0 {
		maxDur = DefaultMaxDuration
	}

	maxFrames := int(maxDur.Seconds() * float64(rate) / float64(size))
	if maxFrames < 1 {
		maxFrames = 1
	}

	stream, err := d.Source.Open(rate, size)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer stream.Close()

	d.Engine.Reset()

	frames := 0
	for ; frames < maxFrames; frames++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		frame, err := stream.Read()
		if errors.Is(err, io.EOF) {
			log.Debug("Audio stream ended", "frames", frames)
			break
		}
		if err != nil {
			return "", fmt.Errorf("read audio: %w", err)
		}

		final, err := d.Engine.Feed(frame)
		if err != nil {
			return "", fmt.Errorf("feed frame: %w", err)
		}
		if final {
			break
		}
	}

	if frames >= maxFrames {
		log.Debug("Utterance capped", "max", maxDur)
	}

	text, err := d.Engine.FinalText(ctx)
	if err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrRecognition, err)
		}
		return "", fmt.Errorf("final text: %w", err)
	}

	return strings.TrimSpace(text), nil
}
