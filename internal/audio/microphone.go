package audio

import (
	"errors"
	"fmt"
	log "log/slog"
	"slices"

	"github.com/gordonklaus/portaudio"

	"voxchat/pkg/stt"
)

// Microphone captures mono float32 frames from the default input device.
type Microphone struct{}

func NewMicrophone() *Microphone { return &Microphone{} }

func (m *Microphone) Init() error {
	return portaudio.Initialize()
}

func (m *Microphone) Close() {
	portaudio.Terminate()
}

func (m *Microphone) Open(sampleRate, frameSize int) (stt.AudioStream, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(
		1, // in
		0, // no out
		float64(sampleRate),
		len(buf),
		buf,
	)
	if err != nil {
		return nil, fmt.Errorf("open default stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	return &micStream{stream: stream, buf: buf}, nil
}

type micStream struct {
	stream *portaudio.Stream
	buf    []float32
}

func (s *micStream) Read() ([]float32, error) {
	if err := s.stream.Read(); err != nil {
		// A dropped buffer is not worth aborting the utterance for.
		if !errors.Is(err, portaudio.InputOverflowed) {
			return nil, err
		}
		log.Warn("Input overflowed")
	}
	return slices.Clone(s.buf), nil
}

func (s *micStream) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}
