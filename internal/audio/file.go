package audio

import (
	"context"
	"fmt"
	"io"

	"voxchat/pkg/audioconv"
	"voxchat/pkg/stt"
)

// FileSource replays an audio file as if it were captured live. Any format
// audioconv understands is accepted; it is converted to 16 kHz mono.
type FileSource struct {
	Path       string
	MaxSamples int
}

func (f *FileSource) Open(sampleRate, frameSize int) (stt.AudioStream, error) {
	if sampleRate != audioconv.SampleRate {
		return nil, fmt.Errorf("file source only produces %d Hz, got %d", audioconv.SampleRate, sampleRate)
	}

	pcm, err := audioconv.ConvertFileToPCM16k(context.Background(), f.Path, audioconv.Options{
		MaxSamples: f.MaxSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}

	return NewPCMStream(pcm, frameSize), nil
}

// PCMStream slices a sample buffer into frames. The final frame may be short.
type PCMStream struct {
	pcm  []float32
	size int
	pos  int
}

func NewPCMStream(pcm []float32, frameSize int) *PCMStream {
	if frameSize <= 0 {
		frameSize = stt.DefaultFrameSize
	}
	return &PCMStream{pcm: pcm, size: frameSize}
}

func (p *PCMStream) Read() ([]float32, error) {
	if p.pos >= len(p.pcm) {
		return nil, io.EOF
	}
	end := min(p.pos+p.size, len(p.pcm))
	frame := p.pcm[p.pos:end]
	p.pos = end
	return frame, nil
}

func (p *PCMStream) Close() error {
	p.pos = len(p.pcm)
	return nil
}
