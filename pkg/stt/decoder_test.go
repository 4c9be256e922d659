package stt_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxchat/pkg/stt"
)

const frameSize = 4096

func frame(level float32) []float32 {
	f := make([]float32, frameSize)
	for i := range f {
		if i%2 == 0 {
			f[i] = level
		} else {
			f[i] = -level
		}
	}
	return f
}

type fakeSource struct {
	frames  [][]float32
	loop    []float32 // returned forever once frames run out
	readErr error
	openErr error

	reads  int
	rate   int
	size   int
	closed bool
}

func (s *fakeSource) Open(rate, size int) (stt.AudioStream, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.rate, s.size = rate, size
	return s, nil
}

func (s *fakeSource) Read() ([]float32, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	s.reads++
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		return f, nil
	}
	if s.loop != nil {
		return s.loop, nil
	}
	return nil, io.EOF
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
	got   []float32
}

func (f *fakeTranscriber) TranscribePCM(_ context.Context, pcm []float32, _ stt.Options) (stt.Result, error) {
	f.calls++
	f.got = append([]float32(nil), pcm...)
	return stt.Result{Text: f.text}, f.err
}

func newDecoder(src stt.AudioSource, tr stt.PCMTranscriber) *stt.Decoder {
	return &stt.Decoder{
		Source:    src,
		Engine:    stt.NewWhisperEngine(tr, stt.Options{Language: "auto"}, stt.Endpointer{}),
		FrameSize: frameSize,
	}
}

func TestDecoder_StopsAtEndOfUtterance(t *testing.T) {
	quiet, loud := frame(0.001), frame(0.5)
	src := &fakeSource{
		frames: [][]float32{quiet, quiet, loud, loud, loud, quiet, quiet, quiet, loud, loud},
	}
	tr := &fakeTranscriber{text: " [BLANK_AUDIO] Hello   there "}

	text, err := newDecoder(src, tr).Decode(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Hello there", text)
	assert.Equal(t, 8, src.reads)
	assert.Equal(t, stt.DefaultSampleRate, src.rate)
	assert.Equal(t, frameSize, src.size)
	assert.True(t, src.closed)

	require.Equal(t, 1, tr.calls)
	assert.Len(t, tr.got, 6*frameSize)
}

func TestDecoder_SilenceYieldsEmptyText(t *testing.T) {
	quiet := frame(0.001)
	src := &fakeSource{frames: [][]float32{quiet, quiet, quiet}}
	tr := &fakeTranscriber{text: "should not be used"}

	text, err := newDecoder(src, tr).Decode(context.Background())
	require.NoError(t, err)

	assert.Empty(t, text)
	assert.Zero(t, tr.calls)
}

func TestDecoder_EndOfStreamFinalizesBufferedSpeech(t *testing.T) {
	loud := frame(0.3)
	src := &fakeSource{frames: [][]float32{loud, loud}}
	tr := &fakeTranscriber{text: "cut short"}

	text, err := newDecoder(src, tr).Decode(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cut short", text)
	assert.Len(t, tr.got, 2*frameSize)
}

func TestDecoder_MaxDurationCapsUtterance(t *testing.T) {
	src := &fakeSource{loop: frame(0.4)}
	tr := &fakeTranscriber{text: "endless"}

	dec := newDecoder(src, tr)
	dec.MaxDuration = time.Second

	text, err := dec.Decode(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "endless", text)
	assert.Equal(t, 3, src.reads)
}

func TestDecoder_DeviceErrors(t *testing.T) {
	boom := errors.New("device gone")

	_, err := newDecoder(&fakeSource{openErr: boom}, &fakeTranscriber{}).Decode(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "open audio")

	src := &fakeSource{readErr: boom}
	_, err = newDecoder(src, &fakeTranscriber{}).Decode(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read audio")
	assert.NotErrorIs(t, err, stt.ErrRecognition)
	assert.True(t, src.closed)
}

func TestDecoder_TranscriberError(t *testing.T) {
	boom := errors.New("model failure")
	loud := frame(0.3)
	src := &fakeSource{frames: [][]float32{loud}}

	_, err := newDecoder(src, &fakeTranscriber{err: boom}).Decode(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, stt.ErrRecognition)
}

func TestDecoder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newDecoder(&fakeSource{loop: frame(0.4)}, &fakeTranscriber{}).Decode(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecoder_ResetsEngineBetweenCalls(t *testing.T) {
	tr := &fakeTranscriber{text: "again"}
	loud := frame(0.3)
	dec := newDecoder(&fakeSource{frames: [][]float32{loud}}, tr)

	_, err := dec.Decode(context.Background())
	require.NoError(t, err)

	dec.Source = &fakeSource{frames: [][]float32{loud}}
	_, err = dec.Decode(context.Background())
	require.NoError(t, err)

	assert.Len(t, tr.got, frameSize)
}

func TestEndpointer(t *testing.T) {
	ep := stt.Endpointer{Threshold: 0.1, Silence: 500 * time.Millisecond, SampleRate: 1000}

	quiet := make([]float32, 200) // 200ms at 1 kHz
	loud := make([]float32, 200)
	for i := range loud {
		loud[i] = 0.5
	}

	keep, done := ep.Push(quiet)
	assert.False(t, keep)
	assert.False(t, done)

	keep, done = ep.Push(loud)
	assert.True(t, keep)
	assert.False(t, done)
	assert.True(t, ep.Speaking())

	_, done = ep.Push(quiet)
	assert.False(t, done)
	_, done = ep.Push(quiet)
	assert.False(t, done)
	keep, done = ep.Push(quiet)
	assert.True(t, keep)
	assert.True(t, done)

	ep.Reset()
	assert.False(t, ep.Speaking())
}
