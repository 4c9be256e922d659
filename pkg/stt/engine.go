package stt

import (
	"context"
	"fmt"
	log "log/slog"
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultSilenceThreshold = 0.015
	DefaultSilenceDuration  = 600 * time.Millisecond
)

// whisper marks silence and noise with bracketed tags such as [BLANK_AUDIO].
var tagRe = regexp.MustCompile(`\[[A-Z_ ]+\]|\([a-z ]+\)`)

// Endpointer detects the end of an utterance by frame energy: speech has to
// start, then stay below Threshold for Silence.
type Endpointer struct {
	Threshold  float64
	Silence    time.Duration
	SampleRate int

	speaking bool
	silent   int // samples since the last loud frame
}

// Push classifies a frame. keep reports whether the frame belongs to the
// utterance; done reports that the trailing silence is long enough.
func (e *Endpointer) Push(frame []float32) (keep, done bool) {
	thresh := e.Threshold
	if thresh <= 0 {
		thresh = DefaultSilenceThreshold
	}
	silence := e.Silence
	if silence <= 0 {
		silence = DefaultSilenceDuration
	}
	rate := e.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	if frameRMS(frame) > thresh {
		e.speaking = true
		e.silent = 0
		return true, false
	}

	if !e.speaking {
		return false, false
	}

	e.silent += len(frame)
	limit := int(silence.Seconds() * float64(rate))

	return true, e.silent >= limit
}

func (e *Endpointer) Speaking() bool {
	return e.speaking
}

func (e *Endpointer) Reset() {
	e.speaking = false
	e.silent = 0
}

type PCMTranscriber interface {
	TranscribePCM(ctx context.Context, pcm16k []float32, opt Options) (Result, error)
}

// WhisperEngine buffers one utterance and transcribes it in a single pass
// once the endpointer closes it.
type WhisperEngine struct {
	tr  PCMTranscriber
	opt Options
	ep  Endpointer
	pcm []float32
}

func NewWhisperEngine(tr PCMTranscriber, opt Options, ep Endpointer) *WhisperEngine {
	return &WhisperEngine{tr: tr, opt: opt, ep: ep}
}

func (w *WhisperEngine) Feed(frame []float32) (bool, error) {
	keep, done := w.ep.Push(frame)
	if keep {
		w.pcm = append(w.pcm, frame...)
	}
	return done, nil
}

// FinalText transcribes whatever was buffered. No speech gives "".
func (w *WhisperEngine) FinalText(ctx context.Context) (string, error) {
	if !w.ep.Speaking() || len(w.pcm) == 0 {
		return "", nil
	}

	res, err := w.tr.TranscribePCM(ctx, w.pcm, w.opt)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	log.Debug("Transcribed utterance", "language", res.Language, "segments", len(res.Segments),
		"seconds", float64(len(w.pcm))/float64(w.rate()))

	text := tagRe.ReplaceAllString(res.Text, "")
	return strings.Join(strings.Fields(text), " "), nil
}

func (w *WhisperEngine) rate() int {
	if w.ep.SampleRate > 0 {
		return w.ep.SampleRate
	}
	return DefaultSampleRate
}

func (w *WhisperEngine) Reset() {
	w.ep.Reset()
	w.pcm = w.pcm[:0]
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
