package audioconv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownmix(t *testing.T) {
	got := downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0}, got)
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 2, 3}

	assert.Equal(t, in, resampleLinear(in, 16000, 16000))

	up := resampleLinear(in, 8000, 16000)
	require.Len(t, up, 8)
	assert.InDelta(t, 0.5, up[1], 1e-6)
	assert.InDelta(t, 3, up[7], 1e-6)

	down := resampleLinear([]float32{0, 1, 2, 3, 4, 5}, 48000, 16000)
	assert.Equal(t, []float32{0, 3}, down)
}

func TestIntsToFloat32Clamps(t *testing.T) {
	got := intsToFloat32([]int{-32768, 0, 16384, 40000}, 16)
	assert.Equal(t, []float32{-1, 0, 0.5, 1}, got)
}

func TestConvertFileToPCM16k_WAV(t *testing.T) {
	dir := t.TempDir()

	// Stereo at 32 kHz: downmixed and halved.
	path := filepath.Join(dir, "clip.bin")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, 0, 800)
	for i := 0; i < 400; i++ {
		data = append(data, 16384, 0)
	}
	enc := wav.NewEncoder(f, 32000, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 32000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	pcm, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, pcm, 200)
	assert.InDelta(t, 0.25, pcm[0], 1e-3)

	pcm, err = ConvertFileToPCM16k(context.Background(), path, Options{MaxSamples: 50})
	require.NoError(t, err)
	assert.Len(t, pcm, 50)
}

func TestConvertFileToPCM16k_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	_, err := ConvertFileToPCM16k(context.Background(), path, Options{})
	require.ErrorContains(t, err, "unsupported format")
}
