package audio

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #42
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "voxchat"
Sink Input #bogus
	Volume: 10%
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(sinkInputs)

	assert.Equal(t, []sinkInput{
		{ID: 41, Volume: 80, AppName: "Firefox"},
		{ID: 42, Volume: 100, AppName: "voxchat"},
	}, got)

	assert.Nil(t, parseSinkInputs("No sink inputs"))
}

type fakePactl struct {
	mu   sync.Mutex
	sets []string
}

func (f *fakePactl) run(_ context.Context, args ...string) ([]byte, error) {
	if args[0] == "list" {
		return []byte(sinkInputs), nil
	}
	f.mu.Lock()
	f.sets = append(f.sets, strings.Join(args[1:], " "))
	f.mu.Unlock()
	return nil, nil
}

func TestDucker_DuckAndRestore(t *testing.T) {
	fake := &fakePactl{}
	d := NewDucker([]string{"voxchat"}, 20)
	d.run = fake.run

	require.NoError(t, d.Duck(context.Background(), 0.1, 0))
	assert.Equal(t, []string{"41 20%"}, fake.sets)

	// Already ducked.
	require.NoError(t, d.Duck(context.Background(), 0.1, 0))
	assert.Len(t, fake.sets, 1)

	require.NoError(t, d.Unduck(context.Background(), 0))
	assert.Equal(t, []string{"41 20%", "41 80%"}, fake.sets)

	require.NoError(t, d.Unduck(context.Background(), 0))
	assert.Len(t, fake.sets, 2)
}

func TestClampVolume(t *testing.T) {
	assert.Equal(t, 0, clampVolume(-5))
	assert.Equal(t, 75, clampVolume(75))
	assert.Equal(t, maxVolume, clampVolume(400))
}
