package waveform

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeWAV synthesizes a PCM WAV file and returns its bytes.
func makeWAV(t *testing.T, sampleRate, channels int, frames int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		// 440 Hz sine, identical on every channel.
		v := int(10000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func TestStandardizeResamplesAndDownmixes(t *testing.T) {
	raw := makeWAV(t, 44100, 2, 44100) // one second of stereo audio

	clip, err := Standardize(raw)
	require.NoError(t, err)

	assert.Equal(t, 44100, clip.OriginalSampleRate)
	assert.Equal(t, 2, clip.OriginalChannels)
	// One second of audio at the canonical rate, within interpolation slack.
	assert.InDelta(t, TargetSampleRate, len(clip.Samples), 2)
	assert.InDelta(t, 1.0, clip.Duration(), 0.01)

	// Samples stay in [-1, 1].
	for _, s := range clip.Samples {
		assert.LessOrEqual(t, float64(s), 1.0)
		assert.GreaterOrEqual(t, float64(s), -1.0)
	}
}

func TestStandardizeAlreadyCanonical(t *testing.T) {
	raw := makeWAV(t, TargetSampleRate, 1, TargetSampleRate/2)

	clip, err := Standardize(raw)
	require.NoError(t, err)
	assert.Equal(t, TargetSampleRate/2, len(clip.Samples))
	assert.Equal(t, 1, clip.OriginalChannels)
}

func TestStandardizeRejectsGarbage(t *testing.T) {
	_, err := Standardize([]byte("definitely not audio"))
	assert.Error(t, err)
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	out := Resample(in, 4, 8)
	assert.Len(t, out, 8)
	// Endpoints are preserved.
	assert.Equal(t, float32(0), out[0])

	same := Resample(in, 4, 4)
	assert.Equal(t, in, same)
}

func TestEncodeDeterministic(t *testing.T) {
	samples := []float32{0.5, -0.25, 0}
	assert.Equal(t, Encode(samples), Encode(samples))
	assert.Len(t, Encode(samples), 12)
}
