package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/internal/contenthash"
	"orbit/internal/waveform"
)

// writeWAV synthesizes a PCM WAV file on disk and returns its path and bytes.
func writeWAV(t *testing.T, dir string, sampleRate int, freq float64, frames int) (string, []byte) {
	t.Helper()

	path := filepath.Join(dir, "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = int(10000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return path, raw
}

func TestAudioAddFromFilePath(t *testing.T) {
	_, _, audioStore, base := newTestStores(t)
	ctx := context.Background()
	src, raw := writeWAV(t, t.TempDir(), 44100, 440, 22050)

	id, err := audioStore.Add(ctx, "alice", src, map[string]any{"label": "tone"})
	require.NoError(t, err)
	// Identity is the original bytes, not the standardized waveform.
	assert.Equal(t, contenthash.Sum(raw), id)

	dest := filepath.Join(base, "audio", "alice", id+".wav")
	stored, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, raw, stored)

	items, err := audioStore.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, dest, items[0].URI)
	assert.EqualValues(t, 44100, items[0].Metadata["original_sample_rate"])
	assert.EqualValues(t, waveform.TargetSampleRate, items[0].Metadata["target_sample_rate"])
	assert.InDelta(t, 0.5, items[0].Metadata["duration"], 0.01)
}

func TestAudioAddFromDataURI(t *testing.T) {
	_, _, audioStore, _ := newTestStores(t)
	ctx := context.Background()
	_, raw := writeWAV(t, t.TempDir(), 48000, 220, 4800)

	id, err := audioStore.Add(ctx, "alice", dataURI("audio/wav", raw), nil)
	require.NoError(t, err)
	assert.Equal(t, contenthash.Sum(raw), id)
}

func TestAudioAddMissingFile(t *testing.T) {
	_, _, audioStore, _ := newTestStores(t)

	var verr *ValidationError
	_, err := audioStore.Add(context.Background(), "alice", "/no/such/clip.wav", nil)
	assert.ErrorAs(t, err, &verr)
}

func TestAudioAddUndecodableBytes(t *testing.T) {
	_, _, audioStore, base := newTestStores(t)

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not audio at all"), 0600))

	_, err := audioStore.Add(context.Background(), "alice", garbage, nil)
	var ierr *IngestionError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, StageDecode, ierr.Stage)

	// Decode failures happen before any write.
	_, err = os.Stat(filepath.Join(base, "audio", "alice"))
	assert.True(t, os.IsNotExist(err))
}

func TestSearchByAudioFindsMatchingClip(t *testing.T) {
	_, _, audioStore, _ := newTestStores(t)
	ctx := context.Background()

	srcA, _ := writeWAV(t, t.TempDir(), 44100, 440, 22050)
	srcB, _ := writeWAV(t, t.TempDir(), 44100, 1000, 22050)

	idA, err := audioStore.Add(ctx, "alice", srcA, nil)
	require.NoError(t, err)
	_, err = audioStore.Add(ctx, "alice", srcB, nil)
	require.NoError(t, err)

	results, err := audioStore.SearchByAudio(ctx, "alice", srcA, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, idA, results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
}

func TestAudioDelete(t *testing.T) {
	_, _, audioStore, base := newTestStores(t)
	ctx := context.Background()
	src, _ := writeWAV(t, t.TempDir(), 48000, 330, 9600)

	id, err := audioStore.Add(ctx, "alice", src, nil)
	require.NoError(t, err)

	require.NoError(t, audioStore.Delete(ctx, "alice", id))
	_, err = os.Stat(filepath.Join(base, "audio", "alice", id+".wav"))
	assert.True(t, os.IsNotExist(err))
	assert.ErrorIs(t, audioStore.Delete(ctx, "alice", id), ErrNotFound)
}
