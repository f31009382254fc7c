// Package waveform standardizes audio clips for embedding: every clip is
// decoded, resampled to one canonical sample rate, and downmixed to mono so
// the embedding model always sees the same input shape.
//
// Standardization only feeds the embedding. Content identity stays the hash
// of the original file bytes, so the same recording re-encoded at another
// sample rate is deliberately treated as distinct content.
package waveform

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-audio/wav"
)

// TargetSampleRate is the canonical sample rate for embedding input.
const TargetSampleRate = 48000

// Clip is a standardized mono waveform.
type Clip struct {
	Samples            []float32 // mono samples at TargetSampleRate
	OriginalSampleRate int
	OriginalChannels   int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return float64(len(c.Samples)) / float64(TargetSampleRate)
}

// Standardize decodes WAV bytes and returns the canonical mono waveform.
func Standardize(data []byte) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("waveform: decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("waveform: invalid wav format")
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	// Interleaved integer PCM to mono float samples in [-1, 1].
	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}

	return &Clip{
		Samples:            Resample(mono, sampleRate, TargetSampleRate),
		OriginalSampleRate: sampleRate,
		OriginalChannels:   channels,
	}, nil
}

// Resample converts samples from one rate to another using linear
// interpolation, which is plenty for embedding input.
func Resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}

	ratio := float64(from) / float64(to)
	outLen := int(math.Ceil(float64(len(in)) * float64(to) / float64(from)))
	out := make([]float32, outLen)

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// Encode serializes samples as little-endian float32 PCM, the byte form the
// audio embedding provider receives.
func Encode(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}
