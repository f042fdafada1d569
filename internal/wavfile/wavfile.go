// Package wavfile quantizes float32 capture buffers and writes them as
// 16-bit PCM WAV files.
package wavfile

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BitDepth of the written PCM data
const BitDepth = 16

const (
	maxInt16 = 32767
	minInt16 = -32768
)

// Quantize converts float samples in [-1, 1] to 16-bit integer values by
// scaling with 32767 and truncating. Out-of-range input saturates at the
// rails instead of wrapping.
func Quantize(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := int(s * maxInt16)
		if v > maxInt16 {
			v = maxInt16
		} else if v < minInt16 {
			v = minInt16
		}
		out[i] = v
	}
	return out
}

// Write quantizes samples and writes them as a canonical RIFF/WAVE
// container at path. A partial file is removed on error.
func Write(path string, samples []float32, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, BitDepth, channels, 1)
	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           Quantize(samples),
		SourceBitDepth: BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// Close rewrites the header sizes, so a missed Close leaves an
	// unreadable file.
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}
