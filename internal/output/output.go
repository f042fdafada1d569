// Package output turns a flushed capture buffer into a file on disk,
// picking WAV or AAC by extension and falling back to WAV when the
// external encoder is unavailable.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petems/audiorec/internal/config"
	"github.com/petems/audiorec/internal/transcode"
	"github.com/petems/audiorec/internal/wavfile"
	"github.com/rs/zerolog"
)

// Result describes where a recording ended up
type Result struct {
	Path string
	// FellBack is true when an AAC request was saved as WAV because the
	// encoder is unavailable. The caller surfaces the substitution.
	FellBack bool
}

// DefaultFilename returns a timestamped filename for the given format,
// e.g. recording_20240131_154502.m4a
func DefaultFilename(format string) string {
	ext := ".wav"
	if format == config.FormatAAC {
		ext = ".m4a"
	}
	return "recording_" + time.Now().Format("20060102_150405") + ext
}

// Save writes samples to path. A .m4a or .aac extension requests AAC via
// the external encoder, using an intermediate WAV that is removed
// afterwards; anything else is written as 16-bit PCM WAV, appending .wav
// when the extension is missing or unknown.
func Save(ctx context.Context, path string, samples []float32, sampleRate, channels int, enc *transcode.Encoder, log zerolog.Logger) (Result, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".m4a" || ext == ".aac" {
		return saveAAC(ctx, path, samples, sampleRate, channels, enc, log)
	}

	if ext != ".wav" {
		path += ".wav"
	}
	if err := wavfile.Write(path, samples, sampleRate, channels); err != nil {
		return Result{}, err
	}
	logSaved(log, path, samples, sampleRate, channels, "wav")
	return Result{Path: path}, nil
}

func saveAAC(ctx context.Context, path string, samples []float32, sampleRate, channels int, enc *transcode.Encoder, log zerolog.Logger) (Result, error) {
	if !enc.Available() {
		wavPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".wav"
		log.Warn().Str("path", wavPath).Msg("Encoder unavailable, falling back to WAV")
		if err := wavfile.Write(wavPath, samples, sampleRate, channels); err != nil {
			return Result{}, err
		}
		logSaved(log, wavPath, samples, sampleRate, channels, "wav")
		return Result{Path: wavPath, FellBack: true}, nil
	}

	tempWAV := strings.TrimSuffix(path, filepath.Ext(path)) + "_temp.wav"
	if err := wavfile.Write(tempWAV, samples, sampleRate, channels); err != nil {
		return Result{}, err
	}

	if err := enc.Encode(ctx, tempWAV, path); err != nil {
		os.Remove(tempWAV)
		// ffmpeg runs with -y and can leave a partial container behind
		os.Remove(path)
		return Result{}, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.Remove(tempWAV); err != nil {
		log.Warn().Err(err).Str("path", tempWAV).Msg("Failed to remove intermediate WAV")
	}

	logSaved(log, path, samples, sampleRate, channels, "aac")
	return Result{Path: path}, nil
}

func logSaved(log zerolog.Logger, path string, samples []float32, sampleRate, channels int, format string) {
	duration := float64(len(samples)/channels) / float64(sampleRate)
	var size int64
	if fi, err := os.Stat(path); err == nil {
		size = fi.Size()
	}
	log.Info().
		Str("path", path).
		Str("format", format).
		Float64("duration_s", duration).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Int64("bytes", size).
		Msg("Recording saved")
}
