// Package transcode shells out to ffmpeg to re-encode WAV recordings as
// AAC in an M4A container.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable means the encoder binary was not found on PATH.
var ErrUnavailable = errors.New("transcode: encoder not found")

// ErrTimeout means the encoder process exceeded its bounded wait.
var ErrTimeout = errors.New("transcode: encoder timed out")

const (
	// DefaultBitrate targets iOS-friendly high quality AAC
	DefaultBitrate = "192k"

	// DefaultTimeout bounds a hung encoder process
	DefaultTimeout = 60 * time.Second

	probeTimeout = 2 * time.Second
)

// Encoder invokes an external ffmpeg binary
type Encoder struct {
	Bin     string
	Bitrate string
	Timeout time.Duration

	log zerolog.Logger
}

// New returns an Encoder with default binary, bitrate and timeout
func New(log zerolog.Logger) *Encoder {
	return &Encoder{
		Bin:     "ffmpeg",
		Bitrate: DefaultBitrate,
		Timeout: DefaultTimeout,
		log:     log,
	}
}

// Available reports whether the encoder binary can be found and run.
func (e *Encoder) Available() bool {
	if _, err := exec.LookPath(e.Bin); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, e.Bin, "-version").Run() == nil
}

// args builds the encoder invocation: AAC at the configured bitrate with
// the faststart flag so the container is streaming-friendly.
func (e *Encoder) args(wavPath, outPath string) []string {
	return []string{
		"-i", wavPath,
		"-c:a", "aac",
		"-b:a", e.Bitrate,
		"-movflags", "+faststart",
		"-y",
		outPath,
	}
}

// Encode converts wavPath to AAC at outPath. Exit code 0 is required for
// success; a non-zero exit or timeout is returned as an error the caller
// is expected to recover from.
func (e *Encoder) Encode(ctx context.Context, wavPath, outPath string) error {
	if _, err := exec.LookPath(e.Bin); err != nil {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Bin, e.args(wavPath, outPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.log.Debug().Str("cmd", e.Bin+" "+strings.Join(cmd.Args[1:], " ")).Msg("Running encoder")

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s", ErrTimeout, e.Timeout)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("transcode: %s failed: %w: %s", e.Bin, err, msg)
		}
		return fmt.Errorf("transcode: %s failed: %w", e.Bin, err)
	}

	return nil
}
