package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestArgs(t *testing.T) {
	e := New(zerolog.Nop())
	got := e.args("in.wav", "out.m4a")
	want := []string{"-i", "in.wav", "-c:a", "aac", "-b:a", "192k", "-movflags", "+faststart", "-y", "out.m4a"}

	if len(got) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg %d mismatch: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestArgsCustomBitrate(t *testing.T) {
	e := New(zerolog.Nop())
	e.Bitrate = "128k"

	args := e.args("a.wav", "b.m4a")
	found := false
	for i, a := range args {
		if a == "-b:a" && i+1 < len(args) && args[i+1] == "128k" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected -b:a 128k in %v", args)
	}
}

func TestAvailableFalseForMissingBinary(t *testing.T) {
	e := New(zerolog.Nop())
	e.Bin = "definitely-not-a-real-encoder-binary"

	if e.Available() {
		t.Fatal("expected Available to be false for a missing binary")
	}
}

func TestEncodeMissingBinaryReturnsErrUnavailable(t *testing.T) {
	e := New(zerolog.Nop())
	e.Bin = "definitely-not-a-real-encoder-binary"

	err := e.Encode(context.Background(), "in.wav", "out.m4a")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestEncodeTimesOutOnHungEncoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake encoder")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "fake-ffmpeg")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\nsleep 10\n"), 0755); err != nil {
		t.Fatalf("failed to write fake encoder: %v", err)
	}

	e := New(zerolog.Nop())
	e.Bin = fake
	e.Timeout = 100 * time.Millisecond

	start := time.Now()
	err := e.Encode(context.Background(), "in.wav", "out.m4a")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
}

func TestEncodeReportsNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake encoder")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "fake-ffmpeg")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\necho 'bad input' >&2\nexit 1\n"), 0755); err != nil {
		t.Fatalf("failed to write fake encoder: %v", err)
	}

	e := New(zerolog.Nop())
	e.Bin = fake

	err := e.Encode(context.Background(), "in.wav", "out.m4a")
	if err == nil {
		t.Fatal("expected an error for non-zero exit")
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected a plain failure, got %v", err)
	}
}
