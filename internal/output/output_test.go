package output

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/petems/audiorec/internal/config"
	"github.com/petems/audiorec/internal/transcode"
	"github.com/rs/zerolog"
)

func unavailableEncoder() *transcode.Encoder {
	e := transcode.New(zerolog.Nop())
	e.Bin = "definitely-not-a-real-encoder-binary"
	return e
}

func TestSaveWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	samples := make([]float32, 4800*2)

	res, err := Save(context.Background(), path, samples, 48000, 2, unavailableEncoder(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if res.Path != path {
		t.Fatalf("expected %s, got %s", path, res.Path)
	}
	if res.FellBack {
		t.Fatal("WAV save should not report a fallback")
	}
}

func TestSaveAppendsWAVExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take")

	res, err := Save(context.Background(), path, make([]float32, 480), 48000, 1, unavailableEncoder(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(res.Path, "take.wav") {
		t.Fatalf("expected .wav appended, got %s", res.Path)
	}
}

func TestSaveAACFallsBackToValidWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "take.m4a")
	samples := make([]float32, 4410*2)

	res, err := Save(context.Background(), path, samples, 44100, 2, unavailableEncoder(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !res.FellBack {
		t.Fatal("expected fallback to be reported")
	}
	if res.Path != filepath.Join(dir, "take.wav") {
		t.Fatalf("expected fallback path take.wav, got %s", res.Path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("no m4a file should have been produced")
	}

	// The fallback WAV must carry the session's header fields
	f, err := os.Open(res.Path)
	if err != nil {
		t.Fatalf("failed to open fallback file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("expected a valid WAV file")
	}
	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("header mismatch: %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func TestSaveAACEncoderFailureCleansUpTempWAV(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake encoder")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "fake-ffmpeg")
	// Answers the -version probe but fails the actual encode
	script := "#!/bin/sh\nif [ \"$1\" = \"-version\" ]; then exit 0; fi\nexit 1\n"
	if err := os.WriteFile(fake, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake encoder: %v", err)
	}

	e := transcode.New(zerolog.Nop())
	e.Bin = fake

	path := filepath.Join(dir, "take.m4a")
	_, err := Save(context.Background(), path, make([]float32, 480), 48000, 1, e, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error from the failing encoder")
	}

	if _, statErr := os.Stat(filepath.Join(dir, "take_temp.wav")); !os.IsNotExist(statErr) {
		t.Fatal("intermediate WAV should have been removed")
	}
}

func TestSaveAACEncoderFailureRemovesPartialOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake encoder")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "fake-ffmpeg")
	// Answers the -version probe, writes a partial output file the way
	// an interrupted ffmpeg -y run does, then fails
	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"-version\" ]; then exit 0; fi\n" +
		"for a in \"$@\"; do out=\"$a\"; done\n" +
		"echo partial > \"$out\"\n" +
		"exit 1\n"
	if err := os.WriteFile(fake, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake encoder: %v", err)
	}

	e := transcode.New(zerolog.Nop())
	e.Bin = fake

	path := filepath.Join(dir, "take.m4a")
	_, err := Save(context.Background(), path, make([]float32, 480), 48000, 1, e, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error from the failing encoder")
	}

	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("partial output file should have been removed")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "take_temp.wav")); !os.IsNotExist(statErr) {
		t.Fatal("intermediate WAV should have been removed")
	}
}

func TestDefaultFilename(t *testing.T) {
	wavName := DefaultFilename(config.FormatWAV)
	if !strings.HasPrefix(wavName, "recording_") || !strings.HasSuffix(wavName, ".wav") {
		t.Fatalf("unexpected WAV default filename: %s", wavName)
	}

	aacName := DefaultFilename(config.FormatAAC)
	if !strings.HasSuffix(aacName, ".m4a") {
		t.Fatalf("unexpected AAC default filename: %s", aacName)
	}
}
