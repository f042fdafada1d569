package wavfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestQuantizeDeterministic(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, 1.0, -1.0}
	want := []int{0, 16383, -16383, 8191, 32767, -32767}

	got := Quantize(in)
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("value %d mismatch: expected %d, got %d", i, want[i], got[i])
		}
	}

	// Same input maps to the same output every time
	again := Quantize(in)
	for i := range got {
		if got[i] != again[i] {
			t.Fatalf("quantization not deterministic at %d: %d vs %d", i, got[i], again[i])
		}
	}
}

func TestQuantizeSaturatesOutOfRange(t *testing.T) {
	in := []float32{1.5, -1.5, 2.0, -2.0, 100, -100}
	for i, v := range Quantize(in) {
		if in[i] > 0 && v != 32767 {
			t.Fatalf("expected %f to saturate to 32767, got %d", in[i], v)
		}
		if in[i] < 0 && v != -32768 {
			t.Fatalf("expected %f to saturate to -32768, got %d", in[i], v)
		}
	}
}

func TestWriteHeaderFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")

	// 100ms of silence at 44100Hz stereo
	samples := make([]float32, 4410*2)
	if err := Write(path, samples, 44100, 2); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open written file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("expected a valid WAV file")
	}
	if dec.SampleRate != 44100 {
		t.Fatalf("expected sample rate 44100, got %d", dec.SampleRate)
	}
	if dec.NumChans != 2 {
		t.Fatalf("expected 2 channels, got %d", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Fatalf("expected bit depth 16, got %d", dec.BitDepth)
	}

	dur, err := dec.Duration()
	if err != nil {
		t.Fatalf("failed to read duration: %v", err)
	}
	want := 100 * time.Millisecond
	if diff := (dur - want).Abs(); diff > time.Millisecond {
		t.Fatalf("expected duration ~%s, got %s", want, dur)
	}
}

func TestWriteRoundTripSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")

	in := []float32{0, 0.25, 0.5, -0.25, -0.5, 1.0}
	if err := Write(path, in, 48000, 1); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open written file: %v", err)
	}
	defer f.Close()

	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	want := Quantize(in)
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d mismatch: expected %d, got %d", i, want[i], buf.Data[i])
		}
	}
}

func TestWriteDurationMatchesSampleCount(t *testing.T) {
	cases := []struct {
		rate     int
		channels int
		frames   int
	}{
		{44100, 1, 44100},
		{48000, 2, 24000},
		{96000, 2, 9600},
	}

	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "dur.wav")
		samples := make([]float32, tc.frames*tc.channels)
		if err := Write(path, samples, tc.rate, tc.channels); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("failed to open written file: %v", err)
		}
		dec := wav.NewDecoder(f)
		dur, err := dec.Duration()
		f.Close()
		if err != nil {
			t.Fatalf("failed to read duration: %v", err)
		}

		want := time.Duration(float64(tc.frames) / float64(tc.rate) * float64(time.Second))
		if diff := (dur - want).Abs(); diff > time.Millisecond {
			t.Fatalf("rate %d: expected duration ~%s, got %s", tc.rate, want, dur)
		}
	}
}
