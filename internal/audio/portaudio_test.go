package audio

import (
	"testing"

	"github.com/gordonklaus/portaudio"
)

func TestCallbackWarningClean(t *testing.T) {
	if got := callbackWarning(0); got != "" {
		t.Fatalf("expected no warning for clean flags, got %q", got)
	}
}

func TestCallbackWarningInputOverflow(t *testing.T) {
	got := callbackWarning(portaudio.InputOverflow)
	if got == "" {
		t.Fatal("expected a warning for input overflow")
	}
}

func TestCallbackWarningInputUnderflow(t *testing.T) {
	got := callbackWarning(portaudio.InputUnderflow)
	if got == "" {
		t.Fatal("expected a warning for input underflow")
	}
}

func TestCallbackWarningIgnoresOutputFlags(t *testing.T) {
	if got := callbackWarning(portaudio.OutputUnderflow | portaudio.OutputOverflow); got != "" {
		t.Fatalf("expected output-side flags to be ignored on a capture stream, got %q", got)
	}
}
