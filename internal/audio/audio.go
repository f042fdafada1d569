package audio

import "math"

// BlockFrames is the number of frames delivered per callback invocation.
const BlockFrames = 1024

// Device represents an audio input device
type Device struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate int
	Default           bool
}

// StreamParams describes a capture stream. Channels is interleaved
// float32; FramesPerBuffer defaults to BlockFrames when zero.
type StreamParams struct {
	DeviceIndex     int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Stream is a live capture stream
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Source defines the interface for audio capture.
//
// Open negotiates the requested parameters against the device: an
// unsupported sample rate falls back to the device default and a channel
// count above the device maximum is clamped. The applied parameters are
// returned so callers can surface any substitution. onBlock is invoked
// from the driver's callback thread with a copy of each block; ownership
// of the slice transfers to the receiver. onErr reports unrecoverable
// stream failures; implementations whose driver delivers no asynchronous
// errors (PortAudio among them) may never invoke it, and only log
// abnormal callback conditions such as input overflow.
type Source interface {
	Devices() ([]Device, error)
	Open(p StreamParams, onBlock func(block []float32), onErr func(err error)) (Stream, StreamParams, error)
	Close() error
}

// RMS returns the root-mean-square level of an interleaved block,
// in the range [0, 1] for samples within [-1, 1].
func RMS(block []float32) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(block)))
}
