package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

type portAudioSource struct {
	log zerolog.Logger
}

// New creates a new PortAudio-based audio source
func New(log zerolog.Logger) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &portAudioSource{log: log}, nil
}

func (s *portAudioSource) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	// Indices are positions in the full device table, so they stay valid
	// as arguments to Open.
	result := make([]Device, 0, len(devices))
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				Index:             i,
				Name:              d.Name,
				MaxInputChannels:  d.MaxInputChannels,
				DefaultSampleRate: int(d.DefaultSampleRate),
				Default:           defaultDevice != nil && d == defaultDevice,
			})
		}
	}

	return result, nil
}

func (s *portAudioSource) Open(req StreamParams, onBlock func([]float32), onErr func(error)) (Stream, StreamParams, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, req, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if req.DeviceIndex < 0 || req.DeviceIndex >= len(devices) {
		return nil, req, fmt.Errorf("device not found: index %d", req.DeviceIndex)
	}

	dev := devices[req.DeviceIndex]
	if dev.MaxInputChannels <= 0 {
		return nil, req, fmt.Errorf("device %q has no input channels", dev.Name)
	}

	applied := req
	if applied.FramesPerBuffer <= 0 {
		applied.FramesPerBuffer = BlockFrames
	}
	if applied.Channels < 1 {
		applied.Channels = 1
	}
	if applied.Channels > dev.MaxInputChannels {
		applied.Channels = dev.MaxInputChannels
	}

	// The callback buffer is reused by PortAudio between invocations, so
	// each block is copied before it leaves this goroutine. PortAudio has
	// no asynchronous error delivery, so onErr is never called here;
	// abnormal callback conditions arrive as flags and are logged.
	cb := func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if msg := callbackWarning(flags); msg != "" {
			s.log.Warn().Str("device", dev.Name).Msg(msg)
		}
		block := make([]float32, len(in))
		copy(block, in)
		onBlock(block)
	}

	params := func(rate int) portaudio.StreamParameters {
		return portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   dev,
				Channels: applied.Channels,
				Latency:  dev.DefaultHighInputLatency,
			},
			SampleRate:      float64(rate),
			FramesPerBuffer: applied.FramesPerBuffer,
		}
	}

	// Unsupported rate is recoverable: fall back to the device default.
	if err := portaudio.IsFormatSupported(params(applied.SampleRate), cb); err != nil {
		applied.SampleRate = int(dev.DefaultSampleRate)
	}

	stream, err := portaudio.OpenStream(params(applied.SampleRate), cb)
	if err != nil {
		return nil, applied, fmt.Errorf("failed to open audio stream: %w", err)
	}

	return &portAudioStream{stream: stream}, applied, nil
}

func (s *portAudioSource) Close() error {
	return portaudio.Terminate()
}

// callbackWarning describes abnormal stream conditions reported through
// the driver's callback flags, empty when the callback was clean.
func callbackWarning(flags portaudio.StreamCallbackFlags) string {
	switch {
	case flags&portaudio.InputOverflow != 0:
		return "Input overflow, driver dropped samples before the callback"
	case flags&portaudio.InputUnderflow != 0:
		return "Input underflow reported by driver"
	}
	return ""
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Start() error {
	return s.stream.Start()
}

func (s *portAudioStream) Stop() error {
	return s.stream.Stop()
}

func (s *portAudioStream) Close() error {
	return s.stream.Close()
}
