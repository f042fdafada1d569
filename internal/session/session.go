package session

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petems/audiorec/internal/audio"
	"github.com/rs/zerolog"
)

// State represents the current capture state
type State int

const (
	// Idle means no capture in progress
	Idle State = iota
	// Recording means blocks are being captured and drained
	Recording
	// Flushing means the stream is stopped and queued blocks are being collected
	Flushing
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Flushing:
		return "Flushing"
	default:
		return "Unknown"
	}
}

// ErrNothingRecorded is returned by Stop when no blocks were captured.
var ErrNothingRecorded = errors.New("session: nothing recorded")

// ErrNotIdle is returned by Start when a capture is already in progress.
var ErrNotIdle = errors.New("session: capture already in progress")

// ErrNotRecording is returned by Stop when no capture is in progress.
var ErrNotRecording = errors.New("session: not recording")

const (
	// queueDepth bounds the block queue: ~5s of audio at 48kHz with
	// 1024-frame blocks. The driver callback never blocks on a full
	// queue; the block is dropped and counted instead.
	queueDepth = 256

	// joinTimeout bounds the wait for the drain goroutine on stop.
	// A timeout is logged but not fatal; the flush proceeds on whatever
	// blocks were collected.
	joinTimeout = 2 * time.Second
)

// Result describes a completed capture.
type Result struct {
	Samples    []float32 // interleaved
	SampleRate int
	Channels   int
	Duration   time.Duration
}

// Session owns one capture at a time: Idle -> Recording -> Flushing -> Idle.
// The block queue is the only boundary between the driver callback and the
// drain goroutine; the accumulated block sequence belongs to the drain
// goroutine until flush time.
type Session struct {
	src  audio.Source
	log  zerolog.Logger
	errs chan error

	mu     sync.Mutex
	state  State
	stream audio.Stream
	params audio.StreamParams
	queue  chan []float32
	done   chan struct{}

	// blocksMu guards blocks so a join-timeout flush can read a
	// consistent snapshot while the drain goroutine is still appending.
	blocksMu sync.Mutex
	blocks   [][]float32

	frames  atomic.Int64
	level   atomic.Uint64 // float64 bits
	dropped atomic.Int64
}

// New creates a session over the given audio source
func New(src audio.Source, log zerolog.Logger) *Session {
	return &Session{
		src:  src,
		log:  log,
		errs: make(chan error, 1),
	}
}

// Errs delivers unrecoverable stream errors. The front-end is expected to
// surface the error and call Stop to flush whatever was captured.
func (s *Session) Errs() <-chan error {
	return s.errs
}

// Start opens a stream for the requested parameters and begins draining
// blocks. It returns the applied parameters, which may differ from the
// request: an unsupported sample rate falls back to the device default and
// the channel count is clamped to the device maximum.
func (s *Session) Start(req audio.StreamParams) (audio.StreamParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return audio.StreamParams{}, fmt.Errorf("%w (current state: %s)", ErrNotIdle, s.state)
	}

	queue := make(chan []float32, queueDepth)
	s.queue = queue
	s.done = make(chan struct{})
	s.blocksMu.Lock()
	s.blocks = nil
	s.blocksMu.Unlock()
	s.frames.Store(0)
	s.level.Store(0)
	s.dropped.Store(0)

	onBlock := func(block []float32) {
		select {
		case queue <- block:
		default:
			s.dropped.Add(1)
		}
	}
	onErr := func(err error) {
		s.log.Error().Err(err).Msg("Stream runtime error")
		select {
		case s.errs <- err:
		default:
		}
	}

	stream, applied, err := s.src.Open(req, onBlock, onErr)
	if err != nil {
		return audio.StreamParams{}, err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return audio.StreamParams{}, fmt.Errorf("failed to start stream: %w", err)
	}

	s.stream = stream
	s.params = applied
	s.state = Recording

	go s.drain(queue, s.done, applied.Channels)

	if applied.SampleRate != req.SampleRate {
		s.log.Warn().
			Int("requested", req.SampleRate).
			Int("applied", applied.SampleRate).
			Msg("Sample rate not supported, using device default")
	}
	if applied.Channels != req.Channels {
		s.log.Warn().
			Int("requested", req.Channels).
			Int("applied", applied.Channels).
			Msg("Channel count clamped to device maximum")
	}
	s.log.Info().
		Int("device", applied.DeviceIndex).
		Int("sample_rate", applied.SampleRate).
		Int("channels", applied.Channels).
		Int("block_frames", applied.FramesPerBuffer).
		Msg("Recording started")

	return applied, nil
}

// drain pulls blocks off the queue in FIFO order until the queue is
// closed. It is the only writer of s.blocks while recording.
func (s *Session) drain(queue <-chan []float32, done chan struct{}, channels int) {
	defer close(done)
	for block := range queue {
		s.blocksMu.Lock()
		s.blocks = append(s.blocks, block)
		s.blocksMu.Unlock()
		s.frames.Add(int64(len(block) / channels))
		s.level.Store(math.Float64bits(audio.RMS(block)))
	}
}

// Stop ends the capture and flushes the accumulated blocks into one
// contiguous buffer. Returns ErrNothingRecorded if no blocks arrived.
func (s *Session) Stop() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return Result{}, fmt.Errorf("%w (current state: %s)", ErrNotRecording, s.state)
	}
	s.state = Flushing

	// Stop waits for in-flight callbacks, so closing the queue afterwards
	// cannot race a send.
	if err := s.stream.Stop(); err != nil {
		s.log.Error().Err(err).Msg("Failed to stop stream")
	}
	if err := s.stream.Close(); err != nil {
		s.log.Error().Err(err).Msg("Failed to close stream")
	}
	s.stream = nil
	close(s.queue)

	select {
	case <-s.done:
	case <-time.After(joinTimeout):
		s.log.Warn().Dur("timeout", joinTimeout).Msg("Drain loop did not exit in time, flushing collected blocks")
	}

	if dropped := s.dropped.Load(); dropped > 0 {
		s.log.Warn().Int64("blocks", dropped).Msg("Dropped blocks on full queue")
	}

	s.blocksMu.Lock()
	blocks := s.blocks
	s.blocks = nil
	s.blocksMu.Unlock()
	s.level.Store(0)
	s.state = Idle

	if len(blocks) == 0 {
		s.log.Info().Msg("Recording stopped with no captured blocks")
		return Result{}, ErrNothingRecorded
	}

	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	samples := make([]float32, 0, total)
	for _, b := range blocks {
		samples = append(samples, b...)
	}

	res := Result{
		Samples:    samples,
		SampleRate: s.params.SampleRate,
		Channels:   s.params.Channels,
	}
	res.Duration = time.Duration(float64(total/s.params.Channels) / float64(s.params.SampleRate) * float64(time.Second))

	s.log.Info().
		Int("blocks", len(blocks)).
		Int("samples", total).
		Dur("duration", res.Duration).
		Msg("Recording stopped")

	return res, nil
}

// State returns the current capture state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Level returns the RMS level of the most recently drained block, 0..1.
func (s *Session) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

// Elapsed returns the recorded duration so far, derived from captured
// frames rather than wall clock.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	rate := s.params.SampleRate
	s.mu.Unlock()
	if rate == 0 {
		return 0
	}
	return time.Duration(float64(s.frames.Load()) / float64(rate) * float64(time.Second))
}

// Frames returns the number of frames captured so far
func (s *Session) Frames() int64 {
	return s.frames.Load()
}
