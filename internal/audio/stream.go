// Package audio owns the live microphone stream: device selection, the
// analyser tap used for voice activity detection, and the chunked recorder
// that produces the session artifact.
package audio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Input is an open hardware capture handle delivering mono 16-bit PCM.
type Input interface {
	// Read blocks until the next buffer is available. The returned slice is
	// owned by the caller.
	Read() ([]int16, error)
	// Close stops the hardware. Read returns an error afterwards.
	Close() error
}

// Source acquires exclusive access to a microphone.
type Source interface {
	// Acquire fails with CodeMicUnavailable when access is denied or no
	// input device exists.
	Acquire(ctx context.Context) (*Stream, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Stream, error)

// Acquire calls f.
func (f SourceFunc) Acquire(ctx context.Context) (*Stream, error) { return f(ctx) }

// StreamConfig describes the capture format and where artifacts are written.
type StreamConfig struct {
	SampleRate  int
	FrameSize   int    // analyser window in samples
	ArtifactDir string // "" uses the OS temp dir
	Device      string // informational
}

// Stream is a live microphone stream. A single pump goroutine reads the
// input and fans each buffer out to the analyser and the active recorder.
type Stream struct {
	cfg      StreamConfig
	input    Input
	analyser *Analyser

	mu     sync.Mutex
	rec    *Recorder
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps an open input and starts pumping it.
func NewStream(in Input, cfg StreamConfig) *Stream {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	s := &Stream{
		cfg:      cfg,
		input:    in,
		analyser: NewAnalyser(cfg.FrameSize),
		done:     make(chan struct{}),
	}
	go s.pump()
	return s
}

// Config returns the stream's capture format.
func (s *Stream) Config() StreamConfig { return s.cfg }

// Analyser returns the time-domain tap.
func (s *Stream) Analyser() *Analyser { return s.analyser }

// Done is closed once the pump goroutine has exited.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Record starts chunked capture and returns the recorder handle. A previous
// recorder on this stream is stopped first.
func (s *Stream) Record() *Recorder {
	r := newRecorder(s, s.cfg)

	s.mu.Lock()
	prev := s.rec
	s.rec = r
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	return r
}

func (s *Stream) detach(r *Recorder) {
	s.mu.Lock()
	if s.rec == r {
		s.rec = nil
	}
	s.mu.Unlock()
}

func (s *Stream) pump() {
	defer close(s.done)
	for {
		buf, err := s.input.Read()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				slog.Debug("audio read error", "device", s.cfg.Device, "error", err)
			}
			return
		}

		s.analyser.Write(buf)

		s.mu.Lock()
		rec := s.rec
		s.mu.Unlock()
		if rec != nil {
			rec.append(buf)
		}
	}
}

// Close stops the hardware immediately. Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		rec := s.rec
		s.rec = nil
		s.mu.Unlock()

		if rec != nil {
			rec.Stop()
		}
		if err := s.input.Close(); err != nil && !errors.Is(err, ErrInputClosed) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
