// Package audiotest provides an in-memory microphone for tests.
package audiotest

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/vadrec/internal/audio"
)

// Mic is a fake Input fed by Push.
type Mic struct {
	frames    chan []int16
	acks      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	owed      bool // touched only by the reader goroutine
}

// NewMic returns an open fake microphone.
func NewMic() *Mic {
	return &Mic{
		frames: make(chan []int16),
		acks:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Push delivers one buffer and waits until the stream has fanned it out to
// the analyser and recorder. It reports false if the mic was closed first.
func (m *Mic) Push(samples []int16) bool {
	buf := append([]int16(nil), samples...)
	select {
	case m.frames <- buf:
	case <-m.closed:
		return false
	}
	select {
	case <-m.acks:
		return true
	case <-m.closed:
		return false
	}
}

// Read implements audio.Input.
func (m *Mic) Read() ([]int16, error) {
	if m.owed {
		m.owed = false
		m.acks <- struct{}{}
	}
	select {
	case buf := <-m.frames:
		m.owed = true
		return buf, nil
	case <-m.closed:
		return nil, audio.ErrInputClosed
	}
}

// Close implements audio.Input.
func (m *Mic) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Closed reports whether Close has been called.
func (m *Mic) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Source hands out a fresh Mic per acquisition, or Err when set.
type Source struct {
	Config audio.StreamConfig

	mu      sync.Mutex
	err     error
	mics    []*Mic
	streams []*audio.Stream
}

// NewSource returns a Source producing streams with cfg.
func NewSource(cfg audio.StreamConfig) *Source {
	return &Source{Config: cfg}
}

// Fail makes subsequent acquisitions return err. nil restores success.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Acquire implements audio.Source.
func (s *Source) Acquire(ctx context.Context) (*audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	mic := NewMic()
	stream := audio.NewStream(mic, s.Config)
	s.mics = append(s.mics, mic)
	s.streams = append(s.streams, stream)
	return stream, nil
}

// Mic returns the most recently acquired microphone, or nil.
func (s *Source) Mic() *Mic {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.mics) == 0 {
		return nil
	}
	return s.mics[len(s.mics)-1]
}

// Stream returns the most recently acquired stream, or nil.
func (s *Source) Stream() *audio.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		return nil
	}
	return s.streams[len(s.streams)-1]
}

// Acquisitions counts successful Acquire calls.
func (s *Source) Acquisitions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mics)
}

// Constant returns n samples of value v.
func Constant(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
