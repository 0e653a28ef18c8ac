package session

import (
	"log/slog"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	"github.com/GriffinCanCode/vadrec/internal/vad"
)

// Resources holds the live handles of one session. Every terminal
// transition funnels through Release.
type Resources struct {
	loop     *vad.Loop
	detector *vad.Detector
	recorder *audio.Recorder
	stream   *audio.Stream
}

// StopSampling halts the level monitor and detaches it from the analyser.
// The caller must hold the controller lock.
func (r *Resources) StopSampling() {
	if r.loop != nil {
		r.loop.Stop()
		r.loop = nil
	}
	if r.detector != nil {
		r.detector.Release()
		r.detector = nil
	}
}

// Release stops sampling, the recorder and the hardware stream, clearing
// each reference. Safe to call any number of times. The caller must hold
// the controller lock.
func (r *Resources) Release() {
	r.StopSampling()
	if r.recorder != nil {
		r.recorder.Stop()
		r.recorder = nil
	}
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			slog.Warn("closing microphone stream", "error", err)
		}
		r.stream = nil
	}
}

// Empty reports whether every reference has been released.
func (r *Resources) Empty() bool {
	return r.loop == nil && r.detector == nil && r.recorder == nil && r.stream == nil
}
