package vad

import "time"

// FrameSource exposes the latest time-domain window.
type FrameSource interface {
	ByteTimeDomainData(dst []byte)
}

// State is the per-session detection state.
type State struct {
	LastVoice time.Time
	Speaking  bool
}

// Reading is the outcome of one tick.
type Reading struct {
	RMS      float64
	Speaking bool
	Silence  time.Duration
	TimedOut bool
}

// Detector evaluates one frame per tick. It is not safe for concurrent use;
// the session controller serializes access.
type Detector struct {
	th    Thresholds
	tap   FrameSource
	frame []byte
	state State

	fired    bool
	released bool
}

// NewDetector starts detection with LastVoice at start, so a session that
// never hears speech still times out.
func NewDetector(th Thresholds, tap FrameSource, start time.Time) *Detector {
	th = th.withDefaults()
	return &Detector{
		th:    th,
		tap:   tap,
		frame: make([]byte, th.FrameSize),
		state: State{LastVoice: start},
	}
}

// Tick samples the tap at now. It reports false without sampling once the
// detector has been released or the timeout has fired.
func (d *Detector) Tick(now time.Time) (Reading, bool) {
	if d.released || d.fired {
		return Reading{}, false
	}

	d.tap.ByteTimeDomainData(d.frame)
	rms := RMS(d.frame)
	speaking := rms > d.th.RMSThreshold

	d.state.Speaking = speaking
	if speaking && now.After(d.state.LastVoice) {
		d.state.LastVoice = now
	}

	silence := now.Sub(d.state.LastVoice)
	r := Reading{RMS: rms, Speaking: speaking, Silence: silence}
	if silence >= d.th.SilenceTimeout {
		r.TimedOut = true
		d.fired = true
	}
	return r, true
}

// State returns the current detection state.
func (d *Detector) State() State { return d.state }

// Thresholds returns the effective tuning.
func (d *Detector) Thresholds() Thresholds { return d.th }

// Release detaches the tap. Idempotent.
func (d *Detector) Release() {
	d.released = true
	d.tap = nil
}

// Released reports whether Release has been called.
func (d *Detector) Released() bool { return d.released }
