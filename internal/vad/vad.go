// Package vad classifies microphone frames as speech or silence by RMS
// energy and signals when silence has lasted long enough to end a session.
package vad

import (
	"math"
	"time"
)

// Detection defaults
const (
	DefaultSilenceTimeout = 3000 * time.Millisecond
	DefaultRMSThreshold   = 0.015
	DefaultFrameSize      = 2048

	// one display frame at 60Hz
	DefaultTickInterval = 16 * time.Millisecond
)

// Thresholds tune the detector.
type Thresholds struct {
	SilenceTimeout time.Duration
	RMSThreshold   float64
	FrameSize      int
	TickInterval   time.Duration
}

// DefaultThresholds returns the production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SilenceTimeout: DefaultSilenceTimeout,
		RMSThreshold:   DefaultRMSThreshold,
		FrameSize:      DefaultFrameSize,
		TickInterval:   DefaultTickInterval,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	if t.SilenceTimeout <= 0 {
		t.SilenceTimeout = DefaultSilenceTimeout
	}
	if t.RMSThreshold <= 0 {
		t.RMSThreshold = DefaultRMSThreshold
	}
	if t.FrameSize <= 0 {
		t.FrameSize = DefaultFrameSize
	}
	if t.TickInterval <= 0 {
		t.TickInterval = DefaultTickInterval
	}
	return t
}

// Normalize maps an unsigned time-domain byte onto [-1, 1).
func Normalize(b byte) float64 {
	return (float64(b) - 128) / 128
}

// RMS is the root mean square of the normalized frame. An empty frame is 0.
func RMS(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, b := range frame {
		x := Normalize(b)
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(frame)))
}
