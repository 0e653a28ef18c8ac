package session

import (
	"time"

	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
)

// EventKind names an observer notification.
type EventKind string

const (
	EventStatus     EventKind = "status"
	EventSpeaking   EventKind = "speaking"
	EventTranscript EventKind = "transcript"
	EventRecording  EventKind = "recording"
	EventError      EventKind = "error"
	EventReset      EventKind = "reset"
)

// RecordingInfo describes the finalized artifact of a session.
type RecordingInfo struct {
	ID         string `json:"id"`
	MIMEType   string `json:"mime_type"`
	Size       int    `json:"size"`
	Chunks     int    `json:"chunks"`
	DurationMS int64  `json:"duration_ms"`
	Path       string `json:"-"`
}

// Event is one observer notification. Status is the state at emission time.
type Event struct {
	Kind      EventKind      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Status    State          `json:"status"`
	Speaking  bool           `json:"speaking,omitempty"`
	RMS       float64        `json:"rms,omitempty"`
	Text      string         `json:"text,omitempty"`
	Error     string         `json:"error,omitempty"`
	Recording *RecordingInfo `json:"recording,omitempty"`
	Time      time.Time      `json:"time"`
}

// Observer receives events under the controller's lock. Implementations
// must not block and must not call back into the controller.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify calls f.
func (f ObserverFunc) Notify(e Event) { f(e) }

// Observers fans an event out in order.
type Observers []Observer

// Notify implements Observer.
func (o Observers) Notify(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Notify(Event) {}

// Snapshot is the externally visible session state. Text and Error are never
// both set.
type Snapshot struct {
	SessionID string         `json:"session_id,omitempty"`
	Status    State          `json:"status"`
	Speaking  bool           `json:"speaking"`
	Text      string         `json:"text"`
	Error     string         `json:"error,omitempty"`
	ErrorCode apperrors.Code `json:"error_code,omitempty"`
	Recording *RecordingInfo `json:"recording,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Device    string         `json:"device,omitempty"`
}
