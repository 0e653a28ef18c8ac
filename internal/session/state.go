// Package session runs one voice-activity-triggered recording at a time:
// it acquires the microphone, samples its level, ends the recording after
// sustained silence or on request, and hands the result to the exchange.
package session

import "fmt"

// State is the controller's position in the Idle -> Recording -> Processing cycle.
type State int

const (
	Idle State = iota
	Recording
	Processing
)

var stateNames = [...]string{"idle", "recording", "processing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// StateNames lists every state name in order.
func StateNames() []string {
	return stateNames[:]
}

// User-facing messages
const (
	PermissionMessage = "Could not open the microphone. Make sure microphone access is allowed."
	GenericMessage    = "Something went wrong"
)

// Outcome labels for metrics
const (
	outcomeSuccess        = "success"
	outcomeExchangeFailed = "exchange_failed"
	outcomeMicUnavailable = "mic_unavailable"
	outcomeCaptureFailed  = "capture_failed"
	outcomeClosed         = "closed"
)
