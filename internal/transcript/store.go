// Package transcript keeps a bounded history of finished sessions.
package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/vadrec/internal/session"
)

// DefaultMaxEntries bounds the history when NewStore gets a non-positive size.
const DefaultMaxEntries = 50

// Entry is the outcome of one session: a transcript or an error message.
type Entry struct {
	SessionID  string    `json:"session_id"`
	Time       time.Time `json:"time"`
	Text       string    `json:"text,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
}

// Store is an in-memory transcript history fed by session events.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	duration map[string]int64 // recording length by session, until its outcome arrives
}

// NewStore creates a store holding at most maxEntries entries.
func NewStore(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		duration: make(map[string]int64),
	}
}

// Notify implements session.Observer.
func (s *Store) Notify(e session.Event) {
	switch e.Kind {
	case session.EventRecording:
		if e.Recording != nil && e.SessionID != "" {
			s.mu.Lock()
			s.duration[e.SessionID] = e.Recording.DurationMS
			s.mu.Unlock()
		}
	case session.EventTranscript:
		s.add(Entry{SessionID: e.SessionID, Time: e.Time, Text: e.Text})
	case session.EventError:
		s.add(Entry{SessionID: e.SessionID, Time: e.Time, Error: e.Error})
	}
}

func (s *Store) add(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.DurationMS = s.duration[e.SessionID]
	delete(s.duration, e.SessionID)

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Since returns entries recorded at or after t, oldest first.
func (s *Store) Since(t time.Time) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Entry
	for _, e := range s.entries {
		if !e.Time.Before(t) {
			result = append(result, e)
		}
	}
	return result
}

// Text joins the transcripts recorded at or after t, one per line. Failed
// sessions are skipped.
func (s *Store) Text(t time.Time) string {
	var parts []string
	for _, e := range s.Since(t) {
		if e.Text != "" {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Entries returns a copy of all entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Entry, len(s.entries))
	copy(result, s.entries)
	return result
}

// Clear drops the history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	clear(s.duration)
}
