// Package server exposes the session controller over HTTP and WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Per-connection command rate limiting
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Events buffered per WebSocket client before drops
	ClientBufferSize = 64

	WriteTimeout      = 5 * time.Second
	ReadHeaderTimeout = 10 * time.Second

	// Upper bound on GET /api/session?after=N
	LongPollTimeout = 25 * time.Second

	VersionHeader     = "X-Snapshot-Version"
	RecordingFilename = "recording.wav"
)
