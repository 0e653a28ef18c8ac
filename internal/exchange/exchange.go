// Package exchange submits finalized recordings to a transcription service
// and returns the recognized text.
package exchange

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/resilience"
)

// Wire format of the multipart upload
const (
	FieldAudio     = "audio"
	FieldLanguage  = "language"
	UploadFilename = "recording.wav"

	DefaultTimeout = 60 * time.Second

	// FailureMessage is reported when the service gives no reason.
	FailureMessage = "Transcription failed"
	// UnavailableMessage is reported while the breaker is open.
	UnavailableMessage = "Transcription service unavailable"

	maxResponseBytes = 1 << 20
	statusKey        = "status"
)

// Result is a successful transcription.
type Result struct {
	Text string `json:"text"`
}

// Exchanger turns a recording into text.
type Exchanger interface {
	Transcribe(ctx context.Context, art audio.Artifact) (Result, error)
}

// Func adapts a function to Exchanger.
type Func func(ctx context.Context, art audio.Artifact) (Result, error)

// Transcribe calls f.
func (f Func) Transcribe(ctx context.Context, art audio.Artifact) (Result, error) {
	return f(ctx, art)
}

// Trips reports whether err should count against the circuit breaker.
// Cancellation and client errors (4xx) do not: they say nothing about the
// health of the service.
func Trips(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if appErr, ok := apperrors.As(err); ok {
		if code, convErr := strconv.Atoi(appErr.Metadata[statusKey]); convErr == nil && code >= 400 && code < 500 {
			return false
		}
	}
	return true
}

// BreakerConfig returns breaker settings classified by Trips.
func BreakerConfig() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.IsFailure = Trips
	return cfg
}

func statusError(code int, msg string) *apperrors.AppError {
	if msg == "" {
		msg = FailureMessage
	}
	return apperrors.New(apperrors.CodeExchangeFailed, msg).WithMetadata(statusKey, strconv.Itoa(code))
}
