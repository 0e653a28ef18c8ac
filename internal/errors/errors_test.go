package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppErrorString(t *testing.T) {
	err := Wrap(errors.New("device busy"), CodeMicUnavailable, "open input").WithMetadata("device", "Built-in Microphone")

	s := err.Error()
	for _, want := range []string{"[MIC_UNAVAILABLE]", "open input", "Built-in Microphone", "device busy"} {
		if !strings.Contains(s, want) {
			t.Errorf("Error() = %q, missing %q", s, want)
		}
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := New(CodeExchangeFailed, "Transcription failed")
	wrapped := fmt.Errorf("submit: %w", base)

	if !IsCode(wrapped, CodeExchangeFailed) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(wrapped, CodeMicUnavailable) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(errors.New("plain"), CodeExchangeFailed) {
		t.Error("IsCode matched a foreign error")
	}
}

func TestCodeOfAndMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		msg  string
	}{
		{"app error", New(CodeExchangeUnavailable, "down"), CodeExchangeUnavailable, "down"},
		{"wrapped", fmt.Errorf("x: %w", Newf(CodeCaptureFailed, "read %d", 3)), CodeCaptureFailed, "read 3"},
		{"foreign", errors.New("boom"), CodeUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.code {
				t.Errorf("CodeOf = %v, want %v", got, tt.code)
			}
			if got := Message(tt.err); got != tt.msg {
				t.Errorf("Message = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeMicUnavailable, http.StatusServiceUnavailable},
		{CodeExchangeFailed, http.StatusBadGateway},
		{CodeInvalidArgument, http.StatusBadRequest},
		{Code(99), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("%v.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := Wrapf(cause, CodeInternal, "step %s", "finalize")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if err.Message != "step finalize" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestCodeText(t *testing.T) {
	b, err := CodeCaptureFailed.MarshalText()
	if err != nil || string(b) != "CAPTURE_FAILED" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}

	var c Code
	if err := c.UnmarshalText(b); err != nil || c != CodeCaptureFailed {
		t.Errorf("UnmarshalText = %v, %v", c, err)
	}
	if err := c.UnmarshalText([]byte("NOPE")); err == nil {
		t.Error("UnmarshalText accepted an unknown code")
	}
}
