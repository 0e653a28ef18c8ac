package commands

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	"github.com/GriffinCanCode/vadrec/internal/audio/audiotest"
	"github.com/GriffinCanCode/vadrec/internal/config"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/exchange"
	"github.com/GriffinCanCode/vadrec/internal/resilience"
	"github.com/GriffinCanCode/vadrec/internal/session"
)

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		want    string
		wantErr bool
	}{
		{"http", func(c *config.Config) {}, "*exchange.Client", false},
		{"openai", func(c *config.Config) {
			c.TranscribeBackend = config.BackendOpenAI
			c.OpenAIAPIKey = "sk-test"
		}, "*exchange.OpenAI", false},
		{"openai without key", func(c *config.Config) { c.TranscribeBackend = config.BackendOpenAI }, "", true},
		{"unknown", func(c *config.Config) { c.TranscribeBackend = "carrier-pigeon" }, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			got, err := newBackend(cfg, nil)
			if tt.wantErr {
				if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
					t.Fatalf("err = %v, want CONFIG_INVALID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("newBackend: %v", err)
			}
			if typeName(got) != tt.want {
				t.Errorf("backend = %s, want %s", typeName(got), tt.want)
			}
		})
	}
}

func typeName(ex exchange.Exchanger) string {
	switch ex.(type) {
	case *exchange.Client:
		return "*exchange.Client"
	case *exchange.OpenAI:
		return "*exchange.OpenAI"
	}
	return "other"
}

func TestNewExchangerReportsBreakerState(t *testing.T) {
	var states []resilience.State
	ex, err := newExchanger(config.Default(), nil, func(s resilience.State) { states = append(states, s) })
	if err != nil {
		t.Fatal(err)
	}
	if ex.Breaker().State() != resilience.Closed {
		t.Errorf("initial state = %v", ex.Breaker().State())
	}

	for i := 0; i < resilience.DefaultConfig().Threshold; i++ {
		ex.Breaker().Failure()
	}
	if len(states) != 1 || states[0] != resilience.Open {
		t.Errorf("states = %v, want [open]", states)
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SilenceTimeout = 2 * time.Second
	cfg.TranscribeTimeout = 10 * time.Second

	sc := sessionConfig(cfg)
	if sc.Thresholds.SilenceTimeout != 2*time.Second || sc.Thresholds.RMSThreshold != 0.015 {
		t.Errorf("thresholds = %+v", sc.Thresholds)
	}
	if sc.Thresholds.FrameSize != 2048 || sc.Thresholds.TickInterval != 16*time.Millisecond {
		t.Errorf("thresholds = %+v", sc.Thresholds)
	}
	if sc.ExchangeTimeout != 10*time.Second {
		t.Errorf("exchange timeout = %v", sc.ExchangeTimeout)
	}
}

func TestRecordOnceStopsOnEnter(t *testing.T) {
	src := audiotest.NewSource(audio.StreamConfig{SampleRate: audio.DefaultSampleRate, FrameSize: audio.DefaultFrameSize})
	ex := exchange.Func(func(ctx context.Context, art audio.Artifact) (exchange.Result, error) {
		return exchange.Result{Text: "hello there"}, nil
	})

	var log bytes.Buffer
	w := newWaiter(&log)
	ctl := session.New(sessionConfig(config.Default()), src, ex, session.WithObserver(w))
	defer ctl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wavPath := filepath.Join(t.TempDir(), "take.wav")
	var out bytes.Buffer
	if err := recordOnce(ctx, ctl, w, strings.NewReader("\n"), &out, wavPath); err != nil {
		t.Fatalf("recordOnce: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "hello there" {
		t.Errorf("transcript = %q", got)
	}
	if !strings.Contains(log.String(), "Transcribing") {
		t.Errorf("log = %q", log.String())
	}
	if data, err := os.ReadFile(wavPath); err != nil || !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Errorf("saved recording: %v", err)
	}
}

func TestRecordOnceAcquireFailure(t *testing.T) {
	src := audiotest.NewSource(audio.StreamConfig{})
	src.Fail(apperrors.New(apperrors.CodeMicUnavailable, "denied"))
	ex := exchange.Func(func(ctx context.Context, art audio.Artifact) (exchange.Result, error) {
		t.Error("exchange called")
		return exchange.Result{}, nil
	})

	w := newWaiter(io.Discard)
	ctl := session.New(sessionConfig(config.Default()), src, ex, session.WithObserver(w))
	defer ctl.Close()

	err := recordOnce(context.Background(), ctl, w, strings.NewReader(""), io.Discard, "")
	if err == nil || err.Error() != session.PermissionMessage {
		t.Errorf("err = %v, want %q", err, session.PermissionMessage)
	}
}

func TestRecordOnceExchangeError(t *testing.T) {
	src := audiotest.NewSource(audio.StreamConfig{})
	ex := exchange.Func(func(ctx context.Context, art audio.Artifact) (exchange.Result, error) {
		return exchange.Result{}, apperrors.New(apperrors.CodeExchangeFailed, exchange.FailureMessage)
	})

	w := newWaiter(io.Discard)
	ctl := session.New(sessionConfig(config.Default()), src, ex, session.WithObserver(w))
	defer ctl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := recordOnce(ctx, ctl, w, strings.NewReader("\n"), &out, "")
	if err == nil || err.Error() != exchange.FailureMessage {
		t.Errorf("err = %v, want %q", err, exchange.FailureMessage)
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestWaiterSpeakingTransitions(t *testing.T) {
	var log bytes.Buffer
	w := newWaiter(&log)

	for _, s := range []bool{false, true, true, false} {
		w.Notify(session.Event{Kind: session.EventSpeaking, Speaking: s})
	}
	if got := log.String(); got != "  speaking\n  quiet\n" {
		t.Errorf("log = %q", got)
	}

	// idle before any recording does not finish the wait
	w.Notify(session.Event{Kind: session.EventStatus, Status: session.Idle})
	select {
	case <-w.done:
		t.Fatal("done before recording")
	default:
	}

	w.Notify(session.Event{Kind: session.EventStatus, Status: session.Recording})
	w.Notify(session.Event{Kind: session.EventStatus, Status: session.Idle})
	select {
	case <-w.done:
	default:
		t.Fatal("not done after idle")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	for _, name := range []string{"serve", "record", "devices"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}
