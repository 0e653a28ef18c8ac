package commands

import (
	"net/http"
	"strings"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	"github.com/GriffinCanCode/vadrec/internal/config"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/exchange"
	"github.com/GriffinCanCode/vadrec/internal/metrics"
	"github.com/GriffinCanCode/vadrec/internal/resilience"
	"github.com/GriffinCanCode/vadrec/internal/session"
	"github.com/GriffinCanCode/vadrec/internal/vad"
)

// newBackend returns the transcription backend selected by cfg.
func newBackend(cfg *config.Config, hc *http.Client) (exchange.Exchanger, error) {
	switch strings.ToLower(cfg.TranscribeBackend) {
	case config.BackendHTTP:
		return exchange.NewClient(exchange.ClientConfig{
			URL:        cfg.TranscribeURL,
			Language:   cfg.TranscribeLanguage,
			HTTPClient: hc,
		})
	case config.BackendOpenAI:
		return exchange.NewOpenAI(exchange.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			Language:   cfg.TranscribeLanguage,
			HTTPClient: hc,
		})
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown transcribe backend %q", cfg.TranscribeBackend)
	}
}

// newExchanger wraps the configured backend in a circuit breaker. onState
// observes breaker transitions and may be nil.
func newExchanger(cfg *config.Config, m *metrics.Metrics, onState func(resilience.State)) (*exchange.Guarded, error) {
	backend, err := newBackend(cfg, nil)
	if err != nil {
		return nil, err
	}

	breaker := resilience.New(exchange.BreakerConfig()).WithHook(func(from, to resilience.State) {
		m.SetBreakerState(int(to))
		if onState != nil {
			onState(to)
		}
	})
	return exchange.NewGuarded(backend, breaker, m), nil
}

func streamConfig(cfg *config.Config) audio.StreamConfig {
	return audio.StreamConfig{
		SampleRate:  cfg.SampleRate,
		FrameSize:   cfg.FrameSize,
		ArtifactDir: cfg.ArtifactDir,
	}
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Thresholds: vad.Thresholds{
			SilenceTimeout: cfg.SilenceTimeout,
			RMSThreshold:   cfg.RMSThreshold,
			FrameSize:      cfg.FrameSize,
			TickInterval:   cfg.TickInterval,
		},
		ExchangeTimeout: cfg.TranscribeTimeout,
	}
}

func newMicrophone(cfg *config.Config) *audio.PortAudio {
	return audio.NewPortAudio(streamConfig(cfg), cfg.InputDevice, cfg.ExcludedAudioDevices)
}
