package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
)

var envVars = []string{
	"HTTP_ADDR", "HEALTH_ADDR", "ALLOWED_ORIGINS", "LOG_LEVEL", "HISTORY_SIZE",
	"SAMPLE_RATE", "FRAME_SIZE", "RMS_THRESHOLD", "SILENCE_TIMEOUT", "TICK_INTERVAL",
	"INPUT_DEVICE", "EXCLUDED_AUDIO_DEVICES", "ARTIFACT_DIR",
	"TRANSCRIBE_BACKEND", "TRANSCRIBE_URL", "TRANSCRIBE_LANGUAGE", "TRANSCRIBE_TIMEOUT",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.HTTPAddr != ":3001" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3001")
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want %d", cfg.SampleRate, 16000)
	}
	if cfg.FrameSize != 2048 {
		t.Errorf("FrameSize = %d, want 2048", cfg.FrameSize)
	}
	if cfg.RMSThreshold != 0.015 {
		t.Errorf("RMSThreshold = %f, want 0.015", cfg.RMSThreshold)
	}
	if cfg.SilenceTimeout != 3*time.Second {
		t.Errorf("SilenceTimeout = %v, want 3s", cfg.SilenceTimeout)
	}
	if cfg.TickInterval != 16*time.Millisecond {
		t.Errorf("TickInterval = %v, want 16ms", cfg.TickInterval)
	}
	if cfg.TranscribeBackend != BackendHTTP {
		t.Errorf("TranscribeBackend = %q", cfg.TranscribeBackend)
	}
	if cfg.HistorySize != 50 {
		t.Errorf("HistorySize = %d, want 50", cfg.HistorySize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("SAMPLE_RATE", "48000")
	t.Setenv("RMS_THRESHOLD", "0.02")
	t.Setenv("SILENCE_TIMEOUT", "2500")
	t.Setenv("TICK_INTERVAL", "20ms")
	t.Setenv("EXCLUDED_AUDIO_DEVICES", "zoom, ,teams")
	t.Setenv("TRANSCRIBE_BACKEND", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("SampleRate = %d", cfg.SampleRate)
	}
	if cfg.RMSThreshold != 0.02 {
		t.Errorf("RMSThreshold = %f", cfg.RMSThreshold)
	}
	if cfg.SilenceTimeout != 2500*time.Millisecond {
		t.Errorf("SilenceTimeout = %v, want 2.5s", cfg.SilenceTimeout)
	}
	if cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval)
	}
	if len(cfg.ExcludedAudioDevices) != 2 || cfg.ExcludedAudioDevices[0] != "zoom" {
		t.Errorf("ExcludedAudioDevices = %v", cfg.ExcludedAudioDevices)
	}
	if cfg.TranscribeBackend != BackendOpenAI {
		t.Errorf("TranscribeBackend = %q", cfg.TranscribeBackend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAMPLE_RATE", "fast")
	t.Setenv("SILENCE_TIMEOUT", "soon")

	cfg := Load()

	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want default", cfg.SampleRate)
	}
	if cfg.SilenceTimeout != 3*time.Second {
		t.Errorf("SilenceTimeout = %v, want default", cfg.SilenceTimeout)
	}
}

func TestLoadFilePrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "vadrec.yaml")
	data := []byte(`
http_addr: ":7000"
silence_timeout: 4s
rms_threshold: 0.03
transcribe_language: ar
allowed_origins:
  - http://example.test
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTP_ADDR", ":7001")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.HTTPAddr != ":7001" {
		t.Errorf("HTTPAddr = %q, env should win", cfg.HTTPAddr)
	}
	if cfg.SilenceTimeout != 4*time.Second {
		t.Errorf("SilenceTimeout = %v, want 4s from file", cfg.SilenceTimeout)
	}
	if cfg.RMSThreshold != 0.03 || cfg.TranscribeLanguage != "ar" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://example.test" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want default", cfg.SampleRate)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("missing file err = %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("sample_rate: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("bad yaml err = %v", err)
	}

	cfg, err := LoadFile("")
	if err != nil || cfg.HTTPAddr != ":3001" {
		t.Errorf("empty path = (%+v, %v)", cfg, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, false},
		{"zero frame", func(c *Config) { c.FrameSize = 0 }, false},
		{"threshold too high", func(c *Config) { c.RMSThreshold = 1 }, false},
		{"no timeout", func(c *Config) { c.SilenceTimeout = 0 }, false},
		{"tick above timeout", func(c *Config) { c.TickInterval = 5 * time.Second }, false},
		{"http without url", func(c *Config) { c.TranscribeURL = "" }, false},
		{"openai without key", func(c *Config) { c.TranscribeBackend = BackendOpenAI }, false},
		{"openai with key", func(c *Config) {
			c.TranscribeBackend = BackendOpenAI
			c.OpenAIAPIKey = "sk"
		}, true},
		{"unknown backend", func(c *Config) { c.TranscribeBackend = "grpc" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
				t.Errorf("Validate = %v, want CONFIG_INVALID", err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		c := &Config{LogLevel: in}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
