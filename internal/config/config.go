// Package config loads vadrec settings: built-in defaults, then an optional
// YAML file, then environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
)

// Transcription backends
const (
	BackendHTTP   = "http"
	BackendOpenAI = "openai"
)

type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	HealthAddr     string   `yaml:"health_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	LogLevel       string   `yaml:"log_level"`
	HistorySize    int      `yaml:"history_size"`

	// Capture and detection
	SampleRate           int           `yaml:"sample_rate"`
	FrameSize            int           `yaml:"frame_size"`
	RMSThreshold         float64       `yaml:"rms_threshold"`
	SilenceTimeout       time.Duration `yaml:"silence_timeout"`
	TickInterval         time.Duration `yaml:"tick_interval"`
	InputDevice          string        `yaml:"input_device"`
	ExcludedAudioDevices []string      `yaml:"excluded_audio_devices"`
	ArtifactDir          string        `yaml:"artifact_dir"`

	// Transcription
	TranscribeBackend  string        `yaml:"transcribe_backend"`
	TranscribeURL      string        `yaml:"transcribe_url"`
	TranscribeLanguage string        `yaml:"transcribe_language"`
	TranscribeTimeout  time.Duration `yaml:"transcribe_timeout"`
	OpenAIAPIKey       string        `yaml:"openai_api_key"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	OpenAIModel        string        `yaml:"openai_model"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		HTTPAddr:             ":3001",
		HealthAddr:           ":50051",
		AllowedOrigins:       []string{"http://localhost:5173"},
		LogLevel:             "info",
		HistorySize:          50,
		SampleRate:           16000,
		FrameSize:            2048,
		RMSThreshold:         0.015,
		SilenceTimeout:       3000 * time.Millisecond,
		TickInterval:         16 * time.Millisecond,
		ExcludedAudioDevices: []string{"iphone", "teams"},
		TranscribeBackend:    BackendHTTP,
		TranscribeURL:        "http://localhost:8000/api/transcribe",
		TranscribeTimeout:    60 * time.Second,
		OpenAIModel:          "whisper-1",
	}
}

// Load returns defaults overridden by the environment.
func Load() *Config {
	c := Default()
	c.applyEnv()
	return c
}

// LoadFile reads a YAML file over the defaults, then applies the environment.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "parse config %s", path)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.HealthAddr = getEnv("HEALTH_ADDR", c.HealthAddr)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HistorySize = getEnvInt("HISTORY_SIZE", c.HistorySize)

	c.SampleRate = getEnvInt("SAMPLE_RATE", c.SampleRate)
	c.FrameSize = getEnvInt("FRAME_SIZE", c.FrameSize)
	c.RMSThreshold = getEnvFloat("RMS_THRESHOLD", c.RMSThreshold)
	c.SilenceTimeout = getEnvDuration("SILENCE_TIMEOUT", c.SilenceTimeout)
	c.TickInterval = getEnvDuration("TICK_INTERVAL", c.TickInterval)
	c.InputDevice = getEnv("INPUT_DEVICE", c.InputDevice)
	c.ExcludedAudioDevices = getEnvList("EXCLUDED_AUDIO_DEVICES", c.ExcludedAudioDevices)
	c.ArtifactDir = getEnv("ARTIFACT_DIR", c.ArtifactDir)

	c.TranscribeBackend = strings.ToLower(getEnv("TRANSCRIBE_BACKEND", c.TranscribeBackend))
	c.TranscribeURL = getEnv("TRANSCRIBE_URL", c.TranscribeURL)
	c.TranscribeLanguage = getEnv("TRANSCRIBE_LANGUAGE", c.TranscribeLanguage)
	c.TranscribeTimeout = getEnvDuration("TRANSCRIBE_TIMEOUT", c.TranscribeTimeout)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
}

// Validate reports the first invalid setting as CodeConfigInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.CodeConfigInvalid, format, args...)
	}
	switch {
	case c.SampleRate <= 0:
		return invalid("sample_rate must be positive, got %d", c.SampleRate)
	case c.FrameSize <= 0:
		return invalid("frame_size must be positive, got %d", c.FrameSize)
	case c.RMSThreshold <= 0 || c.RMSThreshold >= 1:
		return invalid("rms_threshold must be in (0, 1), got %g", c.RMSThreshold)
	case c.SilenceTimeout <= 0:
		return invalid("silence_timeout must be positive, got %s", c.SilenceTimeout)
	case c.TickInterval <= 0 || c.TickInterval >= c.SilenceTimeout:
		return invalid("tick_interval must be positive and below silence_timeout, got %s", c.TickInterval)
	}

	switch c.TranscribeBackend {
	case BackendHTTP:
		if c.TranscribeURL == "" {
			return invalid("transcribe_url is required for the http backend")
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return invalid("openai_api_key is required for the openai backend")
		}
	default:
		return invalid("unknown transcribe_backend %q", c.TranscribeBackend)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("3s") or bare milliseconds ("3000").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
