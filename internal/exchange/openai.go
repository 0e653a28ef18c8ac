package exchange

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/trace"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "whisper-1"

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// OpenAI transcribes through the audio/transcriptions endpoint.
type OpenAI struct {
	client   oai.Client
	model    string
	language string
}

// NewOpenAI builds the backend. SDK retries are disabled; failures surface
// once and the breaker decides what happens next.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	reqOpts = append(reqOpts, option.WithHTTPClient(hc))

	return &OpenAI{
		client:   oai.NewClient(reqOpts...),
		model:    model,
		language: cfg.Language,
	}, nil
}

// Transcribe implements Exchanger.
func (o *OpenAI) Transcribe(ctx context.Context, art audio.Artifact) (Result, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.openai")
	defer span.End()
	span.SetAttr("model", o.model)

	mime := art.MIMEType
	if mime == "" {
		mime = audio.ArtifactMIMEType
	}
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(art.Data), UploadFilename, mime),
		Model: oai.AudioModel(o.model),
	}
	if o.language != "" {
		params.Language = oai.String(o.language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			trace.Logger(ctx).Warn("openai transcription rejected", "status", apiErr.StatusCode)
			msg := apiErr.Message
			if msg == "" {
				msg = FailureMessage
			}
			e := statusError(apiErr.StatusCode, msg)
			e.Cause = err
			return Result{}, e
		}
		return Result{}, apperrors.Wrap(err, apperrors.CodeExchangeFailed, "Transcription service unreachable")
	}
	return Result{Text: strings.TrimSpace(resp.Text)}, nil
}
