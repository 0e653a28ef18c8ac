package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/GriffinCanCode/vadrec/internal/audio"
	apperrors "github.com/GriffinCanCode/vadrec/internal/errors"
	"github.com/GriffinCanCode/vadrec/internal/trace"
)

// ClientConfig configures the multipart HTTP backend.
type ClientConfig struct {
	URL        string
	Language   string // optional form field
	HTTPClient *http.Client
}

// Client posts recordings as multipart/form-data and reads {"text": ...}.
type Client struct {
	url      string
	language string
	http     *http.Client
}

// NewClient validates cfg and builds a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "transcription URL is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{url: cfg.URL, language: cfg.Language, http: hc}, nil
}

// Transcribe uploads art and returns the trimmed text. A 2xx reply without a
// text field is accepted as an empty transcript.
func (c *Client) Transcribe(ctx context.Context, art audio.Artifact) (Result, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.http")
	defer span.End()
	log := trace.Logger(ctx)

	body, contentType, err := c.encode(art)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CodeInternal, "encode upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "build transcription request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	trace.InjectHeaders(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CodeExchangeFailed, "Transcription service unreachable")
	}
	defer resp.Body.Close()
	span.SetAttr("status", resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CodeExchangeFailed, FailureMessage)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &payload)
		log.Warn("transcription rejected", "status", resp.StatusCode, "error", payload.Error)
		return Result{}, statusError(resp.StatusCode, payload.Error)
	}

	// Any JSON value is accepted; only an object's string "text" carries a transcript.
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.CodeExchangeFailed, FailureMessage).
			WithMetadata(statusKey, fmt.Sprint(resp.StatusCode))
	}
	obj, _ := decoded.(map[string]any)
	switch text := obj["text"].(type) {
	case string:
		return Result{Text: strings.TrimSpace(text)}, nil
	case nil:
		log.Warn("transcription response has no text field; treating as empty")
		return Result{}, nil
	default:
		return Result{}, apperrors.New(apperrors.CodeExchangeFailed, FailureMessage).
			WithMetadata(statusKey, fmt.Sprint(resp.StatusCode)).
			WithMetadata("text_type", fmt.Sprintf("%T", text))
	}
}

func (c *Client) encode(art audio.Artifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	mime := art.MIMEType
	if mime == "" {
		mime = audio.ArtifactMIMEType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldAudio, UploadFilename))
	h.Set("Content-Type", mime)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(art.Data); err != nil {
		return nil, "", err
	}
	if c.language != "" {
		if err := w.WriteField(FieldLanguage, c.language); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
