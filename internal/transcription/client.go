// Package transcription sends recorded audio to the speech-to-text service.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	ModelID        = "scribe_v1"
	UploadFilename = "recording.webm"

	DefaultTimeout = 90 * time.Second

	maxErrorBodyBytes = 64 << 10
)

var (
	ErrNoAudio       = errors.New("no audio file provided")
	ErrMissingAPIKey = errors.New("speech-to-text API key is not configured")
)

// ServiceError is a non-2xx reply from the speech-to-text service. Details
// holds the compacted JSON body when it parses, the raw text otherwise.
type ServiceError struct {
	StatusCode int
	Details    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("speech-to-text service returned status %d", e.StatusCode)
}

type Config struct {
	APIKey  string
	BaseURL string
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type Result struct {
	Text string
}

type transcriptResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio and returns the transcript. A reply without a
// text field yields an empty transcript, not an error.
func (c *Client) Transcribe(ctx context.Context, audio []byte, contentType string) (*Result, error) {
	if len(audio) == 0 {
		return nil, ErrNoAudio
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if contentType == "" {
		contentType = "audio/webm"
	}

	logger := logging.FromContext(ctx)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, UploadFilename))
	h.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.WriteField("model_id", ModelID); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech-to-text", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	logger.LogInfof("transcribe", "sending %d bytes of %s audio", len(audio), contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(metrics.ServiceElevenLabs, time.Since(start), err)
		logger.LogError("transcribe", err)
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		svcErr := &ServiceError{StatusCode: resp.StatusCode, Details: errorDetails(raw)}
		metrics.RecordUpstreamCall(metrics.ServiceElevenLabs, time.Since(start), svcErr)
		logger.LogWarnf("transcribe", "speech-to-text service returned status %d", resp.StatusCode)
		return nil, svcErr
	}

	var out transcriptResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	metrics.RecordUpstreamCall(metrics.ServiceElevenLabs, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	return &Result{Text: out.Text}, nil
}

// errorDetails prefers the structured body and falls back to raw text.
func errorDetails(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		if compact, err := json.Marshal(v); err == nil {
			return string(compact)
		}
	}
	return string(raw)
}
