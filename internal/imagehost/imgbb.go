// Package imagehost uploads generated images to the public image host.
// Upload failures never surface as errors: they produce a degraded outcome
// carrying a truncated, non-renderable preview.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.imgbb.com"
	DefaultTimeout = 60 * time.Second

	// PreviewChars is how much of the base64 payload a degraded preview keeps.
	PreviewChars = 100

	DegradedWarning = "Image was generated but could not be uploaded to storage. The returned URL is truncated."
)

var ErrMissingAPIKey = errors.New("image host API key is not configured")

type Uploaded struct {
	URL        string
	DisplayURL string
	DeleteURL  string
}

type Degraded struct {
	// Preview is a data URI holding only the first PreviewChars of the
	// payload followed by "...".
	Preview           string
	FullImageTooLarge bool
	Warning           string
	Reason            error
}

// Outcome holds exactly one of Uploaded or Degraded.
type Outcome struct {
	Uploaded *Uploaded
	Degraded *Degraded
}

func (o Outcome) IsDegraded() bool {
	return o.Degraded != nil
}

type Config struct {
	APIKey  string
	BaseURL string
}

type ImgBB struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewImgBB(cfg Config) *ImgBB {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &ImgBB{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		now:        time.Now,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
		DeleteURL  string `json:"delete_url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload submits the base64 payload under a time-derived name.
func (c *ImgBB) Upload(ctx context.Context, base64Data, mimeType string) Outcome {
	uploaded, err := c.upload(ctx, base64Data)
	if err == nil {
		return Outcome{Uploaded: uploaded}
	}

	logging.FromContext(ctx).LogWarnf("upload_generated_image", "image host upload failed, returning truncated preview: %v", err)
	metrics.RecordDegraded(metrics.DegradedImageHost)
	return Outcome{Degraded: &Degraded{
		Preview:           TruncatedPreview(mimeType, base64Data),
		FullImageTooLarge: true,
		Warning:           DegradedWarning,
		Reason:            err,
	}}
}

func (c *ImgBB) upload(ctx context.Context, base64Data string) (*Uploaded, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"key", c.apiKey},
		{"image", base64Data},
		{"name", fmt.Sprintf("gemini_generated_%d", c.now().UnixMilli())},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/1/upload", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(metrics.ServiceImgBB, time.Since(start), err)
		return nil, fmt.Errorf("image host request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("image host returned status %d", resp.StatusCode)
		metrics.RecordUpstreamCall(metrics.ServiceImgBB, time.Since(start), err)
		return nil, err
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RecordUpstreamCall(metrics.ServiceImgBB, time.Since(start), err)
		return nil, fmt.Errorf("decode image host response: %w", err)
	}
	if !out.Success || out.Data.URL == "" {
		msg := "image host reported failure"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		err := errors.New(msg)
		metrics.RecordUpstreamCall(metrics.ServiceImgBB, time.Since(start), err)
		return nil, err
	}

	metrics.RecordUpstreamCall(metrics.ServiceImgBB, time.Since(start), nil)
	return &Uploaded{URL: out.Data.URL, DisplayURL: out.Data.DisplayURL, DeleteURL: out.Data.DeleteURL}, nil
}

func TruncatedPreview(mimeType, base64Data string) string {
	head := base64Data
	if len(head) > PreviewChars {
		head = head[:PreviewChars]
	}
	return fmt.Sprintf("data:%s;base64,%s...", mimeType, head)
}
