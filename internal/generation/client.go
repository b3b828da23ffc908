// Package generation calls the generative-image service and extracts the
// produced image and caption.
package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/metrics"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash-exp-image-generation"

	// EnhancementSuffix is appended to every prompt before it is sent.
	EnhancementSuffix = " make it look ultra realistic as well while keeping the unchangeable natural features"

	// ReferenceMimeType is declared for every reference image whatever its
	// real encoding.
	ReferenceMimeType = "image/jpeg"

	GenerateTimeout       = 2 * time.Minute
	ReferenceFetchTimeout = 20 * time.Second

	maxReferenceBytes = 20 << 20
	maxResponseBytes  = 64 << 20
	maxErrorBodyBytes = 64 << 10
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client handles communication with the generation service
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	fetchClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		httpClient:  &http.Client{Timeout: GenerateTimeout},
		fetchClient: &http.Client{Timeout: ReferenceFetchTimeout},
	}
}

// ReferenceSource says where the reference image in a request came from.
type ReferenceSource string

const (
	ReferenceNone    ReferenceSource = "none"
	ReferenceFetched ReferenceSource = "fetched"
	ReferenceInline  ReferenceSource = "inline"
	// ReferenceDropped means a reference was supplied but could not be used;
	// the request went out text-only.
	ReferenceDropped ReferenceSource = "dropped"
)

type Reference struct {
	Source ReferenceSource
	Reason error
}

type Result struct {
	// ImageData is the base64 payload of the last image part.
	ImageData string
	MimeType  string
	// Caption is the last text part, possibly empty.
	Caption   string
	Reference Reference
}

func EnhancePrompt(prompt string) string {
	return prompt + EnhancementSuffix
}

// Generate sends prompt, plus the reference image when one can be obtained,
// and returns the generated image. originalImageURL may be an http(s) URL, a
// data URI, or empty.
func (c *Client) Generate(ctx context.Context, prompt, originalImageURL string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	logger := logging.FromContext(ctx)

	data, ref := c.resolveReference(ctx, originalImageURL)
	if ref.Source == ReferenceDropped {
		logger.LogWarnf("generate_image", "reference image unusable, sending text-only request: %v", ref.Reason)
		metrics.RecordDegraded(metrics.DegradedReferenceImage)
	}

	body, err := json.Marshal(buildRequest(EnhancePrompt(prompt), data))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(metrics.ServiceGemini, time.Since(start), err)
		logger.LogError("generate_image", err)
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		svcErr := &ServiceError{StatusCode: resp.StatusCode, Body: string(raw)}
		metrics.RecordUpstreamCall(metrics.ServiceGemini, time.Since(start), svcErr)
		logger.LogWarnf("generate_image", "generation service returned status %d", resp.StatusCode)
		return nil, svcErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	metrics.RecordUpstreamCall(metrics.ServiceGemini, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	result, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}
	result.Reference = ref
	return result, nil
}

func buildRequest(enhancedPrompt, referenceData string) generateRequest {
	parts := make([]part, 0, 2)
	if referenceData != "" {
		parts = append(parts, part{InlineData: &inlineData{MimeType: ReferenceMimeType, Data: referenceData}})
	}
	parts = append(parts, part{Text: enhancedPrompt})

	return generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"image", "text"},
			ResponseMimeType:   "text/plain",
		},
	}
}

var (
	errUnsupportedReference = errors.New("reference is neither an http(s) URL nor a data URI")
	errEmptyDataURI         = errors.New("data URI has no payload")
	errReferenceTooLarge    = errors.New("reference image exceeds size limit")
)

// resolveReference returns the base64 payload to embed, or "" with the
// reason the reference was dropped. It never fails the request.
func (c *Client) resolveReference(ctx context.Context, ref string) (string, Reference) {
	if ref == "" {
		return "", Reference{Source: ReferenceNone}
	}

	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		data, err := c.fetchReference(ctx, ref)
		if err != nil {
			return "", Reference{Source: ReferenceDropped, Reason: err}
		}
		return data, Reference{Source: ReferenceFetched}

	case strings.HasPrefix(lower, "data:"):
		_, payload, ok := strings.Cut(ref, ",")
		if !ok || payload == "" {
			return "", Reference{Source: ReferenceDropped, Reason: errEmptyDataURI}
		}
		return payload, Reference{Source: ReferenceInline}
	}

	return "", Reference{Source: ReferenceDropped, Reason: errUnsupportedReference}
}

func (c *Client) fetchReference(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("create reference request: %w", err)
	}

	resp, err := c.fetchClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(metrics.ServiceReference, time.Since(start), err)
		return "", fmt.Errorf("fetch reference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("fetch reference: status %d", resp.StatusCode)
		metrics.RecordUpstreamCall(metrics.ServiceReference, time.Since(start), err)
		return "", err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes+1))
	metrics.RecordUpstreamCall(metrics.ServiceReference, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("read reference: %w", err)
	}
	if len(raw) > maxReferenceBytes {
		return "", errReferenceTooLarge
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// parseResponse scans the parts of the first candidate. The last text part
// wins as caption and the last image part wins as the image.
func parseResponse(raw []byte) (*Result, error) {
	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoImageGenerated
	}

	result := &Result{}
	for i, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			result.Caption = p.Text
		}
		if p.InlineData == nil {
			continue
		}
		if p.InlineData.MimeType == "" || p.InlineData.Data == "" {
			return nil, fmt.Errorf("%w: part %d has incomplete inline data", ErrMalformedResponse, i)
		}
		if strings.HasPrefix(p.InlineData.MimeType, "image/") {
			result.ImageData = p.InlineData.Data
			result.MimeType = p.InlineData.MimeType
		}
	}

	if result.ImageData == "" {
		return nil, ErrNoImageGenerated
	}
	return result, nil
}
