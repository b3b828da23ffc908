// Package pipeline sequences one generation: the generative model produces an
// image, then the image host publishes it. Each step runs once and only after
// the previous one has returned.
package pipeline

import (
	"context"

	"github.com/exteriorai/exteriorai-backend/internal/generation"
	"github.com/exteriorai/exteriorai-backend/internal/imagehost"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
)

type Generator interface {
	Generate(ctx context.Context, prompt, originalImageURL string) (*generation.Result, error)
}

type Host interface {
	Upload(ctx context.Context, base64Data, mimeType string) imagehost.Outcome
}

// Outcome is a generated image after hosting. When Degraded is set, ImageURL
// is a truncated data URI that must not be rendered or stored.
type Outcome struct {
	ImageURL          string
	DisplayURL        string
	DeleteURL         string
	Caption           string
	Degraded          bool
	FullImageTooLarge bool
	Warning           string
	Reference         generation.Reference
}

type Pipeline struct {
	gen  Generator
	host Host
}

func New(gen Generator, host Host) *Pipeline {
	return &Pipeline{gen: gen, host: host}
}

// Run returns generation errors unchanged. A hosting failure is not an error:
// it yields a degraded Outcome.
func (p *Pipeline) Run(ctx context.Context, prompt, originalImageURL string) (*Outcome, error) {
	log := logging.FromContext(ctx)

	res, err := p.gen.Generate(ctx, prompt, originalImageURL)
	if err != nil {
		return nil, err
	}
	if res.Reference.Source == generation.ReferenceDropped {
		log.LogWarnf("generate_image", "reference image dropped, generated from text only: %v", res.Reference.Reason)
	}

	hosted := p.host.Upload(ctx, res.ImageData, res.MimeType)
	out := &Outcome{Caption: res.Caption, Reference: res.Reference}
	if hosted.IsDegraded() {
		out.ImageURL = hosted.Degraded.Preview
		out.Degraded = true
		out.FullImageTooLarge = hosted.Degraded.FullImageTooLarge
		out.Warning = hosted.Degraded.Warning
		return out, nil
	}

	out.ImageURL = hosted.Uploaded.URL
	out.DisplayURL = hosted.Uploaded.DisplayURL
	out.DeleteURL = hosted.Uploaded.DeleteURL
	log.LogInfo("generate_image", "generated image hosted")
	return out, nil
}
