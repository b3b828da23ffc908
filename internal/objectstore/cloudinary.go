package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"

	"github.com/exteriorai/exteriorai-backend/internal/metrics"
)

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string

	// UploadPrefix overrides https://api.cloudinary.com when set.
	UploadPrefix string
}

type Cloudinary struct {
	cld *cloudinary.Cloudinary
	now func() time.Time
}

func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	conf, err := config.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	if cfg.UploadPrefix != "" {
		conf.API.UploadPrefix = cfg.UploadPrefix
	}
	cld, err := cloudinary.NewFromConfiguration(*conf)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, now: time.Now}, nil
}

// Upload sends the data URI as-is; Cloudinary accepts base64 data URIs as
// the file argument.
func (c *Cloudinary) Upload(ctx context.Context, dataURI, folder string) (*Result, error) {
	if dataURI == "" {
		return nil, ErrNoImageData
	}

	start := time.Now()
	resp, err := c.cld.Upload.Upload(ctx, dataURI, uploader.UploadParams{
		PublicID: objectName(c.now()),
		Folder:   cleanFolder(folder),
	})
	if err == nil && resp.Error.Message != "" {
		err = errors.New(resp.Error.Message)
	}
	metrics.RecordUpstreamCall(metrics.ServiceObjects, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}

	return &Result{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}
