// Package objectstore stores user-supplied images and returns a URL for them.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("object storage is not configured")

type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Uploader stores a data-URI image under folder.
type Uploader interface {
	Upload(ctx context.Context, dataURI, folder string) (*Result, error)
}

// Unconfigured fails every upload. It stands in when credentials are absent
// so the process still starts.
type Unconfigured struct {
	Driver string
}

func (u Unconfigured) Upload(ctx context.Context, dataURI, folder string) (*Result, error) {
	return nil, fmt.Errorf("%w: %s credentials missing", ErrNotConfigured, u.Driver)
}

// objectName builds "{unix seconds}_{6 random chars}", the leaf name every
// driver uses.
func objectName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%d_%s", now.Unix(), suffix)
}

func cleanFolder(folder string) string {
	return strings.Trim(strings.TrimSpace(folder), "/")
}
