package objectstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxImageBytes bounds decoded image uploads.
const MaxImageBytes = 10 << 20

var (
	ErrNoImageData    = errors.New("no image data provided")
	ErrInvalidDataURI = errors.New("image data must be a base64 data URI")
	ErrNotAnImage     = errors.New("data URI does not hold an image")
	ErrImageTooLarge  = errors.New("image exceeds 10MB")
)

type DataURI struct {
	MimeType string
	Data     []byte
}

// ParseDataURI decodes "data:<mime>;base64,<payload>".
func ParseDataURI(s string) (*DataURI, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrNoImageData
	}
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidDataURI
	}

	mimeType := strings.TrimSuffix(header, ";base64")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+3 {
		return nil, ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return &DataURI{MimeType: mimeType, Data: data}, nil
}

// ValidateImage checks that s is a base64 image data URI within MaxImageBytes.
func ValidateImage(s string) (*DataURI, error) {
	d, err := ParseDataURI(s)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(d.MimeType, "image/") {
		return nil, ErrNotAnImage
	}
	if len(d.Data) == 0 {
		return nil, ErrNoImageData
	}
	if len(d.Data) > MaxImageBytes {
		return nil, ErrImageTooLarge
	}
	return d, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	}
	return ""
}
