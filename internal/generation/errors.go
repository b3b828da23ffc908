package generation

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrompt       = errors.New("no prompt provided")
	ErrNoImageGenerated  = errors.New("no image was generated")
	ErrMalformedResponse = errors.New("malformed response from generation service")
	ErrMissingAPIKey     = errors.New("generation service API key is not configured")
)

// ServiceError is a non-2xx reply from the generation service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("generation service returned status %d", e.StatusCode)
}
