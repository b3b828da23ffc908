package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("project not found")
	ErrForbidden       = errors.New("project belongs to another user")
	ErrOwnerRequired   = errors.New("owner id is required")
	ErrImageRequired   = errors.New("an image is required to create a project")
	ErrInvalidName     = errors.New("project name must not be empty")
	ErrInvalidType     = errors.New("invalid project type")
	ErrInvalidStyle    = errors.New("stylePreference must be between 0 and 100")
	ErrEmptyCommand    = errors.New("command text must not be empty")
	ErrEmptyPrompt     = errors.New("prompt must not be empty")
	ErrInvalidImageURL = errors.New("imageUrl must be an absolute http(s) URL")
	ErrPartialWrite    = errors.New("transformation recorded but project update failed")
	ErrImageUpload     = errors.New("project image could not be uploaded")
)

// PartialWriteError reports an attach whose history record was written while
// the project update that should follow it failed.
type PartialWriteError struct {
	ProjectID string
	RecordID  string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: project=%s record=%s: %v", ErrPartialWrite, e.ProjectID, e.RecordID, e.Err)
}

func (e *PartialWriteError) Unwrap() []error {
	return []error{ErrPartialWrite, e.Err}
}
