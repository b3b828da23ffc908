package domain

import (
	"strings"
	"time"
)

type ProjectType string

const (
	TypeBackyard  ProjectType = "backyard"
	TypeFrontyard ProjectType = "frontyard"
	TypeGarden    ProjectType = "garden"
	TypePatio     ProjectType = "patio"
	TypeHouse     ProjectType = "house"
	TypeLandscape ProjectType = "landscape"
	TypeOther     ProjectType = "other"
)

var projectTypes = map[ProjectType]struct{}{
	TypeBackyard:  {},
	TypeFrontyard: {},
	TypeGarden:    {},
	TypePatio:     {},
	TypeHouse:     {},
	TypeLandscape: {},
	TypeOther:     {},
}

// ParseProjectType accepts the closed set of types. An empty value is "other".
func ParseProjectType(s string) (ProjectType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeOther, nil
	}
	t := ProjectType(s)
	if _, ok := projectTypes[t]; !ok {
		return "", ErrInvalidType
	}
	return t, nil
}

type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

const (
	DefaultStylePreference = 50
	MinStylePreference     = 0
	MaxStylePreference     = 100
)

// Project is a user's outdoor space and its current representative image.
type Project struct {
	ID              string      `json:"id"`
	OwnerID         string      `json:"userId"`
	Name            string      `json:"name"`
	Type            ProjectType `json:"type"`
	Status          Status      `json:"status"`
	StylePreference int         `json:"stylePreference"`
	Transformations int         `json:"transformations"`
	Thumbnail       string      `json:"thumbnail,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// NewProject carries the fields set when a project document is created.
type NewProject struct {
	OwnerID         string
	Name            string
	Type            ProjectType
	Status          Status
	StylePreference int
	Thumbnail       string
}

// ProjectUpdate is a partial update. Nil fields are left untouched.
type ProjectUpdate struct {
	Name            *string
	Type            *ProjectType
	Status          *Status
	StylePreference *int
	Transformations *int
	Thumbnail       *string
}

func (u ProjectUpdate) Empty() bool {
	return u.Name == nil && u.Type == nil && u.Status == nil &&
		u.StylePreference == nil && u.Transformations == nil && u.Thumbnail == nil
}

// TransformationRecord is one generated image attached to a project. Records
// are never mutated once written.
type TransformationRecord struct {
	ID               string    `json:"id"`
	ImageURL         string    `json:"imageUrl"`
	PreviousImageURL string    `json:"previousImageUrl,omitempty"`
	Prompt           string    `json:"prompt,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type NewTransformation struct {
	ImageURL         string
	PreviousImageURL string
	Prompt           string
}

type ActivityLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Action      string    `json:"action"`
	ProjectID   string    `json:"projectId,omitempty"`
	ProjectName string    `json:"projectName,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

func ValidateStylePreference(v int) error {
	if v < MinStylePreference || v > MaxStylePreference {
		return ErrInvalidStyle
	}
	return nil
}
