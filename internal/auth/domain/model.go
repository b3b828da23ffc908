package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUIDRequired     = errors.New("firebase uid is required")
	ErrInvalidSettings = errors.New("settings must be an object")
)

// User is the users/{uid} document. The Firebase UID is the document id.
type User struct {
	UID          string         `json:"uid"`
	Email        string         `json:"email,omitempty"`
	DisplayName  string         `json:"displayName,omitempty"`
	PhotoURL     string         `json:"photoURL,omitempty"`
	AuthProvider string         `json:"authProvider,omitempty"`
	Settings     map[string]any `json:"settings,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastLogin    time.Time      `json:"lastLogin"`
	UpdatedAt    time.Time      `json:"updatedAt,omitempty"`
}

// SyncUserRequest carries what the identity provider knows about a user at
// sign-in.
type SyncUserRequest struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	AuthProvider string
}

// UpdateProfileRequest is a partial profile update. Nil fields are kept.
type UpdateProfileRequest struct {
	DisplayName *string
	PhotoURL    *string
}

// DefaultSettings are returned for categories a user never saved.
func DefaultSettings() map[string]any {
	return map[string]any{
		"notifications": map[string]any{
			"email":     true,
			"push":      true,
			"marketing": false,
		},
		"appearance": map[string]any{
			"theme":         "system",
			"reducedMotion": false,
		},
		"privacy": map[string]any{
			"publicProfile": true,
			"shareActivity": true,
		},
		"language": "en",
	}
}

// MergeSettings overlays update onto base category by category. Nested
// objects are merged key by key and anything else is replaced. base is not
// modified.
func MergeSettings(base, update map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		if m, ok := v.(map[string]any); ok {
			v = copyMap(m)
		}
		out[k] = v
	}
	for k, v := range update {
		in, inIsMap := v.(map[string]any)
		cur, curIsMap := out[k].(map[string]any)
		if inIsMap && curIsMap {
			for ik, iv := range in {
				cur[ik] = iv
			}
			continue
		}
		out[k] = v
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
