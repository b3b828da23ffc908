package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exteriorai/exteriorai-backend/internal/auth/domain"
	"github.com/exteriorai/exteriorai-backend/internal/store"
)

const usersCollection = "users"

const (
	fieldUID          = "uid"
	fieldEmail        = "email"
	fieldDisplayName  = "displayName"
	fieldPhotoURL     = "photoURL"
	fieldAuthProvider = "authProvider"
	fieldSettings     = "settings"
	fieldCreatedAt    = "createdAt"
	fieldLastLogin    = "lastLogin"
	fieldUpdatedAt    = "updatedAt"
)

type UserRepository struct {
	store store.DocumentStore
}

func NewUserRepository(s store.DocumentStore) *UserRepository {
	return &UserRepository{store: s}
}

// GetByFirebaseUID retrieves a user by their Firebase UID
func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	doc, err := r.store.Get(ctx, usersCollection, uid)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u := userFromDoc(*doc)
	return &u, nil
}

// Create writes a new user document stamped with createdAt and lastLogin.
func (r *UserRepository) Create(ctx context.Context, req domain.SyncUserRequest) error {
	data := map[string]any{
		fieldUID:          req.UID,
		fieldEmail:        req.Email,
		fieldDisplayName:  req.DisplayName,
		fieldPhotoURL:     req.PhotoURL,
		fieldAuthProvider: req.AuthProvider,
		fieldCreatedAt:    store.ServerTimestamp,
		fieldLastLogin:    store.ServerTimestamp,
	}
	if err := r.store.Set(ctx, usersCollection, req.UID, data, false); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// RecordLogin merges lastLogin and authProvider, plus whichever of
// displayName and photoURL are given.
func (r *UserRepository) RecordLogin(ctx context.Context, uid, authProvider, displayName, photoURL string) error {
	data := map[string]any{
		fieldLastLogin:    store.ServerTimestamp,
		fieldAuthProvider: authProvider,
	}
	if displayName != "" {
		data[fieldDisplayName] = displayName
	}
	if photoURL != "" {
		data[fieldPhotoURL] = photoURL
	}
	if err := r.store.Set(ctx, usersCollection, uid, data, true); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, uid string, req domain.UpdateProfileRequest) error {
	fields := map[string]any{fieldUpdatedAt: store.ServerTimestamp}
	if req.DisplayName != nil {
		fields[fieldDisplayName] = *req.DisplayName
	}
	if req.PhotoURL != nil {
		fields[fieldPhotoURL] = *req.PhotoURL
	}
	return r.update(ctx, uid, fields)
}

// ReplaceSettings writes the whole settings object.
func (r *UserRepository) ReplaceSettings(ctx context.Context, uid string, settings map[string]any) error {
	return r.update(ctx, uid, map[string]any{
		fieldSettings:  settings,
		fieldUpdatedAt: store.ServerTimestamp,
	})
}

func (r *UserRepository) update(ctx context.Context, uid string, fields map[string]any) error {
	err := r.store.Update(ctx, usersCollection, uid, fields)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func userFromDoc(doc store.Document) domain.User {
	d := doc.Data
	u := domain.User{
		UID:          doc.ID,
		Email:        asString(d[fieldEmail]),
		DisplayName:  asString(d[fieldDisplayName]),
		PhotoURL:     asString(d[fieldPhotoURL]),
		AuthProvider: asString(d[fieldAuthProvider]),
		CreatedAt:    asTime(d[fieldCreatedAt]),
		LastLogin:    asTime(d[fieldLastLogin]),
		UpdatedAt:    asTime(d[fieldUpdatedAt]),
	}
	if s, ok := d[fieldSettings].(map[string]any); ok {
		u.Settings = s
	}
	return u
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
