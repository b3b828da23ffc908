package service

import (
	"context"
	"errors"

	"github.com/exteriorai/exteriorai-backend/internal/auth/domain"
	"github.com/exteriorai/exteriorai-backend/internal/auth/repository"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
)

type AuthService struct {
	userRepo *repository.UserRepository
}

func NewAuthService(userRepo *repository.UserRepository) *AuthService {
	return &AuthService{
		userRepo: userRepo,
	}
}

// GetUserByFirebaseUID retrieves a user by Firebase UID
func (s *AuthService) GetUserByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return s.userRepo.GetByFirebaseUID(ctx, uid)
}

// SyncUser creates the user document on first sign-in. Later sign-ins only
// refresh lastLogin and authProvider, and fill displayName and photoURL when
// the stored value is empty.
func (s *AuthService) SyncUser(ctx context.Context, req domain.SyncUserRequest) (*domain.User, error) {
	if req.UID == "" {
		return nil, domain.ErrUIDRequired
	}

	existing, err := s.userRepo.GetByFirebaseUID(ctx, req.UID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		if err := s.userRepo.Create(ctx, req); err != nil {
			return nil, err
		}
		logging.FromContext(ctx).LogInfof("sync_user", "created user %s", req.UID)
	case err != nil:
		return nil, err
	default:
		var name, photo string
		if existing.DisplayName == "" {
			name = req.DisplayName
		}
		if existing.PhotoURL == "" {
			photo = req.PhotoURL
		}
		if err := s.userRepo.RecordLogin(ctx, req.UID, req.AuthProvider, name, photo); err != nil {
			return nil, err
		}
	}

	return s.userRepo.GetByFirebaseUID(ctx, req.UID)
}

// UpdateUser updates user information
func (s *AuthService) UpdateUser(ctx context.Context, uid string, req domain.UpdateProfileRequest) (*domain.User, error) {
	if err := s.userRepo.UpdateProfile(ctx, uid, req); err != nil {
		return nil, err
	}
	return s.userRepo.GetByFirebaseUID(ctx, uid)
}

// GetSettings returns the stored settings over the defaults.
func (s *AuthService) GetSettings(ctx context.Context, uid string) (map[string]any, error) {
	user, err := s.userRepo.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return domain.MergeSettings(domain.DefaultSettings(), user.Settings), nil
}

// UpdateSettings merges update into the stored settings and returns the
// effective result.
func (s *AuthService) UpdateSettings(ctx context.Context, uid string, update map[string]any) (map[string]any, error) {
	if update == nil {
		return nil, domain.ErrInvalidSettings
	}
	user, err := s.userRepo.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	stored := domain.MergeSettings(user.Settings, update)
	if err := s.userRepo.ReplaceSettings(ctx, uid, stored); err != nil {
		return nil, err
	}
	return domain.MergeSettings(domain.DefaultSettings(), stored), nil
}
