package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	authctx "github.com/exteriorai/exteriorai-backend/internal/auth"
	"github.com/exteriorai/exteriorai-backend/internal/auth/domain"
	"github.com/exteriorai/exteriorai-backend/internal/logging"
)

// GetProfile returns the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	firebaseUID := authctx.UserFirebaseUID(c)
	if firebaseUID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	user, err := h.authService.GetUserByFirebaseUID(c.Request.Context(), firebaseUID)
	if err != nil {
		writeUserError(c, "get_profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SyncUser records a sign-in. It is called by the client after every
// Firebase authentication. The optional body fills fields the token lacks.
func (h *Handler) SyncUser(c *gin.Context) {
	firebaseUID := authctx.UserFirebaseUID(c)
	if firebaseUID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var body syncUserReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body", "details": err.Error()})
			return
		}
	}

	// token claims win over the body
	req := domain.SyncUserRequest{
		UID:          firebaseUID,
		Email:        firstNonEmpty(c.GetString(authctx.CtxEmail), body.Email),
		DisplayName:  firstNonEmpty(c.GetString(authctx.CtxDisplayName), body.DisplayName),
		PhotoURL:     firstNonEmpty(c.GetString(authctx.CtxPhotoURL), body.PhotoURL),
		AuthProvider: firstNonEmpty(c.GetString(authctx.CtxAuthProvider), "unknown"),
	}

	user, err := h.authService.SyncUser(c.Request.Context(), req)
	if err != nil {
		writeUserError(c, "sync_user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile updates the user's profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	firebaseUID := authctx.UserFirebaseUID(c)
	if firebaseUID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.authService.UpdateUser(c.Request.Context(), firebaseUID, domain.UpdateProfileRequest{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		writeUserError(c, "update_profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *Handler) GetSettings(c *gin.Context) {
	firebaseUID := authctx.UserFirebaseUID(c)
	if firebaseUID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	settings, err := h.authService.GetSettings(c.Request.Context(), firebaseUID)
	if err != nil {
		writeUserError(c, "get_settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	firebaseUID := authctx.UserFirebaseUID(c)
	if firebaseUID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req updateSettingsReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Settings == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	settings, err := h.authService.UpdateSettings(c.Request.Context(), firebaseUID, req.Settings)
	if err != nil {
		writeUserError(c, "update_settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func writeUserError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, domain.ErrInvalidSettings), errors.Is(err, domain.ErrUIDRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).LogError(operation, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + operationVerb(operation)})
	}
}

func operationVerb(operation string) string {
	switch operation {
	case "sync_user":
		return "sync user"
	case "update_profile":
		return "update user"
	case "get_settings":
		return "load settings"
	case "update_settings":
		return "save settings"
	}
	return "load user"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
