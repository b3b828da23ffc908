package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Keys set on the gin context by FirebaseAuthMiddleware and OptionalUser.
const (
	CtxFirebaseUID  = "firebase_uid"
	CtxEmail        = "email"
	CtxAuthProvider = "auth_provider"
	CtxDisplayName  = "display_name"
	CtxPhotoURL     = "photo_url"
)

// UserFirebaseUID extracts the Firebase UID from the Gin context
// This is set by FirebaseAuthMiddleware
func UserFirebaseUID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxFirebaseUID))
}
