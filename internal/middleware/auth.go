package middleware

import (
	"net/http"
	"strings"

	"github.com/Magnec/chatspace/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for claims stored in gin.Context. Constants so a typo in
// a handler fails to compile instead of silently reading nil.
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUsername = "username"
	ContextKeyIsAdmin  = "is_admin"
)

// AuthMiddleware validates the Bearer session token and stores its
// claims in the request context. Invalid or missing tokens abort with
// 401 before any handler runs.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseTokenForPurpose(parts[1], secret, auth.PurposeSession)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyIsAdmin, claims.IsAdmin)

		c.Next()
	}
}

// CSRFMiddleware enforces the anti-forgery token on mutating calls.
// The token comes from GET /v1/token, lives in the X-CSRF-Token header,
// and must belong to the same user as the session. Absence or
// invalidity is a uniform 403; clients react by refreshing the token
// once and retrying.
func CSRFMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		claims, err := auth.ParseTokenForPurpose(c.GetHeader("X-CSRF-Token"), secret, auth.PurposeCSRF)
		if err != nil || claims.UserID != GetUserID(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Next()
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetUsername(c *gin.Context) string {
	val, exists := c.Get(ContextKeyUsername)
	if !exists {
		return ""
	}
	name, ok := val.(string)
	if !ok {
		return ""
	}
	return name
}

func IsAdmin(c *gin.Context) bool {
	val, exists := c.Get(ContextKeyIsAdmin)
	if !exists {
		return false
	}
	admin, ok := val.(bool)
	if !ok {
		return false
	}
	return admin
}
