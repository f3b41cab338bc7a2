package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skills-backend/internal/shared/auth"
	"skills-backend/internal/shared/server/respond"
)

const (
	accountIDKey    = "accountId"
	accountEmailKey = "accountEmail"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth requires a valid bearer token and stores the account identity in context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" || verifier == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(accountIDKey, claims.AccountID)
		if claims.Email != "" {
			c.Set(accountEmailKey, claims.Email)
		}
		c.Next()
	}
}

// AccountIDFromContext fetches the account ID set by the auth middleware.
func AccountIDFromContext(c *gin.Context) int64 {
	if c == nil {
		return 0
	}
	val, _ := c.Get(accountIDKey)
	if id, ok := val.(int64); ok {
		return id
	}
	return 0
}

// AccountEmailFromContext fetches the account email set by the auth middleware.
func AccountEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(accountEmailKey)
}
