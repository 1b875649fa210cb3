package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
	"barnlabs/api/internal/models"
	"barnlabs/api/internal/security"
)

const (
	ContextUser   = "current_user"
	ContextClaims = "access_claims"
)

// UserLoader resolves the user a verified credential identifies.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// Auth verifies the bearer credential against the ordered candidate secrets
// and loads the requester. The candidate list is resolved once at startup;
// both halves of a rotation pair stay valid until the old secret is removed
// from configuration.
func Auth(secrets []string, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			httperr.Abort(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "missing bearer token", nil)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, secrets)
		if err != nil {
			httperr.Abort(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "invalid token", nil)
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			httperr.Abort(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unknown user", nil)
			return
		}

		c.Set(ContextClaims, *claims)
		c.Set(ContextUser, user)

		c.Next()
	}
}
