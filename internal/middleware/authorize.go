package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
	"barnlabs/api/internal/models"
)

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, exists := c.Get(ContextUser)
		if !exists {
			httperr.Abort(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
			return
		}
		user, ok := userVal.(models.User)
		if !ok {
			httperr.Abort(c, http.StatusUnauthorized, httperr.CodeUnauthorized, "unauthorized", nil)
			return
		}

		if !user.IsAdmin {
			httperr.Abort(c, http.StatusForbidden, httperr.CodeForbidden, "admin role required", nil)
			return
		}

		c.Next()
	}
}
