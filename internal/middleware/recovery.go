package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"barnlabs/api/internal/httperr"
)

func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", c.Writer.Header().Get(httperr.RequestIDHeader)).
					Msg("panic recovered")
				httperr.Abort(c, http.StatusInternalServerError, httperr.CodeInternal, "internal server error", nil)
			}
		}()
		c.Next()
	}
}
