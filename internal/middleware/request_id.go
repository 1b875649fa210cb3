package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"barnlabs/api/internal/httperr"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(httperr.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(httperr.RequestIDHeader, requestID)
		c.Writer.Header().Set(httperr.RequestIDHeader, requestID)

		c.Next()
	}
}
