package httperr

import (
	"time"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-Id"

// Stable error codes front-ends branch on.
const (
	CodeValidation      = "validation_failed"
	CodeMissingFields   = "missing_fields"
	CodeUnsupportedExt  = "unsupported_extension"
	CodeQuotaExceeded   = "quota_exceeded"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeShareExpired    = "share_expired"
	CodeNotFound        = "not_found"
	CodeRateLimited     = "rate_limited"
	CodeStorageFailure  = "storage_unavailable"
	CodeMetadataFailure = "metadata_conflict"
	CodeInternal        = "internal_error"
)

type Body struct {
	Error     string      `json:"error"`
	Code      string      `json:"code"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId"`
}

func Write(c *gin.Context, status int, code string, message string, details interface{}) {
	c.JSON(status, Body{
		Error:     message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: c.Writer.Header().Get(RequestIDHeader),
	})
}

func Abort(c *gin.Context, status int, code string, message string, details interface{}) {
	Write(c, status, code, message, details)
	c.Abort()
}
