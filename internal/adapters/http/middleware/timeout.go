package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
)

// SimpleTimeout puts a deadline on the request context. Handlers and the
// completion client observe it; nothing is aborted from the outside.
func SimpleTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// BodyLimit caps request bodies at limit bytes. A declared length over the
// cap is rejected up front; a chunked body fails JSON binding once it reads
// past the cap, which the handlers report as a 413.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.Header("Connection", "close")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, payloadTooLarge(c))

			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func payloadTooLarge(c *gin.Context) *dto.ErrorResponse {
	return dto.NewErrorResponse(dto.ErrorCodePayloadTooLarge, "request body is too large").
		WithTraceID(dto.GetTraceID(c))
}
