package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geulsup/garden-gateway/internal/platform/logging"
)

const (
	// HeaderRequestID identifies a single inbound request.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID follows a client action across services.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyRequestID is the gin.Context key for the request ID.
	ContextKeyRequestID = "request_id"

	// ContextKeyCorrelationID is the gin.Context key for the correlation ID.
	ContextKeyCorrelationID = "correlation_id"

	// maxInboundIDLength caps client-supplied IDs before they reach logs
	// and upstream headers.
	maxInboundIDLength = 128
)

type idSpec struct {
	header string
	key    string
	// enrich stores the ID on the request context for loggers and clients.
	enrich func(ctx context.Context, id string) context.Context
}

// RequestID reuses a well-formed X-Request-ID or generates a UUID, then
// exposes it on the gin.Context, the response headers, the context logger
// and the request context for upstream propagation.
func RequestID() gin.HandlerFunc {
	return idMiddleware(idSpec{
		header: HeaderRequestID,
		key:    ContextKeyRequestID,
		enrich: func(ctx context.Context, id string) context.Context {
			return ContextWithRequestID(logging.WithRequestID(ctx, id), id)
		},
	})
}

// CorrelationID does the same for X-Correlation-ID.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(idSpec{
		header: HeaderCorrelationID,
		key:    ContextKeyCorrelationID,
		enrich: func(ctx context.Context, id string) context.Context {
			return ContextWithCorrelationID(logging.WithCorrelationID(ctx, id), id)
		},
	})
}

func idMiddleware(def idSpec) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(def.header)
		if !validInboundID(id) {
			id = uuid.NewString()
		}

		c.Set(def.key, id)
		c.Header(def.header, id)
		c.Request = c.Request.WithContext(def.enrich(c.Request.Context(), id))

		c.Next()
	}
}

// validInboundID accepts short IDs made of visible ASCII.
func validInboundID(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}

	return true
}

// GetRequestID returns the request ID, or "" outside the middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetCorrelationID returns the correlation ID, or "" outside the middleware.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}
