package dto

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
)

// Client-facing messages for upstream failures. The underlying reason is
// logged, never returned.
const (
	MessageUnavailable = "the language model is temporarily unavailable"
	MessageBadGateway  = "the language model returned an unusable response"
	MessageTimeout     = "the request timed out"
	MessageRateLimited = "too many requests, slow down"
)

// GetTraceID returns the identifier that ties an error response to its logs.
// A "trace_id" set on the gin.Context wins, then the active span, then the
// request ID (as set by the middleware, or the inbound X-Request-ID header).
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get("trace_id"); ok {
		id, _ := v.(string)
		return id
	}

	if c.Request == nil {
		return ""
	}

	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	if id := c.GetString("request_id"); id != "" {
		return id
	}

	return c.Request.Header.Get("X-Request-ID")
}

// FromError maps an error to a status code and error envelope.
func FromError(err error) (int, *ErrorResponse) {
	var (
		code    string
		message string
	)

	switch {
	case domain.IsValidation(err):
		resp := NewErrorResponse(ErrorCodeValidation, err.Error())

		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) && validationErr.Field != "" {
			resp.Error.Details = map[string]string{validationErr.Field: validationErr.Message}
		}

		return HTTPStatusFromCode(ErrorCodeValidation), resp

	case domain.IsRateLimited(err):
		code, message = ErrorCodeRateLimited, MessageRateLimited

	case domain.IsMalformedOutput(err), domain.IsEmptyGeneration(err):
		code, message = ErrorCodeBadGateway, MessageBadGateway

	case domain.IsUnavailable(err):
		code, message = ErrorCodeUnavailable, MessageUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		code, message = ErrorCodeTimeout, MessageTimeout

	default:
		code, message = ErrorCodeInternal, MessageInternal
	}

	return HTTPStatusFromCode(code), NewErrorResponse(code, message)
}

// HandleError writes the envelope for err and logs anything that is not the
// client's fault.
func HandleError(c *gin.Context, err error) {
	status, resp := FromError(err)
	resp.TraceID = GetTraceID(c)

	if status >= 500 {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "request failed",
			slog.String("code", resp.Error.Code),
			slog.String("trace_id", resp.TraceID),
			slog.Any("error", err),
		)
	}

	c.AbortWithStatusJSON(status, resp)
}
