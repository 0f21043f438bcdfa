package acl

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/geulsup/garden-gateway/internal/adapters/clients"
	"github.com/geulsup/garden-gateway/internal/domain"
)

// MapError translates a provider or transport failure into a domain error.
// Domain errors pass through unchanged; everything else becomes
// domain.ErrUnavailable with a short reason.
func MapError(err error, serviceName string) error {
	if err == nil {
		return nil
	}

	if domain.IsUnavailable(err) || domain.IsValidation(err) {
		return err
	}

	return domain.NewUnavailableError(serviceName, reason(err))
}

func reason(err error) string {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
	)

	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return "circuit breaker open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case errors.As(err, &apiErr):
		return statusReason(apiErr.HTTPStatusCode, apiErr.Message)
	case errors.As(err, &reqErr):
		return statusReason(reqErr.HTTPStatusCode, "")
	default:
		return err.Error()
	}
}

func statusReason(status int, message string) string {
	label := fmt.Sprintf("status %d", status)

	switch status {
	case http.StatusUnauthorized:
		label += " (check the API key)"
	case http.StatusTooManyRequests:
		label += " (rate limited by provider)"
	}

	if message != "" {
		label += ": " + message
	}

	return label
}
