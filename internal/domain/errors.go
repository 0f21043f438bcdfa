// Package domain contains the garden's business types and errors.
// Domain errors describe business-level failures, not HTTP errors;
// adapters map them to transport status codes.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrValidation indicates a request failed business validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates the completion upstream could not be reached
	// or answered with a failure (network error, non-2xx, timeout).
	ErrUnavailable = errors.New("unavailable")

	// ErrMalformedOutput indicates the upstream answered, but not in the
	// shape the garden needs (invalid JSON, missing fields).
	ErrMalformedOutput = errors.New("malformed upstream output")

	// ErrEmptyGeneration indicates a generation parsed to zero usable lines.
	ErrEmptyGeneration = errors.New("empty generation")

	// ErrRateLimited indicates the caller exceeded the request budget.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError provides context for validation errors.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}

	return "validation failed: " + e.Message
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error with context.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UnavailableError provides context for upstream failures.
type UnavailableError struct {
	Service string
	Reason  string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("service %q unavailable: %s", e.Service, e.Reason)
	}

	return fmt.Sprintf("service %q unavailable", e.Service)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *UnavailableError) Unwrap() error {
	return ErrUnavailable
}

// NewUnavailableError creates an unavailable error with context.
func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

// MalformedOutputError records which operation got an unusable reply.
type MalformedOutputError struct {
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: malformed upstream output: %s", e.Operation, e.Reason)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *MalformedOutputError) Unwrap() error {
	return ErrMalformedOutput
}

// NewMalformedOutputError creates a malformed output error.
func NewMalformedOutputError(operation, reason string) error {
	return &MalformedOutputError{Operation: operation, Reason: reason}
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable checks if an error is an unavailable error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsMalformedOutput checks if an error is a malformed output error.
func IsMalformedOutput(err error) bool {
	return errors.Is(err, ErrMalformedOutput)
}

// IsEmptyGeneration checks if an error is an empty generation error.
func IsEmptyGeneration(err error) bool {
	return errors.Is(err, ErrEmptyGeneration)
}

// IsRateLimited checks if an error is a rate limit error.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
