// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, so the application layer
// depends on abstractions rather than concrete clients.
//
// Port Design Principles:
//   - Context as first parameter for cancellation and deadlines
//   - Return domain types, never external DTOs
//   - Error returns use domain error types (ErrUnavailable, ...)
package ports

import (
	"context"
	"time"

	"github.com/geulsup/garden-gateway/internal/domain"
)

// CompletionClient sends one prompt to the upstream language model and
// returns the text of its first choice.
//
// Every failure (network error, non-2xx, timeout, empty choice list, open
// circuit) is reported as domain.ErrUnavailable, so callers can handle the
// upstream as a single failure kind.
type CompletionClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Clock abstracts wall-clock time so day boundaries can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// MetricsRecorder receives business counters from the application layer.
type MetricsRecorder interface {
	// QuoteRefresh counts one refresh attempt by outcome
	// ("success", "unavailable", "empty").
	QuoteRefresh(result string)

	// QuoteServed counts one quote handed to a client.
	QuoteServed()

	// Completion counts one upstream completion by operation and outcome.
	Completion(operation, result string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) QuoteRefresh(string)       {}
func (NopMetrics) QuoteServed()              {}
func (NopMetrics) Completion(string, string) {}
