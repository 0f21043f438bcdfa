package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geulsup/garden-gateway/internal/platform/logging"
)

// Upstream work runs as Perform → Verify → Commit.
//
//   1. PERFORM - call the language model
//   2. VERIFY  - parse and check what came back; never trust the raw text
//   3. COMMIT  - publish the verified value (swap the cache, return to caller)
//
// Nothing is committed unless verification passed, so an upstream hiccup
// can never leave half-written state behind.

// Stage names a step of a pipeline run.
type Stage string

const (
	StagePerform Stage = "perform"
	StageVerify  Stage = "verify"
	StageCommit  Stage = "commit"
)

// StageError wraps a failure with the stage it happened in.
// Unwrap exposes the cause so domain sentinels survive errors.Is.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// FailedStage extracts the stage from a pipeline error.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}

	return "", false
}

// Pipeline describes one upstream operation.
// P is what Perform produced, V is the verified value.
type Pipeline[P, V any] struct {
	// Name identifies the pipeline in logs.
	Name string

	Perform func(ctx context.Context) (P, error)

	Verify func(ctx context.Context, performed P) (V, error)

	// Commit is optional.
	Commit func(ctx context.Context, verified V) error
}

// Run executes p and returns the verified value.
// It logs through the context logger so request IDs follow the run.
func Run[P, V any](ctx context.Context, p Pipeline[P, V]) (V, error) {
	var zero V

	logger := logging.FromContext(ctx).With(slog.String("pipeline", p.Name))
	start := time.Now()

	logger.DebugContext(ctx, "performing")

	performed, err := p.Perform(ctx)
	if err != nil {
		logger.WarnContext(ctx, "perform failed", slog.Any("error", err))

		return zero, &StageError{Stage: StagePerform, Cause: err}
	}

	verified, err := p.Verify(ctx, performed)
	if err != nil {
		logger.WarnContext(ctx, "verification failed", slog.Any("error", err))

		return zero, &StageError{Stage: StageVerify, Cause: err}
	}

	if p.Commit != nil {
		if err := p.Commit(ctx, verified); err != nil {
			logger.ErrorContext(ctx, "commit failed", slog.Any("error", err))

			return zero, &StageError{Stage: StageCommit, Cause: err}
		}
	}

	logger.DebugContext(ctx, "pipeline completed", slog.Duration("duration", time.Since(start)))

	return verified, nil
}
