package app

import (
	"context"

	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/ports"
)

// MeteredCompletionClient counts every completion by operation and outcome.
type MeteredCompletionClient struct {
	next    ports.CompletionClient
	metrics ports.MetricsRecorder
}

// NewMeteredCompletionClient wraps next.
func NewMeteredCompletionClient(next ports.CompletionClient, metrics ports.MetricsRecorder) *MeteredCompletionClient {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &MeteredCompletionClient{next: next, metrics: metrics}
}

// Complete implements ports.CompletionClient.
func (m *MeteredCompletionClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	out, err := m.next.Complete(ctx, req)

	result := "success"
	switch {
	case err == nil:
	case domain.IsUnavailable(err):
		result = "unavailable"
	default:
		result = "error"
	}

	m.metrics.Completion(req.Operation, result)

	return out, err
}
