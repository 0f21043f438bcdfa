package acl

import (
	"context"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/geulsup/garden-gateway/internal/adapters/clients"
	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
)

const (
	// ServiceName identifies the provider in errors, health checks and logs.
	ServiceName = "openai"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"
)

// OpenAIClientConfig contains configuration for the OpenAI adapter.
type OpenAIClientConfig struct {
	// Client is the instrumented transport every SDK request goes through.
	Client *clients.Client

	APIKey string

	// BaseURL overrides the API root, e.g. for a proxy or a test server.
	BaseURL string

	Model string

	Logger *slog.Logger
}

// OpenAIClient implements ports.CompletionClient and ports.HealthChecker
// on top of the go-openai SDK.
type OpenAIClient struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates the adapter. Panics if Client is nil.
func NewOpenAIClient(cfg OpenAIClientConfig) *OpenAIClient {
	if cfg.Client == nil {
		panic("OpenAIClient: Client is required")
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	sdkCfg.HTTPClient = cfg.Client.HTTPClient()

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIClient{
		api:    openai.NewClientWithConfig(sdkCfg),
		model:  model,
		logger: logger.With(slog.String("component", "acl.OpenAIClient")),
	}
}

// Complete sends one chat completion and returns the first choice's text.
func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.chatRequest(req))
	if err != nil {
		mapped := MapError(err, ServiceName)
		logging.FromContext(ctx).WarnContext(ctx, "chat completion failed",
			slog.String("operation", req.Operation),
			slog.String("model", c.model),
			slog.Any("error", mapped),
		)

		return "", mapped
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewUnavailableError(ServiceName, "reply has no choices")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", domain.NewUnavailableError(ServiceName, "reply content is empty")
	}

	logging.FromContext(ctx).DebugContext(ctx, "chat completion done",
		slog.String("operation", req.Operation),
		slog.String("model", resp.Model),
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return content, nil
}

// chatRequest translates a completion request into the SDK's shape. The
// user message is omitted when empty.
func (c *OpenAIClient) chatRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.System},
	}

	if req.User != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.User,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
	}

	if req.JSON {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return out
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Name returns the health check name for this client.
// Implements ports.HealthChecker.
func (c *OpenAIClient) Name() string {
	return ServiceName
}

// Check lists the provider's models, which verifies reachability and the
// API key without spending tokens.
// Implements ports.HealthChecker.
func (c *OpenAIClient) Check(ctx context.Context) error {
	_, err := c.api.ListModels(ctx)
	return MapError(err, ServiceName)
}
