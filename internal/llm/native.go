package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// NewNativeClient builds an SDK-backed native client for the configured
// base URL, or nil when no credential is present. A nil return degrades the
// cascade to direct transport, it is not an error.
func NewNativeClient(cfg Config, logger *slog.Logger) any {
	if cfg.APIKey == "" {
		return nil
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.Contains(base, "anthropic") {
		return NewAnthropicNativeClient(cfg, base, logger)
	}
	return NewGrokNativeClient(cfg, base, logger)
}

// GrokNativeClient adapts the openai-go SDK to the native capability
// surface for xAI-compatible deployments. It offers companion chat on the
// Responses API and generic chat on chat completions; the cascade probes
// them in that order.
type GrokNativeClient struct {
	client    openai.Client
	model     string
	available bool
	logger    *slog.Logger
}

func NewGrokNativeClient(cfg Config, base string, logger *slog.Logger) *GrokNativeClient {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	// The SDK joins request paths onto the base, so the version prefix
	// belongs here, not in the paths.
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return &GrokNativeClient{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(base),
		),
		model:     model,
		available: cfg.APIKey != "",
		logger:    logger,
	}
}

func (g *GrokNativeClient) Available() bool {
	return g.available
}

// CompanionChat drives the Responses API with stateful response chaining.
func (g *GrokNativeClient) CompanionChat(ctx context.Context, userMessage, rollingContext, previousResponseID string) (*CanonicalResult, error) {
	items := responses.ResponseInputParam{
		responses.ResponseInputItemParamOfMessage(userMessage, responses.EasyInputMessageRoleUser),
	}
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(g.model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	instructions := "You are Kora, an AI companion powered by Grok."
	if rollingContext != "" {
		instructions = "You are Kora, an AI companion. Context: " + rollingContext
	}
	params.Instructions = openai.String(instructions)
	if previousResponseID != "" {
		params.PreviousResponseID = openai.String(previousResponseID)
	}

	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		return nil, err
	}
	text := responsesOutputText(resp)
	if text == "" {
		return nil, fmt.Errorf("empty output from responses API")
	}
	return &CanonicalResult{Success: true, ResponseText: text, ResponseID: resp.ID}, nil
}

// Chat drives plain chat completions for deployments without the Responses
// API.
func (g *GrokNativeClient) Chat(ctx context.Context, req *InvocationRequest) (*CanonicalResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemOrDefault(req.RollingContext)),
			openai.UserMessage(req.UserMessage),
		},
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in chat completion")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, fmt.Errorf("empty chat completion")
	}
	return &CanonicalResult{Success: true, ResponseText: text, ResponseID: resp.ID}, nil
}

func responsesOutputText(resp *responses.Response) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type != "output_text" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return sb.String()
}

// AnthropicNativeClient adapts the anthropic-sdk-go Messages API for
// Anthropic-compatible deployments.
type AnthropicNativeClient struct {
	client    anthropic.Client
	model     string
	available bool
	logger    *slog.Logger
}

func NewAnthropicNativeClient(cfg Config, base string, logger *slog.Logger) *AnthropicNativeClient {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicNativeClient{
		client: anthropic.NewClient(
			aoption.WithAPIKey(cfg.APIKey),
			aoption.WithBaseURL(base),
		),
		model:     model,
		available: cfg.APIKey != "",
		logger:    logger,
	}
}

func (a *AnthropicNativeClient) Available() bool {
	return a.available
}

func (a *AnthropicNativeClient) Chat(ctx context.Context, req *InvocationRequest) (*CanonicalResult, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserMessage)),
		},
	}
	params.System = []anthropic.TextBlockParam{
		{Text: systemOrDefault(req.RollingContext)},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	var text string
	for _, block := range resp.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty message response")
	}
	return &CanonicalResult{Success: true, ResponseText: text, ResponseID: resp.ID}, nil
}
