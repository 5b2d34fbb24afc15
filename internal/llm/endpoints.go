package llm

import "strings"

// Well-known provider defaults.
const (
	DefaultBaseURL          = "https://api.x.ai"
	DefaultModel            = "grok-4-1-fast-reasoning"
	DefaultSecondaryBaseURL = "https://api.openai.com/v1"
	DefaultSecondaryModel   = "gpt-4o-mini"
)

// PayloadShape identifies the request schema an endpoint candidate expects.
type PayloadShape int

const (
	// ShapeResponses is the Responses API schema ({model, input, stream}).
	ShapeResponses PayloadShape = iota
	// ShapeChatCompletions is the OpenAI chat schema ({model, messages, stream}).
	ShapeChatCompletions
	// ShapeMessages is the Anthropic-style schema ({model, messages, system, max_tokens}).
	ShapeMessages
)

// EndpointCandidate couples a base URL and path with the payload shape that
// path expects. The coupling is load-bearing: posting the wrong shape to a
// path yields 404s or empty bodies, not a helpful error.
type EndpointCandidate struct {
	BaseURL string
	Path    string
	Shape   PayloadShape
}

func (c EndpointCandidate) URL() string {
	return c.BaseURL + "/" + c.Path
}

// defaultChatPaths is the probe order for xAI-compatible deployments. The
// versioned Responses API leads; unversioned variants trail for gateways
// that strip the prefix.
var defaultChatPaths = []string{
	"v1/responses",
	"v1/chat/completions",
	"v1/messages",
	"chat/completions",
	"responses",
}

// ResolveEndpoints produces the ordered candidate list for the primary
// provider. A configured path override becomes the only candidate and
// disables probing.
func ResolveEndpoints(cfg Config) []EndpointCandidate {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if cfg.PathOverride != "" {
		path := strings.TrimLeft(cfg.PathOverride, "/")
		return []EndpointCandidate{{BaseURL: base, Path: path, Shape: shapeForPath(path)}}
	}
	out := make([]EndpointCandidate, 0, len(defaultChatPaths))
	for _, path := range defaultChatPaths {
		out = append(out, EndpointCandidate{BaseURL: base, Path: path, Shape: shapeForPath(path)})
	}
	return out
}

// shapeForPath infers the payload schema from the path suffix.
func shapeForPath(path string) PayloadShape {
	switch {
	case path == "responses" || strings.HasSuffix(path, "/responses"):
		return ShapeResponses
	case path == "messages" || strings.HasSuffix(path, "/messages"):
		return ShapeMessages
	default:
		return ShapeChatCompletions
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesPayload struct {
	Model  string        `json:"model"`
	Input  []wireMessage `json:"input"`
	Stream bool          `json:"stream"`
}

type chatCompletionsPayload struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type messagesPayload struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	System    string        `json:"system"`
	MaxTokens int           `json:"max_tokens"`
}

type secondaryChatPayload struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// BuildPayload constructs the request body matching the candidate's shape.
func (c EndpointCandidate) BuildPayload(model string, req *InvocationRequest) any {
	switch c.Shape {
	case ShapeMessages:
		return messagesPayload{
			Model:     model,
			Messages:  []wireMessage{{Role: "user", Content: req.UserMessage}},
			System:    systemOrDefault(req.RollingContext),
			MaxTokens: 1024,
		}
	case ShapeChatCompletions:
		return chatCompletionsPayload{
			Model: model,
			Messages: []wireMessage{
				{Role: "system", Content: systemOrDefault(req.RollingContext)},
				{Role: "user", Content: req.UserMessage},
			},
			Stream: false,
		}
	default:
		return responsesPayload{
			Model:  model,
			Input:  buildWireMessages(req.UserMessage, req.RollingContext),
			Stream: false,
		}
	}
}

func buildSecondaryPayload(model string, req *InvocationRequest) secondaryChatPayload {
	system := "You are Kora, an AI companion."
	if req.RollingContext != "" {
		system = "You are Kora. Context: " + req.RollingContext
	}
	return secondaryChatPayload{
		Model: model,
		Messages: []wireMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.UserMessage},
		},
		Temperature: 0.7,
	}
}

// buildWireMessages renders the system+user pair for Responses-shaped
// payloads, folding the rolling context into the system turn.
func buildWireMessages(userMessage, rollingContext string) []wireMessage {
	system := "You are Kora, an AI companion powered by Grok."
	if rollingContext != "" {
		system = "You are Kora, an AI companion. Context: " + rollingContext
	}
	return []wireMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: userMessage},
	}
}

func systemOrDefault(rollingContext string) string {
	if rollingContext != "" {
		return rollingContext
	}
	return "You are Kora."
}

// sessionSystemPrompt is the system prompt used with legacy session-style
// native clients.
func sessionSystemPrompt(rollingContext string) string {
	if rollingContext != "" {
		return "Kora Context: " + rollingContext
	}
	return "You are Kora."
}
