package llm

import "context"

// Message represents one turn in a conversation.
type Message struct {
	Role        string            `json:"role"` // "user" or "assistant"
	Content     string            `json:"content"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// AnnotationEmotion is the annotation key carrying an emotion label on a turn.
const AnnotationEmotion = "emotion_text"

// InvocationRequest is the derived, per-call input for one completion attempt.
type InvocationRequest struct {
	UserMessage        string
	RollingContext     string
	PreviousResponseID string
	EmotionLabel       string
	UserName           string
}

// CanonicalResult is the normalized outcome of a completion attempt,
// independent of which provider or payload shape produced it.
// Success implies a non-empty ResponseID; results violating that are
// downgraded by NormalizeResult.
type CanonicalResult struct {
	Success      bool   `json:"success"`
	ResponseText string `json:"response,omitempty"`
	ResponseID   string `json:"response_id,omitempty"`
	ErrorMessage string `json:"error,omitempty"`
}

// Config holds the provider settings for the completion client.
// APIKey is the only required field; everything else has defaults.
type Config struct {
	APIKey       string // primary (xAI) credential
	BaseURL      string // primary base URL, default DefaultBaseURL
	PathOverride string // explicit chat path; disables endpoint probing
	Model        string // primary model id

	SecondaryAPIKey  string // OpenAI fallback credential; empty disables it
	SecondaryBaseURL string
	SecondaryModel   string
}

// Native client capability surface. A native SDK client may implement any
// subset of these; the cascade probes them in ranked order (companion chat,
// generic chat, grok chat, legacy session pair) and invokes the first one
// present.

// CompanionChatter is the high-level companion chat capability with
// stateful response chaining.
type CompanionChatter interface {
	CompanionChat(ctx context.Context, userMessage, rollingContext, previousResponseID string) (*CanonicalResult, error)
}

// Chatter is the generic chat capability.
type Chatter interface {
	Chat(ctx context.Context, req *InvocationRequest) (*CanonicalResult, error)
}

// GrokChatter is the lower-level Grok chat capability.
type GrokChatter interface {
	GrokChat(ctx context.Context, userMessage, rollingContext, previousResponseID string) (*CanonicalResult, error)
}

// ChatSession is an opaque conversation handle issued by a SessionChatter.
type ChatSession struct {
	ID           string
	SystemPrompt string
}

// SessionChatter is the legacy two-step capability: open a session with a
// system prompt, then send the user message on it.
type SessionChatter interface {
	CreateChatWithSystemPrompt(ctx context.Context, systemPrompt string) (*ChatSession, error)
	SendMessage(ctx context.Context, session *ChatSession, userMessage, previousResponseID string) (*CanonicalResult, error)
}

// AvailabilityReporter lets a native client declare itself unusable, which
// skips capability probing entirely.
type AvailabilityReporter interface {
	Available() bool
}
