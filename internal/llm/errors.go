package llm

import (
	"errors"
	"fmt"
)

// ErrorType classifies completion failures for cascade decisions.
type ErrorType int

const (
	ErrorUnknown ErrorType = iota
	ErrorPrecondition
	ErrorShapeMismatch
	ErrorUpstreamStatus
	ErrorTimeout
	ErrorUnreachable
	ErrorEmptyResponse
	ErrorAllExhausted
)

// Error wraps a completion failure with its classification. Message is safe
// to surface to end users; Err carries the server-side detail.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotInitialized is the only failure Invoke propagates as a hard error.
// Every provider-side failure is reported inside the CanonicalResult instead.
var ErrNotInitialized = errors.New("completion client not initialized")

// User-safe failure messages. Server-side detail stays in logs and wrapped
// errors; these are what callers may show to an end user.
const (
	msgUpstreamError   = "Grok service returned an error. Please try again later."
	msgTimeout         = "Grok service is taking too long to respond. Please try again later."
	msgUnreachable     = "Unable to reach Grok service at the moment. Please try again later."
	msgUnexpected      = "Failed to call Grok service due to an unexpected error."
	msgEmptyResponse   = "Empty response from Grok API"
	msgNoCredential    = "Kora not available: XAI_API_KEY not configured"
	msgNoResponseID    = "Kora not available: XAI connection failed"
	msgSecondaryFailed = "OpenAI fallback failed. Verify OPENAI_API_KEY and model access."
	msgAllExhausted    = "Could not connect to Grok API. Please verify your XAI_API_KEY is valid and has access to the Grok API. Set XAI_API_BASE_URL/XAI_API_CHAT_PATH if endpoints changed, or configure OPENAI_API_KEY for fallback. Visit https://console.x.ai for API documentation."
)
