package llm

import "context"

// Outcome carries the result of an asynchronous invocation.
type Outcome struct {
	Result *CanonicalResult
	Err    error
}

// CompleteOptions carries the optional inbound parameters alongside the
// message input.
type CompleteOptions struct {
	Emotion            string
	UserName           string
	PreviousResponseID string
	ContextOverride    string
}

// Invoke runs the fallback cascade synchronously. The error is non-nil only
// for a nil client; every provider-side failure is reported inside the
// result with Success=false and a user-safe ErrorMessage.
func (c *Client) Invoke(ctx context.Context, req *InvocationRequest) (*CanonicalResult, error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	r := *req
	r.RollingContext = TruncateContext(r.RollingContext)
	return c.complete(ctx, &r), nil
}

// InvokeAsync runs the cascade on its own goroutine and delivers exactly one
// Outcome on the returned channel. The channel is buffered so the result is
// never lost if the caller reads late.
func (c *Client) InvokeAsync(ctx context.Context, req *InvocationRequest) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		res, err := c.Invoke(ctx, req)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

// CompleteMessages derives the invocation from an ordered message sequence
// and runs the cascade. The rolling context is wrapped in the emotion/user
// envelope before dispatch.
func (c *Client) CompleteMessages(ctx context.Context, messages []Message, opts CompleteOptions) (*CanonicalResult, error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	userMessage, history, extracted := BuildPromptContext(messages, opts.ContextOverride)
	emotion := opts.Emotion
	if emotion == "" {
		emotion = extracted
	}
	req := &InvocationRequest{
		UserMessage:        userMessage,
		RollingContext:     ComposeRollingContext(emotion, opts.UserName, history),
		PreviousResponseID: opts.PreviousResponseID,
		EmotionLabel:       emotion,
		UserName:           opts.UserName,
	}
	return c.Invoke(ctx, req)
}

// CompleteText runs the cascade for a bare prompt string. The context
// override, when set, is passed upstream as-is without the envelope.
func (c *Client) CompleteText(ctx context.Context, text string, opts CompleteOptions) (*CanonicalResult, error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	req := &InvocationRequest{
		UserMessage:        text,
		RollingContext:     opts.ContextOverride,
		PreviousResponseID: opts.PreviousResponseID,
		EmotionLabel:       opts.Emotion,
		UserName:           opts.UserName,
	}
	return c.Invoke(ctx, req)
}
