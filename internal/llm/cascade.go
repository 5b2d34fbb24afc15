package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Client is the provider-resilient completion client. Each invocation walks
// a fixed cascade: credential precondition, native capability probing,
// primary endpoint, alternate candidates, then the secondary provider.
// Clients are stateless across invocations and safe for concurrent use.
type Client struct {
	cfg       Config
	native    any
	transport *Transport
	logger    *slog.Logger
}

// New creates a completion client. native is an optional SDK-backed client
// probed by capability; pass nil to always use direct transport.
func New(cfg Config, native any, logger *slog.Logger) *Client {
	return &Client{
		cfg:       cfg,
		native:    native,
		transport: NewTransport(logger),
		logger:    logger,
	}
}

// complete runs the cascade for one invocation. It never returns nil and
// never panics past this boundary; every failure mode ends in a
// CanonicalResult with a user-safe ErrorMessage.
func (c *Client) complete(ctx context.Context, req *InvocationRequest) *CanonicalResult {
	if c.cfg.APIKey == "" {
		return &CanonicalResult{ErrorMessage: msgNoCredential}
	}

	if res, ok := c.probeNative(ctx, req); ok {
		return NormalizeResult(res)
	}

	c.logger.Info("using direct transport")
	candidates := ResolveEndpoints(c.cfg)
	model := c.cfg.Model
	if model == "" {
		model = DefaultModel
	}

	first := candidates[0]
	c.logger.Info("calling primary endpoint", "url", first.URL())
	res, err := c.transport.Post(ctx, first, c.cfg.APIKey, first.BuildPayload(model, req), c.transport.primaryTimeout, false)
	if err == nil {
		return NormalizeResult(res)
	}

	var lerr *Error
	if !errors.As(err, &lerr) || lerr.Type != ErrorShapeMismatch {
		// Non-404 failures terminate: the endpoint exists, retrying the
		// same credential against sibling paths would not help.
		return resultFromError(err)
	}

	if res := c.tryAlternates(ctx, candidates[1:], model, req); res != nil {
		return res
	}

	if c.cfg.SecondaryAPIKey != "" {
		c.logger.Warn("primary provider unavailable, attempting secondary")
		return c.trySecondary(ctx, req)
	}

	return &CanonicalResult{ErrorMessage: msgAllExhausted}
}

// probeNative tries each native capability in ranked order and returns the
// first result produced. ok=false means no capability answered and the
// cascade should fall through to direct transport.
func (c *Client) probeNative(ctx context.Context, req *InvocationRequest) (*CanonicalResult, bool) {
	if c.native == nil {
		return nil, false
	}
	if r, ok := c.native.(AvailabilityReporter); ok && !r.Available() {
		c.logger.Warn("native client reports unavailable, using direct transport")
		return nil, false
	}

	if n, ok := c.native.(CompanionChatter); ok {
		res, err := n.CompanionChat(ctx, req.UserMessage, req.RollingContext, req.PreviousResponseID)
		if err == nil {
			return res, true
		}
		c.logger.Warn("companion chat probe failed", "error", err)
	}
	if n, ok := c.native.(Chatter); ok {
		res, err := n.Chat(ctx, req)
		if err == nil {
			return res, true
		}
		c.logger.Warn("chat probe failed", "error", err)
	}
	if n, ok := c.native.(GrokChatter); ok {
		res, err := n.GrokChat(ctx, req.UserMessage, req.RollingContext, req.PreviousResponseID)
		if err == nil {
			return res, true
		}
		c.logger.Warn("grok chat probe failed", "error", err)
	}
	if n, ok := c.native.(SessionChatter); ok {
		session, err := n.CreateChatWithSystemPrompt(ctx, sessionSystemPrompt(req.RollingContext))
		if err == nil {
			res, err := n.SendMessage(ctx, session, req.UserMessage, req.PreviousResponseID)
			if err == nil {
				return res, true
			}
			c.logger.Warn("session send probe failed", "error", err)
		} else {
			c.logger.Warn("session create probe failed", "error", err)
		}
	}
	return nil, false
}

// tryAlternates walks the remaining candidates with the short timeout and
// the anthropic version header. Only a normalized success is accepted;
// every other outcome moves to the next candidate. nil means exhaustion.
func (c *Client) tryAlternates(ctx context.Context, alternates []EndpointCandidate, model string, req *InvocationRequest) *CanonicalResult {
	for _, cand := range alternates {
		if ctx.Err() != nil {
			break
		}
		c.logger.Info("trying alternate endpoint", "url", cand.URL())
		res, err := c.transport.Post(ctx, cand, c.cfg.APIKey, cand.BuildPayload(model, req), c.transport.alternateTimeout, true)
		if err != nil {
			c.logger.Debug("alternate endpoint failed", "url", cand.URL(), "error", err)
			continue
		}
		norm := NormalizeResult(res)
		if norm.Success {
			c.logger.Info("alternate endpoint succeeded", "url", cand.URL())
			return norm
		}
		c.logger.Debug("alternate endpoint yielded no text", "url", cand.URL())
	}
	return nil
}

// trySecondary posts one chat-completions request to the secondary provider.
// Its failures never leak provider detail; callers get one fixed message.
func (c *Client) trySecondary(ctx context.Context, req *InvocationRequest) *CanonicalResult {
	base := strings.TrimRight(c.cfg.SecondaryBaseURL, "/")
	if base == "" {
		base = DefaultSecondaryBaseURL
	}
	model := c.cfg.SecondaryModel
	if model == "" {
		model = DefaultSecondaryModel
	}
	cand := EndpointCandidate{BaseURL: base, Path: "chat/completions", Shape: ShapeChatCompletions}

	res, err := c.transport.Post(ctx, cand, c.cfg.SecondaryAPIKey, buildSecondaryPayload(model, req), c.transport.alternateTimeout, false)
	if err != nil {
		c.logger.Error("secondary provider failed", "error", err)
		return &CanonicalResult{ErrorMessage: msgSecondaryFailed}
	}
	norm := NormalizeResult(res)
	if !norm.Success {
		c.logger.Error("secondary provider returned no usable text")
		return &CanonicalResult{ErrorMessage: msgSecondaryFailed}
	}
	return norm
}

// resultFromError folds a classified transport error into the reportable
// result shape.
func resultFromError(err error) *CanonicalResult {
	var lerr *Error
	if errors.As(err, &lerr) {
		return &CanonicalResult{ErrorMessage: lerr.Message}
	}
	return &CanonicalResult{ErrorMessage: msgUnexpected}
}
