package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Per-attempt timeouts. The first candidate gets the long budget to ride out
// cold starts; alternates and the secondary provider get the short one.
const (
	primaryTimeout   = 120 * time.Second
	alternateTimeout = 60 * time.Second
)

const anthropicVersionHeader = "2023-06-01"

// Transport performs raw HTTP calls against endpoint candidates and maps
// each outcome to a CanonicalResult or a classified Error.
type Transport struct {
	client *http.Client
	logger *slog.Logger

	primaryTimeout   time.Duration
	alternateTimeout time.Duration
}

func NewTransport(logger *slog.Logger) *Transport {
	return &Transport{
		// Timeouts are applied per call via context so the two budget
		// tiers share one client.
		client:           &http.Client{},
		logger:           logger,
		primaryTimeout:   primaryTimeout,
		alternateTimeout: alternateTimeout,
	}
}

// Post sends one request to one candidate. A nil error means the attempt
// completed: either success or an empty-body failure carried in the result.
// A non-nil error is always a *Error whose Type drives the cascade.
func (t *Transport) Post(ctx context.Context, cand EndpointCandidate, apiKey string, payload any, timeout time.Duration, anthropicHeader bool) (*CanonicalResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Type: ErrorUnknown, Message: msgUnexpected, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, cand.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Type: ErrorUnknown, Message: msgUnexpected, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	if anthropicHeader {
		req.Header.Set("anthropic-version", anthropicVersionHeader)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.classifyTransportError(cand, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, t.classifyTransportError(cand, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		t.logger.Warn("endpoint not found", "url", cand.URL(), "status", resp.StatusCode)
		return nil, &Error{
			Type:    ErrorShapeMismatch,
			Message: msgUpstreamError,
			Err:     fmt.Errorf("404 at %s", cand.URL()),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Full detail stays server-side; the caller sees a generic message.
		t.logger.Error("endpoint returned error status",
			"url", cand.URL(),
			"status", resp.StatusCode,
			"body", truncateForLog(string(respBody)))
		return nil, &Error{
			Type:    ErrorUpstreamStatus,
			Message: msgUpstreamError,
			Err:     fmt.Errorf("status %d at %s", resp.StatusCode, cand.URL()),
		}
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil {
		t.logger.Error("endpoint returned unparseable body", "url", cand.URL(), "error", err)
		return nil, &Error{Type: ErrorUnknown, Message: msgUnexpected, Err: err}
	}

	text := ExtractResponseText(data)
	if text == "" {
		return &CanonicalResult{Success: false, ErrorMessage: msgEmptyResponse}, nil
	}
	id, _ := data["id"].(string)
	return &CanonicalResult{Success: true, ResponseText: text, ResponseID: id}, nil
}

func (t *Transport) classifyTransportError(cand EndpointCandidate, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		t.logger.Error("endpoint request timed out", "url", cand.URL())
		return &Error{Type: ErrorTimeout, Message: msgTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Type: ErrorUnknown, Message: msgUnexpected, Err: err}
	default:
		t.logger.Error("endpoint unreachable", "url", cand.URL(), "error", err)
		return &Error{Type: ErrorUnreachable, Message: msgUnreachable, Err: err}
	}
}

// truncateForLog keeps upstream error bodies from flooding log lines.
func truncateForLog(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
