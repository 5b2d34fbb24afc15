package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"kora/internal/llm"
	"kora/internal/memory"
	"kora/internal/observability"
)

// SummaryResult is a generated conversation summary with the metadata the
// model extracted alongside it. Only the summary text is persisted.
type SummaryResult struct {
	UserID         string         `json:"user_id"`
	SessionID      string         `json:"session_id"`
	Summary        string         `json:"summary"`
	KeyTopics      []string       `json:"key_topics,omitempty"`
	Sentiment      string         `json:"sentiment"`
	SentimentScore float64        `json:"sentiment_score"`
	Entities       map[string]any `json:"entities,omitempty"`
	MessageCount   int            `json:"message_count"`
}

// Summarize condenses one session into a stored summary. Provider failures
// degrade to a counted placeholder instead of an error.
func (s *Service) Summarize(ctx context.Context, userID, sessionID string) (*SummaryResult, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID, "session_id", sessionID)

	messages, err := s.store.GetHistory(ctx, userID, sessionID, s.historyLimit())
	if err != nil {
		return nil, err
	}

	res := &SummaryResult{
		UserID:       userID,
		SessionID:    sessionID,
		Sentiment:    "neutral",
		MessageCount: len(messages),
	}

	if len(messages) == 0 {
		res.Summary = "No messages found for this session."
	} else {
		s.generateSummary(ctx, messages, res, log)
	}

	if err := s.store.SaveSummary(ctx, userID, sessionID, res.Summary); err != nil {
		log.Error("failed to save summary", "error", err)
		return nil, err
	}

	log.Info("summary stored", "message_count", res.MessageCount)
	return res, nil
}

func (s *Service) generateSummary(ctx context.Context, messages []memory.StoredMessage, res *SummaryResult, log *slog.Logger) {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	transcript := strings.Join(lines, "\n")

	userName := s.cfg.UserName
	if userName == "" {
		userName = "user"
	}

	prompt := "Summarize the following conversation for the user. " +
		"Return JSON with fields: summary, key_topics (array), sentiment (positive/negative/neutral/mixed), " +
		"sentiment_score (-1 to 1), entities (object).\n\n" +
		"User: " + userName + "\nConversation:\n" + transcript

	result, err := s.client.CompleteText(ctx, prompt, llm.CompleteOptions{UserName: userName})
	if err != nil || !result.Success {
		if err != nil {
			log.Warn("summary generation unavailable", "error", err)
		} else {
			log.Warn("summary generation failed", "error", result.ErrorMessage)
		}
		last := messages[len(messages)-1].Content
		if len(last) > 200 {
			last = last[:200]
		}
		res.Summary = fmt.Sprintf("Conversation with %d messages. Latest message: %s", len(messages), last)
		return
	}

	payload := extractJSONPayload(result.ResponseText)
	if payload == nil {
		res.Summary = result.ResponseText
		return
	}

	if v, ok := payload["summary"].(string); ok {
		res.Summary = v
	}
	if topics, ok := payload["key_topics"].([]any); ok {
		for _, t := range topics {
			if topic, ok := t.(string); ok {
				res.KeyTopics = append(res.KeyTopics, topic)
			}
		}
	}
	if v, ok := payload["sentiment"].(string); ok && v != "" {
		res.Sentiment = v
	}
	if v, ok := payload["sentiment_score"].(float64); ok {
		res.SentimentScore = v
	}
	if v, ok := payload["entities"].(map[string]any); ok {
		res.Entities = v
	}
}

// extractJSONPayload parses a JSON object out of model output, tolerating
// prose or code fences around the object.
func extractJSONPayload(text string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil
	}
	return payload
}
