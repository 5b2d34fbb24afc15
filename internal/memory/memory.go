package memory

import (
	"context"
	"time"

	"kora/internal/llm"
)

// StoredMessage is one persisted conversation turn with its emotion
// metadata.
type StoredMessage struct {
	ID                   int64              `json:"id"`
	UserID               string             `json:"user_id"`
	SessionID            string             `json:"session_id"`
	Role                 string             `json:"role"`
	Content              string             `json:"content"`
	Emotion              string             `json:"emotion,omitempty"`
	EmotionText          string             `json:"emotion_text,omitempty"`
	EmotionProbabilities map[string]float64 `json:"emotion_probabilities,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// PromptMessage converts the stored turn into the shape the completion
// client consumes, carrying the emotion annotation when present. The
// descriptive emotion text wins over the bare label.
func (m *StoredMessage) PromptMessage() llm.Message {
	msg := llm.Message{Role: m.Role, Content: m.Content}
	switch {
	case m.EmotionText != "":
		msg.Annotations = map[string]string{llm.AnnotationEmotion: m.EmotionText}
	case m.Emotion != "":
		msg.Annotations = map[string]string{llm.AnnotationEmotion: m.Emotion}
	}
	return msg
}

// SessionInfo describes one conversation session for listings.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
	Summary      string    `json:"summary,omitempty"`
}

// SummaryRecord is one stored conversation summary.
type SummaryRecord struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Memory is the interface for persistent conversation storage.
type Memory interface {
	SaveMessage(ctx context.Context, msg *StoredMessage) (int64, error)
	GetHistory(ctx context.Context, userID, sessionID string, limit int) ([]StoredMessage, error)
	ListSessions(ctx context.Context, userID string) ([]SessionInfo, error)
	SaveSummary(ctx context.Context, userID, sessionID, summary string) error
	GetSummary(ctx context.Context, userID, sessionID string) (string, error)
	SearchSummaries(ctx context.Context, userID, query string, limit int) ([]SummaryRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
