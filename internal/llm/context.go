package llm

import (
	"fmt"
	"strings"
)

// MaxContextChars caps the rolling context sent upstream. Anything longer is
// cut at the cap and suffixed with truncationMarker.
const MaxContextChars = 200000

const truncationMarker = "... (truncated)"

// BuildPromptContext derives the outgoing user message, the rolling context
// and the emotion label from an ordered message sequence. The final message
// is the one being sent; everything before it becomes "User:"/"Assistant:"
// prefixed lines. A non-empty contextOverride replaces the derived history.
func BuildPromptContext(messages []Message, contextOverride string) (userMessage, rollingContext, emotionLabel string) {
	if len(messages) == 0 {
		return "", contextOverride, ""
	}

	last := messages[len(messages)-1]
	userMessage = last.Content
	emotionLabel = last.Annotations[AnnotationEmotion]

	if contextOverride != "" {
		return userMessage, contextOverride, emotionLabel
	}

	parts := make([]string, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		speaker := "Assistant"
		if m.Role == "user" {
			speaker = "User"
		}
		parts = append(parts, speaker+": "+m.Content)
	}
	rollingContext = strings.Join(parts, "\n")

	if emotionLabel != "" {
		line := "User Emotion: " + emotionLabel
		if rollingContext != "" {
			rollingContext += "\n" + line
		} else {
			rollingContext = line
		}
	}
	return userMessage, rollingContext, emotionLabel
}

// ComposeRollingContext wraps history in the upstream context envelope and
// applies the size cap. Empty emotion and user name fall back to neutral
// placeholders so the envelope shape stays stable.
func ComposeRollingContext(emotion, userName, history string) string {
	if emotion == "" {
		emotion = "neutral"
	}
	if userName == "" {
		userName = "user"
	}
	return TruncateContext(fmt.Sprintf("Emotion: %s. User: %s. History: %s.", emotion, userName, history))
}

// TruncateContext enforces MaxContextChars. Idempotent: a previously capped
// string truncates to the same bytes.
func TruncateContext(s string) string {
	if len(s) <= MaxContextChars {
		return s
	}
	return s[:MaxContextChars] + truncationMarker
}
