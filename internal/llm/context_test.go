package llm

import (
	"strings"
	"testing"
)

func TestBuildPromptContext(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello there"},
		{Role: "user", Content: "how are you"},
	}

	userMessage, rolling, emotion := BuildPromptContext(messages, "")
	if userMessage != "how are you" {
		t.Fatalf("expected last message, got %q", userMessage)
	}
	if rolling != "User: hi\nAssistant: hello there" {
		t.Fatalf("unexpected rolling context %q", rolling)
	}
	if emotion != "" {
		t.Fatalf("expected no emotion, got %q", emotion)
	}
}

func TestBuildPromptContextEmotionAnnotation(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "hi"},
		{
			Role:        "user",
			Content:     "great news!",
			Annotations: map[string]string{AnnotationEmotion: "joy"},
		},
	}

	_, rolling, emotion := BuildPromptContext(messages, "")
	if emotion != "joy" {
		t.Fatalf("expected joy, got %q", emotion)
	}
	if rolling != "User: hi\nUser Emotion: joy" {
		t.Fatalf("unexpected rolling context %q", rolling)
	}
}

func TestBuildPromptContextEmotionOnly(t *testing.T) {
	messages := []Message{
		{
			Role:        "user",
			Content:     "great news!",
			Annotations: map[string]string{AnnotationEmotion: "joy"},
		},
	}

	_, rolling, _ := BuildPromptContext(messages, "")
	if rolling != "User Emotion: joy" {
		t.Fatalf("unexpected rolling context %q", rolling)
	}
}

func TestBuildPromptContextOverride(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "bye"},
	}

	userMessage, rolling, _ := BuildPromptContext(messages, "custom history")
	if userMessage != "bye" {
		t.Fatalf("expected bye, got %q", userMessage)
	}
	if rolling != "custom history" {
		t.Fatalf("expected override to win, got %q", rolling)
	}
}

func TestBuildPromptContextEmpty(t *testing.T) {
	userMessage, rolling, emotion := BuildPromptContext(nil, "fallback")
	if userMessage != "" || rolling != "fallback" || emotion != "" {
		t.Fatalf("unexpected output %q %q %q", userMessage, rolling, emotion)
	}
}

func TestComposeRollingContext(t *testing.T) {
	got := ComposeRollingContext("happy", "sam", "User: hi")
	want := "Emotion: happy. User: sam. History: User: hi."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestComposeRollingContextDefaults(t *testing.T) {
	got := ComposeRollingContext("", "", "")
	want := "Emotion: neutral. User: user. History: ."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTruncateContext(t *testing.T) {
	short := strings.Repeat("a", 100)
	if TruncateContext(short) != short {
		t.Fatal("short input should pass through unchanged")
	}

	long := strings.Repeat("b", MaxContextChars+500)
	got := TruncateContext(long)
	if len(got) != MaxContextChars+len(truncationMarker) {
		t.Fatalf("unexpected truncated length %d", len(got))
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatal("expected truncation marker suffix")
	}

	// Re-truncating a capped string must not change it.
	if TruncateContext(got) != got {
		t.Fatal("truncation is not idempotent")
	}
}

func TestComposeRollingContextAppliesCap(t *testing.T) {
	got := ComposeRollingContext("calm", "sam", strings.Repeat("h", MaxContextChars+1))
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatal("expected oversized envelope to be truncated")
	}
	if len(got) != MaxContextChars+len(truncationMarker) {
		t.Fatalf("unexpected length %d", len(got))
	}
}
