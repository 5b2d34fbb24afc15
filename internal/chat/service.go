package chat

import (
	"context"

	"github.com/google/uuid"

	"kora/internal/channel"
	"kora/internal/config"
	"kora/internal/eventbus"
	"kora/internal/llm"
	"kora/internal/memory"
	"kora/internal/observability"
	"kora/internal/security"
)

// Completer is the slice of the completion client the service invokes.
type Completer interface {
	CompleteMessages(ctx context.Context, messages []llm.Message, opts llm.CompleteOptions) (*llm.CanonicalResult, error)
	CompleteText(ctx context.Context, text string, opts llm.CompleteOptions) (*llm.CanonicalResult, error)
}

// Service orchestrates one conversation exchange: history in, completion
// out, both turns persisted.
type Service struct {
	cfg       config.AgentConfig
	client    Completer
	store     memory.Memory
	bus       *eventbus.Bus
	sanitizer *security.Sanitizer
	chanMgr   *channel.Manager
}

// New creates the conversation service.
func New(
	cfg config.AgentConfig,
	client Completer,
	store memory.Memory,
	bus *eventbus.Bus,
	sanitizer *security.Sanitizer,
	chanMgr *channel.Manager,
) *Service {
	return &Service{
		cfg:       cfg,
		client:    client,
		store:     store,
		bus:       bus,
		sanitizer: sanitizer,
		chanMgr:   chanMgr,
	}
}

// In is one inbound user message.
type In struct {
	UserID             string
	SessionID          string
	Text               string
	Emotion            string
	UserName           string
	PreviousResponseID string
}

// Out is the reply produced for one inbound message. Degraded marks a
// provider failure: Reply then carries the user-safe error text and no
// assistant turn is recorded.
type Out struct {
	Reply      string
	ResponseID string
	SessionID  string
	Degraded   bool
}

// HandleMessage runs one exchange. Provider failures surface as a degraded
// Out, not an error; the error return is reserved for an unusable service.
func (s *Service) HandleMessage(ctx context.Context, in In) (*Out, error) {
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID, "session_id", sessionID)

	history, err := s.store.GetHistory(ctx, in.UserID, sessionID, s.historyLimit())
	if err != nil {
		log.Warn("failed to load history, continuing without", "error", err)
		history = nil
	}

	messages := make([]llm.Message, 0, len(history)+3)

	if summary, err := s.store.GetSummary(ctx, in.UserID, sessionID); err == nil && summary != "" {
		messages = append(messages,
			llm.Message{Role: "user", Content: "[Previous conversation summary]: " + summary},
			llm.Message{Role: "assistant", Content: "I remember our earlier conversation. How can I help?"},
		)
	}

	for i := range history {
		msg := history[i].PromptMessage()
		msg.Content = s.outbound(msg.Content)
		messages = append(messages, msg)
	}

	current := llm.Message{Role: "user", Content: s.outbound(in.Text)}
	if in.Emotion != "" {
		current.Annotations = map[string]string{llm.AnnotationEmotion: in.Emotion}
	}
	messages = append(messages, current)

	if _, err := s.store.SaveMessage(ctx, &memory.StoredMessage{
		UserID:    in.UserID,
		SessionID: sessionID,
		Role:      "user",
		Content:   in.Text,
		Emotion:   in.Emotion,
	}); err != nil {
		log.Error("failed to save user message", "error", err)
		s.bus.Publish(eventbus.TopicError, err)
	}

	s.bus.Publish(eventbus.TopicLLMRequest, in)

	result, err := s.client.CompleteMessages(ctx, messages, llm.CompleteOptions{
		Emotion:            in.Emotion,
		UserName:           s.userName(in.UserName),
		PreviousResponseID: in.PreviousResponseID,
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(eventbus.TopicLLMResponse, result)

	if !result.Success {
		log.Warn("completion degraded", "error", result.ErrorMessage)
		s.bus.Publish(eventbus.TopicProviderFallback, result.ErrorMessage)
		return &Out{Reply: result.ErrorMessage, SessionID: sessionID, Degraded: true}, nil
	}

	reply := s.restore(result.ResponseText)

	if _, err := s.store.SaveMessage(ctx, &memory.StoredMessage{
		UserID:    in.UserID,
		SessionID: sessionID,
		Role:      "assistant",
		Content:   reply,
	}); err != nil {
		log.Error("failed to save assistant message", "error", err)
		s.bus.Publish(eventbus.TopicError, err)
	}

	return &Out{Reply: reply, ResponseID: result.ResponseID, SessionID: sessionID}, nil
}

// History returns the recent turns of one session in chronological order.
func (s *Service) History(ctx context.Context, userID, sessionID string, limit int) ([]memory.StoredMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = s.historyLimit()
	}
	return s.store.GetHistory(ctx, userID, sessionID, limit)
}

// Sessions lists a user's conversation sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID string) ([]memory.SessionInfo, error) {
	return s.store.ListSessions(ctx, userID)
}

// SearchSummaries lists or searches a user's stored summaries.
func (s *Service) SearchSummaries(ctx context.Context, userID, query string, limit int) ([]memory.SummaryRecord, error) {
	return s.store.SearchSummaries(ctx, userID, query, limit)
}

// Start wires inbound channel messages into the service. Channels that are
// not running are skipped; attach happens once at startup.
func (s *Service) Start(ctx context.Context) {
	if s.chanMgr == nil {
		return
	}
	for name, running := range s.chanMgr.List() {
		if !running {
			continue
		}
		ch, ok := s.chanMgr.Get(name)
		if !ok {
			continue
		}
		ch.OnMessage(func(msg channel.InboundMessage) {
			s.bus.Publish(eventbus.TopicInboundMessage, msg)
			s.handleChannelMessage(ctx, msg)
		})
	}
	observability.LoggerFromContext(ctx).Info("chat service listening for messages")
}

// handleChannelMessage processes one channel message and sends the reply
// back on the same channel. Each channel chat maps to its own session.
func (s *Service) handleChannelMessage(ctx context.Context, msg channel.InboundMessage) {
	log := observability.LoggerFromContext(ctx)
	log.Info("processing channel message",
		"channel", msg.ChannelName, "sender", msg.SenderName, "text", truncate(msg.Text, 100))

	out, err := s.HandleMessage(ctx, In{
		UserID:    msg.SenderID,
		SessionID: msg.ChannelName + "-" + msg.ChatID,
		Text:      msg.Text,
		UserName:  msg.SenderName,
	})

	var reply string
	if err != nil {
		log.Error("failed to process message", "error", err)
		s.bus.Publish(eventbus.TopicError, err)
		reply = "Sorry, I encountered an error processing your message. Please try again."
	} else {
		reply = out.Reply
	}

	ch, ok := s.chanMgr.Get(msg.ChannelName)
	if !ok {
		log.Error("channel not found", "channel", msg.ChannelName)
		return
	}

	outMsg := channel.OutboundMessage{ChatID: msg.ChatID, Text: reply}
	s.bus.Publish(eventbus.TopicOutboundMessage, outMsg)

	if err := ch.Send(ctx, outMsg); err != nil {
		log.Error("failed to send reply", "channel", msg.ChannelName, "error", err)
	}
}

func (s *Service) historyLimit() int {
	if s.cfg.HistoryLimit > 0 {
		return s.cfg.HistoryLimit
	}
	return 50
}

func (s *Service) userName(name string) string {
	if name != "" {
		return name
	}
	return s.cfg.UserName
}

// outbound scrubs PII from text headed to the provider.
func (s *Service) outbound(text string) string {
	if s.sanitizer == nil {
		return text
	}
	return s.sanitizer.Sanitize(text)
}

// restore puts original values back into a provider reply.
func (s *Service) restore(text string) string {
	if s.sanitizer == nil {
		return text
	}
	return s.sanitizer.Restore(text)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
