package chat

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"kora/internal/channel"
	"kora/internal/config"
	"kora/internal/eventbus"
	"kora/internal/llm"
	"kora/internal/memory"
	"kora/internal/security"
)

type stubCompleter struct {
	mu         sync.Mutex
	calls      [][]llm.Message
	opts       []llm.CompleteOptions
	prompts    []string
	result     *llm.CanonicalResult
	textResult *llm.CanonicalResult
	echo       bool
}

func (f *stubCompleter) CompleteMessages(_ context.Context, messages []llm.Message, opts llm.CompleteOptions) (*llm.CanonicalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	f.calls = append(f.calls, copied)
	f.opts = append(f.opts, opts)
	if f.echo {
		return &llm.CanonicalResult{Success: true, ResponseText: "echo: " + messages[len(messages)-1].Content, ResponseID: "resp-echo"}, nil
	}
	if f.result != nil {
		return f.result, nil
	}
	return &llm.CanonicalResult{Success: true, ResponseText: "hello from kora", ResponseID: "resp-1"}, nil
}

func (f *stubCompleter) CompleteText(_ context.Context, text string, _ llm.CompleteOptions) (*llm.CanonicalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, text)
	if f.textResult != nil {
		return f.textResult, nil
	}
	return &llm.CanonicalResult{
		Success:      true,
		ResponseText: `{"summary":"short recap","key_topics":["travel"],"sentiment":"positive","sentiment_score":0.6}`,
		ResponseID:   "resp-sum",
	}, nil
}

func (f *stubCompleter) lastCall(t *testing.T) []llm.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("completion client was never invoked")
	}
	return f.calls[len(f.calls)-1]
}

func newTestStore(t *testing.T) *memory.SQLiteMemory {
	t.Helper()
	store, err := memory.NewSQLiteMemory(filepath.Join(t.TempDir(), "kora.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestService(t *testing.T, stub *stubCompleter) (*Service, *memory.SQLiteMemory) {
	t.Helper()
	store := newTestStore(t)
	svc := New(config.Defaults().Agent, stub, store, eventbus.New(), nil, nil)
	return svc, store
}

func TestHandleMessagePersistsBothTurns(t *testing.T) {
	stub := &stubCompleter{}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	out, err := svc.HandleMessage(ctx, In{UserID: "u1", SessionID: "s1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Reply != "hello from kora" {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
	if out.ResponseID != "resp-1" {
		t.Fatalf("unexpected response id %q", out.ResponseID)
	}
	if out.SessionID != "s1" {
		t.Fatalf("unexpected session id %q", out.SessionID)
	}
	if out.Degraded {
		t.Fatal("successful exchange must not be degraded")
	}

	history, err := store.GetHistory(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 stored turns, got %d", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hi" {
		t.Fatalf("unexpected user turn %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "hello from kora" {
		t.Fatalf("unexpected assistant turn %+v", history[1])
	}
}

func TestHandleMessageGeneratesSessionID(t *testing.T) {
	stub := &stubCompleter{}
	svc, _ := newTestService(t, stub)

	out, err := svc.HandleMessage(context.Background(), In{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.SessionID) != 36 {
		t.Fatalf("expected generated uuid session id, got %q", out.SessionID)
	}
}

func TestHandleMessageDegraded(t *testing.T) {
	stub := &stubCompleter{result: &llm.CanonicalResult{
		Success:      false,
		ErrorMessage: "Grok service returned an error. Please try again later.",
	}}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	out, err := svc.HandleMessage(ctx, In{UserID: "u1", SessionID: "s1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Degraded {
		t.Fatal("expected degraded result")
	}
	if out.Reply != "Grok service returned an error. Please try again later." {
		t.Fatalf("degraded reply must carry the error text, got %q", out.Reply)
	}
	if out.ResponseID != "" {
		t.Fatalf("degraded result must not carry a response id, got %q", out.ResponseID)
	}

	history, err := store.GetHistory(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Role != "user" {
		t.Fatalf("only the user turn should persist on failure, got %+v", history)
	}
}

func TestHandleMessageIncludesHistory(t *testing.T) {
	stub := &stubCompleter{}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	seed := []memory.StoredMessage{
		{UserID: "u1", SessionID: "s1", Role: "user", Content: "earlier question"},
		{UserID: "u1", SessionID: "s1", Role: "assistant", Content: "earlier answer"},
	}
	for i := range seed {
		if _, err := store.SaveMessage(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.HandleMessage(ctx, In{UserID: "u1", SessionID: "s1", Text: "follow up"}); err != nil {
		t.Fatal(err)
	}

	sent := stub.lastCall(t)
	if len(sent) != 3 {
		t.Fatalf("expected history plus current message, got %d messages", len(sent))
	}
	if sent[0].Content != "earlier question" || sent[1].Content != "earlier answer" {
		t.Fatalf("history out of order: %+v", sent)
	}
	if sent[2].Content != "follow up" {
		t.Fatalf("current message must come last, got %q", sent[2].Content)
	}
}

func TestHandleMessageEmotionAnnotation(t *testing.T) {
	stub := &stubCompleter{}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, In{
		UserID:             "u1",
		SessionID:          "s1",
		Text:               "great news",
		Emotion:            "joy",
		UserName:           "sam",
		PreviousResponseID: "prev-1",
	})
	if err != nil {
		t.Fatal(err)
	}

	sent := stub.lastCall(t)
	last := sent[len(sent)-1]
	if last.Annotations[llm.AnnotationEmotion] != "joy" {
		t.Fatalf("current turn must carry the emotion annotation, got %+v", last.Annotations)
	}

	stub.mu.Lock()
	opts := stub.opts[len(stub.opts)-1]
	stub.mu.Unlock()
	if opts.Emotion != "joy" || opts.UserName != "sam" || opts.PreviousResponseID != "prev-1" {
		t.Fatalf("options not forwarded: %+v", opts)
	}

	history, err := store.GetHistory(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if history[0].Emotion != "joy" {
		t.Fatalf("user turn must persist the emotion label, got %+v", history[0])
	}
}

func TestHandleMessageSummaryPrelude(t *testing.T) {
	stub := &stubCompleter{}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	if err := store.SaveSummary(ctx, "u1", "s1", "They discussed travel plans."); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.HandleMessage(ctx, In{UserID: "u1", SessionID: "s1", Text: "where were we?"}); err != nil {
		t.Fatal(err)
	}

	sent := stub.lastCall(t)
	if !strings.HasPrefix(sent[0].Content, "[Previous conversation summary]: ") {
		t.Fatalf("expected summary prelude, got %q", sent[0].Content)
	}
	if !strings.Contains(sent[0].Content, "They discussed travel plans.") {
		t.Fatalf("summary text missing from prelude: %q", sent[0].Content)
	}
}

func TestHandleMessageSanitizesOutboundText(t *testing.T) {
	stub := &stubCompleter{echo: true}
	store := newTestStore(t)
	sanitizer := security.NewSanitizer(config.PIIFilterConfig{Enabled: true, FilterEmails: true})
	svc := New(config.Defaults().Agent, stub, store, eventbus.New(), sanitizer, nil)
	ctx := context.Background()

	out, err := svc.HandleMessage(ctx, In{UserID: "u1", SessionID: "s1", Text: "mail me at jane@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	sent := stub.lastCall(t)
	outboundText := sent[len(sent)-1].Content
	if strings.Contains(outboundText, "jane@example.com") {
		t.Fatalf("email leaked to provider: %q", outboundText)
	}
	if !strings.Contains(outboundText, "[EMAIL_") {
		t.Fatalf("expected placeholder in outbound text, got %q", outboundText)
	}

	// The echoed placeholder must be restored in the reply.
	if !strings.Contains(out.Reply, "jane@example.com") {
		t.Fatalf("placeholder not restored in reply: %q", out.Reply)
	}

	history, err := store.GetHistory(ctx, "u1", "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(history[0].Content, "jane@example.com") {
		t.Fatalf("local store must keep the original text, got %q", history[0].Content)
	}
}

func TestHandleMessagePublishesEvents(t *testing.T) {
	stub := &stubCompleter{result: &llm.CanonicalResult{Success: false, ErrorMessage: "down"}}
	store := newTestStore(t)
	bus := eventbus.New()

	var mu sync.Mutex
	var fallbacks []any
	bus.Subscribe(eventbus.TopicProviderFallback, func(e eventbus.Event) {
		mu.Lock()
		fallbacks = append(fallbacks, e.Payload)
		mu.Unlock()
	})

	svc := New(config.Defaults().Agent, stub, store, bus, nil, nil)
	if _, err := svc.HandleMessage(context.Background(), In{UserID: "u1", SessionID: "s1", Text: "hi"}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fallbacks) != 1 || fallbacks[0] != "down" {
		t.Fatalf("expected one fallback event, got %+v", fallbacks)
	}
}

func TestSummarizeParsesJSON(t *testing.T) {
	stub := &stubCompleter{}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	for _, content := range []string{"planning a trip", "sounds fun"} {
		if _, err := store.SaveMessage(ctx, &memory.StoredMessage{
			UserID: "u1", SessionID: "s1", Role: "user", Content: content,
		}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.Summarize(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != "short recap" {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
	if len(res.KeyTopics) != 1 || res.KeyTopics[0] != "travel" {
		t.Fatalf("unexpected topics %+v", res.KeyTopics)
	}
	if res.Sentiment != "positive" || res.SentimentScore != 0.6 {
		t.Fatalf("unexpected sentiment %q %v", res.Sentiment, res.SentimentScore)
	}
	if res.MessageCount != 2 {
		t.Fatalf("unexpected message count %d", res.MessageCount)
	}

	stub.mu.Lock()
	prompt := stub.prompts[0]
	stub.mu.Unlock()
	if !strings.Contains(prompt, "Return JSON with fields") {
		t.Fatalf("summary prompt missing JSON instruction: %q", prompt)
	}
	if !strings.Contains(prompt, "user: planning a trip") {
		t.Fatalf("summary prompt missing transcript: %q", prompt)
	}

	stored, err := store.GetSummary(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if stored != "short recap" {
		t.Fatalf("summary not persisted, got %q", stored)
	}
}

func TestSummarizeProviderFailure(t *testing.T) {
	stub := &stubCompleter{textResult: &llm.CanonicalResult{Success: false, ErrorMessage: "down"}}
	svc, store := newTestService(t, stub)
	ctx := context.Background()

	for _, content := range []string{"first", "second"} {
		if _, err := store.SaveMessage(ctx, &memory.StoredMessage{
			UserID: "u1", SessionID: "s1", Role: "user", Content: content,
		}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := svc.Summarize(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	want := "Conversation with 2 messages. Latest message: second"
	if res.Summary != want {
		t.Fatalf("expected placeholder %q, got %q", want, res.Summary)
	}

	stored, err := store.GetSummary(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if stored != want {
		t.Fatal("placeholder summary must still be persisted")
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	stub := &stubCompleter{}
	svc, _ := newTestService(t, stub)

	res, err := svc.Summarize(context.Background(), "u1", "empty")
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary != "No messages found for this session." {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
	if res.MessageCount != 0 {
		t.Fatalf("unexpected count %d", res.MessageCount)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.prompts) != 0 {
		t.Fatal("empty session must not reach the provider")
	}
}

func TestExtractJSONPayload(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		want    string
		wantNil bool
	}{
		{name: "plain object", text: `{"summary":"a"}`, want: "a"},
		{name: "fenced", text: "Here you go:\n```json\n{\"summary\":\"b\"}\n```", want: "b"},
		{name: "prose around object", text: `The result {"summary":"c"} as requested`, want: "c"},
		{name: "no braces", text: "no json here", wantNil: true},
		{name: "malformed", text: "{not json}", wantNil: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := extractJSONPayload(tc.text)
			if tc.wantNil {
				if payload != nil {
					t.Fatalf("expected nil payload, got %+v", payload)
				}
				return
			}
			if payload == nil {
				t.Fatal("expected payload")
			}
			if payload["summary"] != tc.want {
				t.Fatalf("expected summary %q, got %+v", tc.want, payload)
			}
		})
	}
}

type fakeChannel struct {
	mu      sync.Mutex
	handler func(channel.InboundMessage)
	sent    []channel.OutboundMessage
	running bool
}

func (f *fakeChannel) Name() string { return "fake" }

func (f *fakeChannel) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *fakeChannel) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeChannel) Send(_ context.Context, msg channel.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) OnMessage(h func(channel.InboundMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeChannel) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeChannel) deliver(msg channel.InboundMessage) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(msg)
	}
}

func TestChannelRoundTrip(t *testing.T) {
	stub := &stubCompleter{}
	store := newTestStore(t)
	ctx := context.Background()

	mgr := channel.NewManager()
	fake := &fakeChannel{}
	mgr.Register(fake)
	if err := mgr.StartAll(ctx); err != nil {
		t.Fatal(err)
	}

	svc := New(config.Defaults().Agent, stub, store, eventbus.New(), nil, mgr)
	svc.Start(ctx)

	fake.deliver(channel.InboundMessage{
		ChannelName: "fake",
		SenderID:    "42",
		SenderName:  "Sam",
		ChatID:      "99",
		Text:        "hi there",
	})

	fake.mu.Lock()
	sent := append([]channel.OutboundMessage(nil), fake.sent...)
	fake.mu.Unlock()
	if len(sent) != 1 {
		t.Fatalf("expected one outbound reply, got %d", len(sent))
	}
	if sent[0].ChatID != "99" || sent[0].Text != "hello from kora" {
		t.Fatalf("unexpected reply %+v", sent[0])
	}

	history, err := store.GetHistory(ctx, "42", "fake-99", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("channel exchange must persist both turns, got %d", len(history))
	}
}
