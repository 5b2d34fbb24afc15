package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"kora/internal/chat"
	"kora/internal/memory"
	"kora/internal/observability"
)

const maxMessageLength = 10000

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// StatusFunc returns the runtime snapshot served at /api/status. Secret
// values must never appear in it, only their presence.
type StatusFunc func() map[string]any

type Server struct {
	svc    *chat.Service
	status StatusFunc
}

// NewServer builds the API handler with the middleware chain applied.
func NewServer(svc *chat.Service, status StatusFunc) http.Handler {
	s := &Server{svc: svc, status: status}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/history", s.handleHistory)
	mux.HandleFunc("/api/chat/sessions", s.handleSessions)
	mux.HandleFunc("/api/conversations/summaries", s.handleSummaries)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	UserID             string `json:"user_id"`
	SessionID          string `json:"session_id,omitempty"`
	Message            string `json:"message"`
	Emotion            string `json:"emotion,omitempty"`
	UserName           string `json:"user_name,omitempty"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
}

type chatResponse struct {
	Response   string `json:"response"`
	ResponseID string `json:"response_id,omitempty"`
	SessionID  string `json:"session_id"`
	Degraded   bool   `json:"degraded"`
}

type historyResponse struct {
	Count    int                    `json:"count"`
	Messages []memory.StoredMessage `json:"messages"`
}

type sessionsResponse struct {
	Count    int                  `json:"count"`
	Sessions []memory.SessionInfo `json:"sessions"`
}

type summarizeRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type summariesResponse struct {
	Count     int                    `json:"count"`
	Summaries []memory.SummaryRecord `json:"summaries"`
}

// ─────────────────────────────────────────────
// Handlers
// ─────────────────────────────────────────────

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		badRequest(w, "message is required")
		return
	}
	if len(message) > maxMessageLength {
		badRequest(w, "message too long")
		return
	}
	if containsBlockedToken(message) {
		badRequest(w, "invalid message content")
		return
	}
	if req.SessionID != "" && !sessionIDPattern.MatchString(req.SessionID) {
		badRequest(w, "invalid session_id format")
		return
	}

	out, err := s.svc.HandleMessage(r.Context(), chat.In{
		UserID:             req.UserID,
		SessionID:          req.SessionID,
		Text:               message,
		Emotion:            req.Emotion,
		UserName:           req.UserName,
		PreviousResponseID: req.PreviousResponseID,
	})
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:   out.Reply,
		ResponseID: out.ResponseID,
		SessionID:  out.SessionID,
		Degraded:   out.Degraded,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if sessionID == "" {
		badRequest(w, "session_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := s.svc.History(r.Context(), userID, sessionID, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	if messages == nil {
		messages = []memory.StoredMessage{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Count: len(messages), Messages: messages})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}

	sessions, err := s.svc.Sessions(r.Context(), userID)
	if err != nil {
		internalError(w, err)
		return
	}
	if sessions == nil {
		sessions = []memory.SessionInfo{}
	}

	writeJSON(w, http.StatusOK, sessionsResponse{Count: len(sessions), Sessions: sessions})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSummary(w, r)
	case http.MethodGet:
		s.handleListSummaries(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateSummary(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}
	if req.SessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	summary, err := s.svc.Summarize(r.Context(), req.UserID, req.SessionID)
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		badRequest(w, "user_id is required")
		return
	}
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	summaries, err := s.svc.SearchSummaries(r.Context(), userID, query, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	if summaries == nil {
		summaries = []memory.SummaryRecord{}
	}

	writeJSON(w, http.StatusOK, summariesResponse{Count: len(summaries), Summaries: summaries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.status == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// containsBlockedToken rejects obvious script injection in message bodies.
func containsBlockedToken(message string) bool {
	lower := strings.ToLower(message)
	for _, token := range []string{"<script", "javascript:", "onerror="} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	observability.Logger().Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
