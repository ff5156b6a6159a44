package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagepilot/pagepilot/internal/assistant"
	apperrors "github.com/pagepilot/pagepilot/internal/errors"
	"github.com/pagepilot/pagepilot/internal/interaction"
	"github.com/pagepilot/pagepilot/internal/session"
	log "github.com/sirupsen/logrus"
)

// QuestionContextKey holds the chat question for panic recovery.
const QuestionContextKey = "chat.question"

// DefaultChatSessionID is used when a chat request names no session.
const DefaultChatSessionID = "default"

// BlankQuestionReply guides callers that sent an empty question.
const BlankQuestionReply = "Please type a question so I can help. You can ask about the page you captured or about common health topics."

// ChatHandler serves /api/chat and /api/analyse.
type ChatHandler struct {
	resolver *assistant.Resolver
	history  interaction.Log
	store    *session.Store
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(resolver *assistant.Resolver, history interaction.Log, store *session.Store) *ChatHandler {
	return &ChatHandler{resolver: resolver, history: history, store: store}
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
	Analyse   bool   `json:"analyse"`
}

// Chat resolves a question and records the exchange.
// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("body", "request body must be a JSON object"), "")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = DefaultChatSessionID
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"reply":     BlankQuestionReply,
			"sessionId": sessionID,
		})
		return
	}
	c.Set(QuestionContextKey, question)

	prompt := question
	if req.Analyse && h.store != nil {
		rec, err := h.store.Newest(c.Request.Context())
		switch {
		case err == nil:
			prompt = h.resolver.ComposeQuestion(question, rec)
		case apperrors.IsNotFound(err):
		default:
			log.WithError(err).Warn("chat: latest session unavailable, answering without context")
		}
	}

	result := h.resolver.ResolvePrompt(c.Request.Context(), question, prompt)

	entry, err := h.history.Append(sessionID, question, result.Text)
	if err != nil {
		log.WithError(err).WithField("session_id", sessionID).Warn("chat: failed to persist interaction log")
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reply":     result.Text,
		"sessionId": sessionID,
		"timestamp": entry.Time.Format(time.RFC3339Nano),
		"source":    result.Source,
	})
}

// History lists the exchanges for one chat session.
// GET /api/chat/history/:sessionId
func (h *ChatHandler) History(c *gin.Context) {
	sessionID := c.Param("sessionId")
	entries := h.history.History(sessionID)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": sessionID,
		"history":   entries,
		"count":     len(entries),
	})
}

// ClearHistory removes the exchanges for one chat session.
// DELETE /api/chat/history/:sessionId
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")
	removed, err := h.history.Clear(sessionID)
	if err != nil {
		respondError(c, apperrors.Internal("failed to clear chat history", err), "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": sessionID, "removed": removed})
}

// AnalyseLatest analyses the newest stored session.
// GET /api/analyse/latest
func (h *ChatHandler) AnalyseLatest(c *gin.Context) {
	result, recordID, err := h.resolver.AnalyseLatest(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"analysis": result.Text,
		"recordId": recordID,
		"source":   result.Source,
	})
}
