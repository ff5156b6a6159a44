package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pagepilot/pagepilot/internal/errors"
	"github.com/pagepilot/pagepilot/internal/session"
)

// SessionHandler serves /api/summaries.
type SessionHandler struct {
	store *session.Store
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// recordResponse adds the legacy "_id" alias to a record.
type recordResponse struct {
	LegacyID string `json:"_id"`
	*session.Record
}

func toResponse(rec *session.Record) recordResponse {
	return recordResponse{LegacyID: rec.ID, Record: rec}
}

func toResponses(recs []*session.Record) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toResponse(r))
	}
	return out
}

type createSessionRequest struct {
	URL             string `json:"url"`
	PageTitle       string `json:"pageTitle"`
	SummaryText     string `json:"summaryText"`
	VoiceText       string `json:"voiceText"`
	SummaryType     string `json:"summaryType"`
	SessionType     string `json:"sessionType"`
	SummaryLength   *int   `json:"summaryLength"`
	VoiceLength     *int   `json:"voiceLength"`
	SessionDuration *int64 `json:"sessionDuration"`
	UserAgent       string `json:"userAgent"`
}

// Create stores a new session.
// POST /api/summaries
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.Validation("body", "request body must be a JSON object with valid field types"), "")
		return
	}
	userAgent := req.UserAgent
	if strings.TrimSpace(userAgent) == "" {
		userAgent = c.Request.UserAgent()
	}

	rec, err := h.store.Create(c.Request.Context(), session.CreateInput{
		URL:             req.URL,
		PageTitle:       req.PageTitle,
		SummaryText:     req.SummaryText,
		VoiceText:       req.VoiceText,
		SummaryType:     req.SummaryType,
		SessionType:     req.SessionType,
		SummaryLength:   req.SummaryLength,
		VoiceLength:     req.VoiceLength,
		SessionDuration: req.SessionDuration,
		UserAgent:       userAgent,
	})
	if err != nil {
		respondError(c, err, "failed to save session")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "session saved",
		"data": gin.H{
			"id":          rec.ID,
			"sessionType": rec.SessionType,
			"timestamp":   rec.Timestamp.Format(time.RFC3339Nano),
			"tags":        rec.Tags,
		},
	})
}

// parseSessionTypes reads a comma-separated sessionType filter.
func parseSessionTypes(raw string) ([]session.SessionType, error) {
	var types []session.SessionType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, ok := session.ParseSessionType(part)
		if !ok {
			return nil, apperrors.Validation("sessionType", "sessionType must be one of summary_only, voice_only, dual")
		}
		types = append(types, t)
	}
	return types, nil
}

// List returns one page of sessions.
// GET /api/summaries?page=&limit=&sessionType=
func (h *SessionHandler) List(c *gin.Context) {
	types, err := parseSessionTypes(c.Query("sessionType"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	page, err := h.store.List(c.Request.Context(), session.ListOptions{
		SessionTypes: types,
		Page:         queryInt(c, "page", session.DefaultPage),
		PageSize:     queryInt(c, "limit", session.DefaultPageSize),
	})
	if err != nil {
		respondError(c, err, "failed to fetch sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    toResponses(page.Records),
		"pagination": gin.H{
			"page":       page.Page,
			"limit":      page.PageSize,
			"total":      page.Total,
			"totalPages": page.TotalPages,
		},
	})
}

// Latest returns the newest sessions.
// GET /api/summaries/latest?limit=
func (h *SessionHandler) Latest(c *gin.Context) {
	recs, err := h.store.Latest(c.Request.Context(), queryInt(c, "limit", session.DefaultLatestLimit))
	if err != nil {
		respondError(c, err, "failed to fetch sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toResponses(recs), "count": len(recs)})
}

// Voice returns the newest sessions carrying voice content.
// GET /api/summaries/voice?limit=
func (h *SessionHandler) Voice(c *gin.Context) {
	recs, err := h.store.VoiceOnly(c.Request.Context(), queryInt(c, "limit", session.DefaultVoiceLimit))
	if err != nil {
		respondError(c, err, "failed to fetch sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toResponses(recs), "count": len(recs)})
}

// Get returns one session.
// GET /api/summaries/:id
func (h *SessionHandler) Get(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to fetch sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": toResponse(rec)})
}

// Delete removes one session.
// DELETE /api/summaries/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "failed to delete session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "session deleted", "id": id})
}
