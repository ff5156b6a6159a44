package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pagepilot/pagepilot/internal/forward"
	"github.com/pagepilot/pagepilot/internal/session"
	log "github.com/sirupsen/logrus"
)

// UnknownURL stands in for legacy requests that carry no page url.
const UnknownURL = "unknown"

// LegacyHandler serves the original extension endpoint POST /summarize.
type LegacyHandler struct {
	store     *session.Store
	forwarder *forward.Forwarder
}

// NewLegacyHandler creates a LegacyHandler. forwarder may be nil.
func NewLegacyHandler(store *session.Store, forwarder *forward.Forwarder) *LegacyHandler {
	return &LegacyHandler{store: store, forwarder: forwarder}
}

type summarizeRequest struct {
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Summarize stores the summary, forwards it when a target is configured, and
// echoes it back unchanged.
// POST /summarize
func (h *LegacyHandler) Summarize(c *gin.Context) {
	var req summarizeRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No summary received"})
		return
	}

	pageURL := strings.TrimSpace(req.URL)
	if pageURL == "" {
		pageURL = UnknownURL
	}

	rec, err := h.store.Create(c.Request.Context(), session.CreateInput{
		URL:         pageURL,
		SummaryText: req.Content,
		SessionType: string(session.TypeSummaryOnly),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		log.WithError(err).Error("summarize: failed to store legacy summary")
	}

	if h.forwarder.Enabled() {
		s := forward.Summary{PageURL: req.URL, Content: req.Content}
		if rec != nil {
			s.Time = rec.Timestamp
		}
		if err := h.forwarder.Send(c.Request.Context(), s); err != nil {
			log.WithError(err).Error("summarize: forward failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to forward to RequestBin"})
			return
		}
		log.Info("full summary forwarded")
	}

	c.JSON(http.StatusOK, gin.H{"summary": req.Content})
}
