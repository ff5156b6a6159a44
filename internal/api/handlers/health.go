package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagepilot/pagepilot/internal/api/middleware"
	"github.com/pagepilot/pagepilot/internal/interaction"
	"github.com/pagepilot/pagepilot/internal/logging"
	"github.com/pagepilot/pagepilot/internal/session"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 3 * time.Second

// StatusHandler serves /api/stats and /api/health.
type StatusHandler struct {
	store   *session.Store
	history interaction.Log
	started time.Time
}

// NewStatusHandler creates a StatusHandler. started is the process start time.
func NewStatusHandler(store *session.Store, history interaction.Log, started time.Time) *StatusHandler {
	return &StatusHandler{store: store, history: history, started: started}
}

// Counts are the dashboard counters.
type Counts struct {
	Total        int `json:"total"`
	Today        int `json:"today"`
	Voice        int `json:"voice"`
	Interactions int `json:"interactions"`
}

func (h *StatusHandler) counts(ctx context.Context) (Counts, error) {
	var out Counts
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Total, err = h.store.CountTotal(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Today, err = h.store.CountToday(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Voice, err = h.store.CountVoice(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	out.Interactions = h.history.Len()
	return out, nil
}

// Stats returns the dashboard counters.
// GET /api/stats
func (h *StatusHandler) Stats(c *gin.Context) {
	counts, err := h.counts(c.Request.Context())
	if err != nil {
		respondError(c, err, "failed to fetch sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": counts})
}

// Health reports store connectivity and counters. It answers 503 when the
// store cannot be reached.
// GET /api/health
func (h *StatusHandler) Health(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	body := gin.H{
		"uptimeSeconds":     int64(time.Since(h.started).Seconds()),
		"activeConnections": middleware.ActiveConnections(),
		"recentIssues":      logging.GlobalBuffer.Recent(5),
	}
	store := gin.H{"connected": true, "driver": h.store.Driver()}
	body["store"] = store

	if err := h.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("health: store ping failed")
		store["connected"] = false
		body["status"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	counts, err := h.counts(ctx)
	if err != nil {
		log.WithError(err).Warn("health: counting sessions failed")
		body["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	body["counts"] = counts
	c.JSON(http.StatusOK, body)
}
