// Package handlers provides the HTTP handlers for the capture server.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pagepilot/pagepilot/internal/errors"
	log "github.com/sirupsen/logrus"
)

// errorResponse is the body for every non-2xx JSON reply under /api.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// respondError maps err onto its HTTP status. Unclassified errors become 500
// with fallbackMessage; backend text is only logged.
func respondError(c *gin.Context, err error, fallbackMessage string) {
	appErr := apperrors.As(err, fallbackMessage)
	status := appErr.HTTPStatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	entry := log.WithFields(log.Fields{
		"code":       appErr.Code,
		"path":       c.Request.URL.Path,
		"request_id": c.GetString("request_id"),
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(appErr.Err).Error(appErr.Message)
	} else {
		entry.Debug(appErr.Message)
	}
	_ = c.Error(err)

	body := errorResponse{Success: false, Error: appErr.Message, Code: appErr.Code}
	if field, ok := appErr.Details["field"].(string); ok {
		body.Field = field
	}
	c.JSON(status, body)
}

// queryInt parses a positive integer query value, returning def for absent,
// malformed or non-positive input.
func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
