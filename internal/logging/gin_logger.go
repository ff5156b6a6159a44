// Package logging wires logrus into the process and into Gin: base formatter,
// level mapping, rotating file output, request logging and panic recovery.
package logging

import (
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const skipGinLogKey = "__gin_skip_request_logging__"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// GinLogrusLogger returns a Gin middleware that logs each request through logrus
// with status-dependent severity and a request id propagated in X-Request-Id.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := maskSensitiveQuery(c.Request.URL.RawQuery)

		requestID := c.Request.Header.Get(RequestIDHeader)
		if strings.TrimSpace(requestID) == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()

		if shouldSkipGinRequestLogging(c) {
			return
		}

		if raw != "" {
			path = path + "?" + raw
		}

		latency := time.Since(start).Truncate(time.Millisecond)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		userAgent := c.Request.UserAgent()

		clientType := "generic"
		uaLower := strings.ToLower(userAgent)
		switch {
		case strings.Contains(uaLower, "chrome-extension") || c.GetHeader("Origin") != "" && strings.HasPrefix(c.GetHeader("Origin"), "chrome-extension://"):
			clientType = "extension"
		case strings.Contains(uaLower, "curl"):
			clientType = "curl"
		}

		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()
		logLine := fmt.Sprintf("[GIN] %3d | %13v | %15s | %-7s \"%s\"", statusCode, latency, clientIP, method, path)
		if errorMessage != "" {
			logLine = logLine + " | " + errorMessage
		}

		fields := log.Fields{
			"status":      statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
			"request_id":  requestID,
			"client_type": clientType,
		}
		if userAgent != "" {
			ua := userAgent
			if len(ua) > 180 {
				ua = ua[:180] + "..."
			}
			fields["user_agent"] = ua
		}

		entry := log.WithFields(fields)
		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(logLine)
		case statusCode >= http.StatusBadRequest:
			entry.Warn(logLine)
		default:
			entry.Info(logLine)
		}
	}
}

// RecoveryReply supplies an extra best-effort reply for a request that panicked.
// Returning ok=false leaves the error body without a reply.
type RecoveryReply func(c *gin.Context) (reply string, ok bool)

// GinLogrusRecovery returns a Gin middleware that recovers from panics, logs them,
// and answers 500 {success:false, error}. When fallback yields a reply it is
// included in the body.
func GinLogrusRecovery(fallback RecoveryReply) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(log.Fields{
			"panic": recovered,
			"stack": string(debug.Stack()),
			"path":  c.Request.URL.Path,
		}).Error("recovered from panic")

		body := gin.H{"success": false, "error": "internal server error"}
		if fallback != nil {
			if reply, ok := fallback(c); ok {
				body["reply"] = reply
			}
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

// SkipGinRequestLogging marks the context so GinLogrusLogger emits no line for it.
func SkipGinRequestLogging(c *gin.Context) {
	if c == nil {
		return
	}
	c.Set(skipGinLogKey, true)
}

func shouldSkipGinRequestLogging(c *gin.Context) bool {
	if c == nil {
		return false
	}
	val, exists := c.Get(skipGinLogKey)
	if !exists {
		return false
	}
	flag, ok := val.(bool)
	return ok && flag
}

var sensitiveQueryKeys = []string{"key", "api_key", "apikey", "token", "access_token"}

// maskSensitiveQuery hides credential-looking query values in log lines.
func maskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return raw
	}
	changed := false
	for _, k := range sensitiveQueryKeys {
		for key := range values {
			if strings.EqualFold(key, k) {
				values.Set(key, "***")
				changed = true
			}
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}
