// Package api provides the HTTP server for the capture service: engine setup,
// middleware, routes, CORS and graceful start/stop.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagepilot/pagepilot/internal/api/handlers"
	"github.com/pagepilot/pagepilot/internal/api/middleware"
	"github.com/pagepilot/pagepilot/internal/assistant"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/forward"
	"github.com/pagepilot/pagepilot/internal/interaction"
	"github.com/pagepilot/pagepilot/internal/logging"
	"github.com/pagepilot/pagepilot/internal/session"
	log "github.com/sirupsen/logrus"
)

// Dependencies are the services the server routes to.
type Dependencies struct {
	Store     *session.Store
	History   interaction.Log
	Resolver  *assistant.Resolver
	Forwarder *forward.Forwarder
	// Started is reported as uptime by /api/health. Zero means now.
	Started time.Time
}

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	engineConfigurator func(*gin.Engine)
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends middleware after the built-in chain.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator runs fn on the engine before any middleware is added.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// Server wraps the Gin engine and the underlying http.Server.
type Server struct {
	engine *gin.Engine
	server *http.Server

	// cfgHolder provides race-safe config snapshots for middleware reads.
	cfgHolder atomic.Pointer[config.Config]

	deps   Dependencies
	routes []string
}

// NewServer creates the engine, installs middleware and registers routes.
func NewServer(cfg *config.Config, deps Dependencies, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{}
	for i := range opts {
		opts[i](optionState)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}

	engine := gin.New()
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}

	middleware.SetMetricsEnabled(cfg.Metrics.IsEnabled())

	s := &Server{engine: engine, deps: deps}
	s.cfgHolder.Store(cfg)

	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery(s.recoveryReply))
	engine.Use(middleware.ConnectionTrackerMiddleware())
	engine.Use(middleware.PrometheusMiddleware())
	engine.Use(corsMiddleware(s.getConfig))
	engine.Use(middleware.RequestDecompressionMiddleware())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// setupRoutes registers every endpoint and the 404 route directory.
func (s *Server) setupRoutes() {
	sessions := handlers.NewSessionHandler(s.deps.Store)
	chat := handlers.NewChatHandler(s.deps.Resolver, s.deps.History, s.deps.Store)
	status := handlers.NewStatusHandler(s.deps.Store, s.deps.History, s.deps.Started)
	legacy := handlers.NewLegacyHandler(s.deps.Store, s.deps.Forwarder)

	api := s.engine.Group("/api")
	{
		api.POST("/summaries", sessions.Create)
		api.GET("/summaries", sessions.List)
		api.GET("/summaries/latest", sessions.Latest)
		api.GET("/summaries/voice", sessions.Voice)
		api.GET("/summaries/:id", sessions.Get)
		api.DELETE("/summaries/:id", sessions.Delete)

		api.POST("/chat", chat.Chat)
		api.GET("/chat/history/:sessionId", chat.History)
		api.DELETE("/chat/history/:sessionId", chat.ClearHistory)
		api.GET("/analyse/latest", chat.AnalyseLatest)

		api.GET("/stats", status.Stats)
		api.GET("/health", status.Health)
	}
	s.engine.POST("/summarize", legacy.Summarize)
	s.engine.GET("/metrics", middleware.MetricsHandler())

	for _, r := range s.engine.Routes() {
		s.routes = append(s.routes, r.Method+" "+r.Path)
	}
	sort.Strings(s.routes)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "route not found: " + c.Request.Method + " " + c.Request.URL.Path,
			"routes":  s.routes,
		})
	})
}

// recoveryReply gives a panicking chat request a canned answer for the
// question captured before the panic.
func (s *Server) recoveryReply(c *gin.Context) (string, bool) {
	if s.deps.Resolver == nil || !strings.HasPrefix(c.Request.URL.Path, "/api/chat") {
		return "", false
	}
	question := c.GetString(handlers.QuestionContextKey)
	if question == "" {
		return "", false
	}
	return s.deps.Resolver.LocalReply(question), true
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// UpdateConfig swaps the configuration read by request-time middleware.
func (s *Server) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.cfgHolder.Store(cfg)
	middleware.SetMetricsEnabled(cfg.Metrics.IsEnabled())
}

// Start listens and serves until Stop is called. It blocks.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}
	log.Debugf("Starting API server on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %v", errServe)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}
	log.Debug("API server stopped")
	return nil
}

// corsMiddleware adds CORS headers. With no configured origins any origin is
// allowed, which is what chrome-extension:// callers need.
func corsMiddleware(getCfg func() *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var allowOrigins []string
		if cfg := getCfg(); cfg != nil {
			allowOrigins = cfg.CORS.AllowOrigins
		}

		origin := strings.TrimSpace(c.GetHeader("Origin"))
		allowedOrigin := ""
		if origin != "" {
			switch {
			case len(allowOrigins) == 0:
				allowedOrigin = "*"
			case originAllowed(allowOrigins, origin):
				allowedOrigin = origin
			}
		}

		if allowedOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowedOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Encoding, X-Request-Id")
			if allowedOrigin != "*" {
				c.Header("Vary", "Origin")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(allowOrigins []string, origin string) bool {
	for _, allowed := range allowOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) getConfig() *config.Config {
	if s == nil {
		return nil
	}
	return s.cfgHolder.Load()
}
