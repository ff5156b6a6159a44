// Package main provides the entry point for the PagePilot capture server.
// It stores page summaries and voice notes sent by the browser extension and
// answers chat questions about them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pagepilot/pagepilot/internal/api"
	"github.com/pagepilot/pagepilot/internal/assistant"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/forward"
	"github.com/pagepilot/pagepilot/internal/interaction"
	"github.com/pagepilot/pagepilot/internal/logging"
	"github.com/pagepilot/pagepilot/internal/session"
	"github.com/pagepilot/pagepilot/internal/watcher"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const shutdownTimeout = 15 * time.Second

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	var showVersion bool
	var verboseMode bool
	var quietMode bool

	flag.StringVar(&configPath, "config", "config.yaml", "Configure File Path")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&verboseMode, "verbose", false, "Enable debug logging")
	flag.BoolVar(&quietMode, "quiet", false, "Only log errors")
	flag.Parse()

	if showVersion {
		fmt.Printf("PagePilot Version: %s, Commit: %s, BuiltAt: %s\n", Version, Commit, BuildDate)
		return
	}

	if err := run(configPath, verboseMode, quietMode); err != nil {
		log.WithError(err).Error("pagepilot exited with error")
		os.Exit(1)
	}
}

func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

func logLevelFor(cfg *config.Config, verbose, quiet bool) string {
	switch {
	case verbose:
		return "debug"
	case quiet:
		return "error"
	default:
		return cfg.LogLevel
	}
}

func remoteSettings(cfg *config.Config) assistant.RemoteSettings {
	return assistant.RemoteSettings{
		Enabled:         cfg.Remote.IsEnabled(),
		BaseURL:         strings.TrimRight(cfg.Remote.BaseURL, "/"),
		APIKey:          cfg.Remote.APIKey,
		Model:           cfg.Remote.Model,
		MaxPromptTokens: cfg.Remote.GetMaxPromptTokens(),
	}
}

// loadConfig reads the file, applies environment overrides and validates.
func loadConfig(configPath string) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides(lookupEnv)

	warnings, err := config.ValidateConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	return cfg, nil
}

func run(configPath string, verbose, quiet bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logging.SetLogLevel(logLevelFor(cfg, verbose, quiet))
	if err := logging.ConfigureLogOutput(cfg); err != nil {
		return fmt.Errorf("failed to configure log output: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := session.OpenRepository(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	store := session.NewStore(repo)
	defer func() {
		if errClose := store.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close session store")
		}
	}()

	history, err := interaction.NewFileLog(interaction.Options{
		Path:          cfg.InteractionLog.Path,
		MaxEntries:    cfg.InteractionLog.MaxEntries,
		RetainEntries: cfg.InteractionLog.RetainEntries,
	})
	if err != nil {
		return fmt.Errorf("failed to open interaction log: %w", err)
	}

	responder := assistant.NewOpenAIResponder(remoteSettings(cfg), nil)
	resolver := assistant.NewResolver(assistant.Options{
		Responder:       responder,
		Sessions:        store,
		Timeout:         cfg.Remote.Timeout(),
		MaxContextChars: cfg.Analysis.MaxContextChars,
	})

	server := api.NewServer(cfg, api.Dependencies{
		Store:     store,
		History:   history,
		Resolver:  resolver,
		Forwarder: forward.New(cfg.Forward.URL, cfg.Forward.Timeout()),
	}, api.WithEngineConfigurator(func(e *gin.Engine) {
		// The extension talks to the server directly; no proxy headers are trusted.
		if errProxies := e.SetTrustedProxies(nil); errProxies != nil {
			log.WithError(errProxies).Warn("failed to reset trusted proxies")
		}
	}))

	if w, errWatch := watcher.New(configPath, lookupEnv, func(next *config.Config) {
		logging.SetLogLevel(logLevelFor(next, verbose, quiet))
		responder.Update(remoteSettings(next))
		resolver.SetTimeout(next.Remote.Timeout())
		server.UpdateConfig(next)
		log.Info("configuration reloaded")
	}); errWatch != nil {
		log.WithError(errWatch).Warn("config hot reload disabled")
	} else {
		defer w.Close()
		go w.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	log.Infof("PagePilot %s listening on %s:%d (store: %s)", Version, cfg.Host, cfg.Port, store.Driver())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}
