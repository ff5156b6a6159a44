package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pagepilot/pagepilot/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce    sync.Once
	outputMu     sync.Mutex
	activeWriter *lumberjack.Logger
)

// SetupBaseLogger installs the shared text formatter and the recent-issues hook.
// It is safe to call more than once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		log.AddHook(GlobalBuffer)
	})
}

// SetLogLevel maps a configuration string onto a logrus level. Unknown values fall
// back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// ConfigureLogOutput routes log output according to cfg. With logging-to-file set,
// entries go to a rotating file under logs-dir; otherwise to stdout.
func ConfigureLogOutput(cfg *config.Config) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if cfg == nil || !cfg.LoggingToFile {
		closeActiveWriter()
		log.SetOutput(os.Stdout)
		return nil
	}

	dir := cfg.LogsDir
	if strings.TrimSpace(dir) == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	closeActiveWriter()
	activeWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "pagepilot.log"),
		MaxSize:    cfg.LogsMaxSizeMB,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.Writer(activeWriter))
	return nil
}

func closeActiveWriter() {
	if activeWriter != nil {
		_ = activeWriter.Close()
		activeWriter = nil
	}
}
