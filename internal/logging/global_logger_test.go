package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pagepilot/pagepilot/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected log.Level
	}{
		{"debug lowercase", "debug", log.DebugLevel},
		{"debug uppercase", "DEBUG", log.DebugLevel},
		{"debug mixed case", "Debug", log.DebugLevel},
		{"verbose lowercase", "verbose", log.DebugLevel},
		{"verbose uppercase", "VERBOSE", log.DebugLevel},
		{"verbose mixed case", "Verbose", log.DebugLevel},

		{"info lowercase", "info", log.InfoLevel},
		{"info uppercase", "INFO", log.InfoLevel},
		{"info mixed case", "Info", log.InfoLevel},

		{"warn lowercase", "warn", log.WarnLevel},
		{"warn uppercase", "WARN", log.WarnLevel},
		{"warning lowercase", "warning", log.WarnLevel},
		{"warning uppercase", "WARNING", log.WarnLevel},
		{"warning mixed case", "Warning", log.WarnLevel},

		{"error lowercase", "error", log.ErrorLevel},
		{"error uppercase", "ERROR", log.ErrorLevel},
		{"error mixed case", "Error", log.ErrorLevel},

		// Fatal level (quiet/silent)
		{"quiet lowercase", "quiet", log.FatalLevel},
		{"quiet uppercase", "QUIET", log.FatalLevel},
		{"silent lowercase", "silent", log.FatalLevel},
		{"silent uppercase", "SILENT", log.FatalLevel},

		// Default (unknown) -> InfoLevel
		{"unknown string", "unknown", log.InfoLevel},
		{"empty string", "", log.InfoLevel},
		{"random string", "foobar", log.InfoLevel},
		{"numeric string", "123", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
				log.SetLevel(log.PanicLevel)

			SetLogLevel(tt.input)

			got := log.GetLevel()
			if got != tt.expected {
				t.Errorf("SetLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConfigureLogOutput_File(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{LoggingToFile: true, LogsDir: filepath.Join(dir, "logs"), LogsMaxSizeMB: 1}
	if err := ConfigureLogOutput(cfg); err != nil {
		t.Fatalf("ConfigureLogOutput() error = %v", err)
	}
	t.Cleanup(func() { _ = ConfigureLogOutput(nil) })

	log.SetLevel(log.InfoLevel)
	log.Info("written to file")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "pagepilot.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry, got %q", string(data))
	}
}
