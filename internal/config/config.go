// Package config provides configuration management for the PagePilot capture server.
// It handles loading and parsing the YAML configuration file, applying defaults and
// environment overrides, and validating the result before the server starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPort is used when the configuration does not name a port.
const DefaultPort = 3000

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the HTTP server binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the HTTP listen port.
	Port int `yaml:"port" json:"port"`

	// Debug switches gin into debug mode and raises the log level.
	Debug bool `yaml:"debug" json:"debug"`

	// LogLevel is one of debug, info, warn, error, quiet.
	LogLevel string `yaml:"log-level" json:"log-level"`

	// LoggingToFile routes logs to a rotating file under LogsDir instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsDir is the directory for rotated log files.
	LogsDir string `yaml:"logs-dir" json:"logs-dir"`

	// LogsMaxSizeMB is the size at which the active log file is rotated.
	LogsMaxSizeMB int `yaml:"logs-max-size-mb" json:"logs-max-size-mb"`

	// CORS configures cross-origin access for the browser extension.
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Store selects and configures the durable session record backend.
	Store StoreConfig `yaml:"store" json:"store"`

	// InteractionLog configures the bounded chat history ledger.
	InteractionLog InteractionLogConfig `yaml:"interaction-log" json:"interaction-log"`

	// Remote configures the LLM responder.
	Remote RemoteConfig `yaml:"remote" json:"remote"`

	// Analysis configures how stored sessions are turned into analysis prompts.
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`

	// Forward configures the webhook that receives legacy summaries.
	Forward ForwardConfig `yaml:"forward" json:"forward"`
}

// LoadConfig reads and parses the YAML file at path. A missing file is an error.
func LoadConfig(path string) (*Config, error) {
	return LoadConfigOptional(path, false)
}

// LoadConfigOptional reads and parses the YAML file at path. When optional is
// true, a missing or unparsable file yields a default configuration instead of
// an error.
func LoadConfigOptional(path string, optional bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			if optional {
				cfg = &Config{}
				cfg.ApplyDefaults()
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
		if c.Debug {
			c.LogLevel = "debug"
		}
	}
	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}
	if c.LogsMaxSizeMB <= 0 {
		c.LogsMaxSizeMB = 10
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverSQLite
		if strings.TrimSpace(c.Store.PostgresDSN) != "" {
			c.Store.Driver = StoreDriverPostgres
		}
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "data/pagepilot.db"
	}
	if c.InteractionLog.Path == "" {
		c.InteractionLog.Path = "data/chat-history.json"
	}
	if c.InteractionLog.MaxEntries <= 0 {
		c.InteractionLog.MaxEntries = 1000
	}
	if c.InteractionLog.RetainEntries <= 0 {
		c.InteractionLog.RetainEntries = 500
	}
	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = "https://api.openai.com/v1"
	}
	if c.Remote.Model == "" {
		c.Remote.Model = "gpt-4o-mini"
	}
	if c.Analysis.MaxContextChars <= 0 {
		c.Analysis.MaxContextChars = 500
	}
}

// ApplyEnvOverrides copies values from the environment over file values. lookup
// returns the first non-empty value among the given keys.
func (c *Config) ApplyEnvOverrides(lookup func(keys ...string) (string, bool)) {
	if c == nil || lookup == nil {
		return
	}
	if v, ok := lookup("PORT"); ok {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v, ok := lookup("PGSTORE_DSN", "pgstore_dsn"); ok {
		c.Store.PostgresDSN = v
		c.Store.Driver = StoreDriverPostgres
	}
	if v, ok := lookup("PGSTORE_SCHEMA", "pgstore_schema"); ok {
		c.Store.PostgresSchema = v
	}
	if v, ok := lookup("LLM_API_KEY", "OPENAI_API_KEY"); ok {
		c.Remote.APIKey = v
	}
	if v, ok := lookup("LLM_BASE_URL", "OPENAI_BASE_URL"); ok {
		c.Remote.BaseURL = v
	}
	if v, ok := lookup("LLM_MODEL"); ok {
		c.Remote.Model = v
	}
	if v, ok := lookup("FORWARD_URL", "REQUESTBIN_URL"); ok {
		c.Forward.URL = v
	}
}

// ValidateConfig performs semantic validation. It returns warnings for
// suspicious-but-usable values and an error for values the server cannot run with.
func ValidateConfig(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	var warnings []string

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range (1-65535)", cfg.Port)
	}

	switch cfg.Store.Driver {
	case StoreDriverSQLite:
		if strings.TrimSpace(cfg.Store.SQLitePath) == "" {
			return nil, errors.New("store.sqlite-path is required for the sqlite driver")
		}
	case StoreDriverPostgres:
		if strings.TrimSpace(cfg.Store.PostgresDSN) == "" {
			return nil, errors.New("store.postgres-dsn is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q (expected sqlite or postgres)", cfg.Store.Driver)
	}

	if cfg.InteractionLog.RetainEntries >= cfg.InteractionLog.MaxEntries {
		return nil, fmt.Errorf("interaction-log.retain-entries (%d) must be below max-entries (%d)",
			cfg.InteractionLog.RetainEntries, cfg.InteractionLog.MaxEntries)
	}

	if cfg.Remote.IsEnabled() && strings.TrimSpace(cfg.Remote.APIKey) == "" {
		warnings = append(warnings, "remote.api-key is empty; chat replies will use the local classifier only")
	}
	if t := cfg.Remote.GetTimeoutSeconds(); t < 8 || t > 15 {
		warnings = append(warnings, fmt.Sprintf("remote.timeout-seconds=%d is outside the recommended 8-15s window", t))
	}
	if cfg.Forward.URL != "" && !strings.HasPrefix(cfg.Forward.URL, "http://") && !strings.HasPrefix(cfg.Forward.URL, "https://") {
		return nil, fmt.Errorf("forward.url %q must be an http(s) URL", cfg.Forward.URL)
	}

	return warnings, nil
}
