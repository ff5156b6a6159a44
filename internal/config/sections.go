package config

import "time"

// Store drivers accepted by StoreConfig.Driver.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to call the API. Empty allows any origin,
	// which is what a browser extension with a chrome-extension:// origin needs.
	AllowOrigins []string `yaml:"allow-origins,omitempty" json:"allow-origins,omitempty"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled toggles /metrics and request instrumentation.
	// nil means default (true).
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// StoreConfig selects the session record backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver" json:"driver"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite-path" json:"sqlite-path"`

	// PostgresDSN is the connection string for the postgres driver.
	PostgresDSN string `yaml:"postgres-dsn" json:"-"`

	// PostgresSchema optionally places the tables in a dedicated schema.
	PostgresSchema string `yaml:"postgres-schema" json:"postgres-schema"`
}

// InteractionLogConfig holds chat history settings.
type InteractionLogConfig struct {
	// Path is the JSON snapshot file. Defaults to data/chat-history.json.
	Path string `yaml:"path" json:"path"`

	// MaxEntries is the size above which the log is truncated.
	MaxEntries int `yaml:"max-entries" json:"max-entries"`

	// RetainEntries is how many of the most recent entries survive truncation.
	RetainEntries int `yaml:"retain-entries" json:"retain-entries"`
}

// RemoteConfig holds the LLM responder settings.
type RemoteConfig struct {
	// Enabled toggles remote calls. nil means default (true).
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// BaseURL is an OpenAI-compatible API root, e.g. https://api.openai.com/v1.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// APIKey is the bearer credential. Empty is valid and disables remote replies.
	APIKey string `yaml:"api-key" json:"-"`

	// Model is the chat completion model name.
	Model string `yaml:"model" json:"model"`

	// TimeoutSeconds bounds each remote call. nil means default (10).
	TimeoutSeconds *int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`

	// MaxPromptTokens caps the prompt sent upstream. nil means default (2000).
	MaxPromptTokens *int `yaml:"max-prompt-tokens,omitempty" json:"max-prompt-tokens,omitempty"`
}

// AnalysisConfig holds analysis prompt settings.
type AnalysisConfig struct {
	// MaxContextChars truncates stored text before it is embedded in a prompt.
	MaxContextChars int `yaml:"max-context-chars" json:"max-context-chars"`
}

// ForwardConfig holds the legacy summary webhook.
type ForwardConfig struct {
	// URL receives a JSON copy of each legacy summary. Empty disables forwarding.
	URL string `yaml:"url" json:"url"`

	// TimeoutSeconds bounds each forward. nil means default (10).
	TimeoutSeconds *int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`
}

// IsEnabled returns whether metrics are enabled, defaulting to true.
func (c *MetricsConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// IsEnabled returns whether remote calls are enabled, defaulting to true.
func (c *RemoteConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetTimeoutSeconds returns the remote timeout, defaulting to 10 seconds.
func (c *RemoteConfig) GetTimeoutSeconds() int {
	if c == nil || c.TimeoutSeconds == nil || *c.TimeoutSeconds <= 0 {
		return 10
	}
	return *c.TimeoutSeconds
}

// Timeout returns GetTimeoutSeconds as a duration.
func (c *RemoteConfig) Timeout() time.Duration {
	return time.Duration(c.GetTimeoutSeconds()) * time.Second
}

// GetMaxPromptTokens returns the prompt token cap, defaulting to 2000.
func (c *RemoteConfig) GetMaxPromptTokens() int {
	if c == nil || c.MaxPromptTokens == nil || *c.MaxPromptTokens <= 0 {
		return 2000
	}
	return *c.MaxPromptTokens
}

// Timeout returns the forward timeout, defaulting to 10 seconds.
func (c *ForwardConfig) Timeout() time.Duration {
	if c == nil || c.TimeoutSeconds == nil || *c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(*c.TimeoutSeconds) * time.Second
}
