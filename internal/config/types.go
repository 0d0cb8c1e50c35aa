package config

// Config is the root configuration for ghagent.
type Config struct {
	Model    ModelConfig    `yaml:"model,omitempty"`
	GitHub   GitHubConfig   `yaml:"github,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Dispatch DispatchConfig `yaml:"dispatch,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
}

// ModelConfig selects the language-model service used for intent extraction.
type ModelConfig struct {
	Provider       string   `yaml:"provider,omitempty"` // "ollama" | "openai"
	Host           string   `yaml:"host,omitempty"`
	Port           int      `yaml:"port,omitempty"`
	Name           string   `yaml:"name,omitempty"`
	APIKey         string   `yaml:"apiKey,omitempty"` // openai-compatible endpoints only
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
	RetryBackoffMs int      `yaml:"retryBackoffMs,omitempty"`
	Concurrency    int      `yaml:"concurrency,omitempty"` // simultaneous generations per endpoint
	Temperature    *float64 `yaml:"temperature,omitempty"`
	MaxTokens      int      `yaml:"maxTokens,omitempty"`
}

// GitHubConfig configures the hosting API client.
type GitHubConfig struct {
	Token          string `yaml:"token,omitempty"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	PerPage        int    `yaml:"perPage,omitempty"`
	MaxPages       int    `yaml:"maxPages,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// SessionConfig defines session storage and prompt context.
type SessionConfig struct {
	Store        string `yaml:"store,omitempty"` // "sqlite" | "memory"
	Path         string `yaml:"path,omitempty"`  // sqlite file; defaults under the data dir
	HistoryTurns int    `yaml:"historyTurns,omitempty"`
}

// DispatchConfig tunes the action dispatcher.
type DispatchConfig struct {
	DefaultLimit        int `yaml:"defaultLimit,omitempty"`
	MaxClarifyAttempts  int `yaml:"maxClarifyAttempts,omitempty"`
	MaxRetryWaitSeconds int `yaml:"maxRetryWaitSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// ServerConfig controls the HTTP surface started by `ghagent serve`.
type ServerConfig struct {
	Bind           string   `yaml:"bind,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}
