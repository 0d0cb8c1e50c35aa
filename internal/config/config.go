package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Model: ModelConfig{
			Provider:       "ollama",
			Host:           "localhost",
			Port:           11434,
			Name:           "qwen2.5-coder:7b",
			TimeoutSeconds: 60,
			RetryBackoffMs: 500,
			Concurrency:    1,
		},
		GitHub: GitHubConfig{
			BaseURL:        "https://api.github.com",
			PerPage:        30,
			MaxPages:       3,
			TimeoutSeconds: 30,
		},
		Session: SessionConfig{
			Store:        "sqlite",
			HistoryTurns: 6,
		},
		Dispatch: DispatchConfig{
			DefaultLimit:        30,
			MaxClarifyAttempts:  2,
			MaxRetryWaitSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8502",
		},
	}
}

// BaseURL returns the language-model endpoint root, e.g. http://localhost:11434.
func (m ModelConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", m.Host, m.Port)
}

// Timeout returns the per-attempt model timeout.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Backoff returns the wait before the single model retry.
func (m ModelConfig) Backoff() time.Duration {
	return time.Duration(m.RetryBackoffMs) * time.Millisecond
}

// Timeout returns the HTTP timeout for hosting API calls.
func (g GitHubConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// MaxRetryWait bounds how long the dispatcher waits on a rate limit before retrying.
func (d DispatchConfig) MaxRetryWait() time.Duration {
	return time.Duration(d.MaxRetryWaitSeconds) * time.Second
}

// Redacted returns a copy safe to print: secrets are masked.
func (c Config) Redacted() Config {
	c.GitHub.Token = mask(c.GitHub.Token)
	c.Model.APIKey = mask(c.Model.APIKey)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
