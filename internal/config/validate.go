package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Model validation
	validProviders := []string{"ollama", "openai"}
	if !slices.Contains(validProviders, cfg.Model.Provider) {
		add("model.provider", "must be one of %v, got %q", validProviders, cfg.Model.Provider)
	}
	if cfg.Model.Host == "" {
		add("model.host", "host is required")
	}
	if cfg.Model.Port < 1 || cfg.Model.Port > 65535 {
		add("model.port", "port must be 1-65535, got %d", cfg.Model.Port)
	}
	if cfg.Model.Name == "" {
		add("model.name", "model name is required")
	}
	if cfg.Model.TimeoutSeconds <= 0 {
		add("model.timeoutSeconds", "a model timeout is mandatory, got %d", cfg.Model.TimeoutSeconds)
	}
	if cfg.Model.Concurrency < 1 {
		add("model.concurrency", "must be at least 1, got %d", cfg.Model.Concurrency)
	}
	if t := cfg.Model.Temperature; t != nil && (*t < 0 || *t > 2) {
		add("model.temperature", "must be 0-2, got %.2f", *t)
	}

	// GitHub validation
	if u, err := url.Parse(cfg.GitHub.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("github.baseUrl", "must be an absolute URL, got %q", cfg.GitHub.BaseURL)
	}
	if cfg.GitHub.PerPage < 1 || cfg.GitHub.PerPage > 100 {
		add("github.perPage", "must be 1-100, got %d", cfg.GitHub.PerPage)
	}
	if cfg.GitHub.MaxPages < 1 {
		add("github.maxPages", "must be at least 1, got %d", cfg.GitHub.MaxPages)
	}

	// Session validation
	validStores := []string{"sqlite", "memory"}
	if !slices.Contains(validStores, cfg.Session.Store) {
		add("session.store", "must be one of %v, got %q", validStores, cfg.Session.Store)
	}
	if cfg.Session.HistoryTurns < 0 {
		add("session.historyTurns", "must not be negative, got %d", cfg.Session.HistoryTurns)
	}

	// Dispatch validation
	if cfg.Dispatch.MaxClarifyAttempts < 1 {
		add("dispatch.maxClarifyAttempts", "must be at least 1, got %d", cfg.Dispatch.MaxClarifyAttempts)
	}
	if cfg.Dispatch.MaxRetryWaitSeconds < 0 {
		add("dispatch.maxRetryWaitSeconds", "must not be negative, got %d", cfg.Dispatch.MaxRetryWaitSeconds)
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
