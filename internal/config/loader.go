package config

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables expand to the empty string so a placeholder never reaches
// an Authorization header.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.GitHub.Token = expandEnvVars(cfg.GitHub.Token)
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = def.Model.Provider
	}
	if cfg.Model.Host == "" {
		cfg.Model.Host = def.Model.Host
	}
	if cfg.Model.Port == 0 {
		cfg.Model.Port = def.Model.Port
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = def.Model.Name
	}
	if cfg.Model.TimeoutSeconds == 0 {
		cfg.Model.TimeoutSeconds = def.Model.TimeoutSeconds
	}
	if cfg.Model.RetryBackoffMs == 0 {
		cfg.Model.RetryBackoffMs = def.Model.RetryBackoffMs
	}
	if cfg.Model.Concurrency == 0 {
		cfg.Model.Concurrency = def.Model.Concurrency
	}
	if cfg.GitHub.BaseURL == "" {
		cfg.GitHub.BaseURL = def.GitHub.BaseURL
	}
	cfg.GitHub.BaseURL = strings.TrimSuffix(cfg.GitHub.BaseURL, "/")
	if cfg.GitHub.PerPage == 0 {
		cfg.GitHub.PerPage = def.GitHub.PerPage
	}
	if cfg.GitHub.MaxPages == 0 {
		cfg.GitHub.MaxPages = def.GitHub.MaxPages
	}
	if cfg.GitHub.TimeoutSeconds == 0 {
		cfg.GitHub.TimeoutSeconds = def.GitHub.TimeoutSeconds
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = def.Session.Store
	}
	if cfg.Session.HistoryTurns == 0 {
		cfg.Session.HistoryTurns = def.Session.HistoryTurns
	}
	if cfg.Dispatch.DefaultLimit == 0 {
		cfg.Dispatch.DefaultLimit = def.Dispatch.DefaultLimit
	}
	if cfg.Dispatch.MaxClarifyAttempts == 0 {
		cfg.Dispatch.MaxClarifyAttempts = def.Dispatch.MaxClarifyAttempts
	}
	if cfg.Dispatch.MaxRetryWaitSeconds == 0 {
		cfg.Dispatch.MaxRetryWaitSeconds = def.Dispatch.MaxRetryWaitSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
}

// applyEnvOverrides reads OLLAMA_*, GITHUB_TOKEN and GHAGENT_* environment
// variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Model.Host = v
	}
	if v := os.Getenv("OLLAMA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Model.Port = port
		}
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("GHAGENT_MODEL_PROVIDER"); v != "" {
		cfg.Model.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("GHAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("GHAGENT_SESSION_STORE"); v != "" {
		cfg.Session.Store = strings.ToLower(v)
	}
	if cfg.GitHub.Token == "" {
		for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
			if v := os.Getenv(name); v != "" {
				cfg.GitHub.Token = v
				break
			}
		}
	}
}
