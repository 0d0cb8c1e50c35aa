package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "ollama", cfg.Model.Provider)
	assert.Equal(t, "localhost", cfg.Model.Host)
	assert.Equal(t, 11434, cfg.Model.Port)
	assert.Equal(t, 60, cfg.Model.TimeoutSeconds)
	assert.Equal(t, 1, cfg.Model.Concurrency)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, 6, cfg.Session.HistoryTurns)
	assert.Equal(t, 2, cfg.Dispatch.MaxClarifyAttempts)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestDurations(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "http://localhost:11434", cfg.Model.BaseURL())
	assert.Equal(t, time.Minute, cfg.Model.Timeout())
	assert.Equal(t, 500*time.Millisecond, cfg.Model.Backoff())
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout())
	assert.Equal(t, time.Minute, cfg.Dispatch.MaxRetryWait())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 11434, cfg.Model.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
model:
  provider: openai
  host: llm.internal
  port: 8000
  name: llama3
  timeoutSeconds: 15
github:
  baseUrl: https://ghe.example.com/api/v3/
  perPage: 50
session:
  store: memory
  historyTurns: 3
dispatch:
  maxClarifyAttempts: 4
logging:
  level: debug
  consoleStyle: json
server:
  bind: 0.0.0.0:9000
  allowedOrigins:
    - http://localhost:3000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "llm.internal", cfg.Model.Host)
	assert.Equal(t, 8000, cfg.Model.Port)
	assert.Equal(t, "llama3", cfg.Model.Name)
	assert.Equal(t, 15, cfg.Model.TimeoutSeconds)
	assert.Equal(t, 500, cfg.Model.RetryBackoffMs) // default kept
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.BaseURL)
	assert.Equal(t, 50, cfg.GitHub.PerPage)
	assert.Equal(t, 3, cfg.GitHub.MaxPages)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 3, cfg.Session.HistoryTurns)
	assert.Equal(t, 4, cfg.Dispatch.MaxClarifyAttempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Bind)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [broken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "gpu-box")
	t.Setenv("OLLAMA_PORT", "12345")
	t.Setenv("OLLAMA_MODEL", "mistral")
	t.Setenv("GHAGENT_LOG_LEVEL", "DEBUG")
	t.Setenv("GHAGENT_MODEL_PROVIDER", "OpenAI")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "gpu-box", cfg.Model.Host)
	assert.Equal(t, 12345, cfg.Model.Port)
	assert.Equal(t, "mistral", cfg.Model.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "openai", cfg.Model.Provider)
}

func TestLoadBadPortEnvIgnored(t *testing.T) {
	t.Setenv("OLLAMA_PORT", "not-a-port")
	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 11434, cfg.Model.Port)
}

func TestLoadTokenFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "gh-fallback")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "gh-fallback", cfg.GitHub.Token)

	t.Setenv("GITHUB_TOKEN", "primary")
	cfg, err = Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.GitHub.Token)
}

func TestLoadTokenExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("github:\n  token: ${MY_GH_SECRET}\n"), 0o600))
	t.Setenv("MY_GH_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.GitHub.Token)
}

func TestExpandEnvVars_Unset(t *testing.T) {
	assert.Equal(t, "prefix-", expandEnvVars("prefix-${GHAGENT_TEST_SURELY_UNSET}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GHAGENT_DOTENV_SAMPLE=from-file\n"), 0o600))
	t.Setenv("GHAGENT_DOTENV_SAMPLE", "")
	require.NoError(t, os.Unsetenv("GHAGENT_DOTENV_SAMPLE"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "from-file", os.Getenv("GHAGENT_DOTENV_SAMPLE"))
}

func TestLoadDotEnv_ExistingWins(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GHAGENT_DOTENV_KEEP=from-file\n"), 0o600))
	t.Setenv("GHAGENT_DOTENV_KEEP", "from-env")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from-env", os.Getenv("GHAGENT_DOTENV_KEEP"))
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.GitHub.Token = "ghp_abc"
	cfg.Model.APIKey = "sk-xyz"

	red := cfg.Redacted()
	assert.Equal(t, "********", red.GitHub.Token)
	assert.Equal(t, "********", red.Model.APIKey)
	assert.Equal(t, "ghp_abc", cfg.GitHub.Token)

	assert.Empty(t, Defaults().Redacted().GitHub.Token)
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("GHAGENT_HOME", "")
	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Contains(t, p.Base, ".ghagent")
	assert.Equal(t, filepath.Join(p.Base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(p.Base, ".env"), p.Env)
	assert.Equal(t, filepath.Join(p.Base, "data"), p.Data)
	assert.Equal(t, filepath.Join(p.Base, "logs"), p.Logs)
}

func TestResolvePathsCustomHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GHAGENT_HOME", dir)
	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, p.Base)
	assert.Equal(t, filepath.Join(dir, "data", "sessions.db"), p.SessionDB(SessionConfig{}))
	assert.Equal(t, "/tmp/x.db", p.SessionDB(SessionConfig{Path: "/tmp/x.db"}))
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GHAGENT_HOME", filepath.Join(dir, "home"))
	p, err := ResolvePaths()
	require.NoError(t, err)

	require.NoError(t, p.EnsureDirs())
	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
