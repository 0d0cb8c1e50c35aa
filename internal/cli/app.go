package cli

import (
	"errors"
	"fmt"

	"github.com/soyeahso/ghagent/internal/agent"
	"github.com/soyeahso/ghagent/internal/config"
	"github.com/soyeahso/ghagent/internal/github"
	"github.com/soyeahso/ghagent/internal/hooks"
	"github.com/soyeahso/ghagent/internal/llm"
	"github.com/soyeahso/ghagent/internal/logging"
	"github.com/soyeahso/ghagent/internal/store"
)

// app holds the wired components behind every command that runs turns.
type app struct {
	cfg      config.Config
	runner   *agent.Runner
	model    *llm.Gateway
	gh       *github.Client
	sessions agent.SessionStore
	actions  *store.ActionLog // nil with the memory store
	hooks    *hooks.Manager
	db       *store.DB
}

// buildApp wires model gateway, API client, dispatcher, session store and
// runner from cfg.
func buildApp(cfg config.Config, paths config.Paths, log *logging.Logger) (*app, error) {
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	registry := llm.NewRegistryFromConfig(cfg.Model, log)
	client, err := registry.Resolve(cfg.Model.Provider)
	if err != nil {
		return nil, fmt.Errorf("resolving model provider: %w", err)
	}
	model := llm.NewGateway(client, llm.GatewayOptions{
		Model:       cfg.Model.Name,
		Timeout:     cfg.Model.Timeout(),
		Backoff:     cfg.Model.Backoff(),
		Concurrency: cfg.Model.Concurrency,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	}, log)

	if cfg.GitHub.Token == "" {
		log.Warn().Msg("no GitHub token configured; only public data is reachable and rate limits are low")
	}
	gh := github.New(github.Options{
		BaseURL:  cfg.GitHub.BaseURL,
		Token:    cfg.GitHub.Token,
		PerPage:  cfg.GitHub.PerPage,
		MaxPages: cfg.GitHub.MaxPages,
		Timeout:  cfg.GitHub.Timeout(),
	}, log)

	dispatcher := agent.NewDispatcher(gh, agent.DispatchOptions{
		DefaultLimit:       cfg.Dispatch.DefaultLimit,
		MaxClarifyAttempts: cfg.Dispatch.MaxClarifyAttempts,
		MaxRetryWait:       cfg.Dispatch.MaxRetryWait(),
	}, log)

	a := &app{cfg: cfg, model: model, gh: gh, hooks: hooks.NewManager(log)}

	switch cfg.Session.Store {
	case "sqlite":
		if err := paths.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("creating data directories: %w", err)
		}
		dbPath := paths.SessionDB(cfg.Session)
		a.db, err = store.Open(dbPath, log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		a.sessions = store.NewSQLiteSessionStore(a.db)
		a.actions = store.NewActionLog(a.db)
		log.Debug().Str("path", dbPath).Msg("using SQLite session store")
	default:
		a.sessions = agent.NewMemorySessionStore()
		log.Debug().Msg("using in-memory session store")
	}

	a.runner = agent.NewRunner(agent.RunnerConfig{HistoryTurns: cfg.Session.HistoryTurns}, model, a.sessions, dispatcher, log)
	a.runner.SetHooks(a.hooks)
	if a.actions != nil {
		a.runner.SetActionRecorder(a.actions)
	}
	return a, nil
}

// Close releases the database, if one was opened.
func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

var errNoDatabase = errors.New("this command needs session.store: sqlite")

// openStore opens the session database without wiring a model or API
// client, for commands that only read history.
func openStore(cfg config.Config, paths config.Paths, log *logging.Logger) (*store.DB, error) {
	if cfg.Session.Store != "sqlite" {
		return nil, errNoDatabase
	}
	return store.Open(paths.SessionDB(cfg.Session), log)
}
