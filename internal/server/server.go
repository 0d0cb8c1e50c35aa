// Package server exposes conversational turns over HTTP for a web UI.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soyeahso/ghagent/internal/agent"
	"github.com/soyeahso/ghagent/internal/config"
	"github.com/soyeahso/ghagent/internal/hooks"
	"github.com/soyeahso/ghagent/internal/logging"
	"github.com/soyeahso/ghagent/internal/store"
)

// TurnRunner runs conversational turns. *agent.Runner implements it.
type TurnRunner interface {
	Run(ctx context.Context, sessionID, text string) agent.TurnResult
}

// ActionLister reads the action log. *store.ActionLog implements it.
type ActionLister interface {
	ListActions(ctx context.Context, sessionID string, limit int) ([]store.ActionEntry, error)
}

// Server is the ghagent HTTP server.
type Server struct {
	cfg      config.ServerConfig
	runner   TurnRunner
	sessions agent.SessionStore
	actions  ActionLister
	events   *EventHub
	log      *logging.Logger
	router   chi.Router
	version  string

	turns      atomic.Int64
	startedAt  time.Time
	httpServer *http.Server
}

// Option configures the server.
type Option func(*Server)

// WithActionLog includes the action log in session responses.
func WithActionLog(l ActionLister) Option {
	return func(s *Server) {
		s.actions = l
	}
}

// WithHooks streams turn lifecycle events to websocket clients.
func WithHooks(m *hooks.Manager) Option {
	return func(s *Server) {
		s.events.Attach(m)
	}
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a server.
func New(cfg config.ServerConfig, runner TurnRunner, sessions agent.SessionStore, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		runner:    runner,
		sessions:  sessions,
		log:       log.Sub("server"),
		startedAt: time.Now(),
	}
	s.events = NewEventHub(cfg.AllowedOrigins, s.log.Sub("events"))
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/turn", s.handleTurn)
		r.Get("/sessions", s.handleSessionList)
		r.Get("/sessions/{id}", s.handleSession)
		r.Get("/events", s.events.ServeHTTP)
	})
	r.NotFound(handleNotFound)
	return r
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Bind,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Turns wait on the model, which may take its whole timeout twice.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Bind, err)
	}
	s.startedAt = time.Now()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.events.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
