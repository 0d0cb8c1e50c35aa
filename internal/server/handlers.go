package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/store"
)

// maxTurnBody bounds the size of a turn request.
const maxTurnBody = 64 << 10

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
	Turns   int64  `json:"turns"`
	Clients int    `json:"clients"`
}

// TurnRequest is the body of POST /api/turn.
type TurnRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// TurnResponse is the reply to POST /api/turn.
type TurnResponse struct {
	SessionID string              `json:"sessionId"`
	Reply     string              `json:"reply"`
	Intent    domain.Intent       `json:"intent"`
	Status    domain.ResultStatus `json:"status"`
}

// SessionResponse is the body of GET /api/sessions/{id}.
type SessionResponse struct {
	*domain.Session
	Actions []store.ActionEntry `json:"actions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Turns:   s.turns.Load(),
		Clients: s.events.Count(),
	})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res := s.runner.Run(r.Context(), req.SessionID, req.Message)
	s.turns.Add(1)

	w.Header().Set("X-Session-Id", res.SessionID)
	writeJSON(w, http.StatusOK, TurnResponse{
		SessionID: res.SessionID,
		Reply:     res.Reply,
		Intent:    res.Intent,
		Status:    res.Status,
	})
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.List()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := s.sessions.Get(id)
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	resp := SessionResponse{Session: sess}
	if s.actions != nil {
		actions, err := s.actions.ListActions(r.Context(), id, 0)
		if err != nil {
			s.log.Warn().Err(err).Str("session", id).Msg("failed to load action log")
		}
		resp.Actions = actions
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
