package agent

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/hooks"
	"github.com/soyeahso/ghagent/internal/intent"
	"github.com/soyeahso/ghagent/internal/logging"
)

// StatusModelUnavailable marks a turn aborted because the model could not be
// reached. It never appears on an ActionResult.
const StatusModelUnavailable domain.ResultStatus = "model_unavailable"

// RunnerConfig configures the turn runner.
type RunnerConfig struct {
	HistoryTurns int // prior turns included in the prompt
}

// Generator produces raw model output for a prompt. *llm.Gateway implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ActionRecorder keeps a diagnostic log of dispatched actions.
type ActionRecorder interface {
	RecordAction(ctx context.Context, sessionID string, in domain.Intent, res domain.ActionResult) error
}

// TurnResult is the outcome of one conversational turn.
type TurnResult struct {
	SessionID string              `json:"sessionId"`
	Reply     string              `json:"reply"`
	Intent    domain.Intent       `json:"intent"`
	Status    domain.ResultStatus `json:"status"`
	Duration  time.Duration       `json:"duration"`
}

// Runner executes turns: it takes user text, resolves it to an action through
// the model, runs the action, and returns the formatted reply.
type Runner struct {
	cfg        RunnerConfig
	model      Generator
	sessions   SessionStore
	dispatcher *Dispatcher
	actions    ActionRecorder
	hooks      *hooks.Manager
	log        *logging.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewRunner creates a turn runner.
func NewRunner(cfg RunnerConfig, model Generator, sessions SessionStore, dispatcher *Dispatcher, log *logging.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		model:      model,
		sessions:   sessions,
		dispatcher: dispatcher,
		log:        log.Sub("agent.runner"),
		locks:      make(map[string]*sessionLock),
	}
}

// SetActionRecorder enables the action log.
func (r *Runner) SetActionRecorder(rec ActionRecorder) { r.actions = rec }

// SetHooks enables lifecycle events.
func (r *Runner) SetHooks(m *hooks.Manager) { r.hooks = m }

// HandleTurn runs one turn and returns the reply. It never fails: every
// problem is reported in the reply text.
func (r *Runner) HandleTurn(ctx context.Context, sessionID, text string) string {
	return r.Run(ctx, sessionID, text).Reply
}

// Run runs one turn. Turns of the same session are serialized; different
// sessions proceed concurrently. An empty sessionID starts a new session.
func (r *Runner) Run(ctx context.Context, sessionID, text string) TurnResult {
	start := time.Now()

	sessionID = r.sessions.GetOrCreate(sessionID).ID
	unlock := r.lock(sessionID)
	defer unlock()

	sess := r.sessions.Get(sessionID)
	if sess == nil {
		sess = &domain.Session{ID: sessionID}
	}
	log := r.log.Session(sessionID)

	var history []domain.Message
	if r.cfg.HistoryTurns > 0 {
		history = r.sessions.History(sessionID, r.cfg.HistoryTurns*2)
	}

	r.sessions.Append(sessionID, domain.Message{Role: domain.RoleUser, Content: text, Timestamp: start})
	r.hooks.Emit(ctx, hooks.EventTurnReceived, sessionID, map[string]any{"length": len(text)})

	log.Info().Int("historyLen", len(sess.Messages)).Msg("processing turn")

	prompt := BuildPrompt(PromptInput{
		History:    history,
		ActiveRepo: sess.ActiveRepo,
		Pending:    sess.Pending,
		Message:    text,
		MaxTurns:   r.cfg.HistoryTurns,
	})
	log.Trace().Str("prompt", prompt).Msg("prompt built")

	raw, err := r.model.Generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("model unavailable")
		r.sessions.Append(sessionID, domain.Message{Role: domain.RoleAssistant, Content: ModelUnavailableReply, Timestamp: time.Now()})
		r.hooks.Emit(ctx, hooks.EventModelUnavailable, sessionID, map[string]any{"error": err.Error()})
		return TurnResult{
			SessionID: sessionID,
			Reply:     ModelUnavailableReply,
			Status:    StatusModelUnavailable,
			Duration:  time.Since(start),
		}
	}
	log.Trace().Str("output", raw).Msg("model output")

	in := intent.Enrich(intent.Parse(raw), text)
	r.hooks.Emit(ctx, hooks.EventIntentParsed, sessionID, map[string]any{
		"kind":       string(in.Kind),
		"pending":    string(in.Pending),
		"confidence": in.Confidence,
	})

	res := r.dispatcher.Dispatch(ctx, in, sess)
	r.hooks.Emit(ctx, hooks.EventActionDispatched, sessionID, map[string]any{
		"kind":     string(res.Kind),
		"status":   string(res.Status),
		"records":  len(res.Records),
		"attempts": res.Attempts,
	})

	reply := Format(res)
	r.sessions.UpdateContext(sessionID, sess.ActiveRepo, sess.Pending)
	r.sessions.Append(sessionID, domain.Message{Role: domain.RoleAssistant, Content: reply, Timestamp: time.Now()})

	if r.actions != nil && dispatched(res) {
		if err := r.actions.RecordAction(context.WithoutCancel(ctx), sessionID, in, res); err != nil {
			log.Warn().Err(err).Msg("recording action")
		}
	}

	elapsed := time.Since(start)
	log.Info().
		Str("kind", string(in.Kind)).
		Str("status", string(res.Status)).
		Dur("duration", elapsed).
		Msg("turn completed")
	r.hooks.EmitAsync(ctx, hooks.EventTurnCompleted, sessionID, map[string]any{
		"status":   string(res.Status),
		"duration": elapsed,
	})

	return TurnResult{
		SessionID: sessionID,
		Reply:     reply,
		Intent:    in,
		Status:    res.Status,
		Duration:  elapsed,
	}
}

// lock serializes turns of one session and returns the matching unlock.
func (r *Runner) lock(sessionID string) func() {
	r.mu.Lock()
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		r.locks[sessionID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, sessionID)
		}
		r.mu.Unlock()
	}
}

// dispatched reports whether res came from an API operation rather than a
// clarify or unsupported short circuit.
func dispatched(res domain.ActionResult) bool {
	return res.Status != domain.StatusClarify && res.Status != domain.StatusUnsupported
}
