// Package hooks lets callers observe the lifecycle of a conversational turn.
package hooks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/ghagent/internal/logging"
)

// Turn lifecycle events, in the order a successful turn emits them.
const (
	EventTurnReceived     = "turn_received"
	EventIntentParsed     = "intent_parsed"
	EventActionDispatched = "action_dispatched"
	EventTurnCompleted    = "turn_completed"

	// EventModelUnavailable replaces the parse and dispatch events when the
	// model could not be reached.
	EventModelUnavailable = "model_unavailable"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventTurnReceived,
	EventIntentParsed,
	EventActionDispatched,
	EventTurnCompleted,
	EventModelUnavailable,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event     string         `json:"event"`
	SessionID string         `json:"sessionId"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler handles a hook event. A returned error is logged and does not stop
// the remaining handlers or the turn.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
	now      func() time.Time
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
		now:      time.Now,
	}
}

// On registers a named handler for a known event.
func (m *Manager) On(event, name string, handler Handler) error {
	if !slices.Contains(AllEvents, event) {
		return fmt.Errorf("unknown hook event %q", event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
	return nil
}

// Off removes all handlers with the given name from the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = slices.DeleteFunc(m.handlers[event], func(h namedHandler) bool {
		return h.name == name
	})
}

// Emit calls the event's handlers synchronously, in registration order.
// A nil manager is a no-op.
func (m *Manager) Emit(ctx context.Context, event, sessionID string, data map[string]any) {
	handlers, payload, ok := m.prepare(event, sessionID, data)
	if !ok {
		return
	}
	for _, h := range handlers {
		m.call(ctx, h, payload)
	}
}

// EmitAsync calls the event's handlers on their own goroutines and returns
// immediately.
func (m *Manager) EmitAsync(ctx context.Context, event, sessionID string, data map[string]any) {
	handlers, payload, ok := m.prepare(event, sessionID, data)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		go m.call(ctx, h, payload)
	}
}

func (m *Manager) prepare(event, sessionID string, data map[string]any) ([]namedHandler, Payload, bool) {
	if m == nil {
		return nil, Payload{}, false
	}
	m.mu.RLock()
	handlers := slices.Clone(m.handlers[event])
	m.mu.RUnlock()
	if len(handlers) == 0 {
		return nil, Payload{}, false
	}
	return handlers, Payload{Event: event, SessionID: sessionID, Time: m.now(), Data: data}, true
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().
				Interface("panic", r).
				Str("event", p.Event).
				Str("handler", h.name).
				Msg("hook handler panicked")
		}
	}()
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events with at least one handler, in lifecycle order.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for _, event := range AllEvents {
		if len(m.handlers[event]) > 0 {
			events = append(events, event)
		}
	}
	return events
}
