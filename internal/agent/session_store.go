package agent

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/ghagent/internal/domain"
)

// SessionStore manages conversation sessions. Implementations hand out
// copies: mutating a returned Session never changes stored state.
type SessionStore interface {
	// GetOrCreate returns the session with the given ID, creating it if
	// needed. An empty ID creates a session with a fresh ID.
	GetOrCreate(id string) *domain.Session

	// Get returns a session by ID, or nil if not found.
	Get(id string) *domain.Session

	// Append adds a message to the end of a session's history.
	Append(sessionID string, msg domain.Message)

	// History returns the last limit messages in order (all when limit <= 0).
	History(sessionID string, limit int) []domain.Message

	// UpdateContext stores the session's carried context. A nil active
	// repository leaves the stored one untouched; a nil pending clears it.
	UpdateContext(sessionID string, active *domain.RepoRef, pending *domain.PendingClarification)

	// List returns all session IDs, most recently updated first.
	List() []string
}

// MemorySessionStore is an in-memory SessionStore implementation.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session // id → session
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

func (s *MemorySessionStore) GetOrCreate(id string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if sess, ok := s.sessions[id]; ok {
		return sess.Clone()
	}

	now := time.Now()
	sess := &domain.Session{ID: id, CreatedAt: now, UpdatedAt: now}
	s.sessions[id] = sess
	return sess.Clone()
}

func (s *MemorySessionStore) Get(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id].Clone()
}

func (s *MemorySessionStore) Append(sessionID string, msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		sess.Messages = append(sess.Messages, msg)
		sess.UpdatedAt = time.Now()
	}
}

func (s *MemorySessionStore) History(sessionID string, limit int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	msgs := sess.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return slices.Clone(msgs)
}

func (s *MemorySessionStore) UpdateContext(sessionID string, active *domain.RepoRef, pending *domain.PendingClarification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	if active != nil {
		ref := *active
		sess.ActiveRepo = &ref
	}
	sess.Pending = pending.Clone()
	sess.UpdatedAt = time.Now()
}

func (s *MemorySessionStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	slices.SortFunc(all, func(a, b *domain.Session) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	ids := make([]string, len(all))
	for i, sess := range all {
		ids[i] = sess.ID
	}
	return ids
}
