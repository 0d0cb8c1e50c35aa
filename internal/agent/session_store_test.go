package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/ghagent/internal/domain"
)

func TestMemorySessionStore_GetOrCreate(t *testing.T) {
	s := NewMemorySessionStore()

	sess := s.GetOrCreate("s1")
	require.NotNil(t, sess)
	assert.Equal(t, "s1", sess.ID)
	assert.False(t, sess.CreatedAt.IsZero())

	again := s.GetOrCreate("s1")
	assert.Equal(t, sess.CreatedAt, again.CreatedAt)

	fresh := s.GetOrCreate("")
	assert.NotEmpty(t, fresh.ID)
	assert.NotEqual(t, fresh.ID, s.GetOrCreate("").ID)
}

func TestMemorySessionStore_GetMissing(t *testing.T) {
	assert.Nil(t, NewMemorySessionStore().Get("nope"))
}

func TestMemorySessionStore_ReturnsCopies(t *testing.T) {
	s := NewMemorySessionStore()
	sess := s.GetOrCreate("s1")
	s.Append("s1", domain.Message{Role: domain.RoleUser, Content: "hi"})

	sess.Messages = append(sess.Messages, domain.Message{Role: domain.RoleUser, Content: "sneaky"})
	got := s.Get("s1")
	require.Len(t, got.Messages, 1)

	got.Messages[0].Content = "changed"
	assert.Equal(t, "hi", s.Get("s1").Messages[0].Content)
}

func TestMemorySessionStore_AppendAndHistory(t *testing.T) {
	s := NewMemorySessionStore()
	s.GetOrCreate("s1")
	for _, c := range []string{"one", "two", "three", "four"} {
		s.Append("s1", domain.Message{Role: domain.RoleUser, Content: c})
	}

	all := s.History("s1", 0)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Content)
	assert.False(t, all[0].Timestamp.IsZero())

	last := s.History("s1", 2)
	require.Len(t, last, 2)
	assert.Equal(t, "three", last[0].Content)
	assert.Equal(t, "four", last[1].Content)

	assert.Nil(t, s.History("missing", 2))
}

func TestMemorySessionStore_AppendToMissingSession(t *testing.T) {
	s := NewMemorySessionStore()
	s.Append("ghost", domain.Message{Role: domain.RoleUser, Content: "hi"})
	assert.Nil(t, s.Get("ghost"))
}

func TestMemorySessionStore_UpdateContext(t *testing.T) {
	s := NewMemorySessionStore()
	s.GetOrCreate("s1")

	pending := &domain.PendingClarification{Kind: domain.KindListIssues, Params: map[string]string{"state": "open"}, Attempts: 1}
	s.UpdateContext("s1", &domain.RepoRef{Owner: "acme", Name: "widgets"}, pending)
	pending.Params["state"] = "closed"

	got := s.Get("s1")
	require.NotNil(t, got.ActiveRepo)
	assert.Equal(t, "acme/widgets", got.ActiveRepo.String())
	require.NotNil(t, got.Pending)
	assert.Equal(t, "open", got.Pending.Params["state"])

	// A nil repository keeps the active one; a nil pending clears it.
	s.UpdateContext("s1", nil, nil)
	got = s.Get("s1")
	require.NotNil(t, got.ActiveRepo)
	assert.Equal(t, "acme/widgets", got.ActiveRepo.String())
	assert.Nil(t, got.Pending)
}

func TestMemorySessionStore_ListMostRecentFirst(t *testing.T) {
	s := NewMemorySessionStore()
	s.GetOrCreate("a")
	s.GetOrCreate("b")
	time.Sleep(2 * time.Millisecond)
	s.Append("a", domain.Message{Role: domain.RoleUser, Content: "hi"})

	ids := s.List()
	assert.Equal(t, []string{"a", "b"}, ids)
}
