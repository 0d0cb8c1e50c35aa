package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RepoRef names a repository on the hosting service.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// String returns the canonical owner/name form.
func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether either half of the reference is missing.
func (r RepoRef) IsZero() bool {
	return r.Owner == "" || r.Name == ""
}

// repoSegmentRe matches a single owner or repository name segment.
var repoSegmentRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseRepoRef parses "owner/name". Surrounding slashes and whitespace are ignored,
// and a trailing ".git" is dropped.
func ParseRepoRef(s string) (RepoRef, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	s = strings.TrimSuffix(s, ".git")
	owner, name, ok := strings.Cut(s, "/")
	if !ok {
		return RepoRef{}, fmt.Errorf("repository %q is not in owner/name form", s)
	}
	// Anything past the name (e.g. "/issues") is ignored.
	name, _, _ = strings.Cut(name, "/")
	if !repoSegmentRe.MatchString(owner) || !repoSegmentRe.MatchString(name) {
		return RepoRef{}, fmt.Errorf("repository %q is not in owner/name form", s)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// PendingClarification is an action the assistant asked a follow-up question about.
type PendingClarification struct {
	Kind     IntentKind        `json:"kind"`
	Params   map[string]string `json:"params,omitempty"`
	Attempts int               `json:"attempts"`
}

// Session tracks one conversation between a user and the assistant.
type Session struct {
	ID         string                `json:"id"`
	Messages   []Message             `json:"messages,omitempty"`
	ActiveRepo *RepoRef              `json:"activeRepo,omitempty"`
	Pending    *PendingClarification `json:"pending,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.ActiveRepo != nil {
		repo := *s.ActiveRepo
		c.ActiveRepo = &repo
	}
	c.Pending = s.Pending.Clone()
	return &c
}

// Clone returns a deep copy of p.
func (p *PendingClarification) Clone() *PendingClarification {
	if p == nil {
		return nil
	}
	c := *p
	c.Params = copyParams(p.Params)
	return &c
}

func copyParams(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
