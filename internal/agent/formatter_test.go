package agent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/ghagent/internal/domain"
)

func issues(n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Issue{Number: i + 1, Title: fmt.Sprintf("Issue %d", i+1), Author: "alice"}
	}
	return out
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		res  domain.ActionResult
		want string
	}{
		{
			name: "issues",
			res:  domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusOK, Repo: widgets, State: "open", Records: issues(3)},
			want: "Found 3 open issues in acme/widgets:\n- #1 Issue 1 (@alice)\n- #2 Issue 2 (@alice)\n- #3 Issue 3 (@alice)",
		},
		{
			name: "single issue",
			res:  domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusOK, Repo: widgets, State: "closed", Records: issues(1)},
			want: "Found 1 closed issue in acme/widgets:\n- #1 Issue 1 (@alice)",
		},
		{
			name: "no issues",
			res:  domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusOK, Repo: widgets, State: "open"},
			want: "No open issues in acme/widgets.",
		},
		{
			name: "no pull requests in any state",
			res:  domain.ActionResult{Kind: domain.KindListPRs, Status: domain.StatusOK, Repo: widgets, State: "all"},
			want: "No pull requests in acme/widgets.",
		},
		{
			name: "pull requests",
			res: domain.ActionResult{Kind: domain.KindListPRs, Status: domain.StatusOK, Repo: widgets, State: "open", Records: []domain.Record{
				domain.PullRequest{Number: 7, Title: "Add gears", Author: "bob", Draft: true},
			}},
			want: "Found 1 open pull request in acme/widgets:\n- #7 Add gears (draft) by @bob",
		},
		{
			name: "search",
			res: domain.ActionResult{Kind: domain.KindSearchRepos, Status: domain.StatusOK, Query: "tui", Records: []domain.Record{
				domain.Repository{FullName: "charm/bubbletea", Description: "TUI framework", Stars: 100},
			}},
			want: "Found 1 repository matching \"tui\":\n- **charm/bubbletea**: TUI framework (★ 100)",
		},
		{
			name: "repos of a user",
			res: domain.ActionResult{Kind: domain.KindListRepos, Status: domain.StatusOK, Owner: "octocat", Records: []domain.Record{
				domain.Repository{FullName: "octocat/hello", Stars: 2},
				domain.Repository{FullName: "octocat/world", Stars: 0},
			}},
			want: "Found 2 repositories for octocat:\n- **octocat/hello** (★ 2)\n- **octocat/world** (★ 0)",
		},
		{
			name: "user profile",
			res: domain.ActionResult{Kind: domain.KindGetUser, Status: domain.StatusOK, Records: []domain.Record{
				domain.User{
					Login:       "octocat",
					Name:        "The Octocat",
					Location:    "San Francisco",
					PublicRepos: 8,
					Followers:   100,
					Following:   9,
					URL:         "https://github.com/octocat",
					CreatedAt:   time.Date(2011, 1, 25, 18, 44, 36, 0, time.UTC),
				},
			}},
			want: "**@octocat** (The Octocat)\n- Location: San Francisco\n- Public repos: 8, followers: 100, following: 9\n- Joined: 2011-01-25\n- https://github.com/octocat",
		},
		{
			name: "organization profile",
			res: domain.ActionResult{Kind: domain.KindGetUser, Status: domain.StatusOK, Owner: "kubernetes", Records: []domain.Record{
				domain.User{Login: "kubernetes", Type: "Organization", PublicRepos: 70},
			}},
			want: "**@kubernetes**, organization\n- Public repos: 70, followers: 0, following: 0",
		},
		{
			name: "unknown user",
			res:  domain.ActionResult{Kind: domain.KindGetUser, Status: domain.StatusNotFound, HTTPStatus: 404, Owner: "nobody-here"},
			want: "I couldn't find that user or organization (nobody-here).",
		},
		{
			name: "branches",
			res: domain.ActionResult{Kind: domain.KindListBranches, Status: domain.StatusOK, Repo: widgets, Records: []domain.Record{
				domain.Branch{Name: "main", Protected: true},
				domain.Branch{Name: "dev"},
			}},
			want: "Found 2 branches in acme/widgets:\n- main (protected)\n- dev",
		},
		{
			name: "commits",
			res: domain.ActionResult{Kind: domain.KindListCommits, Status: domain.StatusOK, Repo: widgets, Records: []domain.Record{
				domain.Commit{SHA: "0123456789abcdef", Message: "Fix gears", Author: "carol"},
			}},
			want: "Found 1 recent commit in acme/widgets:\n- `0123456` Fix gears (carol)",
		},
		{
			name: "repo detail",
			res: domain.ActionResult{Kind: domain.KindGetRepo, Status: domain.StatusOK, Repo: widgets, Records: []domain.Record{
				domain.Repository{
					FullName: "acme/widgets", Description: "Widgets", Language: "Go",
					Stars: 5, Forks: 1, OpenIssues: 2, URL: "https://github.com/acme/widgets",
					UpdatedAt: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
				},
			}},
			want: "**acme/widgets**: Widgets\n- Language: Go\n- Stars: 5, forks: 1, open issues: 2\n- Last updated: 2025-03-04\n- https://github.com/acme/widgets",
		},
		{
			name: "not found",
			res:  domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusNotFound, Repo: widgets},
			want: "I couldn't find that repository (acme/widgets).",
		},
		{
			name: "user not found",
			res:  domain.ActionResult{Kind: domain.KindListRepos, Status: domain.StatusNotFound, Owner: "ghost"},
			want: "I couldn't find that user or organization (ghost).",
		},
		{
			name: "rate limited",
			res:  domain.ActionResult{Status: domain.StatusRateLimited, RetryAfter: 30 * time.Second},
			want: "Rate limit hit, retry in 30s.",
		},
		{
			name: "rate limited rounds up",
			res:  domain.ActionResult{Status: domain.StatusRateLimited, RetryAfter: 1500 * time.Millisecond},
			want: "Rate limit hit, retry in 2s.",
		},
		{
			name: "rate limited long wait",
			res:  domain.ActionResult{Status: domain.StatusRateLimited, RetryAfter: 90 * time.Second},
			want: "Rate limit hit, retry in 1m30s.",
		},
		{
			name: "api error",
			res:  domain.ActionResult{Status: domain.StatusAPIError, HTTPStatus: 502, Detail: "bad gateway"},
			want: "Something went wrong talking to GitHub (HTTP 502). Please try again.",
		},
		{
			name: "transport error",
			res:  domain.ActionResult{Status: domain.StatusAPIError, Detail: "dial tcp: refused"},
			want: "Something went wrong talking to GitHub. Please try again.",
		},
		{
			name: "clarify repository",
			res:  domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusClarify, Missing: []string{"owner", "repo"}},
			want: "Which repository should I list issues for? Reply with owner/name, for example acme/widgets.",
		},
		{
			name: "clarify query",
			res:  domain.ActionResult{Kind: domain.KindSearchRepos, Status: domain.StatusClarify, Missing: []string{"query"}},
			want: "What should I search for?",
		},
		{
			name: "clarify action for a repository",
			res:  domain.ActionResult{Kind: domain.KindClarify, Status: domain.StatusClarify, Repo: widgets},
			want: "What would you like to know about acme/widgets? I can list its issues, pull requests, branches or commits.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.res))
		})
	}
}

func TestFormat_EmptyOKDiffersFromNotFound(t *testing.T) {
	empty := Format(domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusOK, Repo: widgets, State: "open"})
	missing := Format(domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusNotFound, Repo: widgets, State: "open"})
	assert.NotEqual(t, empty, missing)
}

func TestFormat_CapsListing(t *testing.T) {
	out := Format(domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusOK, Repo: widgets, State: "open", Records: issues(25)})

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Found 25 open issues in acme/widgets:", lines[0])
	assert.Len(t, lines, 1+maxListed+1)
	assert.Equal(t, "…and 5 more", lines[len(lines)-1])
	assert.NotContains(t, out, "Issue 21")
}

func TestFormat_TruncatedMentionsMore(t *testing.T) {
	out := Format(domain.ActionResult{Kind: domain.KindListIssues, Status: domain.StatusOK, Repo: widgets, State: "open", Records: issues(2), Truncated: true})
	assert.Contains(t, out, "There are more results on GitHub")
}

func TestFormat_Unsupported(t *testing.T) {
	out := Format(domain.ActionResult{Kind: domain.KindUnsupported, Status: domain.StatusUnsupported})
	assert.Contains(t, out, "list my repos")
	assert.Contains(t, out, "owner/repo")
	assert.Contains(t, out, "not change them")
}

func TestFormat_NeverLeaksRaw(t *testing.T) {
	out := Format(domain.ActionResult{
		Kind:    domain.KindListIssues,
		Status:  domain.StatusAPIError,
		Detail:  "secret detail",
		Repo:    widgets,
		Records: nil,
	})
	assert.NotContains(t, out, "secret")
}
