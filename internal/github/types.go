package github

import (
	"strings"

	gh "github.com/google/go-github/v72/github"

	"github.com/soyeahso/ghagent/internal/domain"
)

// rateLimitBody is the /rate_limit payload, keyed by resource name.
type rateLimitBody struct {
	Resources map[string]struct {
		Limit     int   `json:"limit"`
		Remaining int   `json:"remaining"`
		Reset     int64 `json:"reset"`
	} `json:"resources"`
}

// keep adapts a converter that never drops items.
func keep[T any](convert func(T) domain.Record) func(T) (domain.Record, bool) {
	return func(v T) (domain.Record, bool) { return convert(v), true }
}

func repoRecord(r *gh.Repository) domain.Record {
	return domain.Repository{
		FullName:    r.GetFullName(),
		Description: r.GetDescription(),
		Language:    r.GetLanguage(),
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		OpenIssues:  r.GetOpenIssuesCount(),
		Private:     r.GetPrivate(),
		Archived:    r.GetArchived(),
		URL:         r.GetHTMLURL(),
		UpdatedAt:   r.GetUpdatedAt().Time,
	}
}

// issueRecord drops pull requests, which the issues endpoint also returns.
func issueRecord(it *gh.Issue) (domain.Record, bool) {
	if it.IsPullRequest() {
		return nil, false
	}
	labels := make([]string, 0, len(it.Labels))
	for _, l := range it.Labels {
		labels = append(labels, l.GetName())
	}
	return domain.Issue{
		Number:   it.GetNumber(),
		Title:    it.GetTitle(),
		State:    it.GetState(),
		Author:   it.GetUser().GetLogin(),
		Labels:   labels,
		Comments: it.GetComments(),
		URL:      it.GetHTMLURL(),
	}, true
}

func pullRecord(p *gh.PullRequest) domain.Record {
	return domain.PullRequest{
		Number: p.GetNumber(),
		Title:  p.GetTitle(),
		State:  p.GetState(),
		Author: p.GetUser().GetLogin(),
		Draft:  p.GetDraft(),
		Head:   p.GetHead().GetRef(),
		Base:   p.GetBase().GetRef(),
		URL:    p.GetHTMLURL(),
	}
}

func branchRecord(b *gh.Branch) domain.Record {
	return domain.Branch{
		Name:      b.GetName(),
		Protected: b.GetProtected(),
		SHA:       b.GetCommit().GetSHA(),
	}
}

func userRecord(u *gh.User) domain.Record {
	return domain.User{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		Type:        u.GetType(),
		Bio:         u.GetBio(),
		Company:     u.GetCompany(),
		Location:    u.GetLocation(),
		PublicRepos: u.GetPublicRepos(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
		URL:         u.GetHTMLURL(),
		CreatedAt:   u.GetCreatedAt().Time,
	}
}

// commitRecord keeps the subject line and prefers the linked account login
// over the git author name.
func commitRecord(c *gh.RepositoryCommit) domain.Record {
	author := c.GetCommit().GetAuthor().GetName()
	if login := c.GetAuthor().GetLogin(); login != "" {
		author = login
	}
	msg, _, _ := strings.Cut(c.GetCommit().GetMessage(), "\n")
	return domain.Commit{
		SHA:     c.GetSHA(),
		Message: msg,
		Author:  author,
		Date:    c.GetCommit().GetAuthor().GetDate().Time,
		URL:     c.GetHTMLURL(),
	}
}
