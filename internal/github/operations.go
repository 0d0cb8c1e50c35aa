package github

import (
	"context"
	"encoding/json"
	"time"

	gh "github.com/google/go-github/v72/github"

	"github.com/soyeahso/ghagent/internal/domain"
)

// ListReposOptions scopes a repository listing. With neither User nor Org
// set, the authenticated user's repositories are listed.
type ListReposOptions struct {
	User  string
	Org   string
	Limit int
}

// ListRepos lists repositories of the token owner, a user, or an organization.
func (c *Client) ListRepos(ctx context.Context, opts ListReposOptions) domain.ActionResult {
	res := domain.ActionResult{Kind: domain.KindListRepos}

	var list func(context.Context, gh.ListOptions) ([]*gh.Repository, *gh.Response, error)
	switch {
	case opts.Org != "":
		res.Owner = opts.Org
		list = func(ctx context.Context, lo gh.ListOptions) ([]*gh.Repository, *gh.Response, error) {
			return c.api.Repositories.ListByOrg(ctx, opts.Org, &gh.RepositoryListByOrgOptions{Sort: "updated", ListOptions: lo})
		}
	case opts.User != "":
		res.Owner = opts.User
		list = func(ctx context.Context, lo gh.ListOptions) ([]*gh.Repository, *gh.Response, error) {
			return c.api.Repositories.ListByUser(ctx, opts.User, &gh.RepositoryListByUserOptions{Sort: "updated", ListOptions: lo})
		}
	default:
		list = func(ctx context.Context, lo gh.ListOptions) ([]*gh.Repository, *gh.Response, error) {
			return c.api.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
				Affiliation: "owner,collaborator,organization_member",
				Sort:        "updated",
				ListOptions: lo,
			})
		}
	}
	return fetch(ctx, c, res, resourceCore, opts.Limit, list, keep(repoRecord))
}

// SearchRepos searches repositories matching query, best match first.
func (c *Client) SearchRepos(ctx context.Context, query string, limit int) domain.ActionResult {
	res := domain.ActionResult{Kind: domain.KindSearchRepos, Query: query}
	list := func(ctx context.Context, lo gh.ListOptions) ([]*gh.Repository, *gh.Response, error) {
		found, resp, err := c.api.Search.Repositories(ctx, query, &gh.SearchOptions{ListOptions: lo})
		if found == nil {
			return nil, resp, err
		}
		return found.Repositories, resp, err
	}
	return fetch(ctx, c, res, resourceSearch, limit, list, keep(repoRecord))
}

// ListIssues lists issues (not pull requests) of a repository.
func (c *Client) ListIssues(ctx context.Context, repo domain.RepoRef, state string, limit int) domain.ActionResult {
	state = normalizeState(state)
	res := domain.ActionResult{Kind: domain.KindListIssues, Repo: repo, State: state}
	list := func(ctx context.Context, lo gh.ListOptions) ([]*gh.Issue, *gh.Response, error) {
		return c.api.Issues.ListByRepo(ctx, repo.Owner, repo.Name, &gh.IssueListByRepoOptions{State: state, ListOptions: lo})
	}
	return fetch(ctx, c, res, resourceCore, limit, list, issueRecord)
}

// ListPulls lists pull requests of a repository.
func (c *Client) ListPulls(ctx context.Context, repo domain.RepoRef, state string, limit int) domain.ActionResult {
	state = normalizeState(state)
	res := domain.ActionResult{Kind: domain.KindListPRs, Repo: repo, State: state}
	list := func(ctx context.Context, lo gh.ListOptions) ([]*gh.PullRequest, *gh.Response, error) {
		return c.api.PullRequests.List(ctx, repo.Owner, repo.Name, &gh.PullRequestListOptions{State: state, ListOptions: lo})
	}
	return fetch(ctx, c, res, resourceCore, limit, list, keep(pullRecord))
}

// GetRepo fetches a single repository.
func (c *Client) GetRepo(ctx context.Context, repo domain.RepoRef) domain.ActionResult {
	res := domain.ActionResult{Kind: domain.KindGetRepo, Repo: repo}
	res.Attempts++

	var found *gh.Repository
	err := c.call(resourceCore, func() (*gh.Response, error) {
		var (
			resp *gh.Response
			err  error
		)
		found, resp, err = c.api.Repositories.Get(ctx, repo.Owner, repo.Name)
		return resp, err
	})
	if err != nil {
		return failed(res, err)
	}

	res.Status = domain.StatusOK
	res.Records = []domain.Record{repoRecord(found)}
	if raw, err := json.Marshal(found); err == nil {
		res.Raw = []json.RawMessage{raw}
	}
	return res
}

// ListBranches lists branches of a repository.
func (c *Client) ListBranches(ctx context.Context, repo domain.RepoRef, limit int) domain.ActionResult {
	res := domain.ActionResult{Kind: domain.KindListBranches, Repo: repo}
	list := func(ctx context.Context, lo gh.ListOptions) ([]*gh.Branch, *gh.Response, error) {
		return c.api.Repositories.ListBranches(ctx, repo.Owner, repo.Name, &gh.BranchListOptions{ListOptions: lo})
	}
	return fetch(ctx, c, res, resourceCore, limit, list, keep(branchRecord))
}

// ListCommits lists recent commits on the default branch of a repository.
func (c *Client) ListCommits(ctx context.Context, repo domain.RepoRef, limit int) domain.ActionResult {
	res := domain.ActionResult{Kind: domain.KindListCommits, Repo: repo}
	list := func(ctx context.Context, lo gh.ListOptions) ([]*gh.RepositoryCommit, *gh.Response, error) {
		return c.api.Repositories.ListCommits(ctx, repo.Owner, repo.Name, &gh.CommitsListOptions{ListOptions: lo})
	}
	return fetch(ctx, c, res, resourceCore, limit, list, keep(commitRecord))
}

// GetUser fetches a user profile; an empty login means the authenticated
// user.
func (c *Client) GetUser(ctx context.Context, login string) domain.ActionResult {
	res := domain.ActionResult{Kind: domain.KindGetUser, Owner: login}
	res.Attempts++

	var found *gh.User
	err := c.call(resourceCore, func() (*gh.Response, error) {
		var (
			resp *gh.Response
			err  error
		)
		found, resp, err = c.api.Users.Get(ctx, login)
		return resp, err
	})
	if err != nil {
		return failed(res, err)
	}

	res.Status = domain.StatusOK
	res.Records = []domain.Record{userRecord(found)}
	if raw, err := json.Marshal(found); err == nil {
		res.Raw = []json.RawMessage{raw}
	}
	return res
}

// RateLimit queries /rate_limit, which does not count against the quota,
// and refreshes the client's rate state from it.
func (c *Client) RateLimit(ctx context.Context) (map[string]RateState, error) {
	req, err := c.api.NewRequest("GET", "rate_limit", nil)
	if err != nil {
		return nil, err
	}
	var rl rateLimitBody
	resp, err := c.api.Do(ctx, req, &rl)
	if resp != nil && resp.Response != nil {
		c.observe(resp.Header, "")
	}
	if err != nil {
		return nil, c.classify(err)
	}

	out := make(map[string]RateState, len(rl.Resources))
	for name, r := range rl.Resources {
		out[name] = RateState{Limit: r.Limit, Remaining: r.Remaining, Reset: time.Unix(r.Reset, 0)}
	}

	c.mu.Lock()
	for _, name := range []string{resourceCore, resourceSearch} {
		if s, ok := out[name]; ok {
			c.rates[name] = s
		}
	}
	c.mu.Unlock()
	return out, nil
}

func normalizeState(state string) string {
	switch state {
	case "open", "closed", "all":
		return state
	default:
		return "open"
	}
}
