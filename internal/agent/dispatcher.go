package agent

import (
	"context"
	"maps"
	"strconv"
	"time"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/github"
	"github.com/soyeahso/ghagent/internal/intent"
	"github.com/soyeahso/ghagent/internal/logging"
)

// API is the hosting-service surface the dispatcher drives. *github.Client
// implements it.
type API interface {
	ListRepos(ctx context.Context, opts github.ListReposOptions) domain.ActionResult
	SearchRepos(ctx context.Context, query string, limit int) domain.ActionResult
	ListIssues(ctx context.Context, repo domain.RepoRef, state string, limit int) domain.ActionResult
	ListPulls(ctx context.Context, repo domain.RepoRef, state string, limit int) domain.ActionResult
	GetRepo(ctx context.Context, repo domain.RepoRef) domain.ActionResult
	ListBranches(ctx context.Context, repo domain.RepoRef, limit int) domain.ActionResult
	ListCommits(ctx context.Context, repo domain.RepoRef, limit int) domain.ActionResult
	GetUser(ctx context.Context, login string) domain.ActionResult
}

// DispatchOptions tunes the dispatcher.
type DispatchOptions struct {
	DefaultLimit       int
	MaxClarifyAttempts int           // follow-up questions before a pending action is dropped
	MaxRetryWait       time.Duration // longest rate-limit wait honored with a retry
}

// Dispatcher maps intents onto API operations using the session's carried
// context.
type Dispatcher struct {
	api   API
	opts  DispatchOptions
	log   *logging.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(api API, opts DispatchOptions, log *logging.Logger) *Dispatcher {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 30
	}
	if opts.MaxClarifyAttempts <= 0 {
		opts.MaxClarifyAttempts = 2
	}
	return &Dispatcher{
		api:   api,
		opts:  opts,
		log:   log.Sub("agent.dispatch"),
		sleep: sleepContext,
	}
}

// Dispatch resolves in against sess and runs at most one API operation
// (plus one retry after a short rate-limit wait). It updates sess.ActiveRepo
// and sess.Pending in place; the caller persists them.
func (d *Dispatcher) Dispatch(ctx context.Context, in domain.Intent, sess *domain.Session) domain.ActionResult {
	switch in.Kind {
	case domain.KindUnsupported:
		d.countFailedFollowUp(sess)
		return domain.ActionResult{Kind: domain.KindUnsupported, Status: domain.StatusUnsupported}

	case domain.KindClarify:
		kind, params := d.merge(in, sess)
		if kind == "" {
			return clarifyResult(domain.KindClarify, params, nil)
		}
		in = domain.Intent{Kind: kind, Params: params, Confidence: in.Confidence}
	}

	schema, ok := intent.Lookup(in.Kind)
	if !ok {
		return domain.ActionResult{Kind: domain.KindUnsupported, Status: domain.StatusUnsupported}
	}

	params := maps.Clone(in.Params)
	if params == nil {
		params = make(map[string]string)
	}
	named, explicit := in.Repo()
	if !explicit && schema.Accepts(domain.ParamRepo) {
		named, explicit = fillRepo(params, sess.ActiveRepo)
	}

	if missing := schema.MissingFrom(params); len(missing) > 0 {
		return d.askFor(sess, in.Kind, params, missing)
	}

	res := d.call(ctx, in.Kind, params)
	if res.Status == domain.StatusRateLimited && res.RetryAfter <= d.opts.MaxRetryWait {
		d.log.Info().
			Str("kind", string(in.Kind)).
			Dur("wait", res.RetryAfter).
			Msg("rate limited, retrying once")
		if err := d.sleep(ctx, res.RetryAfter); err == nil {
			attempts := res.Attempts
			res = d.call(ctx, in.Kind, params)
			res.Attempts += attempts
		}
	}

	sess.Pending = nil
	if res.OK() && explicit {
		sess.ActiveRepo = &named
	}

	d.log.Info().
		Str("session", sess.ID).
		Str("kind", string(in.Kind)).
		Str("status", string(res.Status)).
		Int("records", len(res.Records)).
		Int("attempts", res.Attempts).
		Msg("dispatched")
	return res
}

// merge combines a clarify intent with the session's pending action. A
// different declared pending kind replaces the session's.
func (d *Dispatcher) merge(in domain.Intent, sess *domain.Session) (domain.IntentKind, map[string]string) {
	p := sess.Pending
	if p != nil && (in.Pending == "" || in.Pending == p.Kind) {
		params := maps.Clone(p.Params)
		if params == nil {
			params = make(map[string]string, len(in.Params))
		}
		maps.Copy(params, in.Params)
		return p.Kind, params
	}
	return in.Pending, maps.Clone(in.Params)
}

// askFor records a pending action and asks for its missing parameters, or
// gives up once the follow-up budget is spent.
func (d *Dispatcher) askFor(sess *domain.Session, kind domain.IntentKind, params map[string]string, missing []string) domain.ActionResult {
	attempts := 1
	if sess.Pending != nil && sess.Pending.Kind == kind {
		attempts = sess.Pending.Attempts + 1
	}
	if attempts > d.opts.MaxClarifyAttempts {
		d.log.Debug().Str("kind", string(kind)).Int("attempts", attempts).Msg("dropping pending action")
		sess.Pending = nil
		return domain.ActionResult{Kind: domain.KindUnsupported, Status: domain.StatusUnsupported}
	}
	sess.Pending = &domain.PendingClarification{Kind: kind, Params: params, Attempts: attempts}
	return clarifyResult(kind, params, missing)
}

// countFailedFollowUp charges an unusable reply against the pending action.
func (d *Dispatcher) countFailedFollowUp(sess *domain.Session) {
	if sess.Pending == nil {
		return
	}
	sess.Pending.Attempts++
	if sess.Pending.Attempts > d.opts.MaxClarifyAttempts {
		sess.Pending = nil
	}
}

// fillRepo completes a partial repository reference from the active repo.
// Only empty halves are filled: a bare name takes the active owner and counts
// as a newly named repository, and an owner-only reference is completed only
// when it matches the active owner. Anything else stays missing.
func fillRepo(params map[string]string, active *domain.RepoRef) (domain.RepoRef, bool) {
	if active == nil {
		return domain.RepoRef{}, false
	}
	owner, name := params[domain.ParamOwner], params[domain.ParamRepo]
	switch {
	case owner == "" && name == "":
		params[domain.ParamOwner] = active.Owner
		params[domain.ParamRepo] = active.Name
		return domain.RepoRef{}, false
	case owner == "":
		params[domain.ParamOwner] = active.Owner
		return domain.RepoRef{Owner: active.Owner, Name: name}, true
	case name == "" && owner == active.Owner:
		params[domain.ParamRepo] = active.Name
	}
	return domain.RepoRef{}, false
}

func clarifyResult(kind domain.IntentKind, params map[string]string, missing []string) domain.ActionResult {
	return domain.ActionResult{
		Kind:    kind,
		Status:  domain.StatusClarify,
		Missing: missing,
		Repo:    domain.RepoRef{Owner: params[domain.ParamOwner], Name: params[domain.ParamRepo]},
		Query:   params[domain.ParamQuery],
		State:   params[domain.ParamState],
	}
}

// call runs the single API operation for a complete intent.
func (d *Dispatcher) call(ctx context.Context, kind domain.IntentKind, params map[string]string) domain.ActionResult {
	repo := domain.RepoRef{Owner: params[domain.ParamOwner], Name: params[domain.ParamRepo]}
	limit := d.limit(params[domain.ParamLimit])
	state := params[domain.ParamState]

	switch kind {
	case domain.KindListRepos:
		return d.api.ListRepos(ctx, github.ListReposOptions{
			User:  params[domain.ParamUser],
			Org:   params[domain.ParamOrg],
			Limit: limit,
		})
	case domain.KindSearchRepos:
		return d.api.SearchRepos(ctx, params[domain.ParamQuery], limit)
	case domain.KindListIssues:
		return d.api.ListIssues(ctx, repo, state, limit)
	case domain.KindListPRs:
		return d.api.ListPulls(ctx, repo, state, limit)
	case domain.KindGetRepo:
		return d.api.GetRepo(ctx, repo)
	case domain.KindListBranches:
		return d.api.ListBranches(ctx, repo, limit)
	case domain.KindListCommits:
		return d.api.ListCommits(ctx, repo, limit)
	case domain.KindGetUser:
		return d.api.GetUser(ctx, params[domain.ParamUser])
	default:
		return domain.ActionResult{Kind: domain.KindUnsupported, Status: domain.StatusUnsupported}
	}
}

func (d *Dispatcher) limit(s string) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return d.opts.DefaultLimit
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
