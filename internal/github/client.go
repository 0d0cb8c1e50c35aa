// Package github is a small read-only client for the GitHub REST API built
// on go-github. Every operation returns a domain.ActionResult whose Status
// classifies the outcome; callers never see transport errors directly.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/logging"
	"github.com/soyeahso/ghagent/internal/version"
)

const (
	defaultBaseURL   = "https://api.github.com"
	defaultRateRetry = 60 * time.Second

	// Rate-limit resources; each has its own quota.
	resourceCore   = "core"
	resourceSearch = "search"
)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Token    string
	PerPage  int
	MaxPages int
	Timeout  time.Duration
}

// RateState is the last known quota of one rate-limit resource.
type RateState struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Client calls the GitHub REST API with a fixed credential.
type Client struct {
	api      *gh.Client
	perPage  int
	maxPages int
	log      *logging.Logger
	now      func() time.Time

	mu     sync.Mutex
	rates  map[string]RateState // resource ("core", "search") → state
	scopes []string
}

// New creates a Client. The token is attached by an oauth2 transport and is
// never logged.
func New(opts Options, log *logging.Logger) *Client {
	log = log.Sub("github")
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = 30
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 3
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	if opts.Token != "" {
		httpClient.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   http.DefaultTransport,
		}
	}

	api := gh.NewClient(httpClient)
	api.UserAgent = version.UserAgent()
	if base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/"); err == nil {
		api.BaseURL = base
	} else {
		log.Warn().Err(err).Str("baseUrl", opts.BaseURL).Msg("invalid base URL, using api.github.com")
	}

	return &Client{
		api:      api,
		perPage:  opts.PerPage,
		maxPages: opts.MaxPages,
		log:      log,
		now:      time.Now,
		rates:    make(map[string]RateState),
	}
}

// Rate returns the last known state of a rate-limit resource.
func (c *Client) Rate(resource string) (RateState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.rates[resource]
	return s, ok
}

// Scopes returns the OAuth scopes reported for the token, if any.
func (c *Client) Scopes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.scopes...)
}

type requestError struct {
	status     domain.ResultStatus
	code       int
	retryAfter time.Duration
	message    string
}

func (e *requestError) Error() string {
	if e.code != 0 {
		return "github: HTTP " + strconv.Itoa(e.code) + ": " + e.message
	}
	return "github: " + e.message
}

// fetch pages through a listing until limit records are collected, the last
// page is reached, or maxPages is hit. Exactly one logical operation; nothing
// is retried here. convert may drop items by returning false.
func fetch[T any](
	ctx context.Context,
	c *Client,
	res domain.ActionResult,
	resource string,
	limit int,
	list func(ctx context.Context, opts gh.ListOptions) ([]T, *gh.Response, error),
	convert func(T) (domain.Record, bool),
) domain.ActionResult {
	if limit <= 0 {
		limit = c.perPage
	}
	opts := gh.ListOptions{PerPage: min(limit, c.perPage)}
	res.Status = domain.StatusOK
	res.Attempts++

	for page := 1; ; page++ {
		if page > c.maxPages {
			res.Truncated = true
			break
		}

		var items []T
		var resp *gh.Response
		err := c.call(resource, func() (*gh.Response, error) {
			var err error
			items, resp, err = list(ctx, opts)
			return resp, err
		})
		if err != nil {
			return failed(res, err)
		}

		if raw, err := json.Marshal(items); err == nil {
			res.Raw = append(res.Raw, raw)
		}
		for _, it := range items {
			if rec, ok := convert(it); ok {
				res.Records = append(res.Records, rec)
			}
		}

		if len(res.Records) >= limit {
			if len(res.Records) > limit || resp.NextPage != 0 {
				res.Truncated = true
			}
			res.Records = res.Records[:limit]
			break
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.log.Debug().
		Str("kind", string(res.Kind)).
		Int("records", len(res.Records)).
		Bool("truncated", res.Truncated).
		Msg("fetched")
	return res
}

// failed stamps a classified error onto res, dropping partial records.
func failed(res domain.ActionResult, err error) domain.ActionResult {
	res.Records = nil
	res.Raw = nil
	res.Truncated = false

	var reqErr *requestError
	if !errors.As(err, &reqErr) {
		reqErr = &requestError{status: domain.StatusAPIError, message: err.Error()}
	}
	res.Status = reqErr.status
	res.HTTPStatus = reqErr.code
	res.RetryAfter = reqErr.retryAfter
	res.Detail = reqErr.Error()
	return res
}

// call performs one request. It refuses locally when the resource's quota is
// known to be exhausted, records rate headers from every response, and
// classifies failures.
func (c *Client) call(resource string, do func() (*gh.Response, error)) error {
	if err := c.reserve(resource); err != nil {
		return err
	}

	start := c.now()
	resp, err := do()
	if resp != nil && resp.Response != nil {
		c.observe(resp.Header, resource)
		ev := c.log.Debug().Int("status", resp.StatusCode)
		if resp.Request != nil {
			ev = ev.Str("path", resp.Request.URL.Path)
		}
		ev.Dur("duration", c.now().Sub(start)).Msg("github response")
	}
	if err != nil {
		return c.classify(err)
	}
	return nil
}

// classify maps a go-github error onto a result status.
func (c *Client) classify(err error) *requestError {
	var (
		reqErr    *requestError
		rateErr   *gh.RateLimitError
		abuseErr  *gh.AbuseRateLimitError
		apiErr    *gh.ErrorResponse
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &reqErr):
		return reqErr
	case errors.As(err, &rateErr):
		return &requestError{
			status:     domain.StatusRateLimited,
			code:       statusCode(rateErr.Response),
			retryAfter: c.retryAfter(header(rateErr.Response), rateErr.Rate.Reset.Time),
			message:    rateErr.Message,
		}
	case errors.As(err, &abuseErr):
		wait := c.retryAfter(header(abuseErr.Response), time.Time{})
		if abuseErr.RetryAfter != nil {
			wait = *abuseErr.RetryAfter
		}
		return &requestError{
			status:     domain.StatusRateLimited,
			code:       statusCode(abuseErr.Response),
			retryAfter: wait,
			message:    abuseErr.Message,
		}
	case errors.As(err, &apiErr):
		code := statusCode(apiErr.Response)
		h := header(apiErr.Response)
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(code)
		}
		switch {
		case code == http.StatusNotFound:
			return &requestError{status: domain.StatusNotFound, code: code, message: msg}
		case code == http.StatusTooManyRequests, code == http.StatusForbidden && isRateLimited(h, msg):
			return &requestError{
				status:     domain.StatusRateLimited,
				code:       code,
				retryAfter: c.retryAfter(h, time.Time{}),
				message:    msg,
			}
		default:
			return &requestError{status: domain.StatusAPIError, code: code, message: msg}
		}
	case errors.As(err, &typeErr), errors.As(err, &syntaxErr):
		return &requestError{status: domain.StatusAPIError, message: "malformed response: " + err.Error()}
	default:
		c.log.Warn().Err(err).Msg("request failed")
		return &requestError{status: domain.StatusAPIError, message: "transport: " + err.Error()}
	}
}

func statusCode(r *http.Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func header(r *http.Response) http.Header {
	if r == nil {
		return http.Header{}
	}
	return r.Header
}

// isRateLimited tells a rate-limit 403 apart from a permission 403.
func isRateLimited(h http.Header, msg string) bool {
	return h.Get("Retry-After") != "" ||
		h.Get("X-RateLimit-Remaining") == "0" ||
		strings.Contains(strings.ToLower(msg), "rate limit")
}

// retryAfter prefers Retry-After seconds, then X-RateLimit-Reset, then the
// reset reported by go-github.
func (c *Client) retryAfter(h http.Header, reset time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			reset = time.Unix(epoch, 0)
		}
	}
	if !reset.IsZero() {
		if wait := reset.Sub(c.now()); wait > 0 {
			return ceilSecond(wait)
		}
		return 0
	}
	return defaultRateRetry
}

// ceilSecond rounds d up to a whole second so a wait never ends before the
// reset it was computed from.
func ceilSecond(d time.Duration) time.Duration {
	return (d + time.Second - 1).Truncate(time.Second)
}

// reserve takes one request from the resource's known quota.
func (c *Client) reserve(resource string) error {
	if resource == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.rates[resource]
	if !ok {
		return nil
	}
	now := c.now()
	if state.Remaining <= 0 && now.Before(state.Reset) {
		return &requestError{
			status:     domain.StatusRateLimited,
			retryAfter: ceilSecond(state.Reset.Sub(now)),
			message:    resource + " rate limit exhausted",
		}
	}
	if state.Remaining > 0 {
		state.Remaining--
		c.rates[resource] = state
	}
	return nil
}

// observe records the token's scopes and reconciles rate state from
// response headers.
func (c *Client) observe(h http.Header, resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scopes := h.Get("X-OAuth-Scopes"); scopes != "" {
		c.scopes = c.scopes[:0]
		for _, s := range strings.Split(scopes, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.scopes = append(c.scopes, s)
			}
		}
	}

	remaining, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	if r := h.Get("X-RateLimit-Resource"); r != "" {
		resource = r
	}
	if resource == "" {
		return
	}
	state := RateState{Remaining: remaining}
	state.Limit, _ = strconv.Atoi(h.Get("X-RateLimit-Limit"))
	if epoch, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		state.Reset = time.Unix(epoch, 0)
	}
	c.rates[resource] = state
}
