package domain

import (
	"encoding/json"
	"time"
)

// ResultStatus classifies the outcome of a dispatched action.
type ResultStatus string

const (
	StatusOK          ResultStatus = "ok"
	StatusAPIError    ResultStatus = "api_error"
	StatusNotFound    ResultStatus = "not_found"
	StatusRateLimited ResultStatus = "rate_limited"

	// Short-circuit statuses: no API call was made.
	StatusClarify     ResultStatus = "clarify"
	StatusUnsupported ResultStatus = "unsupported"
)

// ActionResult is the outcome of dispatching one intent.
type ActionResult struct {
	Kind    IntentKind   `json:"kind"`
	Status  ResultStatus `json:"status"`
	Records []Record     `json:"-"`

	// Raw holds the provider's response pages for diagnostics. It is never
	// shown to the user.
	Raw []json.RawMessage `json:"-"`

	Repo       RepoRef       `json:"repo,omitempty"`
	Query      string        `json:"query,omitempty"`
	State      string        `json:"state,omitempty"`
	Owner      string        `json:"owner,omitempty"` // user/org scope of list_repos
	Missing    []string      `json:"missing,omitempty"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	HTTPStatus int           `json:"httpStatus,omitempty"`
	Detail     string        `json:"detail,omitempty"` // diagnostic, not user-facing
}

// OK reports whether the action succeeded.
func (r ActionResult) OK() bool { return r.Status == StatusOK }

// RawJSON joins the raw pages into a single JSON array.
func (r ActionResult) RawJSON() []byte {
	if len(r.Raw) == 0 {
		return nil
	}
	data, err := json.Marshal(r.Raw)
	if err != nil {
		return nil
	}
	return data
}
