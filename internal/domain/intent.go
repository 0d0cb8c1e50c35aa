package domain

// IntentKind identifies the action a user asked for.
type IntentKind string

const (
	KindListRepos    IntentKind = "list_repos"
	KindSearchRepos  IntentKind = "search_repos"
	KindListIssues   IntentKind = "list_issues"
	KindListPRs      IntentKind = "list_prs"
	KindGetRepo      IntentKind = "get_repo"
	KindListBranches IntentKind = "list_branches"
	KindListCommits  IntentKind = "list_commits"
	KindGetUser      IntentKind = "get_user"

	// KindClarify means the action is known (or only its parameters are) but
	// something required is missing.
	KindClarify IntentKind = "clarify"
	// KindUnsupported means nothing actionable was recognized.
	KindUnsupported IntentKind = "unsupported"
)

// Parameter names shared by the intent schemas.
const (
	ParamOwner = "owner"
	ParamRepo  = "repo"
	ParamQuery = "query"
	ParamState = "state"
	ParamLimit = "limit"
	ParamUser  = "user"
	ParamOrg   = "org"
)

// Intent is the structured form of a user request.
type Intent struct {
	Kind       IntentKind        `json:"kind"`
	Params     map[string]string `json:"params,omitempty"`
	Pending    IntentKind        `json:"pending,omitempty"` // clarify only
	Missing    []string          `json:"missing,omitempty"` // clarify only
	Confidence float64           `json:"confidence,omitempty"`
}

// Param returns a parameter value or "".
func (i Intent) Param(name string) string {
	return i.Params[name]
}

// Repo returns the owner/repo pair carried by the intent, if complete.
func (i Intent) Repo() (RepoRef, bool) {
	ref := RepoRef{Owner: i.Params[ParamOwner], Name: i.Params[ParamRepo]}
	return ref, !ref.IsZero()
}

// WithParam returns a copy of the intent with name set to value.
func (i Intent) WithParam(name, value string) Intent {
	params := copyParams(i.Params)
	if params == nil {
		params = make(map[string]string, 1)
	}
	params[name] = value
	i.Params = params
	return i
}

// IsConcrete reports whether the kind maps to an API operation.
func (k IntentKind) IsConcrete() bool {
	return k != "" && k != KindClarify && k != KindUnsupported
}
