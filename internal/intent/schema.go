// Package intent turns raw model output into a structured domain.Intent.
package intent

import (
	"slices"

	"github.com/soyeahso/ghagent/internal/domain"
)

// Schema describes the parameters an action kind accepts.
type Schema struct {
	Kind        domain.IntentKind
	Description string
	Required    []string
	Optional    []string
	Example     string
}

// schemas is ordered: the prompt catalogue and keyword fallback both
// depend on this order.
var schemas = []Schema{
	{
		Kind:        domain.KindListRepos,
		Description: "list repositories of the authenticated user, another user, or an organization",
		Optional:    []string{domain.ParamUser, domain.ParamOrg, domain.ParamLimit},
		Example:     `{"action":"list_repos","params":{}}`,
	},
	{
		Kind:        domain.KindSearchRepos,
		Description: "search public repositories",
		Required:    []string{domain.ParamQuery},
		Optional:    []string{domain.ParamLimit},
		Example:     `{"action":"search_repos","params":{"query":"terminal emulator"}}`,
	},
	{
		Kind:        domain.KindListIssues,
		Description: "list issues of a repository",
		Required:    []string{domain.ParamOwner, domain.ParamRepo},
		Optional:    []string{domain.ParamState, domain.ParamLimit},
		Example:     `{"action":"list_issues","params":{"owner":"microsoft","repo":"vscode","state":"open"}}`,
	},
	{
		Kind:        domain.KindListPRs,
		Description: "list pull requests of a repository",
		Required:    []string{domain.ParamOwner, domain.ParamRepo},
		Optional:    []string{domain.ParamState, domain.ParamLimit},
		Example:     `{"action":"list_prs","params":{"owner":"golang","repo":"go","state":"closed"}}`,
	},
	{
		Kind:        domain.KindGetRepo,
		Description: "show details of one repository",
		Required:    []string{domain.ParamOwner, domain.ParamRepo},
		Example:     `{"action":"get_repo","params":{"owner":"facebook","repo":"react"}}`,
	},
	{
		Kind:        domain.KindListBranches,
		Description: "list branches of a repository",
		Required:    []string{domain.ParamOwner, domain.ParamRepo},
		Optional:    []string{domain.ParamLimit},
		Example:     `{"action":"list_branches","params":{"owner":"torvalds","repo":"linux"}}`,
	},
	{
		Kind:        domain.KindListCommits,
		Description: "list recent commits of a repository",
		Required:    []string{domain.ParamOwner, domain.ParamRepo},
		Optional:    []string{domain.ParamLimit},
		Example:     `{"action":"list_commits","params":{"owner":"rust-lang","repo":"rust","limit":5}}`,
	},
	{
		Kind:        domain.KindGetUser,
		Description: "show the profile of the authenticated user, or of another user",
		Optional:    []string{domain.ParamUser},
		Example:     `{"action":"get_user","params":{"user":"octocat"}}`,
	},
}

// Schemas returns the action catalogue in its fixed order.
func Schemas() []Schema {
	return slices.Clone(schemas)
}

// Lookup returns the schema of a concrete kind.
func Lookup(kind domain.IntentKind) (Schema, bool) {
	for _, s := range schemas {
		if s.Kind == kind {
			return s, true
		}
	}
	return Schema{}, false
}

// Accepts reports whether name is a required or optional parameter.
func (s Schema) Accepts(name string) bool {
	return slices.Contains(s.Required, name) || slices.Contains(s.Optional, name)
}

// MissingFrom returns the required parameters absent from params, in schema order.
func (s Schema) MissingFrom(params map[string]string) []string {
	var missing []string
	for _, name := range s.Required {
		if params[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Filter drops parameters the schema does not accept.
func (s Schema) Filter(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if v != "" && s.Accepts(k) {
			out[k] = v
		}
	}
	return out
}
