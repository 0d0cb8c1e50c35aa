package intent

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/soyeahso/ghagent/internal/domain"
)

// MinConfidence is the lowest self-reported model confidence accepted for a
// structured action. Lower values parse as unsupported.
const MinConfidence = 0.3

// patternConfidence is assigned to intents recovered by keyword matching.
const patternConfidence = 0.5

// candidate is what a strategy recognized before schema resolution.
type candidate struct {
	kind          domain.IntentKind // "" when only parameters were recognized
	pending       domain.IntentKind // declared target of a clarify action
	params        map[string]string
	confidence    float64
	hasConfidence bool
}

// strategy tries to recognize an action in raw model output.
type strategy func(raw string) (candidate, bool)

// strategies run in order; the first one that recognizes anything wins.
var strategies = []strategy{parseStructured, parsePatterns}

// Parse converts raw model output into an Intent. It never fails: output
// with nothing recognizable yields KindUnsupported.
func Parse(raw string) domain.Intent {
	for _, s := range strategies {
		if c, ok := s(raw); ok {
			return resolve(c)
		}
	}
	return domain.Intent{Kind: domain.KindUnsupported}
}

// Enrich fills a missing owner/repo pair from a repository token in the
// user's own text. Unsupported intents are returned unchanged.
func Enrich(in domain.Intent, userText string) domain.Intent {
	if in.Kind == domain.KindUnsupported {
		return in
	}
	if _, ok := in.Repo(); ok {
		return in
	}
	ref, ok := findRepoRef(userText)
	if !ok {
		return in
	}
	kind := in.Kind
	if kind.IsConcrete() {
		if s, _ := Lookup(kind); !s.Accepts(domain.ParamRepo) {
			return in
		}
	}
	params := copyMap(in.Params)
	params[domain.ParamOwner] = ref.Owner
	params[domain.ParamRepo] = ref.Name
	return build(kind, in.Pending, params, in.Confidence)
}

func resolve(c candidate) domain.Intent {
	if c.hasConfidence && c.confidence < MinConfidence && c.kind != domain.KindClarify {
		return domain.Intent{Kind: domain.KindUnsupported, Confidence: c.confidence}
	}
	return build(c.kind, c.pending, normalizeParams(c.params), c.confidence)
}

// build applies the schema of the recognized kind: complete actions stay
// concrete, incomplete ones become clarify with the missing names listed.
func build(kind, pending domain.IntentKind, params map[string]string, confidence float64) domain.Intent {
	switch {
	case kind == domain.KindUnsupported:
		return domain.Intent{Kind: domain.KindUnsupported, Confidence: confidence}
	case kind.IsConcrete():
		pending = kind
	case !pending.IsConcrete():
		pending = ""
	}

	if pending == "" {
		params = knownParams(params)
		if len(params) == 0 && kind == "" {
			return domain.Intent{Kind: domain.KindUnsupported, Confidence: confidence}
		}
		return domain.Intent{Kind: domain.KindClarify, Params: nilIfEmpty(params), Confidence: confidence}
	}

	schema, _ := Lookup(pending)
	if (pending == domain.KindListRepos || pending == domain.KindGetUser) &&
		params[domain.ParamUser] == "" && params[domain.ParamOrg] == "" {
		if owner := params[domain.ParamOwner]; owner != "" {
			params = copyMap(params)
			params[domain.ParamUser] = owner
		}
	}
	params = schema.Filter(params)
	if missing := schema.MissingFrom(params); len(missing) > 0 {
		return domain.Intent{
			Kind:       domain.KindClarify,
			Pending:    pending,
			Params:     nilIfEmpty(params),
			Missing:    missing,
			Confidence: confidence,
		}
	}
	return domain.Intent{Kind: pending, Params: nilIfEmpty(params), Confidence: confidence}
}

// --- structured strategy ---

var fencePattern = regexp.MustCompile("(?s)```[A-Za-z]*\\s*(.*?)```")

var (
	kindKeys   = []string{"action", "kind", "type", "intent"}
	paramsKeys = []string{"params", "args", "arguments", "parameters"}
)

func parseStructured(raw string) (candidate, bool) {
	var sources []string
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		sources = append(sources, m[1])
	}
	sources = append(sources, raw)

	for _, src := range sources {
		rest := src
		for {
			obj, start, ok := balancedObject(rest)
			if !ok {
				break
			}
			if c, ok := decodeCandidate(obj); ok {
				return c, true
			}
			rest = rest[start+1:]
		}
	}
	return candidate{}, false
}

// balancedObject returns the first balanced {...} in s, ignoring braces
// inside JSON strings, and its start offset.
func balancedObject(s string) (string, int, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					return s[start : i+1], start, true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", 0, false
}

func decodeCandidate(obj string) (candidate, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return candidate{}, false
	}

	c := candidate{params: make(map[string]string)}
	for _, k := range kindKeys {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			c.kind = normalizeKind(s)
			break
		}
	}
	for k, v := range doc {
		if _, ok := paramAliases[strings.ToLower(k)]; ok {
			if s, ok := stringify(v); ok {
				c.params[k] = s
			}
		}
	}
	for _, k := range paramsKeys {
		if m, ok := doc[k].(map[string]any); ok {
			for name, v := range m {
				if s, ok := stringify(v); ok {
					c.params[name] = s
				}
			}
			break
		}
	}
	for _, k := range []string{"pending", "for", "target"} {
		if s, ok := doc[k].(string); ok {
			if kind := normalizeKind(s); kind.IsConcrete() {
				c.pending = kind
				break
			}
		}
	}
	if v, ok := doc["confidence"]; ok {
		if s, ok := stringify(v); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				c.confidence, c.hasConfidence = f, true
			}
		}
	}

	if c.kind == "" && len(knownParams(normalizeParams(c.params))) == 0 {
		return candidate{}, false
	}
	if !c.hasConfidence {
		c.confidence = 1
	}
	return c, true
}

// stringify renders scalar JSON values as strings; numbers come out in
// plain decimal form.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

var kindAliases = map[string]domain.IntentKind{
	"list_repos":          domain.KindListRepos,
	"list_repositories":   domain.KindListRepos,
	"repos":               domain.KindListRepos,
	"search_repos":        domain.KindSearchRepos,
	"search_repositories": domain.KindSearchRepos,
	"search":              domain.KindSearchRepos,
	"list_issues":         domain.KindListIssues,
	"issues":              domain.KindListIssues,
	"list_prs":            domain.KindListPRs,
	"list_pulls":          domain.KindListPRs,
	"list_pull_requests":  domain.KindListPRs,
	"pull_requests":       domain.KindListPRs,
	"prs":                 domain.KindListPRs,
	"get_repo":            domain.KindGetRepo,
	"get_repository":      domain.KindGetRepo,
	"repo_info":           domain.KindGetRepo,
	"list_branches":       domain.KindListBranches,
	"branches":            domain.KindListBranches,
	"list_commits":        domain.KindListCommits,
	"commits":             domain.KindListCommits,
	"get_user":            domain.KindGetUser,
	"get_profile":         domain.KindGetUser,
	"user_info":           domain.KindGetUser,
	"profile":             domain.KindGetUser,
	"whoami":              domain.KindGetUser,
	"clarify":             domain.KindClarify,
	"clarification":       domain.KindClarify,
	"ask":                 domain.KindClarify,
	"need_more_info":      domain.KindClarify,
	"unknown":             domain.KindUnsupported,
	"unsupported":         domain.KindUnsupported,
	"none":                domain.KindUnsupported,
}

// normalizeKind maps a declared action name onto the closed set of kinds.
// Unrecognized names are unsupported.
func normalizeKind(s string) domain.IntentKind {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if s == "" {
		return ""
	}
	if k, ok := kindAliases[s]; ok {
		return k
	}
	return domain.KindUnsupported
}

// --- parameter normalization ---

var paramAliases = map[string]string{
	"owner":        domain.ParamOwner,
	"repo":         domain.ParamRepo,
	"repository":   domain.ParamRepo,
	"query":        domain.ParamQuery,
	"q":            domain.ParamQuery,
	"search":       domain.ParamQuery,
	"keywords":     domain.ParamQuery,
	"state":        domain.ParamState,
	"status":       domain.ParamState,
	"limit":        domain.ParamLimit,
	"count":        domain.ParamLimit,
	"per_page":     domain.ParamLimit,
	"max":          domain.ParamLimit,
	"user":         domain.ParamUser,
	"username":     domain.ParamUser,
	"login":        domain.ParamUser,
	"org":          domain.ParamOrg,
	"organization": domain.ParamOrg,
	"organisation": domain.ParamOrg,
}

var stateAliases = map[string]string{
	"open":   "open",
	"opened": "open",
	"closed": "closed",
	"close":  "closed",
	"all":    "all",
	"any":    "all",
}

// normalizeParams canonicalizes names, splits owner/repo forms, and drops
// values that cannot be valid.
func normalizeParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for _, k := range slices.Sorted(maps.Keys(in)) {
		name, ok := paramAliases[strings.ToLower(strings.TrimSpace(k))]
		v := strings.TrimSpace(in[k])
		if !ok || v == "" || strings.EqualFold(v, "null") {
			continue
		}
		if out[name] == "" {
			out[name] = v
		}
	}

	for _, key := range []string{domain.ParamRepo, domain.ParamOwner} {
		v := out[key]
		if !strings.Contains(v, "/") {
			continue
		}
		if ref, err := domain.ParseRepoRef(v); err == nil {
			out[domain.ParamOwner] = ref.Owner
			out[domain.ParamRepo] = ref.Name
			break
		}
		delete(out, key)
	}

	if v, ok := out[domain.ParamState]; ok {
		if s, ok := stateAliases[strings.ToLower(v)]; ok {
			out[domain.ParamState] = s
		} else {
			delete(out, domain.ParamState)
		}
	}
	if v, ok := out[domain.ParamLimit]; ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 1 {
			out[domain.ParamLimit] = strconv.Itoa(int(n))
		} else {
			delete(out, domain.ParamLimit)
		}
	}
	for _, key := range []string{domain.ParamUser, domain.ParamOrg} {
		if v, ok := out[key]; ok {
			out[key] = strings.TrimPrefix(v, "@")
		}
	}
	return out
}

func knownParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if _, ok := paramAliases[k]; ok && v != "" {
			out[k] = v
		}
	}
	return out
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func nilIfEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
