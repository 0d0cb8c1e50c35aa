package intent

import (
	"regexp"
	"strings"

	"github.com/soyeahso/ghagent/internal/domain"
)

// keywordRule maps a phrase pattern over lowercased text to a kind.
type keywordRule struct {
	kind    domain.IntentKind
	pattern *regexp.Regexp
	needRef bool // only applies when a repository token is present
}

// keywordRules are checked in order; pull requests come before issues so
// "issues and PRs" style text resolves to the more specific listing.
var keywordRules = []keywordRule{
	{kind: domain.KindListPRs, pattern: regexp.MustCompile(`\bpull[- ]?requests?\b|\bprs?\b|\bpulls\b|\bmerge requests?\b`)},
	{kind: domain.KindListIssues, pattern: regexp.MustCompile(`\bissues?\b|\bbugs?\b|\btickets?\b`)},
	{kind: domain.KindListBranches, pattern: regexp.MustCompile(`\bbranch(es)?\b`)},
	{kind: domain.KindListCommits, pattern: regexp.MustCompile(`\bcommits?\b`)},
	{kind: domain.KindSearchRepos, pattern: regexp.MustCompile(`\b(search|find|look(ing)? for|discover)\b`)},
	{kind: domain.KindListRepos, pattern: regexp.MustCompile(`\b(repos|repositories|projects)\b`)},
	{kind: domain.KindGetUser, pattern: regexp.MustCompile(`\bwho\s*am\s*i\b|\bprofile\b|\baccount\b`)},
	{kind: domain.KindGetRepo, pattern: regexp.MustCompile(`\b(details?|info|information|about|describe|overview|stats|stars|summary)\b`), needRef: true},
}

var (
	repoTokenPattern = regexp.MustCompile(`(?i)(?:^|[^A-Za-z0-9_./:-])(?:https?://)?(?:www\.)?(?:github\.com/)?([A-Za-z0-9][A-Za-z0-9-]*)/([A-Za-z0-9_.-]*[A-Za-z0-9_-])`)
	quotedPattern    = regexp.MustCompile("[\"'`“]([^\"'`”]+)[\"'`”]")
	searchTailRe     = regexp.MustCompile(`(?i)\b(?:search|find|look(?:ing)? for|discover)\s+(?:for\s+)?(?:(?:public\s+)?(?:repos|repositories|projects)\s+)?(?:about|for|on|matching|named|called|with)?\s*(.+)$`)
	strictStateRe    = regexp.MustCompile(`\b(open|closed|all)\s+(?:issues?|pull requests?|prs?|pulls|ones)\b|\bstate[:= ]+(open|closed|all)\b`)
	looseStateRe     = regexp.MustCompile(`\b(open|closed)\b`)
	limitRe          = regexp.MustCompile(`\b(?:top|first|last|latest|recent)\s+(\d{1,3})\b|\b(\d{1,3})\s+(?:open\s+|closed\s+|recent\s+|latest\s+)?(?:issues?|prs?|pull requests?|repos|repositories|commits?|branches)\b`)
	userRe           = regexp.MustCompile(`(?i)\b(?:user|by)\s+@?([A-Za-z0-9][A-Za-z0-9-]*)`)
	profileRe        = regexp.MustCompile(`(?i)\b(?:profile|account)\s+(?:of|for)\s+(?:user\s+)?@?([A-Za-z0-9][A-Za-z0-9-]*)|@?([A-Za-z0-9][A-Za-z0-9-]*)'s\s+(?:github\s+)?(?:profile|account)`)
	writeRe          = regexp.MustCompile(`\b(?:create|file|submit|open|raise|close|reopen|delete|remove|edit|rename|fork|star|lock)\s+(?:(?:a|an|the|this|that|my|new)\s+)+(?:issue|pull request|pr|branch|repo|repository|comment)s?\b|\bmerge\s+(?:(?:the|this|that)\s+)?(?:pr|pull request)\b|\b(?:comment|reply)\s+on\b`)
	orgRe            = regexp.MustCompile(`(?i)\b(?:org|organization|organisation)\s+@?([A-Za-z0-9][A-Za-z0-9-]*)`)
)

// notOwners are slash-joined words that look like repository tokens.
var notOwners = map[string]bool{
	"and": true, "open": true, "closed": true, "issues": true, "prs": true,
	"i": true, "api": true, "true": true, "yes": true, "either": true,
}

func parsePatterns(raw string) (candidate, bool) {
	text := strings.ToLower(raw)
	if writeRe.MatchString(text) {
		// read-only agent: requests to change something are never mapped to a listing
		return candidate{kind: domain.KindUnsupported}, true
	}
	params := make(map[string]string)

	ref, hasRef := findRepoRef(raw)
	if hasRef {
		params[domain.ParamOwner] = ref.Owner
		params[domain.ParamRepo] = ref.Name
	}

	var kind domain.IntentKind
	for _, rule := range keywordRules {
		if rule.needRef && !hasRef {
			continue
		}
		if rule.pattern.MatchString(text) {
			kind = rule.kind
			break
		}
	}

	if m := strictStateRe.FindStringSubmatch(text); m != nil {
		params[domain.ParamState] = firstNonEmpty(m[1:]...)
	} else if kind == domain.KindListIssues || kind == domain.KindListPRs {
		if m := looseStateRe.FindStringSubmatch(text); m != nil {
			params[domain.ParamState] = m[1]
		}
	}

	if kind != "" {
		if m := limitRe.FindStringSubmatch(text); m != nil {
			params[domain.ParamLimit] = firstNonEmpty(m[1:]...)
		}
	}

	switch kind {
	case domain.KindSearchRepos:
		if q := findQuery(raw); q != "" {
			params[domain.ParamQuery] = q
		}
	case domain.KindGetUser:
		if m := profileRe.FindStringSubmatch(raw); m != nil {
			params[domain.ParamUser] = firstNonEmpty(m[1:]...)
		} else if m := userRe.FindStringSubmatch(raw); m != nil {
			params[domain.ParamUser] = m[1]
		}
	case domain.KindListRepos:
		if m := orgRe.FindStringSubmatch(raw); m != nil {
			params[domain.ParamOrg] = m[1]
		} else if m := userRe.FindStringSubmatch(raw); m != nil {
			params[domain.ParamUser] = m[1]
		}
	}

	if kind == "" && len(params) == 0 {
		return candidate{}, false
	}
	return candidate{kind: kind, params: params, confidence: patternConfidence}, true
}

// findRepoRef returns the first owner/name token in text.
func findRepoRef(text string) (domain.RepoRef, bool) {
	for _, m := range repoTokenPattern.FindAllStringSubmatch(text, -1) {
		if notOwners[strings.ToLower(m[1])] {
			continue
		}
		ref, err := domain.ParseRepoRef(m[1] + "/" + strings.TrimRight(m[2], "."))
		if err == nil {
			return ref, true
		}
	}
	return domain.RepoRef{}, false
}

func findQuery(raw string) string {
	if m := quotedPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := searchTailRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), ".?!")
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
