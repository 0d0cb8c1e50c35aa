package agent

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/soyeahso/ghagent/internal/domain"
)

// maxListed caps the number of records rendered in one reply.
const maxListed = 20

// ModelUnavailableReply is sent when the language model cannot be reached.
const ModelUnavailableReply = "Sorry, I can't reach the language model right now, so I couldn't work out what you meant. Please try again in a moment."

const unsupportedReply = `Sorry, I can only look things up on GitHub, not change them. Try something like:
- "list my repos"
- "show open issues in owner/repo"
- "search repos for terminal emulator"
- "show the profile of user octocat"`

// Format renders an action result as a markdown reply. It is pure.
func Format(res domain.ActionResult) string {
	switch res.Status {
	case domain.StatusOK:
		return formatOK(res)
	case domain.StatusNotFound:
		return formatNotFound(res)
	case domain.StatusRateLimited:
		if res.RetryAfter <= 0 {
			return "Rate limit hit, retry later."
		}
		return fmt.Sprintf("Rate limit hit, retry in %s.", formatWait(res.RetryAfter))
	case domain.StatusAPIError:
		if res.HTTPStatus > 0 {
			return fmt.Sprintf("Something went wrong talking to GitHub (HTTP %d). Please try again.", res.HTTPStatus)
		}
		return "Something went wrong talking to GitHub. Please try again."
	case domain.StatusClarify:
		return formatClarify(res)
	default:
		return unsupportedReply
	}
}

func formatOK(res domain.ActionResult) string {
	if res.Kind == domain.KindGetRepo {
		if len(res.Records) == 1 {
			if r, ok := res.Records[0].(domain.Repository); ok {
				return formatRepoDetail(r)
			}
		}
		return formatNotFound(res)
	}
	if res.Kind == domain.KindGetUser {
		if len(res.Records) == 1 {
			if u, ok := res.Records[0].(domain.User); ok {
				return formatUserDetail(u)
			}
		}
		return formatNotFound(res)
	}

	noun, where := describe(res)
	if len(res.Records) == 0 {
		return fmt.Sprintf("No %s%s.", plural(noun), where)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s%s:\n", len(res.Records), countNoun(noun, len(res.Records)), where)
	for i, rec := range res.Records {
		if i == maxListed {
			fmt.Fprintf(&b, "…and %d more\n", len(res.Records)-maxListed)
			break
		}
		b.WriteString("- ")
		b.WriteString(formatRecord(rec))
		b.WriteByte('\n')
	}
	if res.Truncated {
		b.WriteString("There are more results on GitHub; ask for a higher limit to see them.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// describe returns the singular noun for the listing and the phrase locating it.
func describe(res domain.ActionResult) (string, string) {
	state := ""
	if res.State == "open" || res.State == "closed" {
		state = res.State + " "
	}
	switch res.Kind {
	case domain.KindListIssues:
		return state + "issue", " in " + res.Repo.String()
	case domain.KindListPRs:
		return state + "pull request", " in " + res.Repo.String()
	case domain.KindListBranches:
		return "branch", " in " + res.Repo.String()
	case domain.KindListCommits:
		return "recent commit", " in " + res.Repo.String()
	case domain.KindSearchRepos:
		return "repository", fmt.Sprintf(" matching %q", res.Query)
	default:
		if res.Owner != "" {
			return "repository", " for " + res.Owner
		}
		return "repository", " you have access to"
	}
}

func countNoun(noun string, n int) string {
	if n == 1 {
		return noun
	}
	return plural(noun)
}

func plural(noun string) string {
	switch {
	case strings.HasSuffix(noun, "y"):
		return strings.TrimSuffix(noun, "y") + "ies"
	case strings.HasSuffix(noun, "ch"):
		return noun + "es"
	default:
		return noun + "s"
	}
}

func formatRecord(rec domain.Record) string {
	switch r := rec.(type) {
	case domain.Issue:
		line := fmt.Sprintf("#%d %s", r.Number, r.Title)
		if r.Author != "" {
			line += " (@" + r.Author + ")"
		}
		if len(r.Labels) > 0 {
			line += " [" + strings.Join(r.Labels, ", ") + "]"
		}
		return line
	case domain.PullRequest:
		line := fmt.Sprintf("#%d %s", r.Number, r.Title)
		if r.Draft {
			line += " (draft)"
		}
		if r.Author != "" {
			line += " by @" + r.Author
		}
		return line
	case domain.Repository:
		line := fmt.Sprintf("**%s**", r.FullName)
		if r.Description != "" {
			line += ": " + r.Description
		}
		return line + fmt.Sprintf(" (★ %d)", r.Stars)
	case domain.Branch:
		if r.Protected {
			return r.Name + " (protected)"
		}
		return r.Name
	case domain.Commit:
		line := fmt.Sprintf("`%s` %s", shortSHA(r.SHA), r.Message)
		if r.Author != "" {
			line += " (" + r.Author + ")"
		}
		return line
	default:
		return fmt.Sprintf("%v", rec)
	}
}

func formatRepoDetail(r domain.Repository) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", r.FullName)
	if r.Description != "" {
		b.WriteString(": " + r.Description)
	}
	b.WriteByte('\n')
	if r.Language != "" {
		fmt.Fprintf(&b, "- Language: %s\n", r.Language)
	}
	fmt.Fprintf(&b, "- Stars: %d, forks: %d, open issues: %d\n", r.Stars, r.Forks, r.OpenIssues)
	if r.Private {
		b.WriteString("- Private repository\n")
	}
	if r.Archived {
		b.WriteString("- Archived\n")
	}
	if !r.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "- Last updated: %s\n", r.UpdatedAt.UTC().Format("2006-01-02"))
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "- %s\n", r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatUserDetail(u domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**@%s**", u.Login)
	if u.Name != "" {
		b.WriteString(" (" + u.Name + ")")
	}
	if u.Type == "Organization" {
		b.WriteString(", organization")
	}
	b.WriteByte('\n')
	if u.Bio != "" {
		fmt.Fprintf(&b, "- %s\n", u.Bio)
	}
	if u.Company != "" {
		fmt.Fprintf(&b, "- Company: %s\n", u.Company)
	}
	if u.Location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", u.Location)
	}
	fmt.Fprintf(&b, "- Public repos: %d, followers: %d, following: %d\n", u.PublicRepos, u.Followers, u.Following)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Joined: %s\n", u.CreatedAt.UTC().Format("2006-01-02"))
	}
	if u.URL != "" {
		fmt.Fprintf(&b, "- %s\n", u.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNotFound(res domain.ActionResult) string {
	switch {
	case !res.Repo.IsZero():
		return fmt.Sprintf("I couldn't find that repository (%s).", res.Repo)
	case res.Owner != "":
		return fmt.Sprintf("I couldn't find that user or organization (%s).", res.Owner)
	default:
		return "I couldn't find what you asked for on GitHub."
	}
}

func formatClarify(res domain.ActionResult) string {
	if len(res.Missing) == 0 {
		if !res.Repo.IsZero() {
			return fmt.Sprintf("What would you like to know about %s? I can list its issues, pull requests, branches or commits.", res.Repo)
		}
		return "Could you tell me a bit more about what you'd like to see on GitHub?"
	}

	for _, m := range res.Missing {
		if m == domain.ParamOwner || m == domain.ParamRepo {
			return fmt.Sprintf("Which repository should I %s? Reply with owner/name, for example acme/widgets.", action(res.Kind))
		}
	}
	if slices.Contains(res.Missing, domain.ParamQuery) {
		return "What should I search for?"
	}
	return fmt.Sprintf("I need a bit more to %s: please give the %s.", action(res.Kind), strings.Join(res.Missing, " and "))
}

func action(kind domain.IntentKind) string {
	switch kind {
	case domain.KindListIssues:
		return "list issues for"
	case domain.KindListPRs:
		return "list pull requests for"
	case domain.KindListBranches:
		return "list branches for"
	case domain.KindListCommits:
		return "list commits for"
	case domain.KindGetRepo, domain.KindGetUser:
		return "look up"
	case domain.KindSearchRepos:
		return "search"
	default:
		return "use"
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// formatWait renders a wait rounded up to whole seconds.
func formatWait(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return (time.Duration(secs) * time.Second).String()
}
