package agent

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/intent"
)

// PromptInput is everything the model sees for one turn.
type PromptInput struct {
	History    []domain.Message // prior messages, oldest first
	ActiveRepo *domain.RepoRef
	Pending    *domain.PendingClarification
	Message    string
	MaxTurns   int // one turn = one user and one assistant message; <= 0 means none
}

const promptPreamble = `You turn requests about GitHub into exactly one JSON action.
You never answer the question yourself and never invent repositories.

Actions:
`

const promptRules = `
Reply with a single JSON object and nothing else:
{"action":"<action>","params":{...},"confidence":<0.0-1.0>}

Rules:
- Give "owner" and "repo" as separate params.
- When the action is clear but a required param is missing, reply
  {"action":"clarify","pending":"<action>","params":{...}} with the params you do know.
- When the message only supplies params for the action awaiting input, reply clarify
  with that action as "pending".
- When the request matches no action, reply {"action":"unknown"}.
- All actions only read. Requests to create, change or delete anything are unknown.
`

// BuildPrompt renders the model prompt for a turn. The output depends only on
// its input.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(promptPreamble)
	for _, s := range intent.Schemas() {
		fmt.Fprintf(&b, "- %s: %s.", s.Kind, s.Description)
		if len(s.Required) > 0 {
			fmt.Fprintf(&b, " Required: %s.", strings.Join(s.Required, ", "))
		}
		if len(s.Optional) > 0 {
			fmt.Fprintf(&b, " Optional: %s.", strings.Join(s.Optional, ", "))
		}
		fmt.Fprintf(&b, "\n  Example: %s\n", s.Example)
	}
	b.WriteString(promptRules)

	if ctx := contextLines(in); len(ctx) > 0 {
		b.WriteString("\nContext:\n")
		for _, line := range ctx {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	if turns := recentTurns(in.History, in.MaxTurns); len(turns) > 0 {
		b.WriteString("\nConversation:\n")
		for _, m := range turns {
			fmt.Fprintf(&b, "%s: %s\n", speaker(m.Role), oneLine(m.Content))
		}
	}

	fmt.Fprintf(&b, "\nUser: %s\nJSON:", oneLine(in.Message))
	return b.String()
}

func contextLines(in PromptInput) []string {
	var lines []string
	if in.ActiveRepo != nil && !in.ActiveRepo.IsZero() {
		lines = append(lines, "Active repository: "+in.ActiveRepo.String())
	}
	if p := in.Pending; p != nil && p.Kind.IsConcrete() {
		line := "Awaiting input for: " + string(p.Kind)
		if s, ok := intent.Lookup(p.Kind); ok {
			if missing := s.MissingFrom(p.Params); len(missing) > 0 {
				line += " (missing " + strings.Join(missing, ", ") + ")"
			}
		}
		if len(p.Params) > 0 {
			var known []string
			for _, k := range slices.Sorted(maps.Keys(p.Params)) {
				known = append(known, k+"="+p.Params[k])
			}
			line += "; known: " + strings.Join(known, ", ")
		}
		lines = append(lines, line)
	}
	return lines
}

// recentTurns keeps the user and assistant messages of the last maxTurns turns.
func recentTurns(history []domain.Message, maxTurns int) []domain.Message {
	if maxTurns <= 0 {
		return nil
	}
	var msgs []domain.Message
	for _, m := range history {
		if m.Role == domain.RoleUser || m.Role == domain.RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	if n := maxTurns * 2; len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}

func speaker(role string) string {
	if role == domain.RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// oneLine collapses a message onto a single line so it cannot impersonate a
// speaker label.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
