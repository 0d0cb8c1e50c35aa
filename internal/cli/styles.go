package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/soyeahso/ghagent/internal/agent"
	"github.com/soyeahso/ghagent/internal/domain"
)

const replyWrap = 100

var (
	// Standard ANSI colors (0-15) follow the user's terminal theme.
	accentColor    = lipgloss.ANSIColor(6)
	userColor      = lipgloss.ANSIColor(12)
	assistantColor = lipgloss.ANSIColor(13)
	warnColor      = lipgloss.ANSIColor(11)
	dimColor       = lipgloss.ANSIColor(8)

	bannerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 2)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(userColor).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(assistantColor).
				Bold(true)

	warnLabelStyle = lipgloss.NewStyle().
			Foreground(warnColor).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)
)

// replyPrinter writes turn results to a terminal, styled unless plain.
type replyPrinter struct {
	out   io.Writer
	plain bool
	md    *glamour.TermRenderer
}

func newReplyPrinter(out io.Writer, plain bool) *replyPrinter {
	p := &replyPrinter{out: out, plain: plain}
	if !plain {
		// A fixed style avoids querying the terminal for its background.
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(replyWrap),
		)
		if err == nil {
			p.md = md
		}
	}
	return p
}

func (p *replyPrinter) banner(sessionID string) {
	if p.plain {
		fmt.Fprintf(p.out, "ghagent session %s. Type /new for a fresh session, /quit to leave.\n", sessionID)
		return
	}
	body := "ghagent · ask about your GitHub repositories\n" +
		dimStyle.Render("session "+sessionID+" · /new · /quit")
	fmt.Fprintln(p.out, bannerStyle.Render(body))
}

func (p *replyPrinter) prompt() {
	if p.plain {
		fmt.Fprint(p.out, "> ")
		return
	}
	fmt.Fprint(p.out, userLabelStyle.Render("you")+" › ")
}

func (p *replyPrinter) reply(res agent.TurnResult, showIntent bool) {
	if showIntent {
		line := "intent: " + intentSummary(res.Intent) + " (" + string(res.Status) + ")"
		if !p.plain {
			line = dimStyle.Render(line)
		}
		fmt.Fprintln(p.out, line)
	}

	if p.plain {
		fmt.Fprintln(p.out, res.Reply)
		return
	}

	label := assistantLabelStyle.Render("ghagent")
	if isFailure(res.Status) {
		label = warnLabelStyle.Render("ghagent")
	}
	fmt.Fprintln(p.out, label)
	fmt.Fprintln(p.out, p.render(res.Reply))
	fmt.Fprintln(p.out)
}

func (p *replyPrinter) render(text string) string {
	if p.md == nil {
		return text
	}
	out, err := p.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func isFailure(s domain.ResultStatus) bool {
	switch s {
	case domain.StatusRateLimited, domain.StatusAPIError, agent.StatusModelUnavailable:
		return true
	}
	return false
}

// intentSummary renders an intent as "kind k=v ..." with params sorted.
func intentSummary(in domain.Intent) string {
	var b strings.Builder
	b.WriteString(string(in.Kind))
	if in.Kind == "" {
		b.WriteString("none")
	}
	for _, k := range slices.Sorted(maps.Keys(in.Params)) {
		fmt.Fprintf(&b, " %s=%s", k, in.Params[k])
	}
	if in.Pending != "" {
		fmt.Fprintf(&b, " pending=%s", in.Pending)
	}
	if len(in.Missing) > 0 {
		fmt.Fprintf(&b, " missing=%s", strings.Join(in.Missing, ","))
	}
	return b.String()
}
