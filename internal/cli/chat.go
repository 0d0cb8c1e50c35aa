package cli

import (
	"bufio"
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		sessionID  string
		plain      bool
		showIntent bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			sessionID = a.sessions.GetOrCreate(sessionID).ID

			p := newReplyPrinter(cmd.OutOrStdout(), plain)
			p.banner(sessionID)
			return chatLoop(ctx, a, p, bufio.NewScanner(cmd.InOrStdin()), sessionID, showIntent)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "resume an existing session")
	cmd.Flags().BoolVar(&plain, "plain", false, "print replies without styling")
	cmd.Flags().BoolVar(&showIntent, "show-intent", false, "print the parsed intent before each reply")

	return cmd
}

// chatLoop reads one turn per line until EOF, /quit or cancellation.
func chatLoop(ctx context.Context, a *app, p *replyPrinter, in *bufio.Scanner, sessionID string, showIntent bool) error {
	for {
		p.prompt()
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			sessionID = a.sessions.GetOrCreate("").ID
			p.banner(sessionID)
			continue
		}

		res := a.runner.Run(ctx, sessionID, line)
		p.reply(res, showIntent)
		if ctx.Err() != nil {
			return nil
		}
	}
}
