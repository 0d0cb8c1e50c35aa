package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		sessionID string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <text...>",
		Short: "Run a single turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return ask(ctx, cmd, a, sessionID, strings.Join(args, " "), asJSON)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session to continue (a new one is created if empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full turn result as JSON")

	return cmd
}

func ask(ctx context.Context, cmd *cobra.Command, a *app, sessionID, text string, asJSON bool) error {
	res := a.runner.Run(ctx, sessionID, text)

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Reply)
	if sessionID == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n[session %s]\n", res.SessionID)
	}
	return nil
}
