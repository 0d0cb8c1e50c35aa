package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/ghagent/internal/domain"
	"github.com/soyeahso/ghagent/internal/store"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversations",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsSearchCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg, paths, log)
			if err != nil {
				return err
			}
			defer db.Close()

			sessions := store.NewSQLiteSessionStore(db)
			ids := sessions.List()
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tMESSAGES\tREPOSITORY")
			for _, id := range ids {
				s := sessions.Get(id)
				if s == nil {
					continue
				}
				repo := "-"
				if s.ActiveRepo != nil {
					repo = s.ActiveRepo.String()
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.UpdatedAt.Local().Format(time.DateTime), len(s.Messages), repo)
			}
			return tw.Flush()
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	var actionLimit int

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session's messages, context and action log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg, paths, log)
			if err != nil {
				return err
			}
			defer db.Close()

			s := store.NewSQLiteSessionStore(db).Get(args[0])
			if s == nil {
				return fmt.Errorf("session %q not found", args[0])
			}
			actions, err := store.NewActionLog(db).ListActions(cmd.Context(), s.ID, actionLimit)
			if err != nil {
				return fmt.Errorf("reading action log: %w", err)
			}
			printSession(cmd.OutOrStdout(), s, actions)
			return nil
		},
	}

	cmd.Flags().IntVar(&actionLimit, "actions", 20, "number of logged actions to show")
	return cmd
}

func newSessionsSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search across stored messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(cfg, paths, log)
			if err != nil {
				return err
			}
			defer db.Close()

			hits, err := store.NewSQLiteSessionStore(db).SearchMessages(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching messages.")
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s: %s\n",
					h.SessionID, h.Message.Timestamp.Local().Format(time.DateTime), h.Message.Role, oneLine(h.Message.Content))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of matches")
	return cmd
}

func printSession(w io.Writer, s *domain.Session, actions []store.ActionEntry) {
	fmt.Fprintf(w, "Session:  %s\n", s.ID)
	fmt.Fprintf(w, "Created:  %s\n", s.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Updated:  %s\n", s.UpdatedAt.Local().Format(time.DateTime))
	if s.ActiveRepo != nil {
		fmt.Fprintf(w, "Repo:     %s\n", s.ActiveRepo)
	}
	if s.Pending != nil {
		fmt.Fprintf(w, "Pending:  %s (asked %d time(s))\n", s.Pending.Kind, s.Pending.Attempts)
	}

	fmt.Fprintf(w, "\nMessages (%d):\n", len(s.Messages))
	for _, m := range s.Messages {
		fmt.Fprintf(w, "  [%s] %s: %s\n", m.Timestamp.Local().Format(time.TimeOnly), m.Role, oneLine(m.Content))
	}

	if len(actions) == 0 {
		return
	}
	fmt.Fprintf(w, "\nActions (%d, newest first):\n", len(actions))
	for _, a := range actions {
		line := fmt.Sprintf("  [%s] %s %s records=%d attempts=%d",
			a.CreatedAt.Local().Format(time.TimeOnly), a.Kind, a.Status, a.Records, a.Attempts)
		if a.HTTPStatus != 0 {
			line += fmt.Sprintf(" http=%d", a.HTTPStatus)
		}
		if a.Detail != "" {
			line += " (" + a.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// oneLine collapses whitespace so multi-line replies fit a listing row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
