package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/ghagent/internal/config"
	"github.com/soyeahso/ghagent/internal/github"
	"github.com/soyeahso/ghagent/internal/llm"
	"github.com/soyeahso/ghagent/internal/version"
)

const statusTimeout = 10 * time.Second

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the language model and GitHub API are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ghagent %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Store:   %s", cfg.Session.Store)
			if cfg.Session.Store == "sqlite" {
				fmt.Fprintf(out, " (%s)", paths.SessionDB(cfg.Session))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out)

			ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
			defer cancel()

			modelStatus(ctx, out, cfg.Model)
			githubStatus(ctx, out, cfg.GitHub)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}

func modelStatus(ctx context.Context, out io.Writer, mc config.ModelConfig) {
	fmt.Fprintf(out, "Model:   %s %s at %s\n", mc.Provider, mc.Name, mc.BaseURL())

	client, err := llm.NewRegistryFromConfig(mc, log).Resolve(mc.Provider)
	if err != nil {
		fmt.Fprintf(out, "         unavailable: %v\n", err)
		return
	}
	lister, ok := client.(llm.ModelLister)
	if !ok {
		fmt.Fprintln(out, "         reachability unknown")
		return
	}
	models, err := lister.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(out, "         unreachable: %v\n", err)
		return
	}
	loaded := "not loaded"
	if slices.Contains(models, mc.Name) {
		loaded = "available"
	}
	fmt.Fprintf(out, "         reachable, %s is %s (%d model(s): %s)\n",
		mc.Name, loaded, len(models), strings.Join(models, ", "))
}

func githubStatus(ctx context.Context, out io.Writer, gc config.GitHubConfig) {
	auth := "token"
	if gc.Token == "" {
		auth = "anonymous"
	}
	fmt.Fprintf(out, "GitHub:  %s (%s)\n", gc.BaseURL, auth)

	gh := github.New(github.Options{BaseURL: gc.BaseURL, Token: gc.Token, Timeout: gc.Timeout()}, log)
	rates, err := gh.RateLimit(ctx)
	if err != nil {
		fmt.Fprintf(out, "         unreachable: %v\n", err)
		return
	}
	if scopes := gh.Scopes(); len(scopes) > 0 {
		fmt.Fprintf(out, "         scopes: %s\n", strings.Join(scopes, ", "))
	}
	for _, name := range []string{"core", "search"} {
		r, ok := rates[name]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "         %-6s %d/%d remaining, resets %s\n",
			name, r.Remaining, r.Limit, r.Reset.Local().Format(time.TimeOnly))
	}
}
