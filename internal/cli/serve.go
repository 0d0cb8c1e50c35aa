package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"

	"github.com/soyeahso/ghagent/internal/server"
	"github.com/soyeahso/ghagent/internal/version"
)

func newServeCmd() *cobra.Command {
	var (
		bind        string
		autoRestart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversational turns over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if bind != "" {
				cfg.Server.Bind = bind
			}

			a, err := buildApp(cfg, paths, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if autoRestart {
				// Re-executes the binary when it is rebuilt in place.
				go autorestart.RestartOnChange()
			}

			opts := []server.Option{
				server.WithHooks(a.hooks),
				server.WithVersion(version.Version),
			}
			if a.actions != nil {
				opts = append(opts, server.WithActionLog(a.actions))
			}
			srv := server.New(cfg.Server, a.runner, a.sessions, log, opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("bind", cfg.Server.Bind).
				Str("model", cfg.Model.Name).
				Str("provider", a.model.Provider()).
				Str("store", cfg.Session.Store).
				Msg("starting ghagent server")
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "override the listen address (host:port)")
	cmd.Flags().BoolVar(&autoRestart, "autorestart", false, "restart when the binary changes on disk")

	return cmd
}
