package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinay-bit/research-apps-php-sub002/internal/server"
)

// shutdownTimeout bounds graceful shutdown; a run in progress is not
// interrupted beyond it.
const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr, token string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dispatcher over HTTP",
		Long: `Serve the dispatch vocabulary over HTTP:

  GET /?action=<command>   run all, setup, cleanup, help or a suite
  GET /                    menu of commands and suites
  GET /metrics             Prometheus metrics

Runs are serialized. Bind to a non-local address only together with --token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			extra := map[string]any{}
			if cmd.Flags().Changed("addr") {
				extra["server.addr"] = addr
			}
			if cmd.Flags().Changed("token") {
				extra["server.token"] = token
			}
			a, err := newApp(opts, cmd.OutOrStdout(), extra)
			if err != nil {
				return WrapExitError(ExitCommandError, "load configuration", err)
			}
			defer a.Close()

			srv := server.New(a.newRunner, server.Options{
				Addr:    a.cfg.Server.Addr,
				Token:   a.cfg.Server.Token,
				Metrics: a.recorder.Handler(),
				Logger:  a.logger,
			})
			return serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8089)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token required by every route except /health")

	return cmd
}

// serve runs srv until ctx is done or the listener fails.
func serve(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return WrapExitError(ExitCommandError, "serve", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return WrapExitError(ExitCommandError, "shutdown", err)
		}
		<-errCh
		return nil
	}
}
