package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobrepo/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only inspection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.API.Addr = addr
			}
			if migrate {
				if err := a.repo.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handler := api.New(a.repo,
				api.WithLogger(a.logger),
				api.WithRateLimit(a.cfg.API.RateLimit, a.cfg.API.Burst),
			).Handler()
			srv := &http.Server{
				Addr:              a.cfg.API.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("jobrepo: api listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				a.logger.Info("jobrepo: api shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides api.addr)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "initialise the backend before serving")
	return cmd
}
