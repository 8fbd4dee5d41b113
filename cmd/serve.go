package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic-research/skilltree/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr   string
		noLoad bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the skill tree over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, g)
			if err != nil {
				return err
			}
			defer e.Close()
			if cmd.Flags().Changed("addr") {
				e.cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// A failed initial load is reported in the state; clients can retry.
			if !noLoad {
				_ = e.store.Load(ctx, e.fetcher, e.cfg.Source)
			}

			srv := server.New(server.Options{
				Store:          e.store,
				Fetcher:        e.fetcher,
				DefaultSource:  e.cfg.Source,
				Sources:        e.cfg.SourceAllowList(),
				AllowedOrigins: e.cfg.AllowedOrigins,
				Logger:         e.logger,
			})
			httpServer := &http.Server{
				Addr:              e.cfg.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				e.logger.Info("http server listening", zap.String("addr", e.cfg.Addr))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			e.logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "Start with an empty tree instead of loading the source")
	return cmd
}
