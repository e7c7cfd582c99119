package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled ingest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps, err := InitDependencies(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		deps.WarmUp(ctx)

		if cfg.Scheduler.Enabled {
			if err := deps.Scheduler.Start(); err != nil {
				return err
			}
			defer func() { <-deps.Scheduler.Stop().Done() }()
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           deps.PriceHandler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// update-latest-daily-prices runs a full ingest inline
			WriteTimeout: cfg.Scheduler.IngestTimeout + 30*time.Second,
			IdleTimeout:  2 * time.Minute,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("http server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down http server")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	},
}
