package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/playtime/internal/adapter/httpserver"
	"github.com/pscheid92/playtime/internal/adapter/metrics"
	"github.com/pscheid92/playtime/internal/app"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the /track trigger over HTTP and optionally tick on an interval",
		Long: "Starts the HTTP server. GET / and GET /track run one tick each. " +
			"With TICK_INTERVAL set, an in-process scheduler ticks on that interval as well.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	startCtx, cancel := context.WithTimeout(parent, startupTimeout)
	rt, err := setup(startCtx)
	cancel()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.NewServer(rt.cfg, rt.tracker, rt.registry, metrics.NewHTTPMetrics(rt.registry), rt.backends.HealthChecks)

	var wg sync.WaitGroup
	if rt.cfg.TickInterval > 0 {
		scheduler := app.NewScheduler(rt.tracker, rt.cfg.TickInterval, rt.clock)
		wg.Go(func() { scheduler.Run(ctx) })
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, cleaning up...")
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}

	stop()
	wg.Wait()
	slog.Info("Shutdown complete")
	return nil
}
