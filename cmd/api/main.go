package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"skills-backend/internal/bootstrap"
	"skills-backend/internal/shared/config"
	"skills-backend/internal/shared/server"
	"skills-backend/internal/shared/telemetry"
	"skills-backend/internal/sweep"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		telemetry.Error("api.exit", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// run owns every resource it opens, so deferred cleanup happens before main
// exits.
func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap build: %w", err)
	}
	defer app.Close()

	schedule := cfg.SweepSchedule()
	if schedule != "" {
		if err := sweep.Validate(schedule); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		telemetry.Info("api.start", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if schedule != "" {
		g.Go(func() error {
			return app.Sweeper.Run(gctx, schedule)
		})
	} else {
		telemetry.Info("quota.sweep.disabled", nil)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	telemetry.Info("api.stopped", nil)
	return nil
}
