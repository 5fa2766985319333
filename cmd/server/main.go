// Package main runs the HTTP API and the reinvestment schedule together:
// - /api/cron triggers a pass (bearer CRON_SECRET)
// - /api/activity and /api/runs expose history
// - an in-process cron schedule runs passes when CRON_SCHEDULE is set
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fee-reinvestor/internal/app"
	"fee-reinvestor/internal/config"
	"fee-reinvestor/internal/logging"
	"fee-reinvestor/internal/scheduler"
	"fee-reinvestor/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, syncLogs, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer syncLogs()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		syncLogs()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	orch, closeOrch, err := app.NewOrchestrator(ctx, cfg, stores, logger)
	if err != nil {
		return err
	}
	defer closeOrch()

	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET not set, /api/cron will refuse requests")
	}

	api := server.New(server.Options{
		CronSecret: cfg.CronSecret,
		Runner:     orch,
		Activity:   stores.Activity,
		Runs:       stores.Runs,
		Logger:     logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *scheduler.Scheduler
	if cfg.CronSchedule != "" {
		sched, err = scheduler.New(cfg.CronSchedule, orch, logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("schedule", cfg.CronSchedule),
			zap.String("mode", string(cfg.Policy.Mode)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if n := orch.InFlight(); n > 0 {
		logger.Warn("exiting with passes in flight", zap.Int("in_flight", n))
	}
	return nil
}
