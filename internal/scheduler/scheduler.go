// Package scheduler triggers passes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"fee-reinvestor/internal/domain"
)

// Runner starts passes.
type Runner interface {
	Run(ctx context.Context, trigger string) (*domain.PassSummary, error)
}

// Scheduler runs passes on a fixed cadence. A tick that fires while the
// previous scheduled pass is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *zap.Logger
}

// New creates a Scheduler for spec, a standard 5-field cron expression or a
// descriptor such as "@every 30m".
func New(spec string, runner Runner, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner: runner,
		logger: logger.Named("scheduler"),
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.logger}),
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))

	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops scheduling and waits for a running pass up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a pass running")
	}
}

func (s *Scheduler) tick() {
	start := time.Now()
	summary, err := s.runner.Run(context.Background(), "cron")
	if err != nil {
		s.logger.Error("scheduled pass failed to start", zap.Error(err))
		return
	}
	s.logger.Info("scheduled pass finished",
		zap.String("pass_id", summary.PassID),
		zap.Int("wallets", summary.TotalWallets),
		zap.Duration("elapsed", time.Since(start)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
