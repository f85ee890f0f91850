// Package sweeper periodically expires applications whose payment window
// elapsed without anyone reading them.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer is satisfied by application.Service.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Sweeper runs Expirer.ExpireDue on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	target  Expirer
	logger  *slog.Logger
	timeout time.Duration
}

// New parses schedule (standard five-field spec or descriptors such as
// "@every 1m") and returns a stopped sweeper.
func New(schedule string, target Expirer, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		target:  target,
		logger:  logger,
		timeout: 30 * time.Second,
	}
	cl := cronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins scheduling in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("expiry sweeper started")
}

// Stop halts scheduling and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("expiry sweeper stop timed out")
	}
}

// RunOnce performs a single sweep synchronously.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.target.ExpireDue(ctx)
}

func (s *Sweeper) run() {
	n, err := s.RunOnce(context.Background())
	if err != nil {
		s.logger.Error("expiry sweep failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.logger.Info("expired applications", slog.Int("count", n))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
