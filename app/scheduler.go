package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cboard-org/cboard-billing/pkg/logger"
)

// Scheduler runs background jobs on cron schedules. A run that is still in
// progress when its next tick fires makes that tick a no-op.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With(logger.Component("scheduler"))
	cl := cronLogger{log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn under name. An empty spec leaves the job disabled.
func (s *Scheduler) Add(name, spec string, fn func(context.Context) error) error {
	if spec == "" {
		s.logger.Info("job disabled", logger.Event(name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := fn(s.ctx); err != nil {
			s.logger.Error("job failed", logger.Event(name), logger.Error(err), logger.Duration(time.Since(start)))
			return
		}
		s.logger.Info("job finished", logger.Event(name), logger.Duration(time.Since(start)))
	})
	if err != nil {
		return errors.Join(ErrInvalidSpec, err)
	}
	s.logger.Info("job scheduled", logger.Event(name), slog.String("spec", spec))
	return nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{logger.Error(err)}, keysAndValues...)...)
}
