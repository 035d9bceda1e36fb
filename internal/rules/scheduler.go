package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const scheduledReloadTimeout = 30 * time.Second

// Scheduler reloads a Store on a cron schedule such as "@every 5m" or "*/10 * * * *".
type Scheduler struct {
	cron   *cron.Cron
	store  *Store
	logger *slog.Logger
}

// NewScheduler validates spec and registers the reload job. Call Start to begin.
func NewScheduler(st *Store, spec string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid reload schedule %q: %w", spec, err)
	}

	s := &Scheduler{
		cron:   cron.New(),
		store:  st,
		logger: logger,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.reload))
	return s, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("rule reload scheduler started")
}

// Stop stops the scheduler and waits for a running reload to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("rule reload scheduler stopped")
}

func (s *Scheduler) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledReloadTimeout)
	defer cancel()
	if _, err := s.store.Reload(ctx); err != nil {
		s.logger.Warn("scheduled rule reload failed", "error", err)
	}
}
