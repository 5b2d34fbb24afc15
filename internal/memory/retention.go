package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionSweeper deletes messages older than the retention window on a
// cron schedule. A window of zero days disables sweeping entirely.
type RetentionSweeper struct {
	store    Memory
	days     int
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

func NewRetentionSweeper(store Memory, days int, schedule string, logger *slog.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		store:    store,
		days:     days,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *RetentionSweeper) Start() error {
	if s.days <= 0 {
		s.logger.Info("message retention disabled")
		return nil
	}

	s.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention sweeper started", "days", s.days, "schedule", s.schedule)
	return nil
}

// Stop shuts the scheduler down, waiting briefly for a running sweep.
func (s *RetentionSweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn("retention sweeper stop timed out")
	}
}

// Sweep deletes everything past the retention window once.
func (s *RetentionSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.days)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("retention sweep removed old messages", "count", deleted)
	}
}
