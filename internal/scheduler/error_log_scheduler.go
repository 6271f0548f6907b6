package scheduler

import (
	"context"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/repository"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const pruneTimeout = time.Minute

// ErrorLogScheduler prunes error-tracking entries older than the retention.
type ErrorLogScheduler struct {
	cron      *cron.Cron
	errorLogs repository.ErrorLogRepository
	schedule  string
	retention time.Duration
	now       func() time.Time
}

func NewErrorLogScheduler(errorLogs repository.ErrorLogRepository, schedule string, retention time.Duration) *ErrorLogScheduler {
	return &ErrorLogScheduler{
		cron:      cron.New(),
		errorLogs: errorLogs,
		schedule:  schedule,
		retention: retention,
		now:       time.Now,
	}
}

// Start registers the prune job and starts the cron runner.
func (s *ErrorLogScheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			logger.Error("Failed to prune error logs from scheduler", err)
		}
	})
	if err != nil {
		logger.Error("Failed to add cron job for error log retention", err, map[string]interface{}{
			"schedule": s.schedule,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Error log scheduler started", map[string]interface{}{
		"schedule":  s.schedule,
		"retention": s.retention.String(),
	})
	return nil
}

// RunOnce deletes entries older than the retention and returns how many.
func (s *ErrorLogScheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	deleted, err := s.errorLogs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	logger.Info("Pruned error logs", map[string]interface{}{
		"cutoff":  cutoff,
		"deleted": deleted,
	})
	return deleted, nil
}

// Stop waits for a running job to finish.
func (s *ErrorLogScheduler) Stop() {
	logger.Info("Stopping error log scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Error log scheduler stopped", nil)
}
