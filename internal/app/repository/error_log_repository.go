package repository

import (
	"context"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// ErrorLogRepository is the error-tracking store.
type ErrorLogRepository interface {
	Create(ctx context.Context, entry *model.ErrorLog) error
	FindRecent(ctx context.Context, source string, limit int) ([]model.ErrorLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type errorLogRepository struct {
	db *gorm.DB
}

func NewErrorLogRepository(db *gorm.DB) ErrorLogRepository {
	return &errorLogRepository{db: db}
}

func (r *errorLogRepository) Create(ctx context.Context, entry *model.ErrorLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Error("Failed to write error log entry", err, map[string]interface{}{
			"source":    entry.Source,
			"operation": entry.Operation,
		})
		return err
	}
	return nil
}

// FindRecent returns the newest entries first. An empty source matches all.
func (r *errorLogRepository) FindRecent(ctx context.Context, source string, limit int) ([]model.ErrorLog, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if source != "" {
		query = query.Where("source = ?", source)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []model.ErrorLog
	if err := query.Find(&entries).Error; err != nil {
		logger.Error("Failed to find error log entries", err, map[string]interface{}{
			"source": source,
		})
		return nil, err
	}
	return entries, nil
}

func (r *errorLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	logger.Debug("Deleting expired error log entries", map[string]interface{}{
		"cutoff": cutoff,
	})

	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.ErrorLog{})
	if result.Error != nil {
		logger.Error("Failed to delete expired error log entries", result.Error, map[string]interface{}{
			"cutoff": cutoff,
		})
		return 0, result.Error
	}

	logger.Debug("Expired error log entries deleted", map[string]interface{}{
		"cutoff":  cutoff,
		"deleted": result.RowsAffected,
	})
	return result.RowsAffected, nil
}
