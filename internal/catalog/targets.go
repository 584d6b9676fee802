package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"gorm.io/gorm"
)

// CreateTarget registers a crawl target. Duplicate URLs return the
// existing row.
func (r *repository) CreateTarget(ctx context.Context, target *models.CrawlTarget) error {
	err := r.db.WithContext(ctx).Create(target).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewStorageError("creating crawl target", err)
	}

	var existing models.CrawlTarget
	if err := r.db.WithContext(ctx).Where("url = ?", target.URL).First(&existing).Error; err != nil {
		return NewStorageError("loading crawl target after unique collision", err)
	}
	*target = existing
	return nil
}

// GetTarget fetches a crawl target by id.
func (r *repository) GetTarget(ctx context.Context, id uint) (*models.CrawlTarget, error) {
	var target models.CrawlTarget
	err := r.db.WithContext(ctx).First(&target, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "crawl target", id, "getting crawl target")
	}
	return &target, nil
}

// GetTargetByURL fetches a crawl target by its URL.
func (r *repository) GetTargetByURL(ctx context.Context, url string) (*models.CrawlTarget, error) {
	var target models.CrawlTarget
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&target).Error
	if err != nil {
		return nil, wrapNotFound(err, "crawl target", url, "getting crawl target by url")
	}
	return &target, nil
}

// ListTargets returns all crawl targets.
func (r *repository) ListTargets(ctx context.Context) ([]models.CrawlTarget, error) {
	var targets []models.CrawlTarget
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&targets).Error; err != nil {
		return nil, NewStorageError("listing crawl targets", err)
	}
	return targets, nil
}

// ToggleTarget flips a target's active flag and returns the new state.
func (r *repository) ToggleTarget(ctx context.Context, id uint) (*models.CrawlTarget, error) {
	var target models.CrawlTarget

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, id).Error; err != nil {
			return wrapNotFound(err, "crawl target", id, "finding crawl target to toggle")
		}
		target.Active = !target.Active
		if err := tx.Model(&target).Update("active", target.Active).Error; err != nil {
			return NewStorageError("toggling crawl target", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// DueTargets returns active targets whose next crawl time has passed.
// Targets never crawled are always due.
func (r *repository) DueTargets(ctx context.Context, now time.Time) ([]models.CrawlTarget, error) {
	var targets []models.CrawlTarget
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("next_crawl_at IS NULL OR next_crawl_at <= ?", now).
		Order("next_crawl_at IS NULL DESC, next_crawl_at ASC").
		Find(&targets).Error
	if err != nil {
		return nil, NewStorageError("listing due crawl targets", err)
	}
	return targets, nil
}

// StampTargetCrawled records a finished crawl and schedules the next one.
func (r *repository) StampTargetCrawled(ctx context.Context, id uint, now time.Time) error {
	var target models.CrawlTarget
	if err := r.db.WithContext(ctx).First(&target, id).Error; err != nil {
		return wrapNotFound(err, "crawl target", id, "finding crawl target to stamp")
	}

	target.StampCrawled(now)

	err := r.db.WithContext(ctx).Model(&target).Updates(map[string]interface{}{
		"last_crawled_at": target.LastCrawledAt,
		"next_crawl_at":   target.NextCrawlAt,
	}).Error
	if err != nil {
		return NewStorageError("stamping crawl target", err)
	}
	return nil
}
