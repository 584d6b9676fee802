package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// repository implements Repository over a gorm handle. The same type
// serves both the root connection and per-transaction handles.
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Transaction runs fn inside one database transaction. The callback
// receives a repository bound to the transaction; an error rolls the
// whole unit back. Ingest uses this to keep each episode all-or-nothing.
func (r *repository) Transaction(ctx context.Context, fn func(Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

// Stats aggregates counts across all catalog entities.
func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	db := r.db.WithContext(ctx)
	stats := &Stats{
		EpisodesByStatus: make(map[string]int64),
		AssetsByStatus:   make(map[string]int64),
		JobsByStatus:     make(map[string]int64),
	}

	type tableCount struct {
		table string
		dest  *int64
	}
	for _, tc := range []tableCount{
		{"stations", &stats.Stations},
		{"programs", &stats.Programs},
		{"series", &stats.Series},
		{"works", &stats.Works},
		{"episodes", &stats.Episodes},
		{"crawl_targets", &stats.Targets},
	} {
		if err := db.Table(tc.table).Where("deleted_at IS NULL").Count(tc.dest).Error; err != nil {
			return nil, NewStorageError("counting "+tc.table, err)
		}
	}

	// The probe log is append-only and has no soft delete column.
	if err := db.Table("availability_log").Count(&stats.AvailabilityProbes).Error; err != nil {
		return nil, NewStorageError("counting availability probes", err)
	}

	if err := db.Table("crawl_targets").Where("deleted_at IS NULL AND active = ?", true).Count(&stats.ActiveTargets).Error; err != nil {
		return nil, NewStorageError("counting active targets", err)
	}

	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	if err := db.Table("episodes").Select("availability_status AS status, COUNT(*) AS count").
		Where("deleted_at IS NULL").Group("availability_status").Scan(&rows).Error; err != nil {
		return nil, NewStorageError("counting episodes by status", err)
	}
	for _, row := range rows {
		stats.EpisodesByStatus[row.Status] = row.Count
	}

	rows = nil
	if err := db.Table("assets").Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").Group("status").Scan(&rows).Error; err != nil {
		return nil, NewStorageError("counting assets by status", err)
	}
	for _, row := range rows {
		stats.AssetsByStatus[row.Status] = row.Count
	}

	rows = nil
	if err := db.Table("download_jobs").Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").Group("status").Scan(&rows).Error; err != nil {
		return nil, NewStorageError("counting jobs by status", err)
	}
	for _, row := range rows {
		stats.JobsByStatus[row.Status] = row.Count
	}

	if err := db.Table("assets").
		Where("deleted_at IS NULL AND type = ? AND status <> ?", "audio", "complete").
		Count(&stats.EpisodesMissingAudio).Error; err != nil {
		return nil, NewStorageError("counting missing audio", err)
	}

	return stats, nil
}

// wrapNotFound maps gorm's not-found to the package sentinel via a
// typed error; other errors pass through wrapped.
func wrapNotFound(err error, resource string, id interface{}, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(resource, id)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
