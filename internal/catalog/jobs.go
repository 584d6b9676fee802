package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrJobNotRetryable reports a retry request against a job that is not
// in a retryable state.
var ErrJobNotRetryable = errors.New("job is not in a retryable state")

// EnsureAssets makes sure an asset row exists for every given type.
// Existing rows are left untouched.
func (r *repository) EnsureAssets(ctx context.Context, episodeID uint, types []models.AssetType) ([]models.Asset, error) {
	assets := make([]models.Asset, 0, len(types))
	for _, assetType := range types {
		var asset models.Asset
		err := r.db.WithContext(ctx).
			Where(models.Asset{EpisodeID: episodeID, Type: assetType}).
			Attrs(models.Asset{Status: models.AssetStatusMissing}).
			FirstOrCreate(&asset).Error
		if err != nil {
			return nil, NewStorageError(fmt.Sprintf("ensuring %s asset", assetType), err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

// GetAsset fetches one asset of an episode by type.
func (r *repository) GetAsset(ctx context.Context, episodeID uint, assetType models.AssetType) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).
		Where("episode_id = ? AND type = ?", episodeID, assetType).
		First(&asset).Error
	if err != nil {
		return nil, wrapNotFound(err, "asset", fmt.Sprintf("%d/%s", episodeID, assetType), "getting asset")
	}
	return &asset, nil
}

// ListAssets returns all assets of an episode.
func (r *repository) ListAssets(ctx context.Context, episodeID uint) ([]models.Asset, error) {
	var assets []models.Asset
	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("type ASC").
		Find(&assets).Error
	if err != nil {
		return nil, NewStorageError("listing assets", err)
	}
	return assets, nil
}

// UpdateAsset saves all asset fields.
func (r *repository) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	if err := r.db.WithContext(ctx).Save(asset).Error; err != nil {
		return NewStorageError("updating asset", err)
	}
	return nil
}

// EnqueueJob creates a pending download job for (episode, asset type)
// unless an active one already exists, and moves the asset to queued.
// Calling it twice is safe; ingest re-runs hit the existing job.
func (r *repository) EnqueueJob(ctx context.Context, episodeID uint, assetType models.AssetType, reason string) (*models.DownloadJob, error) {
	var job models.DownloadJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var asset models.Asset
		if err := tx.
			Where(models.Asset{EpisodeID: episodeID, Type: assetType}).
			Attrs(models.Asset{Status: models.AssetStatusMissing}).
			FirstOrCreate(&asset).Error; err != nil {
			return NewStorageError("ensuring asset for job", err)
		}

		// An active job already covers this asset.
		err := tx.
			Where("episode_id = ? AND asset_type = ?", episodeID, assetType).
			Where("status IN ?", []models.JobStatus{models.JobStatusPending, models.JobStatusRunning, models.JobStatusWatch}).
			First(&job).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return NewStorageError("checking active jobs", err)
		}

		job = models.DownloadJob{
			EpisodeID: episodeID,
			AssetType: assetType,
			Status:    models.JobStatusPending,
			Reason:    reason,
		}
		if err := tx.Create(&job).Error; err != nil {
			return NewStorageError("creating job", err)
		}

		if asset.Status != models.AssetStatusDownloading && asset.Status != models.AssetStatusQueued {
			if err := tx.Model(&asset).Update("status", models.AssetStatusQueued).Error; err != nil {
				return NewStorageError("queuing asset", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob retrieves a job by id.
func (r *repository) GetJob(ctx context.Context, id uint) (*models.DownloadJob, error) {
	var job models.DownloadJob
	err := r.db.WithContext(ctx).First(&job, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "job", id, "getting job")
	}
	return &job, nil
}

// ListJobsByStatus retrieves jobs by status, newest first. An empty
// status lists every job.
func (r *repository) ListJobsByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.DownloadJob, error) {
	query := r.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []*models.DownloadJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, NewStorageError("listing jobs", err)
	}
	return jobs, nil
}

// ClaimNextJobs atomically claims up to limit pending jobs for a worker.
// Claim order is episode priority descending, then job id ascending.
// Episodes that already have a running job are skipped, episodes marked
// gone are skipped, and at most one job per episode is claimed so work
// on a single episode never runs concurrently.
func (r *repository) ClaimNextJobs(ctx context.Context, workerID string, limit int) ([]models.DownloadJob, error) {
	if limit <= 0 {
		limit = 1
	}

	var claimed []models.DownloadJob

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		runningEpisodes := tx.Model(&models.DownloadJob{}).
			Select("episode_id").
			Where("status = ?", models.JobStatusRunning)

		// Overfetch so the per-episode dedupe below can still fill the
		// batch when one episode holds several pending jobs.
		var candidates []models.DownloadJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Joins("JOIN episodes ON episodes.id = download_jobs.episode_id AND episodes.deleted_at IS NULL").
			Where("download_jobs.status = ?", models.JobStatusPending).
			Where("episodes.availability_status <> ?", models.AvailabilityGone).
			Where("download_jobs.episode_id NOT IN (?)", runningEpisodes).
			Order("episodes.priority DESC, download_jobs.id ASC").
			Limit(limit * 4).
			Find(&candidates).Error
		if err != nil {
			return NewStorageError("selecting claimable jobs", err)
		}

		now := time.Now().UTC()
		seen := make(map[uint]bool, limit)
		for i := range candidates {
			if len(claimed) >= limit {
				break
			}
			if seen[candidates[i].EpisodeID] {
				continue
			}
			seen[candidates[i].EpisodeID] = true

			updates := map[string]interface{}{
				"status":     models.JobStatusRunning,
				"worker_id":  workerID,
				"started_at": &now,
			}
			if err := tx.Model(&candidates[i]).Updates(updates).Error; err != nil {
				return NewStorageError("claiming job", err)
			}

			candidates[i].Status = models.JobStatusRunning
			candidates[i].WorkerID = workerID
			candidates[i].StartedAt = &now
			claimed = append(claimed, candidates[i])
		}

		if len(claimed) == 0 {
			return ErrNoJobsAvailable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteJob marks a job successful.
func (r *repository) CompleteJob(ctx context.Context, jobID uint, reason string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      models.JobStatusSuccess,
		"finished_at": &now,
		"error":       "",
		"error_kind":  "",
	}
	if reason != "" {
		updates["reason"] = reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.DownloadJob{}).
		Where("id = ?", jobID).
		Updates(updates)
	if result.Error != nil {
		return NewStorageError("completing job", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("job", jobID)
	}
	return nil
}

// FailJob marks a job failed with a classified error.
func (r *repository) FailJob(ctx context.Context, jobID uint, kind models.ErrorKind, message string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.DownloadJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      models.JobStatusError,
			"error":       message,
			"error_kind":  string(kind),
			"finished_at": &now,
			"worker_id":   "",
		})
	if result.Error != nil {
		return NewStorageError("failing job", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("job", jobID)
	}
	return nil
}

// ParkJobForWatch parks a job until its episode becomes available
// again. Watch jobs never expire; a successful probe revives them.
func (r *repository) ParkJobForWatch(ctx context.Context, jobID uint, message string) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.DownloadJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      models.JobStatusWatch,
			"error":       message,
			"error_kind":  string(models.ErrorKindUpstreamGone),
			"finished_at": &now,
			"worker_id":   "",
		})
	if result.Error != nil {
		return NewStorageError("parking job", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("job", jobID)
	}
	return nil
}

// SkipJob closes a job without doing its work. The asset follows the
// job to skipped unless a file already landed for it.
func (r *repository) SkipJob(ctx context.Context, jobID uint, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.DownloadJob
		if err := tx.First(&job, jobID).Error; err != nil {
			return wrapNotFound(err, "job", jobID, "finding job to skip")
		}

		now := time.Now().UTC()
		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":      models.JobStatusSkipped,
			"reason":      reason,
			"finished_at": &now,
			"worker_id":   "",
		}).Error; err != nil {
			return NewStorageError("skipping job", err)
		}

		err := tx.Model(&models.Asset{}).
			Where("episode_id = ? AND type = ?", job.EpisodeID, job.AssetType).
			Where("status <> ?", models.AssetStatusComplete).
			Update("status", models.AssetStatusSkipped).Error
		if err != nil {
			return NewStorageError("skipping asset", err)
		}
		return nil
	})
}

// RetryJob flips an error or watch job back to pending and re-queues
// its asset.
func (r *repository) RetryJob(ctx context.Context, jobID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.DownloadJob
		if err := tx.First(&job, jobID).Error; err != nil {
			return wrapNotFound(err, "job", jobID, "finding job to retry")
		}
		if !job.CanRetry() {
			return fmt.Errorf("%w: job %d is %s", ErrJobNotRetryable, jobID, job.Status)
		}

		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":      models.JobStatusPending,
			"error":       "",
			"error_kind":  "",
			"worker_id":   "",
			"started_at":  nil,
			"finished_at": nil,
		}).Error; err != nil {
			return NewStorageError("retrying job", err)
		}

		return requeueAsset(tx, job.EpisodeID, job.AssetType)
	})
}

// RequeueWatchJob flips one watch job back to pending after a probe saw
// its episode answer again. The note lands in the job reason so the
// history shows why the job came back.
func (r *repository) RequeueWatchJob(ctx context.Context, jobID uint, note string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.DownloadJob
		if err := tx.First(&job, jobID).Error; err != nil {
			return wrapNotFound(err, "job", jobID, "finding watch job")
		}
		if job.Status != models.JobStatusWatch {
			return fmt.Errorf("%w: job %d is %s", ErrJobNotRetryable, jobID, job.Status)
		}

		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":      models.JobStatusPending,
			"reason":      note,
			"error":       "",
			"error_kind":  "",
			"worker_id":   "",
			"started_at":  nil,
			"finished_at": nil,
		}).Error; err != nil {
			return NewStorageError("re-queuing watch job", err)
		}

		return requeueAsset(tx, job.EpisodeID, job.AssetType)
	})
}

// ReviveEpisodeJobs re-queues every watch and error job of an episode.
// Called when a probe finds previously missing content available again.
func (r *repository) ReviveEpisodeJobs(ctx context.Context, episodeID uint) (int64, error) {
	var revived int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobs []models.DownloadJob
		if err := tx.
			Where("episode_id = ?", episodeID).
			Where("status IN ?", []models.JobStatus{models.JobStatusWatch, models.JobStatusError}).
			Find(&jobs).Error; err != nil {
			return NewStorageError("finding jobs to revive", err)
		}

		for i := range jobs {
			if err := tx.Model(&jobs[i]).Updates(map[string]interface{}{
				"status":      models.JobStatusPending,
				"error":       "",
				"error_kind":  "",
				"worker_id":   "",
				"started_at":  nil,
				"finished_at": nil,
			}).Error; err != nil {
				return NewStorageError("reviving job", err)
			}
			if err := requeueAsset(tx, jobs[i].EpisodeID, jobs[i].AssetType); err != nil {
				return err
			}
			revived++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revived, nil
}

// ReapStaleRunning demotes running jobs started before the cutoff back
// to pending. Used at startup to recover from a crashed executor.
func (r *repository) ReapStaleRunning(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DownloadJob{}).
		Where("status = ? AND started_at < ?", models.JobStatusRunning, olderThan).
		Updates(map[string]interface{}{
			"status":     models.JobStatusPending,
			"worker_id":  "",
			"started_at": nil,
		})
	if result.Error != nil {
		return 0, NewStorageError("reaping stale jobs", result.Error)
	}
	return result.RowsAffected, nil
}

// requeueAsset moves a failed or stale asset back to queued so the
// asset state tracks its re-queued job.
func requeueAsset(tx *gorm.DB, episodeID uint, assetType models.AssetType) error {
	err := tx.Model(&models.Asset{}).
		Where("episode_id = ? AND type = ?", episodeID, assetType).
		Where("status IN ?", []models.AssetStatus{models.AssetStatusFailed, models.AssetStatusStale, models.AssetStatusMissing}).
		Update("status", models.AssetStatusQueued).Error
	if err != nil {
		return NewStorageError("re-queuing asset", err)
	}
	return nil
}
