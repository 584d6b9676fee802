package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEpisode(t *testing.T, repo Repository, workID uint, url string, priority int) *models.Episode {
	t.Helper()
	episode := &models.Episode{
		WorkID:   workID,
		Title:    "episode " + url,
		URL:      url,
		Priority: priority,
	}
	require.NoError(t, repo.CreateEpisode(context.Background(), episode))
	return episode
}

func TestRepository_EnsureAssets(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	assets, err := repo.EnsureAssets(ctx, episode.ID, models.RequiredAssetTypes)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	for _, asset := range assets {
		assert.Equal(t, models.AssetStatusMissing, asset.Status)
	}

	// Second call returns the same rows instead of creating new ones.
	again, err := repo.EnsureAssets(ctx, episode.ID, models.RequiredAssetTypes)
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.Equal(t, assets[0].ID, again[0].ID)

	var count int64
	db.Model(&models.Asset{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestRepository_EnqueueJobIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	first, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "fresh episode")
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	assert.Equal(t, models.JobStatusPending, first.Status)

	// Enqueueing again while the first job is still active returns it.
	second, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "re-ingest")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var jobCount int64
	db.Model(&models.DownloadJob{}).Count(&jobCount)
	assert.Equal(t, int64(1), jobCount)

	asset, err := repo.GetAsset(ctx, episode.ID, models.AssetAudio)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusQueued, asset.Status)
}

func TestRepository_EnqueueJobAfterTerminal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	first, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "")
	require.NoError(t, err)
	require.NoError(t, repo.CompleteJob(ctx, first.ID, ""))

	// A finished job no longer blocks a new one for the same asset.
	second, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "re-download")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.JobStatusPending, second.Status)
}

func TestRepository_ClaimNextJobs_PriorityOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	low := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/low", 1)
	high := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/high", 5)
	mid := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/mid", 3)

	for _, episode := range []*models.Episode{low, high, mid} {
		_, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "")
		require.NoError(t, err)
	}

	claimed, err := repo.ClaimNextJobs(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 3)
	assert.Equal(t, high.ID, claimed[0].EpisodeID, "highest priority first")
	assert.Equal(t, mid.ID, claimed[1].EpisodeID)
	assert.Equal(t, low.ID, claimed[2].EpisodeID)

	for _, job := range claimed {
		assert.Equal(t, models.JobStatusRunning, job.Status)
		assert.Equal(t, "worker-1", job.WorkerID)
		require.NotNil(t, job.StartedAt)
	}
}

func TestRepository_ClaimNextJobs_OneJobPerEpisode(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	_, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "")
	require.NoError(t, err)
	_, err = repo.EnqueueJob(ctx, episode.ID, models.AssetMetaJSON, "")
	require.NoError(t, err)

	claimed, err := repo.ClaimNextJobs(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "a batch never claims two jobs of one episode")
	assert.Equal(t, models.AssetAudio, claimed[0].AssetType, "lower job id wins")

	// While the first job runs, the episode's second job stays out of
	// reach for other workers.
	_, err = repo.ClaimNextJobs(ctx, "worker-2", 10)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)

	require.NoError(t, repo.CompleteJob(ctx, claimed[0].ID, ""))

	claimed, err = repo.ClaimNextJobs(ctx, "worker-2", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, models.AssetMetaJSON, claimed[0].AssetType)
}

func TestRepository_ClaimNextJobs_SkipsGoneEpisodes(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	gone := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/gone", 9)
	alive := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/alive", 1)

	_, err := repo.EnqueueJob(ctx, gone.ID, models.AssetAudio, "")
	require.NoError(t, err)
	_, err = repo.EnqueueJob(ctx, alive.ID, models.AssetAudio, "")
	require.NoError(t, err)

	gone.AvailabilityStatus = models.AvailabilityGone
	require.NoError(t, repo.UpdateEpisode(ctx, gone))

	claimed, err := repo.ClaimNextJobs(ctx, "worker-1", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "gone episode outranks but must not be claimed")
	assert.Equal(t, alive.ID, claimed[0].EpisodeID)
}

func TestRepository_ClaimNextJobs_Empty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	_, err := repo.ClaimNextJobs(context.Background(), "worker-1", 5)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
}

func TestRepository_JobLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	job, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "")
	require.NoError(t, err)

	claimed, err := repo.ClaimNextJobs(ctx, "worker-1", 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, repo.FailJob(ctx, job.ID, models.ErrorKindTransport, "connection reset"))
	failed, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, failed.Status)
	assert.Equal(t, models.ErrorKindTransport, failed.ErrorKind)
	assert.Equal(t, "connection reset", failed.Error)
	assert.Empty(t, failed.WorkerID, "failed job releases its worker")
	require.NotNil(t, failed.FinishedAt)

	require.NoError(t, repo.RetryJob(ctx, job.ID))
	retried, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, retried.Status)
	assert.Empty(t, retried.Error)
	assert.Nil(t, retried.StartedAt)
	assert.Nil(t, retried.FinishedAt)

	require.NoError(t, repo.CompleteJob(ctx, job.ID, "downloaded"))
	done, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, done.Status)
	assert.Equal(t, "downloaded", done.Reason)

	// Success is terminal; the retry endpoint must refuse it.
	err = repo.RetryJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotRetryable)
}

func TestRepository_ParkJobForWatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	job, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "")
	require.NoError(t, err)

	require.NoError(t, repo.ParkJobForWatch(ctx, job.ID, "HTTP 404 from upstream"))

	parked, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusWatch, parked.Status)
	assert.Equal(t, models.ErrorKindUpstreamGone, parked.ErrorKind)
	assert.True(t, parked.CanRetry(), "watch jobs stay retryable forever")
}

func TestRepository_RequeueWatchJob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	job, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "ingest")
	require.NoError(t, err)

	// Only watch jobs qualify.
	err = repo.RequeueWatchJob(ctx, job.ID, "re-queued after probe")
	assert.ErrorIs(t, err, ErrJobNotRetryable)

	require.NoError(t, repo.ParkJobForWatch(ctx, job.ID, "HTTP 410"))
	require.NoError(t, repo.RequeueWatchJob(ctx, job.ID, "re-queued after probe"))

	requeued, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, requeued.Status)
	assert.Equal(t, "re-queued after probe", requeued.Reason)
	assert.Empty(t, requeued.Error)
	assert.Empty(t, requeued.ErrorKind)
	assert.Nil(t, requeued.FinishedAt)
}

func TestRepository_SkipJob(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	job, err := repo.EnqueueJob(ctx, episode.ID, models.AssetCover, "ingest")
	require.NoError(t, err)

	require.NoError(t, repo.SkipJob(ctx, job.ID, "no backend for cover assets"))

	skipped, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSkipped, skipped.Status)
	assert.Equal(t, "no backend for cover assets", skipped.Reason)
	assert.NotNil(t, skipped.FinishedAt)
	assert.True(t, skipped.Status.Terminal())

	asset, err := repo.GetAsset(ctx, episode.ID, models.AssetCover)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusSkipped, asset.Status)

	err = repo.SkipJob(ctx, 9999, "whatever")
	assert.True(t, IsNotFound(err))
}

func TestRepository_ReviveEpisodeJobs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/e1", 0)

	watched, err := repo.EnqueueJob(ctx, episode.ID, models.AssetAudio, "")
	require.NoError(t, err)
	require.NoError(t, repo.ParkJobForWatch(ctx, watched.ID, "HTTP 410"))

	errored, err := repo.EnqueueJob(ctx, episode.ID, models.AssetMetaJSON, "")
	require.NoError(t, err)
	require.NoError(t, repo.FailJob(ctx, errored.ID, models.ErrorKindExtractor, "bad json"))

	done, err := repo.EnqueueJob(ctx, episode.ID, models.AssetWebpage, "")
	require.NoError(t, err)
	require.NoError(t, repo.CompleteJob(ctx, done.ID, ""))

	// Mark the audio asset failed so revival has something to re-queue.
	asset, err := repo.GetAsset(ctx, episode.ID, models.AssetAudio)
	require.NoError(t, err)
	asset.Status = models.AssetStatusFailed
	require.NoError(t, repo.UpdateAsset(ctx, asset))

	revived, err := repo.ReviveEpisodeJobs(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), revived)

	for _, id := range []uint{watched.ID, errored.ID} {
		job, err := repo.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Empty(t, job.Error)
	}

	untouched, err := repo.GetJob(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, untouched.Status)

	asset, err = repo.GetAsset(ctx, episode.ID, models.AssetAudio)
	require.NoError(t, err)
	assert.Equal(t, models.AssetStatusQueued, asset.Status)
}

func TestRepository_ReapStaleRunning(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	stale := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/stale", 0)
	fresh := newEpisode(t, repo, work.ID, "https://www.mujrozhlas.cz/fresh", 0)

	staleJob, err := repo.EnqueueJob(ctx, stale.ID, models.AssetAudio, "")
	require.NoError(t, err)
	freshJob, err := repo.EnqueueJob(ctx, fresh.ID, models.AssetAudio, "")
	require.NoError(t, err)

	longAgo := time.Now().UTC().Add(-2 * time.Hour)
	now := time.Now().UTC()
	require.NoError(t, db.Model(&models.DownloadJob{}).Where("id = ?", staleJob.ID).
		Updates(map[string]interface{}{"status": models.JobStatusRunning, "started_at": &longAgo}).Error)
	require.NoError(t, db.Model(&models.DownloadJob{}).Where("id = ?", freshJob.ID).
		Updates(map[string]interface{}{"status": models.JobStatusRunning, "started_at": &now}).Error)

	reaped, err := repo.ReapStaleRunning(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	job, err := repo.GetJob(ctx, staleJob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Nil(t, job.StartedAt)

	job, err = repo.GetJob(ctx, freshJob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, job.Status)
}
