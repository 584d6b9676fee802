package catalog

import (
	"context"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
)

// Repository is the persistence boundary of the catalog. Everything the
// daemon knows lives behind it; services never touch gorm directly.
type Repository interface {
	// Hierarchy upserts. All of them are idempotent on their natural key
	// and fill empty fields of an existing row without overwriting
	// non-empty ones.
	UpsertStation(ctx context.Context, station *models.Station) error
	GetStationByCode(ctx context.Context, code string) (*models.Station, error)
	ListStations(ctx context.Context) ([]models.Station, error)
	UpsertProgram(ctx context.Context, program *models.Program) error
	UpsertSeries(ctx context.Context, series *models.Series) error
	UpsertWork(ctx context.Context, work *models.Work) error
	StampProgramCrawled(ctx context.Context, programID uint, at time.Time) error

	// Episodes
	CreateEpisode(ctx context.Context, episode *models.Episode) error
	GetEpisode(ctx context.Context, id uint) (*models.Episode, error)
	GetEpisodeWithDetails(ctx context.Context, id uint) (*models.Episode, error)
	GetEpisodeNaming(ctx context.Context, episodeID uint) (*EpisodeNaming, error)
	FindEpisodeByExtID(ctx context.Context, extID string) (*models.Episode, error)
	FindEpisodeByAnyURL(ctx context.Context, url string) (*models.Episode, error)
	ListEpisodesInWork(ctx context.Context, workID uint) ([]models.Episode, error)
	ListEpisodesByStatus(ctx context.Context, status models.AvailabilityStatus, limit, offset int) ([]models.Episode, error)
	ListEpisodesForProbe(ctx context.Context, limit int) ([]models.Episode, error)
	UpdateEpisode(ctx context.Context, episode *models.Episode) error
	MaxPriorityInWork(ctx context.Context, workID uint) (int, error)

	// Aliases
	AddAlias(ctx context.Context, episodeID uint, url, extID, source string) error
	ListAliases(ctx context.Context, episodeID uint) ([]models.EpisodeAlias, error)

	// Dedupe snapshot. Identity columns only; ingest builds its
	// duplicate-matching set from these before each batch.
	ListEpisodeKeys(ctx context.Context) ([]EpisodeKey, error)
	ListAllAliases(ctx context.Context) ([]models.EpisodeAlias, error)

	// Availability
	RecordProbe(ctx context.Context, episodeID uint, status models.AvailabilityStatus, httpStatus int, checkedAt time.Time) error
	ListAvailabilityLog(ctx context.Context, episodeID uint, limit int) ([]models.AvailabilityLog, error)

	// Assets
	EnsureAssets(ctx context.Context, episodeID uint, types []models.AssetType) ([]models.Asset, error)
	GetAsset(ctx context.Context, episodeID uint, assetType models.AssetType) (*models.Asset, error)
	ListAssets(ctx context.Context, episodeID uint) ([]models.Asset, error)
	UpdateAsset(ctx context.Context, asset *models.Asset) error

	// Jobs
	EnqueueJob(ctx context.Context, episodeID uint, assetType models.AssetType, reason string) (*models.DownloadJob, error)
	GetJob(ctx context.Context, id uint) (*models.DownloadJob, error)
	ListJobsByStatus(ctx context.Context, status models.JobStatus, limit int) ([]*models.DownloadJob, error)
	ClaimNextJobs(ctx context.Context, workerID string, limit int) ([]models.DownloadJob, error)
	CompleteJob(ctx context.Context, jobID uint, reason string) error
	FailJob(ctx context.Context, jobID uint, kind models.ErrorKind, message string) error
	ParkJobForWatch(ctx context.Context, jobID uint, message string) error
	SkipJob(ctx context.Context, jobID uint, reason string) error
	RetryJob(ctx context.Context, jobID uint) error
	RequeueWatchJob(ctx context.Context, jobID uint, note string) error
	ReviveEpisodeJobs(ctx context.Context, episodeID uint) (int64, error)
	ReapStaleRunning(ctx context.Context, olderThan time.Time) (int64, error)

	// Crawl targets
	CreateTarget(ctx context.Context, target *models.CrawlTarget) error
	GetTarget(ctx context.Context, id uint) (*models.CrawlTarget, error)
	GetTargetByURL(ctx context.Context, url string) (*models.CrawlTarget, error)
	ListTargets(ctx context.Context) ([]models.CrawlTarget, error)
	ToggleTarget(ctx context.Context, id uint) (*models.CrawlTarget, error)
	DueTargets(ctx context.Context, now time.Time) ([]models.CrawlTarget, error)
	StampTargetCrawled(ctx context.Context, id uint, now time.Time) error

	// Stats
	Stats(ctx context.Context) (*Stats, error)

	// Transaction runs fn against a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(Repository) error) error
}

// EpisodeKey is the identity tuple of one stored episode, enough for
// duplicate matching without loading full rows.
type EpisodeKey struct {
	ID    uint   `json:"id"`
	ExtID string `json:"ext_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// EpisodeNaming is the flattened hierarchy chain of one episode, the
// raw material for library paths and embedded tags.
type EpisodeNaming struct {
	EpisodeID     uint   `json:"episode_id"`
	EpisodeTitle  string `json:"episode_title"`
	EpisodeNumber *int   `json:"episode_number"`
	WorkTitle     string `json:"work_title"`
	Author        string `json:"author"`
	Year          int    `json:"year"`
	SeriesName    string `json:"series_name"`
	ProgramName   string `json:"program_name"`
	StationCode   string `json:"station_code"`
}

// Stats aggregates catalog counts for the stats endpoint and logs.
type Stats struct {
	Stations             int64            `json:"stations"`
	Programs             int64            `json:"programs"`
	Series               int64            `json:"series"`
	Works                int64            `json:"works"`
	Episodes             int64            `json:"episodes"`
	EpisodesByStatus     map[string]int64 `json:"episodes_by_status"`
	AssetsByStatus       map[string]int64 `json:"assets_by_status"`
	JobsByStatus         map[string]int64 `json:"jobs_by_status"`
	Targets              int64            `json:"targets"`
	ActiveTargets        int64            `json:"active_targets"`
	AvailabilityProbes   int64            `json:"availability_probes"`
	EpisodesMissingAudio int64            `json:"episodes_missing_audio"`
}
