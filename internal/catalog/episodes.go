package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateEpisode inserts a new episode row.
func (r *repository) CreateEpisode(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Create(episode).Error; err != nil {
		return NewStorageError("creating episode", err)
	}
	return nil
}

// GetEpisode fetches an episode by id without associations.
func (r *repository) GetEpisode(ctx context.Context, id uint) (*models.Episode, error) {
	var episode models.Episode
	err := r.db.WithContext(ctx).First(&episode, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "episode", id, "getting episode")
	}
	return &episode, nil
}

// GetEpisodeWithDetails fetches an episode with aliases, assets and jobs
// preloaded, for the detail endpoint.
func (r *repository) GetEpisodeWithDetails(ctx context.Context, id uint) (*models.Episode, error) {
	var episode models.Episode
	err := r.db.WithContext(ctx).
		Preload("Aliases").
		Preload("Assets").
		Preload("Jobs").
		First(&episode, id).Error
	if err != nil {
		return nil, wrapNotFound(err, "episode", id, "getting episode with details")
	}
	return &episode, nil
}

// GetEpisodeNaming resolves the naming chain of one episode in a single
// query. The library pather builds target paths from it.
func (r *repository) GetEpisodeNaming(ctx context.Context, episodeID uint) (*EpisodeNaming, error) {
	var naming EpisodeNaming
	err := r.db.WithContext(ctx).
		Table("episodes").
		Select(`episodes.id AS episode_id,
			episodes.title AS episode_title,
			episodes.episode_number,
			works.title AS work_title,
			works.author,
			works.year,
			series.name AS series_name,
			programs.name AS program_name,
			stations.code AS station_code`).
		Joins("JOIN works ON works.id = episodes.work_id").
		Joins("JOIN series ON series.id = works.series_id").
		Joins("JOIN programs ON programs.id = series.program_id").
		Joins("JOIN stations ON stations.id = programs.station_id").
		Where("episodes.id = ? AND episodes.deleted_at IS NULL", episodeID).
		Scan(&naming).Error
	if err != nil {
		return nil, NewStorageError("resolving episode naming", err)
	}
	if naming.EpisodeID == 0 {
		return nil, NewNotFoundError("episode", episodeID)
	}
	return &naming, nil
}

// FindEpisodeByExtID looks up an episode by its upstream identifier.
func (r *repository) FindEpisodeByExtID(ctx context.Context, extID string) (*models.Episode, error) {
	if extID == "" {
		return nil, NewNotFoundError("episode", extID)
	}
	var episode models.Episode
	err := r.db.WithContext(ctx).Where("ext_id = ?", extID).First(&episode).Error
	if err != nil {
		return nil, wrapNotFound(err, "episode", extID, "finding episode by ext id")
	}
	return &episode, nil
}

// FindEpisodeByAnyURL looks up an episode whose canonical URL or any
// recorded alias matches the given merge-form URL.
func (r *repository) FindEpisodeByAnyURL(ctx context.Context, url string) (*models.Episode, error) {
	if url == "" {
		return nil, NewNotFoundError("episode", url)
	}

	var episode models.Episode
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&episode).Error
	if err == nil {
		return &episode, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewStorageError("finding episode by url", err)
	}

	var alias models.EpisodeAlias
	err = r.db.WithContext(ctx).Where("url = ?", url).First(&alias).Error
	if err != nil {
		return nil, wrapNotFound(err, "episode", url, "finding episode by alias url")
	}
	return r.GetEpisode(ctx, alias.EpisodeID)
}

// ListEpisodesInWork returns all episodes of a work, newest published first.
func (r *repository) ListEpisodesInWork(ctx context.Context, workID uint) ([]models.Episode, error) {
	var episodes []models.Episode
	err := r.db.WithContext(ctx).
		Where("work_id = ?", workID).
		Order("published_at DESC, id ASC").
		Find(&episodes).Error
	if err != nil {
		return nil, NewStorageError("listing episodes in work", err)
	}
	return episodes, nil
}

// ListEpisodesByStatus pages through episodes with the given availability.
func (r *repository) ListEpisodesByStatus(ctx context.Context, status models.AvailabilityStatus, limit, offset int) ([]models.Episode, error) {
	query := r.db.WithContext(ctx).Order("id DESC")
	if status != "" {
		query = query.Where("availability_status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var episodes []models.Episode
	if err := query.Find(&episodes).Error; err != nil {
		return nil, NewStorageError("listing episodes by status", err)
	}
	return episodes, nil
}

// ListEpisodesForProbe returns the availability sweep batch: episodes
// whose status is unknown or unavailable, least recently checked first.
// Never-checked episodes sort ahead of any checked one. Available
// episodes are left alone until a download or a watch probe says
// otherwise, and gone ones come back only through watch jobs or a
// re-discovered alias.
func (r *repository) ListEpisodesForProbe(ctx context.Context, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	query := r.db.WithContext(ctx).
		Where("availability_status IN ?", []models.AvailabilityStatus{models.AvailabilityUnknown, models.AvailabilityUnavailable}).
		Order("last_checked_at IS NULL DESC, last_checked_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&episodes).Error; err != nil {
		return nil, NewStorageError("listing probe candidates", err)
	}
	return episodes, nil
}

// UpdateEpisode saves all episode fields.
func (r *repository) UpdateEpisode(ctx context.Context, episode *models.Episode) error {
	if err := r.db.WithContext(ctx).Save(episode).Error; err != nil {
		return NewStorageError("updating episode", err)
	}
	return nil
}

// MaxPriorityInWork returns the highest priority among a work's
// episodes, zero when the work has none.
func (r *repository) MaxPriorityInWork(ctx context.Context, workID uint) (int, error) {
	var highest sql.NullInt64
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Where("work_id = ?", workID).
		Select("MAX(priority)").
		Scan(&highest).Error
	if err != nil {
		return 0, NewStorageError("reading max priority", err)
	}
	if !highest.Valid {
		return 0, nil
	}
	return int(highest.Int64), nil
}

// AddAlias records an additional URL for an episode. Duplicate aliases
// are ignored.
func (r *repository) AddAlias(ctx context.Context, episodeID uint, url, extID, source string) error {
	alias := models.EpisodeAlias{
		EpisodeID:       episodeID,
		URL:             url,
		ExtID:           extID,
		DiscoverySource: source,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&alias).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewStorageError("adding alias", err)
	}
	return nil
}

// ListAliases returns all alias URLs of an episode.
func (r *repository) ListAliases(ctx context.Context, episodeID uint) ([]models.EpisodeAlias, error) {
	var aliases []models.EpisodeAlias
	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("id ASC").
		Find(&aliases).Error
	if err != nil {
		return nil, NewStorageError("listing aliases", err)
	}
	return aliases, nil
}

// ListEpisodeKeys scans the identity columns of every episode.
func (r *repository) ListEpisodeKeys(ctx context.Context) ([]EpisodeKey, error) {
	var keys []EpisodeKey
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Select("id", "ext_id", "url", "title").
		Order("id ASC").
		Scan(&keys).Error
	if err != nil {
		return nil, NewStorageError("listing episode keys", err)
	}
	return keys, nil
}

// ListAllAliases returns every alias row in the catalog.
func (r *repository) ListAllAliases(ctx context.Context) ([]models.EpisodeAlias, error) {
	var aliases []models.EpisodeAlias
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&aliases).Error; err != nil {
		return nil, NewStorageError("listing all aliases", err)
	}
	return aliases, nil
}

// RecordProbe appends one availability log row and stamps the episode
// in a single transaction. The caller decides the resulting status; this
// method only persists it.
func (r *repository) RecordProbe(ctx context.Context, episodeID uint, status models.AvailabilityStatus, httpStatus int, checkedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.AvailabilityLog{
			EpisodeID:    episodeID,
			CheckedAt:    checkedAt,
			WasAvailable: status == models.AvailabilityAvailable,
			HTTPStatus:   httpStatus,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return NewStorageError("appending availability log", err)
		}

		updates := map[string]interface{}{
			"availability_status": status,
			"last_checked_at":     checkedAt,
		}
		if status == models.AvailabilityAvailable {
			updates["last_seen_at"] = checkedAt
		}

		result := tx.Model(&models.Episode{}).Where("id = ?", episodeID).Updates(updates)
		if result.Error != nil {
			return NewStorageError("stamping probe result", result.Error)
		}
		if result.RowsAffected == 0 {
			return NewNotFoundError("episode", episodeID)
		}
		return nil
	})
}

// ListAvailabilityLog returns the newest probe log entries of an episode.
func (r *repository) ListAvailabilityLog(ctx context.Context, episodeID uint, limit int) ([]models.AvailabilityLog, error) {
	query := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("checked_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.AvailabilityLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, NewStorageError("listing availability log", err)
	}
	return entries, nil
}
