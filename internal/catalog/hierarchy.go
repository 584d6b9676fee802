package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"gorm.io/gorm"
)

// fillString fills dst when it is empty and src is not. Existing values
// are never overwritten; repeated ingest must not flip fields back and
// forth between sources.
func fillString(dst *string, src string) bool {
	if *dst == "" && src != "" {
		*dst = src
		return true
	}
	return false
}

// fillInt fills dst when it is zero and src is not.
func fillInt(dst *int, src int) bool {
	if *dst == 0 && src != 0 {
		*dst = src
		return true
	}
	return false
}

// UpsertStation creates a station or merges into the existing row with
// the same code.
func (r *repository) UpsertStation(ctx context.Context, station *models.Station) error {
	err := r.db.WithContext(ctx).Create(station).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewStorageError("creating station", err)
	}

	var existing models.Station
	if err := r.db.WithContext(ctx).Where("code = ?", station.Code).First(&existing).Error; err != nil {
		return NewStorageError("loading station "+station.Code, err)
	}

	changed := fillString(&existing.Name, station.Name)
	changed = fillString(&existing.Website, station.Website) || changed
	if changed {
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return NewStorageError("updating station "+station.Code, err)
		}
	}

	*station = existing
	return nil
}

// GetStationByCode fetches a station by its short code.
func (r *repository) GetStationByCode(ctx context.Context, code string) (*models.Station, error) {
	var station models.Station
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&station).Error
	if err != nil {
		return nil, wrapNotFound(err, "station", code, "getting station")
	}
	return &station, nil
}

// ListStations returns all stations ordered by code.
func (r *repository) ListStations(ctx context.Context) ([]models.Station, error) {
	var stations []models.Station
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&stations).Error; err != nil {
		return nil, NewStorageError("listing stations", err)
	}
	return stations, nil
}

// UpsertProgram creates a program or merges into the existing row with
// the same (station, name).
func (r *repository) UpsertProgram(ctx context.Context, program *models.Program) error {
	err := r.db.WithContext(ctx).Create(program).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewStorageError("creating program", err)
	}

	var existing models.Program
	if err := r.db.WithContext(ctx).
		Where("station_id = ? AND name = ?", program.StationID, program.Name).
		First(&existing).Error; err != nil {
		return NewStorageError("loading program "+program.Name, err)
	}

	changed := fillString(&existing.URL, program.URL)
	changed = fillString(&existing.Genre, program.Genre) || changed
	changed = fillString(&existing.ChannelLabel, program.ChannelLabel) || changed
	if changed {
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return NewStorageError("updating program "+program.Name, err)
		}
	}

	*program = existing
	return nil
}

// UpsertSeries creates a series or merges into the existing row with
// the same (program, name).
func (r *repository) UpsertSeries(ctx context.Context, series *models.Series) error {
	err := r.db.WithContext(ctx).Create(series).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewStorageError("creating series", err)
	}

	var existing models.Series
	if err := r.db.WithContext(ctx).
		Where("program_id = ? AND name = ?", series.ProgramID, series.Name).
		First(&existing).Error; err != nil {
		return NewStorageError("loading series "+series.Name, err)
	}

	if fillString(&existing.URL, series.URL) {
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return NewStorageError("updating series "+series.Name, err)
		}
	}

	*series = existing
	return nil
}

// UpsertWork creates a work or merges into the existing row with the
// same (series, title).
func (r *repository) UpsertWork(ctx context.Context, work *models.Work) error {
	err := r.db.WithContext(ctx).Create(work).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewStorageError("creating work", err)
	}

	var existing models.Work
	if err := r.db.WithContext(ctx).
		Where("series_id = ? AND title = ?", work.SeriesID, work.Title).
		First(&existing).Error; err != nil {
		return NewStorageError("loading work "+work.Title, err)
	}

	changed := fillString(&existing.Author, work.Author)
	changed = fillInt(&existing.Year, work.Year) || changed
	if changed {
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return NewStorageError("updating work "+work.Title, err)
		}
	}

	*work = existing
	return nil
}

// StampProgramCrawled records the time a program page was last crawled.
func (r *repository) StampProgramCrawled(ctx context.Context, programID uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Program{}).
		Where("id = ?", programID).
		Update("last_crawled_at", at)
	if result.Error != nil {
		return NewStorageError("stamping program crawl", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("program", programID)
	}
	return nil
}
