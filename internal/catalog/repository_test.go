package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(models.All()...)
	require.NoError(t, err)

	return db
}

// seedWork creates the station/program/series/work chain tests hang
// episodes on.
func seedWork(t *testing.T, repo Repository) *models.Work {
	t.Helper()
	ctx := context.Background()

	station := &models.Station{Code: "vltava", Name: "Vltava"}
	require.NoError(t, repo.UpsertStation(ctx, station))

	program := &models.Program{StationID: station.ID, Name: "Četba na pokračování"}
	require.NoError(t, repo.UpsertProgram(ctx, program))

	series := &models.Series{ProgramID: program.ID, Name: "Četba na pokračování"}
	require.NoError(t, repo.UpsertSeries(ctx, series))

	work := &models.Work{SeriesID: series.ID, Title: "Osudy dobrého vojáka Švejka", Author: "Jaroslav Hašek"}
	require.NoError(t, repo.UpsertWork(ctx, work))

	return work
}

func TestRepository_UpsertStationIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := &models.Station{Code: "plus", Name: "Plus"}
	require.NoError(t, repo.UpsertStation(ctx, first))
	require.NotZero(t, first.ID)

	// Second upsert with the same code resolves to the same row and
	// fills the empty website field.
	second := &models.Station{Code: "plus", Name: "Plus", Website: "https://plus.rozhlas.cz"}
	require.NoError(t, repo.UpsertStation(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "https://plus.rozhlas.cz", second.Website)

	// A third upsert must not overwrite the non-empty website.
	third := &models.Station{Code: "plus", Name: "Plus", Website: "https://elsewhere.example"}
	require.NoError(t, repo.UpsertStation(ctx, third))
	assert.Equal(t, "https://plus.rozhlas.cz", third.Website)

	var count int64
	db.Model(&models.Station{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRepository_UpsertProgramScopedByStation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	vltava := &models.Station{Code: "vltava", Name: "Vltava"}
	require.NoError(t, repo.UpsertStation(ctx, vltava))
	plus := &models.Station{Code: "plus", Name: "Plus"}
	require.NoError(t, repo.UpsertStation(ctx, plus))

	// The same program name under two stations is two distinct programs.
	p1 := &models.Program{StationID: vltava.ID, Name: "Hra na sobotu"}
	require.NoError(t, repo.UpsertProgram(ctx, p1))
	p2 := &models.Program{StationID: plus.ID, Name: "Hra na sobotu"}
	require.NoError(t, repo.UpsertProgram(ctx, p2))
	assert.NotEqual(t, p1.ID, p2.ID)

	// Re-upserting under the same station resolves to the existing row.
	p3 := &models.Program{StationID: vltava.ID, Name: "Hra na sobotu", Genre: "drama"}
	require.NoError(t, repo.UpsertProgram(ctx, p3))
	assert.Equal(t, p1.ID, p3.ID)
	assert.Equal(t, "drama", p3.Genre)
}

func TestRepository_UpsertWorkFillsMetadata(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	again := &models.Work{SeriesID: work.SeriesID, Title: work.Title, Year: 1921}
	require.NoError(t, repo.UpsertWork(ctx, again))
	assert.Equal(t, work.ID, again.ID)
	assert.Equal(t, "Jaroslav Hašek", again.Author, "existing author survives")
	assert.Equal(t, 1921, again.Year, "empty year gets filled")
}

func TestRepository_EpisodeLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	episode := &models.Episode{
		WorkID: work.ID,
		ExtID:  "b3c2a8f0-1111-2222-3333-444455556666",
		Title:  "1. díl",
		URL:    "https://www.mujrozhlas.cz/cetba/svejk-1",
	}
	episode.MarkSeen(time.Now().UTC())
	require.NoError(t, repo.CreateEpisode(ctx, episode))
	require.NoError(t, repo.AddAlias(ctx, episode.ID, episode.URL, episode.ExtID, "catalog-api"))
	require.NoError(t, repo.AddAlias(ctx, episode.ID, "https://www.mujrozhlas.cz/cetba/svejk-1-repriza", "", "ajax"))

	byExt, err := repo.FindEpisodeByExtID(ctx, episode.ExtID)
	require.NoError(t, err)
	assert.Equal(t, episode.ID, byExt.ID)

	byURL, err := repo.FindEpisodeByAnyURL(ctx, "https://www.mujrozhlas.cz/cetba/svejk-1")
	require.NoError(t, err)
	assert.Equal(t, episode.ID, byURL.ID)

	byAlias, err := repo.FindEpisodeByAnyURL(ctx, "https://www.mujrozhlas.cz/cetba/svejk-1-repriza")
	require.NoError(t, err)
	assert.Equal(t, episode.ID, byAlias.ID)

	_, err = repo.FindEpisodeByAnyURL(ctx, "https://www.mujrozhlas.cz/unknown")
	assert.True(t, IsNotFound(err))

	_, err = repo.FindEpisodeByExtID(ctx, "")
	assert.True(t, IsNotFound(err), "empty ext id never matches")
}

func TestRepository_AddAliasIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := &models.Episode{WorkID: work.ID, Title: "x", URL: "https://www.mujrozhlas.cz/x"}
	require.NoError(t, repo.CreateEpisode(ctx, episode))

	require.NoError(t, repo.AddAlias(ctx, episode.ID, "https://www.mujrozhlas.cz/x", "", "scrape"))
	require.NoError(t, repo.AddAlias(ctx, episode.ID, "https://www.mujrozhlas.cz/x", "", "scrape"))

	aliases, err := repo.ListAliases(ctx, episode.ID)
	require.NoError(t, err)
	assert.Len(t, aliases, 1)
}

func TestRepository_RecordProbe(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)
	episode := &models.Episode{WorkID: work.ID, Title: "x", URL: "https://www.mujrozhlas.cz/x"}
	require.NoError(t, repo.CreateEpisode(ctx, episode))

	checkedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordProbe(ctx, episode.ID, models.AvailabilityAvailable, 200, checkedAt))

	got, err := repo.GetEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAvailable, got.AvailabilityStatus)
	require.NotNil(t, got.LastCheckedAt)
	assert.WithinDuration(t, checkedAt, *got.LastCheckedAt, time.Second)
	assert.WithinDuration(t, checkedAt, got.LastSeenAt, time.Second, "successful probe counts as seen")

	// A failed probe stamps last_checked but not last_seen.
	later := checkedAt.Add(time.Hour)
	require.NoError(t, repo.RecordProbe(ctx, episode.ID, models.AvailabilityUnavailable, 503, later))

	got, err = repo.GetEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityUnavailable, got.AvailabilityStatus)
	assert.WithinDuration(t, later, *got.LastCheckedAt, time.Second)
	assert.WithinDuration(t, checkedAt, got.LastSeenAt, time.Second, "failed probe must not advance last_seen")

	log, err := repo.ListAvailabilityLog(ctx, episode.ID, 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.False(t, log[0].WasAvailable)
	assert.Equal(t, 503, log[0].HTTPStatus)
	assert.True(t, log[1].WasAvailable)
}

func TestRepository_ListEpisodesForProbe(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	checked := time.Now().UTC().Add(-2 * time.Hour)
	old := time.Now().UTC().Add(-48 * time.Hour)

	never := &models.Episode{WorkID: work.ID, Title: "never checked", URL: "https://www.mujrozhlas.cz/a"}
	require.NoError(t, repo.CreateEpisode(ctx, never))

	recent := &models.Episode{WorkID: work.ID, Title: "recent", URL: "https://www.mujrozhlas.cz/b", LastCheckedAt: &checked}
	require.NoError(t, repo.CreateEpisode(ctx, recent))

	stale := &models.Episode{WorkID: work.ID, Title: "stale", URL: "https://www.mujrozhlas.cz/c", LastCheckedAt: &old}
	require.NoError(t, repo.CreateEpisode(ctx, stale))

	gone := &models.Episode{WorkID: work.ID, Title: "gone", URL: "https://www.mujrozhlas.cz/d", AvailabilityStatus: models.AvailabilityGone}
	require.NoError(t, repo.CreateEpisode(ctx, gone))

	healthy := &models.Episode{WorkID: work.ID, Title: "healthy", URL: "https://www.mujrozhlas.cz/e", AvailabilityStatus: models.AvailabilityAvailable}
	require.NoError(t, repo.CreateEpisode(ctx, healthy))

	batch, err := repo.ListEpisodesForProbe(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3, "gone and available episodes stay out of the sweep")
	assert.Equal(t, never.ID, batch[0].ID, "never-checked episodes go first")
	assert.Equal(t, stale.ID, batch[1].ID)
	assert.Equal(t, recent.ID, batch[2].ID)
}

func TestRepository_GetEpisodeNaming(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	// A later upsert fills the missing year.
	enriched := &models.Work{SeriesID: work.SeriesID, Title: work.Title, Year: 1923}
	require.NoError(t, repo.UpsertWork(ctx, enriched))

	number := 1
	episode := &models.Episode{
		WorkID:        work.ID,
		Title:         "Osudy dobrého vojáka Švejka, 1. díl",
		EpisodeNumber: &number,
		URL:           "https://www.mujrozhlas.cz/cetba/svejk-1",
	}
	require.NoError(t, repo.CreateEpisode(ctx, episode))

	naming, err := repo.GetEpisodeNaming(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, episode.ID, naming.EpisodeID)
	assert.Equal(t, "Osudy dobrého vojáka Švejka, 1. díl", naming.EpisodeTitle)
	require.NotNil(t, naming.EpisodeNumber)
	assert.Equal(t, 1, *naming.EpisodeNumber)
	assert.Equal(t, "Osudy dobrého vojáka Švejka", naming.WorkTitle)
	assert.Equal(t, "Jaroslav Hašek", naming.Author)
	assert.Equal(t, 1923, naming.Year)
	assert.Equal(t, "Četba na pokračování", naming.ProgramName)
	assert.Equal(t, "vltava", naming.StationCode)

	_, err = repo.GetEpisodeNaming(ctx, 9999)
	assert.True(t, IsNotFound(err))
}

func TestRepository_MaxPriorityInWork(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	highest, err := repo.MaxPriorityInWork(ctx, work.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, highest, "empty work has zero max priority")

	for i, priority := range []int{3, 7, 5} {
		episode := &models.Episode{WorkID: work.ID, Title: "ep", URL: "https://www.mujrozhlas.cz/p" + string(rune('a'+i)), Priority: priority}
		require.NoError(t, repo.CreateEpisode(ctx, episode))
	}

	highest, err = repo.MaxPriorityInWork(ctx, work.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, highest)
}

func TestRepository_TransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	err := repo.Transaction(ctx, func(tx Repository) error {
		episode := &models.Episode{WorkID: work.ID, Title: "doomed", URL: "https://www.mujrozhlas.cz/doomed"}
		if err := tx.CreateEpisode(ctx, episode); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	var count int64
	db.Model(&models.Episode{}).Count(&count)
	assert.Equal(t, int64(0), count, "failed transaction leaves no episode behind")
}

func TestRepository_Stats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	work := seedWork(t, repo)

	available := &models.Episode{WorkID: work.ID, Title: "a", URL: "https://www.mujrozhlas.cz/a", AvailabilityStatus: models.AvailabilityAvailable}
	require.NoError(t, repo.CreateEpisode(ctx, available))
	gone := &models.Episode{WorkID: work.ID, Title: "b", URL: "https://www.mujrozhlas.cz/b", AvailabilityStatus: models.AvailabilityGone}
	require.NoError(t, repo.CreateEpisode(ctx, gone))

	_, err := repo.EnqueueJob(ctx, available.ID, models.AssetAudio, "test")
	require.NoError(t, err)

	require.NoError(t, repo.CreateTarget(ctx, &models.CrawlTarget{URL: "https://www.mujrozhlas.cz/show", Kind: models.TargetProgram, Active: true}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Stations)
	assert.Equal(t, int64(1), stats.Works)
	assert.Equal(t, int64(2), stats.Episodes)
	assert.Equal(t, int64(1), stats.EpisodesByStatus["available"])
	assert.Equal(t, int64(1), stats.EpisodesByStatus["gone"])
	assert.Equal(t, int64(1), stats.JobsByStatus["pending"])
	assert.Equal(t, int64(1), stats.AssetsByStatus["queued"])
	assert.Equal(t, int64(1), stats.Targets)
	assert.Equal(t, int64(1), stats.ActiveTargets)
	assert.Equal(t, int64(1), stats.EpisodesMissingAudio)
}
