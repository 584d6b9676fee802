package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/discovery"
	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) catalog.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return catalog.NewRepository(db)
}

type stubDiscoverer struct {
	result  *discovery.Result
	err     error
	lastURL string
}

func (s *stubDiscoverer) Discover(ctx context.Context, rawURL string) (*discovery.Result, error) {
	s.lastURL = rawURL
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestService_IngestBatch_CreatesEpisode(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	published := time.Date(2026, 5, 12, 8, 0, 0, 0, time.UTC)
	entries := []discovery.DiscoveredEpisode{{
		URL:         "https://www.MujRozhlas.cz/cetba-na-pokracovani/osudy-dobreho-vojaka-svejka-1-dil/",
		Title:       "Osudy dobrého vojáka Švejka, 1. díl",
		ExtID:       "aaaaaaaa-0000-4000-8000-000000000001",
		DurationS:   1685.4,
		Description: "Haškův román o dobrém vojákovi",
		PublishedAt: &published,
		Series:      "Osudy dobrého vojáka Švejka",
		Author:      "Jaroslav Hašek",
		Uploader:    "Český rozhlas Vltava",
		Sources:     []string{"catalog-api", "ajax"},
	}}

	outcome, err := svc.IngestBatch(ctx, entries)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Discovered)
	assert.Equal(t, 1, outcome.Unique)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 0, outcome.Updated)
	assert.Equal(t, 3, outcome.JobsQueued)

	episode, err := repo.FindEpisodeByExtID(ctx, "aaaaaaaa-0000-4000-8000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, "https://www.mujrozhlas.cz/cetba-na-pokracovani/osudy-dobreho-vojaka-svejka-1-dil", episode.URL)
	assert.Equal(t, models.AvailabilityAvailable, episode.AvailabilityStatus)
	assert.Equal(t, int64(1685400), episode.DurationMs)
	assert.Equal(t, 1, episode.Priority)
	assert.Equal(t, "catalog-api,ajax", episode.DiscoverySource)
	require.NotNil(t, episode.EpisodeNumber)
	assert.Equal(t, 1, *episode.EpisodeNumber)
	assert.False(t, episode.FirstSeenAt.IsZero())
	assert.Equal(t, episode.FirstSeenAt, episode.LastSeenAt)

	station, err := repo.GetStationByCode(ctx, "vltava")
	require.NoError(t, err)
	assert.Equal(t, "ČRo Vltava", station.Name)

	// Alias closure: the episode's own URL is its first alias.
	aliases, err := repo.ListAliases(ctx, episode.ID)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, episode.URL, aliases[0].URL)
	assert.Equal(t, "catalog-api", aliases[0].DiscoverySource)

	assets, err := repo.ListAssets(ctx, episode.ID)
	require.NoError(t, err)
	require.Len(t, assets, len(models.RequiredAssetTypes))
	for _, asset := range assets {
		assert.Equal(t, models.AssetStatusQueued, asset.Status, asset.Type)
	}
}

func TestService_IngestBatch_Idempotent(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/porad/prvni", Title: "První epizoda", Uploader: "ČRo Plus"},
		{URL: "https://www.mujrozhlas.cz/porad/druha", Title: "Druhá epizoda", Uploader: "ČRo Plus"},
	}

	first, err := svc.IngestBatch(ctx, entries)
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)
	require.Equal(t, 6, first.JobsQueued)

	second, err := svc.IngestBatch(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 0, second.JobsQueued, "queued assets are not re-planned")

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Episodes)
	assert.Equal(t, int64(1), stats.Programs)
	assert.Equal(t, int64(6), stats.JobsByStatus[string(models.JobStatusPending)])
}

func TestService_IngestBatch_RevivesGoneEpisode(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	seed := discovery.DiscoveredEpisode{
		URL:      "https://www.mujrozhlas.cz/cetba/stary-zaznam",
		Title:    "Starý záznam",
		ExtID:    "bbbbbbbb-0000-4000-8000-000000000002",
		Series:   "Četba",
		Uploader: "ČRo Vltava",
	}
	outcome, err := svc.IngestBatch(ctx, []discovery.DiscoveredEpisode{seed})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.Created)

	episode, err := repo.FindEpisodeByExtID(ctx, seed.ExtID)
	require.NoError(t, err)

	claimed, err := repo.ClaimNextJobs(ctx, "worker-1", 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.FailJob(ctx, claimed[0].ID, models.ErrorKindTransport, "connection reset"))
	require.NoError(t, repo.RecordProbe(ctx, episode.ID, models.AvailabilityGone, 404, time.Now().UTC()))

	revival := discovery.DiscoveredEpisode{
		URL:      "https://www.mujrozhlas.cz/cetba/novy-zaznam",
		Title:    "Starý záznam",
		ExtID:    seed.ExtID,
		Series:   "Četba",
		Uploader: "ČRo Vltava",
	}
	outcome, err = svc.IngestBatch(ctx, []discovery.DiscoveredEpisode{revival})
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Created)
	assert.Equal(t, 1, outcome.Revived)

	episode, err = repo.GetEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAvailable, episode.AvailabilityStatus)
	assert.Equal(t, "https://www.mujrozhlas.cz/cetba/novy-zaznam", episode.URL)

	aliases, err := repo.ListAliases(ctx, episode.ID)
	require.NoError(t, err)
	var urls []string
	for _, alias := range aliases {
		urls = append(urls, alias.URL)
	}
	assert.Contains(t, urls, "https://www.mujrozhlas.cz/cetba/novy-zaznam")
	assert.Contains(t, urls, "https://www.mujrozhlas.cz/cetba/stary-zaznam")

	job, err := repo.GetJob(ctx, claimed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Empty(t, job.Error)
	assert.Empty(t, job.ErrorKind)
}

func TestService_IngestBatch_PriorityNewestFirst(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	january := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	february := time.Date(2026, 2, 5, 12, 0, 0, 0, time.UTC)
	march := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	entries := []discovery.DiscoveredEpisode{
		{URL: "https://www.mujrozhlas.cz/porad/leden", Title: "Lednový díl", PublishedAt: &january},
		{URL: "https://www.mujrozhlas.cz/porad/brezen", Title: "Březnový díl", PublishedAt: &march},
		{URL: "https://www.mujrozhlas.cz/porad/unor", Title: "Únorový díl", PublishedAt: &february},
	}

	_, err := svc.IngestBatch(ctx, entries)
	require.NoError(t, err)

	want := map[string]int{
		"https://www.mujrozhlas.cz/porad/brezen": 3,
		"https://www.mujrozhlas.cz/porad/unor":   2,
		"https://www.mujrozhlas.cz/porad/leden":  1,
	}
	for url, priority := range want {
		episode, err := repo.FindEpisodeByAnyURL(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, priority, episode.Priority, url)
	}
}

func TestService_IngestBatch_RefreshFillsGapsKeepsPriority(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.IngestBatch(ctx, []discovery.DiscoveredEpisode{{
		URL:      "https://www.mujrozhlas.cz/porad/epizoda-x",
		Title:    "Epizoda X",
		Uploader: "ČRo Plus",
	}})
	require.NoError(t, err)

	episode, err := repo.FindEpisodeByAnyURL(ctx, "https://www.mujrozhlas.cz/porad/epizoda-x")
	require.NoError(t, err)
	episode.Priority = 9
	require.NoError(t, repo.UpdateEpisode(ctx, episode))

	published := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	outcome, err := svc.IngestBatch(ctx, []discovery.DiscoveredEpisode{{
		URL:         "https://www.mujrozhlas.cz/porad/epizoda-x",
		Title:       "Úplně jiný název",
		Description: "Dodaný popis",
		DurationS:   120,
		ExtID:       "cccccccc-0000-4000-8000-000000000003",
		PublishedAt: &published,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Updated)

	episode, err = repo.GetEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, "Epizoda X", episode.Title, "stored title wins")
	assert.Equal(t, "Dodaný popis", episode.Summary)
	assert.Equal(t, int64(120000), episode.DurationMs)
	assert.Equal(t, "cccccccc-0000-4000-8000-000000000003", episode.ExtID)
	require.NotNil(t, episode.PublishedAt)
	assert.Equal(t, 9, episode.Priority, "priority is never lowered")
}

func TestService_IngestBatch_SameWorkReairFolds(t *testing.T) {
	repo := setupRepo(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.IngestBatch(ctx, []discovery.DiscoveredEpisode{{
		URL:      "https://www.mujrozhlas.cz/hra/rozhlasova-hra",
		Title:    "Rozhlasová hra",
		Series:   "Hry",
		Uploader: "ČRo Vltava",
	}})
	require.NoError(t, err)

	outcome, err := svc.IngestBatch(ctx, []discovery.DiscoveredEpisode{{
		URL:      "https://www.mujrozhlas.cz/hra/rozhlasova-hra-7654321",
		Title:    "Rozhlasová hra (repríza)",
		Series:   "Hry",
		Uploader: "ČRo Vltava",
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Created)
	assert.Equal(t, 1, outcome.Updated)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Episodes)

	episode, err := repo.FindEpisodeByAnyURL(ctx, "https://www.mujrozhlas.cz/hra/rozhlasova-hra")
	require.NoError(t, err)
	aliases, err := repo.ListAliases(ctx, episode.ID)
	require.NoError(t, err)
	assert.Len(t, aliases, 2, "re-air URL recorded as alias")
}

func TestService_IngestURL_CarriesTargetAndReports(t *testing.T) {
	repo := setupRepo(t)
	stub := &stubDiscoverer{result: &discovery.Result{
		Target: discovery.Target{
			URL:      "https://www.mujrozhlas.cz/porad",
			Original: "https://plus.rozhlas.cz/porad-1234567",
		},
		Episodes: []discovery.DiscoveredEpisode{
			{URL: "https://www.mujrozhlas.cz/porad/jedna", Title: "Epizoda jedna", Sources: []string{"ajax"}},
			{URL: "https://www.mujrozhlas.cz/porad/dve", Title: "Epizoda dvě", Sources: []string{"ajax"}},
		},
		Reports: []discovery.SourceReport{{Source: "ajax", Episodes: 2}},
	}}
	svc := NewService(repo, stub)

	outcome, err := svc.IngestURL(context.Background(), "https://plus.rozhlas.cz/porad-1234567")
	require.NoError(t, err)

	assert.Equal(t, "https://plus.rozhlas.cz/porad-1234567", stub.lastURL)
	assert.Equal(t, "https://www.mujrozhlas.cz/porad", outcome.TargetURL)
	require.Len(t, outcome.Reports, 1)
	assert.Equal(t, 2, outcome.Created)
}

func TestService_Preview_WritesNothing(t *testing.T) {
	repo := setupRepo(t)
	stub := &stubDiscoverer{result: &discovery.Result{
		Target: discovery.Target{URL: "https://www.mujrozhlas.cz/porad"},
		Episodes: []discovery.DiscoveredEpisode{
			{URL: "https://www.mujrozhlas.cz/porad/jedna", Title: "Epizoda jedna"},
			{URL: "https://www.mujrozhlas.cz/porad/jedna/", Title: "Epizoda jedna dup"},
		},
	}}
	svc := NewService(repo, stub)

	outcome, err := svc.Preview(context.Background(), "https://www.mujrozhlas.cz/porad")
	require.NoError(t, err)

	assert.True(t, outcome.DryRun)
	assert.Equal(t, 2, outcome.Discovered)
	assert.Equal(t, 1, outcome.Unique)
	require.Len(t, outcome.Entries, 1)
	require.Len(t, outcome.Duplicates, 1)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Episodes)
}

func TestService_IngestURL_NoDiscoverer(t *testing.T) {
	svc := NewService(setupRepo(t), nil)
	_, err := svc.IngestURL(context.Background(), "https://www.mujrozhlas.cz/porad")
	assert.Error(t, err)
}

func TestAssignPriorities(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	entries := []discovery.DiscoveredEpisode{
		{URL: "a", PublishedAt: &older},
		{URL: "b"},
		{URL: "c", PublishedAt: &newer},
	}

	assert.Equal(t, []int{2, 1, 3}, assignPriorities(entries))
	assert.Empty(t, assignPriorities(nil))
}

func TestProgramSlug(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.mujrozhlas.cz/cetba-na-pokracovani/osudy-1-dil", "cetba-na-pokracovani"},
		{"https://www.mujrozhlas.cz/episode/aaaa-bbbb", ""},
		{"https://www.mujrozhlas.cz/jenom-porad", ""},
		{"://broken", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, programSlug(tt.url), tt.url)
	}
}

func TestChainName(t *testing.T) {
	withSlug := discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/cetba-na-pokracovani/dil-1"}
	assert.Equal(t, "Cetba na pokracovani", chainName(withSlug))

	apiOnly := discovery.DiscoveredEpisode{
		URL:    "https://www.mujrozhlas.cz/episode/aaaa",
		Series: "Osudy dobrého vojáka Švejka",
	}
	assert.Equal(t, "Osudy dobrého vojáka Švejka", chainName(apiOnly))

	bare := discovery.DiscoveredEpisode{URL: "https://www.mujrozhlas.cz/episode/bbbb"}
	assert.Equal(t, "Nezařazeno", chainName(bare))
}
