// Package ingest reconciles discovered episodes into the catalog. Each
// unique discovery lands in one transaction that resolves the
// Station→Program→Series→Work chain, detects re-airs of stored
// episodes, revives gone ones and plans the required assets. A failure
// on one episode never aborts the rest of the batch.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/dedupe"
	"github.com/mujarchiv/rozhlasd/internal/discovery"
	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/mujarchiv/rozhlasd/pkg/textnorm"
)

// Discoverer runs the multi-source discovery fan-out for one URL.
type Discoverer interface {
	Discover(ctx context.Context, rawURL string) (*discovery.Result, error)
}

// Service is the reconciliation pipeline between discovery output and
// the catalog.
type Service struct {
	repo    catalog.Repository
	sources Discoverer
	deduper *dedupe.Deduper
}

// NewService wires the ingest pipeline. The discoverer may be nil for
// callers that only ingest pre-built episode lists.
func NewService(repo catalog.Repository, sources Discoverer) *Service {
	return &Service{
		repo:    repo,
		sources: sources,
		deduper: dedupe.New(),
	}
}

// Outcome summarizes one ingest run.
type Outcome struct {
	TargetURL  string                        `json:"target_url,omitempty"`
	Discovered int                           `json:"discovered"`
	Unique     int                           `json:"unique"`
	Created    int                           `json:"created"`
	Updated    int                           `json:"updated"`
	Revived    int                           `json:"revived"`
	JobsQueued int                           `json:"jobs_queued"`
	Failed     int                           `json:"failed"`
	DryRun     bool                          `json:"dry_run,omitempty"`
	Duplicates []dedupe.Group                `json:"duplicates,omitempty"`
	Reports    []discovery.SourceReport      `json:"reports,omitempty"`
	Entries    []discovery.DiscoveredEpisode `json:"entries,omitempty"`
}

// IngestURL crawls one URL end to end: discovery fan-out, duplicate
// folding against the catalog, then one transaction per unique episode.
func (s *Service) IngestURL(ctx context.Context, rawURL string) (*Outcome, error) {
	result, err := s.discover(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	outcome, err := s.IngestBatch(ctx, result.Episodes)
	if err != nil {
		return nil, err
	}
	outcome.TargetURL = result.Target.URL
	outcome.Reports = result.Reports
	return outcome, nil
}

// Preview runs discovery and dedupe for one URL but writes nothing.
// The surviving entries ride along for display.
func (s *Service) Preview(ctx context.Context, rawURL string) (*Outcome, error) {
	result, err := s.discover(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	known, err := s.loadKnown(ctx)
	if err != nil {
		return nil, err
	}

	deduped := s.deduper.Run(result.Episodes, known)
	return &Outcome{
		TargetURL:  result.Target.URL,
		Discovered: len(result.Episodes),
		Unique:     len(deduped.Unique),
		DryRun:     true,
		Duplicates: deduped.Groups,
		Reports:    result.Reports,
		Entries:    deduped.Unique,
	}, nil
}

// IngestBatch folds a discovered list against the catalog and
// reconciles every unique entry in its own transaction.
func (s *Service) IngestBatch(ctx context.Context, entries []discovery.DiscoveredEpisode) (*Outcome, error) {
	known, err := s.loadKnown(ctx)
	if err != nil {
		return nil, err
	}

	deduped := s.deduper.Run(entries, known)
	outcome := &Outcome{
		Discovered: len(entries),
		Unique:     len(deduped.Unique),
		Duplicates: deduped.Groups,
	}

	priorities := assignPriorities(deduped.Unique)
	programs := make(map[uint]struct{})
	for i, entry := range deduped.Unique {
		res, err := s.ingestOne(ctx, entry, priorities[i])
		if err != nil {
			outcome.Failed++
			log.Printf("[ERROR] ingest: %s: %v", entry.URL, err)
			continue
		}

		switch {
		case res.created:
			outcome.Created++
		case res.revived:
			outcome.Revived++
		default:
			outcome.Updated++
		}
		outcome.JobsQueued += res.jobsQueued
		programs[res.programID] = struct{}{}
	}

	now := time.Now().UTC()
	for programID := range programs {
		if err := s.repo.StampProgramCrawled(ctx, programID, now); err != nil {
			log.Printf("[WARN] ingest: stamping program %d: %v", programID, err)
		}
	}

	log.Printf("[INFO] ingest: %d discovered, %d unique, %d created, %d updated, %d revived, %d job(s) queued, %d failed",
		outcome.Discovered, outcome.Unique, outcome.Created, outcome.Updated,
		outcome.Revived, outcome.JobsQueued, outcome.Failed)
	return outcome, nil
}

func (s *Service) discover(ctx context.Context, rawURL string) (*discovery.Result, error) {
	if s.sources == nil {
		return nil, fmt.Errorf("ingest: no discoverer configured")
	}
	result, err := s.sources.Discover(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("discovering %s: %w", rawURL, err)
	}
	return result, nil
}

// loadKnown snapshots the catalog's identity keys for duplicate
// matching.
func (s *Service) loadKnown(ctx context.Context) (*dedupe.Known, error) {
	keys, err := s.repo.ListEpisodeKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading episode keys: %w", err)
	}
	aliases, err := s.repo.ListAllAliases(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aliases: %w", err)
	}

	known := dedupe.NewKnown()
	urls := make(map[uint]string, len(keys))
	for _, key := range keys {
		known.AddEpisode(key.ID, key.ExtID, key.URL, key.Title)
		urls[key.ID] = key.URL
	}
	for _, alias := range aliases {
		episodeURL, ok := urls[alias.EpisodeID]
		if !ok {
			continue
		}
		known.AddAliasURL(alias.EpisodeID, episodeURL, alias.URL)
	}
	return known, nil
}

type ingestResult struct {
	episodeID  uint
	programID  uint
	created    bool
	revived    bool
	jobsQueued int
}

// ingestOne reconciles a single discovery in one transaction.
func (s *Service) ingestOne(ctx context.Context, entry discovery.DiscoveredEpisode, priority int) (*ingestResult, error) {
	res := &ingestResult{}
	err := s.repo.Transaction(ctx, func(tx catalog.Repository) error {
		now := time.Now().UTC()

		ch, err := resolveChain(ctx, tx, entry)
		if err != nil {
			return err
		}
		res.programID = ch.program.ID

		episode, err := findCanonical(ctx, tx, ch.work.ID, entry)
		if err != nil {
			return err
		}

		if episode == nil {
			episode, err = createEpisode(ctx, tx, ch.work.ID, entry, priority, now)
			if err != nil {
				return err
			}
			res.created = true
		} else {
			res.revived, err = refreshEpisode(ctx, tx, episode, entry, priority, now)
			if err != nil {
				return err
			}
		}
		res.episodeID = episode.ID

		res.jobsQueued, err = planAssets(ctx, tx, episode.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type chain struct {
	station models.Station
	program models.Program
	series  models.Series
	work    models.Work
}

// resolveChain upserts Station→Program→Series→Work for one discovery.
// The program name comes from the episode URL's program slug when the
// URL has one, else from the reported series.
func resolveChain(ctx context.Context, tx catalog.Repository, entry discovery.DiscoveredEpisode) (*chain, error) {
	ch := &chain{station: ResolveStation(entry.Uploader)}
	if err := tx.UpsertStation(ctx, &ch.station); err != nil {
		return nil, err
	}

	programName := chainName(entry)
	ch.program = models.Program{StationID: ch.station.ID, Name: programName, URL: programURL(entry.URL)}
	if err := tx.UpsertProgram(ctx, &ch.program); err != nil {
		return nil, err
	}

	seriesName := firstNonEmpty(entry.Series, programName)
	ch.series = models.Series{ProgramID: ch.program.ID, Name: seriesName}
	if err := tx.UpsertSeries(ctx, &ch.series); err != nil {
		return nil, err
	}

	ch.work = models.Work{SeriesID: ch.series.ID, Title: seriesName, Author: entry.Author}
	if err := tx.UpsertWork(ctx, &ch.work); err != nil {
		return nil, err
	}
	return ch, nil
}

// findCanonical looks for a stored episode this discovery re-airs:
// ext id first, then any known URL, then a re-air-stripped URL match
// within the same work. Returns nil with no error when the discovery
// is genuinely new.
func findCanonical(ctx context.Context, tx catalog.Repository, workID uint, entry discovery.DiscoveredEpisode) (*models.Episode, error) {
	if entry.ExtID != "" {
		episode, err := tx.FindEpisodeByExtID(ctx, entry.ExtID)
		if err == nil {
			return episode, nil
		}
		if !catalog.IsNotFound(err) {
			return nil, err
		}
	}

	episode, err := tx.FindEpisodeByAnyURL(ctx, discovery.MergeURL(entry.URL))
	if err == nil {
		return episode, nil
	}
	if !catalog.IsNotFound(err) {
		return nil, err
	}

	key := discovery.CanonicalKey(entry.URL)
	siblings, err := tx.ListEpisodesInWork(ctx, workID)
	if err != nil {
		return nil, err
	}
	for i := range siblings {
		if discovery.CanonicalKey(siblings[i].URL) == key {
			return &siblings[i], nil
		}
	}
	return nil, nil
}

func createEpisode(ctx context.Context, tx catalog.Repository, workID uint, entry discovery.DiscoveredEpisode, priority int, now time.Time) (*models.Episode, error) {
	episode := &models.Episode{
		WorkID:             workID,
		ExtID:              entry.ExtID,
		Title:              firstNonEmpty(entry.Title, entry.URL),
		PublishedAt:        entry.PublishedAt,
		URL:                discovery.MergeURL(entry.URL),
		DurationMs:         int64(entry.DurationS * 1000),
		Summary:            entry.Description,
		AvailabilityStatus: models.AvailabilityAvailable,
		FirstSeenAt:        now,
		LastSeenAt:         now,
		Priority:           priority,
		DiscoverySource:    strings.Join(entry.Sources, ","),
	}
	if number, ok := textnorm.EpisodeOrdinal(episode.Title); ok {
		episode.EpisodeNumber = &number
	}

	if err := tx.CreateEpisode(ctx, episode); err != nil {
		return nil, err
	}
	if err := tx.AddAlias(ctx, episode.ID, episode.URL, entry.ExtID, primarySource(entry)); err != nil {
		return nil, err
	}
	return episode, nil
}

// refreshEpisode reconciles a discovery onto its stored episode: alias
// append, gone revival, fill-empty enrichment, priority raise. Reports
// whether the episode came back from gone.
func refreshEpisode(ctx context.Context, tx catalog.Repository, episode *models.Episode, entry discovery.DiscoveredEpisode, priority int, now time.Time) (bool, error) {
	mergeURL := discovery.MergeURL(entry.URL)
	if err := tx.AddAlias(ctx, episode.ID, mergeURL, entry.ExtID, primarySource(entry)); err != nil {
		return false, err
	}

	revived := false
	if episode.IsGone() {
		episode.AvailabilityStatus = models.AvailabilityAvailable
		episode.URL = mergeURL
		revived = true
	}

	fillEpisode(episode, entry)
	if priority > episode.Priority {
		episode.Priority = priority
	}
	episode.MarkSeen(now)

	if err := tx.UpdateEpisode(ctx, episode); err != nil {
		return false, err
	}

	if revived {
		requeued, err := tx.ReviveEpisodeJobs(ctx, episode.ID)
		if err != nil {
			return false, err
		}
		log.Printf("[INFO] ingest: episode %d revived at %s, %d job(s) re-queued", episode.ID, episode.URL, requeued)
	}
	return revived, nil
}

// fillEpisode copies discovery fields into the episode's gaps. Stored
// values always win; data never shrinks.
func fillEpisode(episode *models.Episode, entry discovery.DiscoveredEpisode) {
	if episode.Title == "" {
		episode.Title = entry.Title
	}
	if episode.ExtID == "" && entry.ExtID != "" {
		episode.ExtID = entry.ExtID
	}
	if episode.Summary == "" {
		episode.Summary = entry.Description
	}
	if episode.PublishedAt == nil && entry.PublishedAt != nil {
		published := entry.PublishedAt.UTC()
		episode.PublishedAt = &published
	}
	if episode.DurationMs == 0 && entry.DurationS > 0 {
		episode.DurationMs = int64(entry.DurationS * 1000)
	}
	if episode.DiscoverySource == "" && len(entry.Sources) > 0 {
		episode.DiscoverySource = strings.Join(entry.Sources, ",")
	}
	if episode.EpisodeNumber == nil {
		if number, ok := textnorm.EpisodeOrdinal(episode.Title); ok {
			episode.EpisodeNumber = &number
		}
	}
}

// planAssets makes sure the required asset rows exist and queues a job
// for each one that still needs a download. Complete and already
// queued assets are left alone.
func planAssets(ctx context.Context, tx catalog.Repository, episodeID uint) (int, error) {
	assets, err := tx.EnsureAssets(ctx, episodeID, models.RequiredAssetTypes)
	if err != nil {
		return 0, err
	}

	queued := 0
	for i := range assets {
		if !assets[i].Status.NeedsDownload() {
			continue
		}
		if _, err := tx.EnqueueJob(ctx, episodeID, assets[i].Type, "ingest"); err != nil {
			return 0, err
		}
		queued++
	}
	return queued, nil
}

// assignPriorities orders a batch newest-first and hands out
// priorities N..1 so the freshest episode downloads first. Entries
// without a publish date sort last. The returned slice is aligned
// with the input order.
func assignPriorities(entries []discovery.DiscoveredEpisode) []int {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := entries[order[a]].PublishedAt, entries[order[b]].PublishedAt
		switch {
		case pa == nil:
			return false
		case pb == nil:
			return true
		}
		return pa.After(*pb)
	})

	priorities := make([]int, len(entries))
	for rank, idx := range order {
		priorities[idx] = len(entries) - rank
	}
	return priorities
}

// chainName picks the Program name for a discovery: the program slug
// from the episode URL when the path has one, else the reported
// series, else the catch-all bucket.
func chainName(entry discovery.DiscoveredEpisode) string {
	if slug := programSlug(entry.URL); slug != "" {
		return slugTitle(slug)
	}
	if entry.Series != "" {
		return entry.Series
	}
	return "Nezařazeno"
}

// programSlug extracts the program path segment from an episode URL.
// Catalog API URLs (/episode/{uuid}) carry no program slug.
func programSlug(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[0] == "episode" {
		return ""
	}
	return segments[0]
}

// programURL rebuilds the program page URL from an episode URL.
func programURL(rawURL string) string {
	slug := programSlug(rawURL)
	if slug == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host + "/" + slug
}

// slugTitle turns a URL slug into a readable name. Diacritics lost in
// the slug stay lost; enrichment never overwrites the name because it
// is the program's identity key.
func slugTitle(slug string) string {
	runes := []rune(strings.ReplaceAll(slug, "-", " "))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func primarySource(entry discovery.DiscoveredEpisode) string {
	if len(entry.Sources) > 0 {
		return entry.Sources[0]
	}
	return "manual"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
