// Package downloads is the job executor. Each cycle claims a batch of
// pending jobs, picks a backend by URL host and runs the jobs with
// bounded parallelism. The extractor downloads into a per-episode
// scratch directory and the finished file is finalized into the
// library; broadcaster links are handed to the link-grabber instead.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/discovery"
	"github.com/mujarchiv/rozhlasd/internal/library"
	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/mujarchiv/rozhlasd/internal/polite"
	"github.com/mujarchiv/rozhlasd/pkg/ffprobe"
	"github.com/mujarchiv/rozhlasd/pkg/ytdlp"
)

// Extractor is the slice of the yt-dlp wrapper the executor needs.
type Extractor interface {
	DownloadAudio(ctx context.Context, url, destDir string) (*ytdlp.DownloadResult, error)
	DumpInfo(ctx context.Context, url string) ([]byte, *ytdlp.Info, error)
}

// AudioProber reads technicals off a finished audio file. A nil prober
// leaves the technical columns empty.
type AudioProber interface {
	Probe(ctx context.Context, filePath string) (*ffprobe.AudioInfo, error)
}

// Notifier asks the library manager to rescan after a cycle that
// landed new files.
type Notifier interface {
	Enabled() bool
	Scan(ctx context.Context) error
}

// Config tunes one executor. Zero values get defaults.
type Config struct {
	WorkerID      string        // default hostname-pid
	BatchSize     int           // default 10
	Parallelism   int           // default 3
	LibraryDir    string
	ScratchDir    string
	ScratchMaxAge time.Duration // default 48h
}

// Deps are the executor's collaborators. Repo, Fetcher and Extractor
// are required; the rest degrade to no-ops when absent.
type Deps struct {
	Repo      catalog.Repository
	Fetcher   *polite.Client
	Extractor Extractor
	Prober    AudioProber
	Grabber   *Grabber
	Tagger    library.Tagger
	Notifier  Notifier
}

// Executor claims pending jobs and runs them against their backends.
type Executor struct {
	repo      catalog.Repository
	fetcher   *polite.Client
	extractor Extractor
	prober    AudioProber
	grabber   *Grabber
	tagger    library.Tagger
	notifier  Notifier
	scratch   *Scratch

	workerID      string
	batchSize     int
	parallelism   int
	libraryDir    string
	scratchMaxAge time.Duration
	lastSweep     atomic.Int64
}

// NewExecutor creates an executor from config and collaborators.
func NewExecutor(cfg Config, deps Deps) *Executor {
	if cfg.WorkerID == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "rozhlasd"
		}
		cfg.WorkerID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 3
	}
	if cfg.ScratchMaxAge == 0 {
		cfg.ScratchMaxAge = 48 * time.Hour
	}
	if deps.Tagger == nil {
		deps.Tagger = library.Mover{}
	}
	if deps.Grabber == nil {
		deps.Grabber = NewGrabber(GrabberConfig{})
	}
	return &Executor{
		repo:          deps.Repo,
		fetcher:       deps.Fetcher,
		extractor:     deps.Extractor,
		prober:        deps.Prober,
		grabber:       deps.Grabber,
		tagger:        deps.Tagger,
		notifier:      deps.Notifier,
		scratch:       NewScratch(cfg.ScratchDir),
		workerID:      cfg.WorkerID,
		batchSize:     cfg.BatchSize,
		parallelism:   cfg.Parallelism,
		libraryDir:    cfg.LibraryDir,
		scratchMaxAge: cfg.ScratchMaxAge,
	}
}

// WorkerID returns the claim identity of this executor.
func (e *Executor) WorkerID() string {
	return e.workerID
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSucceeded
	outcomeWatching
	outcomeHanded
	outcomeSkipped
)

// Batch sums up one executor cycle.
type Batch struct {
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Watching  int `json:"watching"`
	Handed    int `json:"handed"`
	Skipped   int `json:"skipped"`
}

func (b *Batch) tally(o outcome) {
	switch o {
	case outcomeSucceeded:
		b.Succeeded++
	case outcomeWatching:
		b.Watching++
	case outcomeHanded:
		b.Handed++
	case outcomeSkipped:
		b.Skipped++
	default:
		b.Failed++
	}
}

// RunOnce claims up to BatchSize pending jobs and processes them with
// bounded parallelism. An empty queue is a normal outcome, not an
// error. Jobs never run concurrently for the same episode; the claim
// guarantees that.
func (e *Executor) RunOnce(ctx context.Context) (*Batch, error) {
	return e.RunBatch(ctx, e.batchSize)
}

// sweepEvery spaces out the scratch hygiene pass between batches.
const sweepEvery = 6 * time.Hour

// RunBatch is RunOnce with an explicit claim limit. A limit of zero or
// less falls back to the configured batch size.
func (e *Executor) RunBatch(ctx context.Context, limit int) (*Batch, error) {
	e.maybeSweepScratch()

	if limit <= 0 {
		limit = e.batchSize
	}
	jobs, err := e.repo.ClaimNextJobs(ctx, e.workerID, limit)
	if errors.Is(err, catalog.ErrNoJobsAvailable) {
		return &Batch{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming jobs: %w", err)
	}

	outcomes := make([]outcome, len(jobs))
	var group errgroup.Group
	group.SetLimit(e.parallelism)
	for i := range jobs {
		i := i
		group.Go(func() error {
			outcomes[i] = e.processJob(ctx, &jobs[i])
			return nil
		})
	}
	group.Wait()

	batch := &Batch{Claimed: len(jobs)}
	for _, o := range outcomes {
		batch.tally(o)
	}

	if batch.Succeeded > 0 {
		e.requestLibraryScan()
	}

	log.Printf("[INFO] downloads: batch done claimed=%d ok=%d failed=%d watch=%d handed=%d skipped=%d",
		batch.Claimed, batch.Succeeded, batch.Failed, batch.Watching, batch.Handed, batch.Skipped)
	return batch, nil
}

// maybeSweepScratch reclaims stale scratch directories at most once per
// sweepEvery. Concurrent batches race on the timestamp; the CAS loser
// skips its turn.
func (e *Executor) maybeSweepScratch() {
	now := time.Now()
	last := e.lastSweep.Load()
	if now.Sub(time.Unix(0, last)) < sweepEvery {
		return
	}
	if !e.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	if _, err := e.scratch.Sweep(e.scratchMaxAge); err != nil {
		log.Printf("[WARN] downloads: scratch sweep: %v", err)
	}
}

func (e *Executor) processJob(ctx context.Context, job *models.DownloadJob) outcome {
	episode, err := e.repo.GetEpisode(ctx, job.EpisodeID)
	if err != nil {
		e.failJob(ctx, job, models.ErrorKindStorage, fmt.Sprintf("loading episode: %v", err))
		return outcomeFailed
	}

	switch job.AssetType {
	case models.AssetAudio:
		return e.runAudio(ctx, job, episode)
	case models.AssetMetaJSON:
		return e.runMetaJSON(ctx, job, episode)
	case models.AssetWebpage:
		return e.runWebpage(ctx, job, episode)
	default:
		reason := fmt.Sprintf("no backend for %s assets", job.AssetType)
		if err := e.repo.SkipJob(ctx, job.ID, reason); err != nil {
			log.Printf("[ERROR] downloads: skipping job %d: %v", job.ID, err)
		}
		return outcomeSkipped
	}
}

// runAudio picks the backend by host. Broadcaster pages go to the
// link-grabber when one is configured; everything else, the aggregator
// included, goes through the extractor.
func (e *Executor) runAudio(ctx context.Context, job *models.DownloadJob, episode *models.Episode) outcome {
	if discovery.ClassifyHost(episode.URL) == discovery.HostBroadcaster && e.grabber.Enabled() {
		return e.handOff(ctx, job, episode)
	}
	return e.extract(ctx, job, episode)
}

// handOff pushes the episode URL into the link-grabber queue. The
// grabber downloads into its own folders, so the job closes here and
// the asset stays queued until a later sweep sees the file.
func (e *Executor) handOff(ctx context.Context, job *models.DownloadJob, episode *models.Episode) outcome {
	packageName := e.packageName(ctx, episode)
	if err := e.grabber.AddLinks(ctx, packageName, []string{episode.URL}); err != nil {
		e.failJob(ctx, job, models.ErrorKindTransport, fmt.Sprintf("link-grabber hand-off: %v", err))
		return outcomeFailed
	}
	if err := e.repo.CompleteJob(ctx, job.ID, "handed to link-grabber"); err != nil {
		log.Printf("[ERROR] downloads: closing handed-off job %d: %v", job.ID, err)
	}
	log.Printf("[INFO] downloads: episode %d handed to link-grabber as %q", episode.ID, packageName)
	return outcomeHanded
}

func (e *Executor) packageName(ctx context.Context, episode *models.Episode) string {
	naming, err := e.repo.GetEpisodeNaming(ctx, episode.ID)
	if err != nil {
		return fmt.Sprintf("rozhlasd-%d", episode.ID)
	}
	return library.BuildPaths("", naming).Stem
}

// extract downloads the audio into the episode's scratch directory and
// finalizes it into the library.
func (e *Executor) extract(ctx context.Context, job *models.DownloadJob, episode *models.Episode) outcome {
	naming, err := e.repo.GetEpisodeNaming(ctx, episode.ID)
	if err != nil {
		e.failJob(ctx, job, models.ErrorKindStorage, fmt.Sprintf("resolving naming: %v", err))
		return outcomeFailed
	}
	target := library.BuildPaths(e.libraryDir, naming)

	scratchDir, err := e.scratch.Dir(episode.ID)
	if err != nil {
		e.failJob(ctx, job, models.ErrorKindStorage, err.Error())
		return outcomeFailed
	}

	e.setAssetStatus(ctx, episode.ID, models.AssetAudio, models.AssetStatusDownloading)

	result, err := e.extractor.DownloadAudio(ctx, episode.URL, scratchDir)
	if err != nil {
		e.markAssetFailed(ctx, episode.ID, models.AssetAudio, "")
		return e.closeFailedDownload(ctx, job, err)
	}

	finalPath, err := e.tagger.Finalize(ctx, result.FilePath, target)
	if err != nil {
		// The audio made it to scratch; keep it there for inspection.
		e.markAssetFailed(ctx, episode.ID, models.AssetAudio, result.FilePath)
		e.failJob(ctx, job, models.ErrorKindPostProcessing,
			fmt.Sprintf("finalizing %s: %v", filepath.Base(result.FilePath), err))
		return outcomeFailed
	}

	if result.InfoJSONPath != "" {
		e.placeSidecar(ctx, episode.ID, result.InfoJSONPath, target)
	}

	e.completeAudioAsset(ctx, episode.ID, finalPath)
	if err := e.repo.CompleteJob(ctx, job.ID, "downloaded"); err != nil {
		log.Printf("[ERROR] downloads: completing job %d: %v", job.ID, err)
	}
	if err := e.scratch.Release(episode.ID); err != nil {
		log.Printf("[WARN] downloads: %v", err)
	}

	log.Printf("[INFO] downloads: episode %d audio finished as %s", episode.ID, finalPath)
	return outcomeSucceeded
}

// closeFailedDownload classifies an extractor failure onto the job.
// Content that vanished upstream parks the job for the availability
// watcher; the episode's own status is left for the prober to
// re-assert.
func (e *Executor) closeFailedDownload(ctx context.Context, job *models.DownloadJob, err error) outcome {
	var exErr *ytdlp.ExtractorError
	if errors.As(err, &exErr) && exErr.Gone() {
		if parkErr := e.repo.ParkJobForWatch(ctx, job.ID, exErr.Error()); parkErr != nil {
			log.Printf("[ERROR] downloads: parking job %d: %v", job.ID, parkErr)
		}
		log.Printf("[WARN] downloads: episode %d gone upstream, job %d parked for watch", job.EpisodeID, job.ID)
		return outcomeWatching
	}

	kind := models.ErrorKindExtractor
	if errors.Is(err, context.DeadlineExceeded) {
		kind = models.ErrorKindTransport
	}
	e.failJob(ctx, job, kind, err.Error())
	return outcomeFailed
}

// runMetaJSON fetches the full metadata document. When the audio
// download already dropped the sidecar, the job closes without another
// extractor call.
func (e *Executor) runMetaJSON(ctx context.Context, job *models.DownloadJob, episode *models.Episode) outcome {
	if asset, err := e.repo.GetAsset(ctx, episode.ID, models.AssetMetaJSON); err == nil &&
		asset.Status == models.AssetStatusComplete {
		if err := e.repo.CompleteJob(ctx, job.ID, "sidecar already on disk"); err != nil {
			log.Printf("[ERROR] downloads: completing job %d: %v", job.ID, err)
		}
		return outcomeSucceeded
	}

	naming, err := e.repo.GetEpisodeNaming(ctx, episode.ID)
	if err != nil {
		e.failJob(ctx, job, models.ErrorKindStorage, fmt.Sprintf("resolving naming: %v", err))
		return outcomeFailed
	}
	target := library.BuildPaths(e.libraryDir, naming)

	e.setAssetStatus(ctx, episode.ID, models.AssetMetaJSON, models.AssetStatusDownloading)

	raw, _, err := e.extractor.DumpInfo(ctx, episode.URL)
	if err != nil {
		e.markAssetFailed(ctx, episode.ID, models.AssetMetaJSON, "")
		return e.closeFailedDownload(ctx, job, err)
	}

	path := target.File(".info.json")
	if err := writeFile(path, raw); err != nil {
		e.markAssetFailed(ctx, episode.ID, models.AssetMetaJSON, "")
		e.failJob(ctx, job, models.ErrorKindPostProcessing, err.Error())
		return outcomeFailed
	}

	e.completeFileAsset(ctx, episode.ID, models.AssetMetaJSON, path)
	if err := e.repo.CompleteJob(ctx, job.ID, "downloaded"); err != nil {
		log.Printf("[ERROR] downloads: completing job %d: %v", job.ID, err)
	}
	return outcomeSucceeded
}

// runWebpage snapshots the episode page HTML next to the audio.
func (e *Executor) runWebpage(ctx context.Context, job *models.DownloadJob, episode *models.Episode) outcome {
	naming, err := e.repo.GetEpisodeNaming(ctx, episode.ID)
	if err != nil {
		e.failJob(ctx, job, models.ErrorKindStorage, fmt.Sprintf("resolving naming: %v", err))
		return outcomeFailed
	}
	target := library.BuildPaths(e.libraryDir, naming)

	e.setAssetStatus(ctx, episode.ID, models.AssetWebpage, models.AssetStatusDownloading)

	body, err := e.fetcher.FetchBody(ctx, episode.URL)
	if err != nil {
		e.markAssetFailed(ctx, episode.ID, models.AssetWebpage, "")
		var statusErr *polite.StatusError
		if errors.As(err, &statusErr) && statusErr.IsNotFound() {
			if parkErr := e.repo.ParkJobForWatch(ctx, job.ID, err.Error()); parkErr != nil {
				log.Printf("[ERROR] downloads: parking job %d: %v", job.ID, parkErr)
			}
			return outcomeWatching
		}
		e.failJob(ctx, job, models.ErrorKindTransport, err.Error())
		return outcomeFailed
	}

	path := target.File(".html")
	if err := writeFile(path, body); err != nil {
		e.markAssetFailed(ctx, episode.ID, models.AssetWebpage, "")
		e.failJob(ctx, job, models.ErrorKindPostProcessing, err.Error())
		return outcomeFailed
	}

	e.completeFileAsset(ctx, episode.ID, models.AssetWebpage, path)
	if err := e.repo.CompleteJob(ctx, job.ID, "downloaded"); err != nil {
		log.Printf("[ERROR] downloads: completing job %d: %v", job.ID, err)
	}
	return outcomeSucceeded
}

// placeSidecar moves the extractor's info.json from scratch into the
// library and completes the meta-json asset, so the later sidecar job
// finds its work done. Best effort: losing the sidecar never fails the
// audio job.
func (e *Executor) placeSidecar(ctx context.Context, episodeID uint, scratchPath string, target library.Paths) {
	assets, err := e.repo.EnsureAssets(ctx, episodeID, []models.AssetType{models.AssetMetaJSON})
	if err != nil {
		log.Printf("[WARN] downloads: ensuring sidecar asset for episode %d: %v", episodeID, err)
		return
	}

	data, err := os.ReadFile(scratchPath)
	if err != nil {
		log.Printf("[WARN] downloads: reading sidecar for episode %d: %v", episodeID, err)
		return
	}
	path := target.File(".info.json")
	if err := writeFile(path, data); err != nil {
		log.Printf("[WARN] downloads: placing sidecar for episode %d: %v", episodeID, err)
		return
	}

	asset := assets[0]
	asset.Status = models.AssetStatusComplete
	asset.FilePath = path
	asset.SizeBytes = int64(len(data))
	if err := e.repo.UpdateAsset(ctx, &asset); err != nil {
		log.Printf("[WARN] downloads: completing sidecar asset for episode %d: %v", episodeID, err)
	}
}

func (e *Executor) completeAudioAsset(ctx context.Context, episodeID uint, finalPath string) {
	asset, err := e.repo.GetAsset(ctx, episodeID, models.AssetAudio)
	if err != nil {
		log.Printf("[ERROR] downloads: loading audio asset for episode %d: %v", episodeID, err)
		return
	}

	asset.Status = models.AssetStatusComplete
	asset.FilePath = finalPath
	if info, err := os.Stat(finalPath); err == nil {
		asset.SizeBytes = info.Size()
	}

	if e.prober != nil {
		if audio, err := e.prober.Probe(ctx, finalPath); err != nil {
			log.Printf("[DEBUG] downloads: probing %s: %v", filepath.Base(finalPath), err)
		} else {
			asset.Codec = audio.Codec
			asset.Container = audio.Container
			asset.BitrateKbps = audio.BitrateKbps
			asset.Channels = audio.Channels
			asset.SampleRateHz = audio.SampleRateHz
		}
	}

	if err := e.repo.UpdateAsset(ctx, asset); err != nil {
		log.Printf("[ERROR] downloads: completing audio asset for episode %d: %v", episodeID, err)
	}
}

func (e *Executor) completeFileAsset(ctx context.Context, episodeID uint, assetType models.AssetType, path string) {
	assets, err := e.repo.EnsureAssets(ctx, episodeID, []models.AssetType{assetType})
	if err != nil {
		log.Printf("[ERROR] downloads: ensuring %s asset for episode %d: %v", assetType, episodeID, err)
		return
	}
	asset := assets[0]
	asset.Status = models.AssetStatusComplete
	asset.FilePath = path
	if info, err := os.Stat(path); err == nil {
		asset.SizeBytes = info.Size()
	}
	if err := e.repo.UpdateAsset(ctx, &asset); err != nil {
		log.Printf("[ERROR] downloads: completing %s asset for episode %d: %v", assetType, episodeID, err)
	}
}

func (e *Executor) setAssetStatus(ctx context.Context, episodeID uint, assetType models.AssetType, status models.AssetStatus) {
	asset, err := e.repo.GetAsset(ctx, episodeID, assetType)
	if err != nil {
		log.Printf("[WARN] downloads: loading %s asset for episode %d: %v", assetType, episodeID, err)
		return
	}
	asset.Status = status
	if err := e.repo.UpdateAsset(ctx, asset); err != nil {
		log.Printf("[WARN] downloads: moving %s asset to %s for episode %d: %v", assetType, status, episodeID, err)
	}
}

// markAssetFailed moves the asset to failed. When a file survived the
// failure, its path is recorded so someone can look at it.
func (e *Executor) markAssetFailed(ctx context.Context, episodeID uint, assetType models.AssetType, filePath string) {
	asset, err := e.repo.GetAsset(ctx, episodeID, assetType)
	if err != nil {
		log.Printf("[WARN] downloads: loading %s asset for episode %d: %v", assetType, episodeID, err)
		return
	}
	asset.Status = models.AssetStatusFailed
	if filePath != "" {
		asset.FilePath = filePath
	}
	if err := e.repo.UpdateAsset(ctx, asset); err != nil {
		log.Printf("[WARN] downloads: failing %s asset for episode %d: %v", assetType, episodeID, err)
	}
}

func (e *Executor) failJob(ctx context.Context, job *models.DownloadJob, kind models.ErrorKind, message string) {
	if err := e.repo.FailJob(ctx, job.ID, kind, message); err != nil {
		log.Printf("[ERROR] downloads: failing job %d: %v", job.ID, err)
	}
	log.Printf("[WARN] downloads: job %d (%s, episode %d) failed: %s", job.ID, job.AssetType, job.EpisodeID, message)
}

// requestLibraryScan pings the library manager in the background. The
// batch never waits on it.
func (e *Executor) requestLibraryScan() {
	if e.notifier == nil || !e.notifier.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.notifier.Scan(ctx); err != nil {
			log.Printf("[WARN] downloads: library scan request failed: %v", err)
		}
	}()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating library dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
