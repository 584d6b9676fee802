// Package scheduler drives the daemon's periodic passes: crawling due
// targets, draining the job queue and re-probing availability. Each
// task ticks on its own cadence behind a single-instance guard, and an
// on-demand submission pool runs user requests off the tick path.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/availability"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/downloads"
	"github.com/mujarchiv/rozhlasd/internal/events"
	"github.com/mujarchiv/rozhlasd/internal/ingest"
	"github.com/mujarchiv/rozhlasd/internal/metrics"
	"github.com/mujarchiv/rozhlasd/internal/models"
)

// Ingester crawls one URL through discovery, dedupe and reconciliation.
type Ingester interface {
	IngestURL(ctx context.Context, rawURL string) (*ingest.Outcome, error)
}

// JobRunner drains the pending job queue in bounded batches.
type JobRunner interface {
	RunBatch(ctx context.Context, limit int) (*downloads.Batch, error)
}

// Prober re-checks episode reachability.
type Prober interface {
	Run(ctx context.Context) (*availability.Result, error)
	ProbeURL(ctx context.Context, rawURL string) (availability.Verdict, error)
	ProbeEpisode(ctx context.Context, episode *models.Episode) (availability.Verdict, error)
}

// Config tunes the scheduler. Zero values get defaults.
type Config struct {
	CrawlInterval        time.Duration // default 60m
	DownloadInterval     time.Duration // default 5m
	AvailabilityInterval time.Duration // default 6h
	ReapGrace            time.Duration // default 30m
	SubmissionWorkers    int           // default 2
	SubmissionQueueSize  int           // default 16
}

// Deps are the collaborators the scheduler drives.
type Deps struct {
	Repo     catalog.Repository
	Ingester Ingester
	Runner   JobRunner
	Prober   Prober
	Bus      *events.Bus
}

// Scheduler owns the tick loops and the submission pool. Construct it
// with New, then Start once; Stop halts all loops and waits for them
// to hand back.
type Scheduler struct {
	repo     catalog.Repository
	ingester Ingester
	runner   JobRunner
	prober   Prober
	bus      *events.Bus

	crawlInterval        time.Duration
	downloadInterval     time.Duration
	availabilityInterval time.Duration
	reapGrace            time.Duration

	crawlBusy        atomic.Bool
	downloadBusy     atomic.Bool
	availabilityBusy atomic.Bool

	queue    chan Submission
	workers  int
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New wires a scheduler. All deps except the bus are required; a nil
// bus falls back to a private one nobody listens on.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.CrawlInterval <= 0 {
		cfg.CrawlInterval = 60 * time.Minute
	}
	if cfg.DownloadInterval <= 0 {
		cfg.DownloadInterval = 5 * time.Minute
	}
	if cfg.AvailabilityInterval <= 0 {
		cfg.AvailabilityInterval = 6 * time.Hour
	}
	if cfg.ReapGrace <= 0 {
		cfg.ReapGrace = 30 * time.Minute
	}
	if cfg.SubmissionWorkers <= 0 {
		cfg.SubmissionWorkers = 2
	}
	if cfg.SubmissionQueueSize <= 0 {
		cfg.SubmissionQueueSize = 16
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus(0)
	}
	return &Scheduler{
		repo:                 deps.Repo,
		ingester:             deps.Ingester,
		runner:               deps.Runner,
		prober:               deps.Prober,
		bus:                  deps.Bus,
		crawlInterval:        cfg.CrawlInterval,
		downloadInterval:     cfg.DownloadInterval,
		availabilityInterval: cfg.AvailabilityInterval,
		reapGrace:            cfg.ReapGrace,
		queue:                make(chan Submission, cfg.SubmissionQueueSize),
		workers:              cfg.SubmissionWorkers,
		stop:                 make(chan struct{}),
	}
}

// Start reaps orphaned running jobs, fires the initial crawl and
// download passes, then launches the tick loops and submission
// workers. It does not block.
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("[INFO] scheduler: starting crawl=%s download=%s availability=%s",
		s.crawlInterval, s.downloadInterval, s.availabilityInterval)

	reaped, err := s.repo.ReapStaleRunning(ctx, time.Now().UTC().Add(-s.reapGrace))
	if err != nil {
		log.Printf("[ERROR] scheduler: reaping stale jobs: %v", err)
	} else if reaped > 0 {
		log.Printf("[INFO] scheduler: returned %d orphaned running jobs to the queue", reaped)
	}

	s.spawnLoop(ctx, s.crawlInterval, true, s.runCrawl)
	s.spawnLoop(ctx, s.downloadInterval, true, s.runDownload)
	s.spawnLoop(ctx, s.availabilityInterval, false, s.runAvailability)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.submissionWorker(ctx)
	}
}

// Stop halts every loop and waits for in-flight passes to hand back.
// Cancel the context passed to Start first when the stop has to cut
// a running pass short.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	log.Printf("[INFO] scheduler: stopped")
}

// spawnLoop runs task on every tick until the scheduler stops. With
// initial set the task also runs once right away.
func (s *Scheduler) spawnLoop(ctx context.Context, interval time.Duration, initial bool, task func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if initial {
			task(ctx)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

// runCrawl walks every due target through the ingest pipeline. Targets
// are stamped even when their crawl fails so a broken URL cannot hog
// the schedule.
func (s *Scheduler) runCrawl(ctx context.Context) {
	if !s.crawlBusy.CompareAndSwap(false, true) {
		log.Printf("[DEBUG] scheduler: crawl pass still running, tick skipped")
		return
	}
	defer s.crawlBusy.Store(false)

	targets, err := s.repo.DueTargets(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("[ERROR] scheduler: listing due targets: %v", err)
		metrics.IncTaskFailure("crawl")
		return
	}
	if len(targets) == 0 {
		log.Printf("[DEBUG] scheduler: no targets due")
		return
	}

	started := time.Now()
	s.bus.Publish(events.Event{
		Type:    events.TypeCrawlStarted,
		Message: fmt.Sprintf("crawling %d targets", len(targets)),
		Payload: map[string]int{"targets": len(targets)},
	})

	var ok, failed int
	for i := range targets {
		if ctx.Err() != nil {
			return
		}
		if s.crawlTarget(ctx, &targets[i]) {
			ok++
		} else {
			failed++
		}
	}

	elapsed := time.Since(started)
	metrics.IncCrawlPass()
	metrics.RecordCrawlTargets(ok, failed)
	metrics.ObserveTaskDuration("crawl", elapsed.Seconds())
	s.bus.Publish(events.Event{
		Type:    events.TypeCrawlFinished,
		Message: fmt.Sprintf("crawled %d targets, %d failed", ok, failed),
		Payload: map[string]int{"targets": len(targets), "ok": ok, "failed": failed},
	})
	log.Printf("[INFO] scheduler: crawl pass done targets=%d ok=%d failed=%d in %s",
		len(targets), ok, failed, elapsed.Round(time.Millisecond))
}

// crawlTarget ingests one target and stamps its schedule. Reports
// whether the crawl itself succeeded.
func (s *Scheduler) crawlTarget(ctx context.Context, target *models.CrawlTarget) bool {
	outcome, err := s.ingester.IngestURL(ctx, target.URL)

	if stampErr := s.repo.StampTargetCrawled(ctx, target.ID, time.Now().UTC()); stampErr != nil {
		log.Printf("[ERROR] scheduler: stamping target %d: %v", target.ID, stampErr)
	}

	entity := fmt.Sprintf("target:%d", target.ID)
	if err != nil {
		log.Printf("[ERROR] scheduler: crawling target %d (%s): %v", target.ID, target.URL, err)
		s.bus.Publish(events.Event{
			Type:    events.TypeCrawlTarget,
			Entity:  entity,
			Message: fmt.Sprintf("crawl failed: %v", err),
		})
		return false
	}

	metrics.RecordIngest(outcome.Discovered, outcome.Created, outcome.Updated, outcome.Revived, outcome.Failed)
	s.bus.Publish(events.Event{
		Type:    events.TypeCrawlTarget,
		Entity:  entity,
		Message: fmt.Sprintf("discovered %d, created %d", outcome.Discovered, outcome.Created),
		Payload: outcome,
	})
	return true
}

// runDownload drains one batch of pending jobs. The executor logs its
// own summary; only claims show up on the bus.
func (s *Scheduler) runDownload(ctx context.Context) {
	if !s.downloadBusy.CompareAndSwap(false, true) {
		log.Printf("[DEBUG] scheduler: download pass still running, tick skipped")
		return
	}
	defer s.downloadBusy.Store(false)

	started := time.Now()
	batch, err := s.runner.RunBatch(ctx, 0)
	if err != nil {
		log.Printf("[ERROR] scheduler: download pass: %v", err)
		metrics.IncTaskFailure("download")
		return
	}
	if batch.Claimed == 0 {
		return
	}

	metrics.RecordJobBatch(batch.Succeeded, batch.Failed, batch.Watching, batch.Handed, batch.Skipped)
	metrics.ObserveTaskDuration("download", time.Since(started).Seconds())
	s.bus.Publish(events.Event{
		Type:    events.TypeJobsBatch,
		Message: fmt.Sprintf("%d of %d jobs succeeded", batch.Succeeded, batch.Claimed),
		Payload: batch,
	})
}

// runAvailability executes one probe pass over uncertain episodes and
// the watch list.
func (s *Scheduler) runAvailability(ctx context.Context) {
	if !s.availabilityBusy.CompareAndSwap(false, true) {
		log.Printf("[DEBUG] scheduler: availability pass still running, tick skipped")
		return
	}
	defer s.availabilityBusy.Store(false)

	started := time.Now()
	result, err := s.prober.Run(ctx)
	if err != nil {
		log.Printf("[ERROR] scheduler: availability pass: %v", err)
		metrics.IncTaskFailure("availability")
		return
	}
	if result.Probed == 0 && result.Watched == 0 {
		return
	}

	metrics.RecordProbePass(result.Available, result.Unavailable, result.Gone, result.Requeued)
	metrics.ObserveTaskDuration("availability", time.Since(started).Seconds())
	s.bus.Publish(events.Event{
		Type:    events.TypeAvailabilityPass,
		Message: fmt.Sprintf("probed %d episodes, %d requeued", result.Probed, result.Requeued),
		Payload: result,
	})
}
