package cmd

import (
	"fmt"

	"github.com/mujarchiv/rozhlasd/internal/availability"
	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/database"
	"github.com/mujarchiv/rozhlasd/internal/discovery"
	"github.com/mujarchiv/rozhlasd/internal/downloads"
	"github.com/mujarchiv/rozhlasd/internal/events"
	"github.com/mujarchiv/rozhlasd/internal/ingest"
	"github.com/mujarchiv/rozhlasd/internal/library"
	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/mujarchiv/rozhlasd/internal/polite"
	"github.com/mujarchiv/rozhlasd/internal/scheduler"
	"github.com/mujarchiv/rozhlasd/pkg/config"
	"github.com/mujarchiv/rozhlasd/pkg/ffprobe"
	"github.com/mujarchiv/rozhlasd/pkg/ytdlp"
)

// daemon bundles the long-lived collaborators a verb can need. The CLI
// verbs that only touch the catalog go through openCatalog instead and
// skip the pipeline entirely.
type daemon struct {
	cfg      *config.Config
	db       *database.DB
	repo     catalog.Repository
	ingester *ingest.Service
	executor *downloads.Executor
	prober   *availability.Prober
	shelf    *library.Shelf
	bus      *events.Bus
	sched    *scheduler.Scheduler
}

// openCatalog loads config, opens the catalog database and runs
// migrations. Every verb except version and help starts here.
func openCatalog() (*database.DB, catalog.Repository, *config.Config, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Initialize(cfg.DBURL, cfg.Verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing database: %w", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, catalog.NewRepository(db.DB), cfg, nil
}

// newFetcher builds the shared rate-limited HTTP client.
func newFetcher(cfg *config.Config) *polite.Client {
	return polite.NewClient(polite.Config{
		RPS:       cfg.RateLimitRPS,
		Burst:     cfg.RateLimitBurst,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	})
}

// newSources assembles the discovery fan-out. Source order decides
// fusion tie-breaks: the flat-playlist extractor wins, the catalog API
// paginator fills in last.
func newSources(fetcher *polite.Client, extractor *ytdlp.YtDlp) *discovery.Service {
	return discovery.NewService(0,
		discovery.NewExtractorSource(extractor),
		discovery.NewAjaxSource(fetcher),
		discovery.NewScrapeSource(fetcher),
		discovery.NewCatalogAPISource(fetcher, discovery.CatalogAPIConfig{}),
	)
}

// buildIngester wires a discovery fan-out and ingest service for the
// one-shot CLI verbs. The private fetcher is fine there; the process
// runs exactly one crawl and exits.
func buildIngester(cfg *config.Config, repo catalog.Repository) *ingest.Service {
	fetcher := newFetcher(cfg)
	extractor := ytdlp.New(cfg.YtDlpPath, cfg.ExtractTimeout, cfg.DownloadTimeout)
	return ingest.NewService(repo, newSources(fetcher, extractor))
}

// buildDaemon wires the full pipeline: polite fetcher, discovery
// fan-out, ingest, download executor, availability prober, event bus
// and scheduler. Nothing starts ticking until sched.Start is called.
func buildDaemon() (*daemon, error) {
	db, repo, cfg, err := openCatalog()
	if err != nil {
		return nil, err
	}

	fetcher := newFetcher(cfg)
	extractor := ytdlp.New(cfg.YtDlpPath, cfg.ExtractTimeout, cfg.DownloadTimeout)
	ingester := ingest.NewService(repo, newSources(fetcher, extractor))

	shelf := library.NewShelf(library.ShelfConfig{
		URL:    cfg.LibraryManagerURL,
		APIKey: cfg.LibraryManagerAPIKey,
	})
	grabber := downloads.NewGrabber(downloads.GrabberConfig{
		Host: cfg.LinkGrabberHost,
		Port: cfg.LinkGrabberPort,
	})
	executor := downloads.NewExecutor(downloads.Config{
		BatchSize:   cfg.JobBatchSize,
		Parallelism: cfg.DownloadParallelism,
		LibraryDir:  cfg.LibraryDir,
		ScratchDir:  cfg.DownloadDir,
	}, downloads.Deps{
		Repo:      repo,
		Fetcher:   fetcher,
		Extractor: extractor,
		Prober:    ffprobe.New(cfg.FFProbePath, 0),
		Grabber:   grabber,
		Notifier:  shelf,
	})

	prober := availability.NewProber(repo, fetcher, availability.Config{
		BatchSize: cfg.ProbeBatchSize,
	})

	bus := events.NewBus(cfg.EventBufferSize)
	sched := scheduler.New(scheduler.Config{
		CrawlInterval:        cfg.CrawlInterval(),
		DownloadInterval:     cfg.DownloadInterval(),
		AvailabilityInterval: cfg.AvailabilityInterval(),
	}, scheduler.Deps{
		Repo:     repo,
		Ingester: ingester,
		Runner:   executor,
		Prober:   prober,
		Bus:      bus,
	})

	return &daemon{
		cfg:      cfg,
		db:       db,
		repo:     repo,
		ingester: ingester,
		executor: executor,
		prober:   prober,
		shelf:    shelf,
		bus:      bus,
		sched:    sched,
	}, nil
}
