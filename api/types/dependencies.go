package types

import (
	"context"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/database"
	"github.com/mujarchiv/rozhlasd/internal/events"
	"github.com/mujarchiv/rozhlasd/internal/ingest"
	"github.com/mujarchiv/rozhlasd/internal/scheduler"
)

// Ingester is the slice of the ingest service the handlers use.
type Ingester interface {
	IngestURL(ctx context.Context, rawURL string) (*ingest.Outcome, error)
	Preview(ctx context.Context, rawURL string) (*ingest.Outcome, error)
}

// Submitter queues on-demand work on the scheduler's pool.
type Submitter interface {
	Submit(sub scheduler.Submission) (string, error)
}

// Notifier pings the library manager to rescan.
type Notifier interface {
	Enabled() bool
	Scan(ctx context.Context) error
}

// Dependencies holds everything the handlers need.
type Dependencies struct {
	DB        *database.DB
	Repo      catalog.Repository
	Ingester  Ingester
	Submitter Submitter
	Bus       *events.Bus
	Notifier  Notifier
	Version   string
}
