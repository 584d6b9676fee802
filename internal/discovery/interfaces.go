package discovery

import (
	"context"

	"github.com/mujarchiv/rozhlasd/pkg/ytdlp"
)

// Source is one episode-listing adapter. Discover returns whatever the
// adapter found; failures are isolated by the fan-out and never reach
// sibling sources.
type Source interface {
	Name() string
	Discover(ctx context.Context, target Target) ([]DiscoveredEpisode, error)
}

// Fetcher is the slice of the polite HTTP client the HTML-facing
// sources need.
type Fetcher interface {
	FetchBody(ctx context.Context, url string) ([]byte, error)
}

// FlatPlaylister is the extractor call behind the primary source.
type FlatPlaylister interface {
	FlatPlaylist(ctx context.Context, url string) (*ytdlp.Playlist, error)
}
