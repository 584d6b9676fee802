package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	defaultAPIBase     = "https://api.mujrozhlas.cz"
	defaultEpisodeHost = "www.mujrozhlas.cz"
	apiPageLimit       = 50
	apiMaxPages        = 40
)

// ErrNoShowUUID means the broadcaster page carried no show UUID and the
// catalog-API source has nothing to paginate.
var ErrNoShowUUID = errors.New("no show uuid found in page")

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	// Attribute-scoped match first; the bare pattern is the fallback
	// because rozhlas.cz pages embed many unrelated UUIDs.
	showUUIDAttrRe = regexp.MustCompile(`(?:data-entity-uuid|data-show-id|content)="(` + uuidPattern + `)"`)
	uuidRe         = regexp.MustCompile(uuidPattern)
)

// CatalogAPIConfig overrides the production endpoints, mainly for tests.
type CatalogAPIConfig struct {
	APIBase     string
	EpisodeHost string
}

// CatalogAPISource extracts the show UUID from the broadcaster page
// and paginates the aggregator's JSON:API episode listing.
type CatalogAPISource struct {
	fetcher     Fetcher
	apiBase     string
	episodeHost string
}

// NewCatalogAPISource creates the catalog-API source.
func NewCatalogAPISource(fetcher Fetcher, config CatalogAPIConfig) *CatalogAPISource {
	if config.APIBase == "" {
		config.APIBase = defaultAPIBase
	}
	if config.EpisodeHost == "" {
		config.EpisodeHost = defaultEpisodeHost
	}
	return &CatalogAPISource{
		fetcher:     fetcher,
		apiBase:     strings.TrimSuffix(config.APIBase, "/"),
		episodeHost: config.EpisodeHost,
	}
}

func (s *CatalogAPISource) Name() string {
	return SourceCatalogAPI
}

func (s *CatalogAPISource) Discover(ctx context.Context, target Target) ([]DiscoveredEpisode, error) {
	page, err := s.fetcher.FetchBody(ctx, target.Original)
	if err != nil {
		return nil, fmt.Errorf("fetching show page: %w", err)
	}
	showUUID := extractShowUUID(string(page))
	if showUUID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoShowUUID, target.Original)
	}

	var all []DiscoveredEpisode
	for pageNum, offset := 0, 0; pageNum < apiMaxPages; pageNum, offset = pageNum+1, offset+apiPageLimit {
		listURL := fmt.Sprintf("%s/shows/%s/episodes?page[limit]=%d&page[offset]=%d",
			s.apiBase, showUUID, apiPageLimit, offset)
		body, err := s.fetcher.FetchBody(ctx, listURL)
		if err != nil {
			return nil, fmt.Errorf("catalog api offset %d: %w", offset, err)
		}

		var parsed apiEpisodePage
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decoding catalog api response: %w", err)
		}

		for _, datum := range parsed.Data {
			all = append(all, s.episodeFromDatum(datum))
		}
		if len(parsed.Data) < apiPageLimit {
			break
		}
	}
	return all, nil
}

func (s *CatalogAPISource) episodeFromDatum(datum apiEpisode) DiscoveredEpisode {
	episode := DiscoveredEpisode{
		URL:             fmt.Sprintf("https://%s/episode/%s", s.episodeHost, datum.ID),
		ExtID:           strings.ToLower(datum.ID),
		Title:           datum.Attributes.Title,
		Description:     datum.Attributes.Description,
		DurationS:       datum.Attributes.Duration,
		Series:          datum.Attributes.Serial.Title,
		IsSeriesEpisode: datum.Attributes.Serial.Title != "",
		Sources:         []string{SourceCatalogAPI},
	}
	if datum.Attributes.Since != "" {
		if t, err := time.Parse(time.RFC3339, datum.Attributes.Since); err == nil {
			utc := t.UTC()
			episode.PublishedAt = &utc
		}
	}
	return episode
}

// extractShowUUID prefers UUIDs bound to known attributes and falls
// back to the first bare UUID on the page.
func extractShowUUID(page string) string {
	if m := showUUIDAttrRe.FindStringSubmatch(page); m != nil {
		return strings.ToLower(m[1])
	}
	if m := uuidRe.FindString(page); m != "" {
		return strings.ToLower(m)
	}
	return ""
}

type apiEpisodePage struct {
	Data []apiEpisode `json:"data"`
}

type apiEpisode struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Duration    float64 `json:"duration"`
		Since       string  `json:"since"`
		Serial      struct {
			Title string `json:"title"`
		} `json:"serial"`
	} `json:"attributes"`
}
