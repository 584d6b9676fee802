package discovery

import "time"

// Source names as they appear in DiscoveredEpisode.Sources and in
// discovery reports.
const (
	SourceExtractor  = "extractor"
	SourceAjax       = "ajax"
	SourceScrape     = "scrape"
	SourceCatalogAPI = "catalog-api"
)

// Target is the pair of URLs one discovery run works against. URL is
// the aggregator form the extractor, ajax and scrape sources use;
// Original preserves the user-supplied URL because the catalog-API
// source needs the broadcaster page to find the show UUID.
type Target struct {
	URL      string `json:"url"`
	Original string `json:"original"`
}

// DiscoveredEpisode is one episode candidate reported by a source
// adapter. Every field except URL is best-effort; the fan-out merge
// fills gaps from later sources.
type DiscoveredEpisode struct {
	URL             string         `json:"url"`
	Title           string         `json:"title,omitempty"`
	ExtID           string         `json:"ext_id,omitempty"`
	DurationS       float64        `json:"duration_s,omitempty"`
	Description     string         `json:"description,omitempty"`
	PublishedAt     *time.Time     `json:"published_at,omitempty"`
	Series          string         `json:"series,omitempty"`
	Author          string         `json:"author,omitempty"`
	Uploader        string         `json:"uploader,omitempty"`
	IsSeriesEpisode bool           `json:"is_series_episode,omitempty"`
	Sources         []string       `json:"sources"`
	Original        map[string]any `json:"-"`
}

// HasSource reports whether the episode was seen by the named source.
func (d *DiscoveredEpisode) HasSource(name string) bool {
	for _, s := range d.Sources {
		if s == name {
			return true
		}
	}
	return false
}

func (d *DiscoveredEpisode) addSource(name string) {
	if !d.HasSource(name) {
		d.Sources = append(d.Sources, name)
	}
}

// Absorb copies other's fields into gaps and unions the source list.
// The receiver wins on conflicts; other only adds what is missing.
func (d *DiscoveredEpisode) Absorb(other DiscoveredEpisode) {
	if d.Title == "" {
		d.Title = other.Title
	}
	if d.ExtID == "" {
		d.ExtID = other.ExtID
	}
	if d.DurationS == 0 {
		d.DurationS = other.DurationS
	}
	if d.Description == "" {
		d.Description = other.Description
	}
	if d.PublishedAt == nil {
		d.PublishedAt = other.PublishedAt
	}
	if d.Series == "" {
		d.Series = other.Series
	}
	if d.Author == "" {
		d.Author = other.Author
	}
	if d.Uploader == "" {
		d.Uploader = other.Uploader
	}
	if other.IsSeriesEpisode {
		d.IsSeriesEpisode = true
	}
	for _, source := range other.Sources {
		d.addSource(source)
	}
	for key, value := range other.Original {
		if d.Original == nil {
			d.Original = make(map[string]any, len(other.Original))
		}
		if _, exists := d.Original[key]; !exists {
			d.Original[key] = value
		}
	}
}

// SourceReport says how one adapter fared during a run.
type SourceReport struct {
	Source   string `json:"source"`
	Episodes int    `json:"episodes"`
	Err      string `json:"error,omitempty"`
}

// Result is one merged discovery run.
type Result struct {
	Target   Target              `json:"target"`
	Episodes []DiscoveredEpisode `json:"episodes"`
	Reports  []SourceReport      `json:"reports"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
