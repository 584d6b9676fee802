package dedupe

import (
	"fmt"
	"log"

	"github.com/mujarchiv/rozhlasd/internal/discovery"
)

const (
	// fuzzyThreshold is the LCS ratio above which two normalized titles
	// are the same episode.
	fuzzyThreshold = 0.90
	// minTitleLength keeps very short titles out of the fuzzy tier;
	// below this they collide on noise.
	minTitleLength = 6
)

// Reason labels why a candidate folded into its canonical record.
type Reason string

const (
	ReasonExtID      Reason = "ext_id"
	ReasonURLExact   Reason = "url_exact"
	ReasonURLReair   Reason = "url_reair"
	ReasonTitleFuzzy Reason = "title_fuzzy"
	ReasonExistingDB Reason = "existing_in_db"
)

// KnownEpisode identifies a catalog episode the deduper can match
// against.
type KnownEpisode struct {
	ID  uint
	URL string
}

// KnownTitle pairs a catalog episode with its normalized title.
type KnownTitle struct {
	Episode    KnownEpisode
	Normalized string
}

// Known is the catalog-side knowledge for one dedupe run: external ids,
// merge URLs (episode URLs and aliases), canonical keys, and normalized
// titles of existing episodes.
type Known struct {
	ExtIDs    map[string]KnownEpisode
	URLs      map[string]KnownEpisode
	Canonical map[string]KnownEpisode
	Titles    []KnownTitle
}

// NewKnown returns an empty catalog snapshot.
func NewKnown() *Known {
	return &Known{
		ExtIDs:    make(map[string]KnownEpisode),
		URLs:      make(map[string]KnownEpisode),
		Canonical: make(map[string]KnownEpisode),
	}
}

// AddEpisode registers one catalog episode under every key the tiers
// match on.
func (k *Known) AddEpisode(id uint, extID, url, title string) {
	episode := KnownEpisode{ID: id, URL: url}
	if extID != "" {
		k.ExtIDs[extID] = episode
	}
	if url != "" {
		k.URLs[discovery.MergeURL(url)] = episode
		k.Canonical[discovery.CanonicalKey(url)] = episode
	}
	if normalized := NormalizeTitle(title, ""); len([]rune(normalized)) >= minTitleLength {
		k.Titles = append(k.Titles, KnownTitle{Episode: episode, Normalized: normalized})
	}
}

// AddAliasURL registers a secondary URL of an already-added episode.
func (k *Known) AddAliasURL(id uint, episodeURL, aliasURL string) {
	if aliasURL == "" {
		return
	}
	episode := KnownEpisode{ID: id, URL: episodeURL}
	k.URLs[discovery.MergeURL(aliasURL)] = episode
	k.Canonical[discovery.CanonicalKey(aliasURL)] = episode
}

// Member is one folded candidate inside a duplicate group.
type Member struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	ExtID  string `json:"ext_id,omitempty"`
	Reason Reason `json:"reason"`
}

// Group collects every candidate that folded into one canonical record.
// EpisodeID is set when the canonical side is a catalog episode.
type Group struct {
	CanonicalURL string   `json:"canonical_url"`
	EpisodeID    uint     `json:"episode_id,omitempty"`
	Members      []Member `json:"members"`
}

// Result is the outcome of one dedupe run. Unique keeps input order.
// Entries that matched a catalog episode stay in Unique (ingest must
// still see them to alias and enrich) but are reported in Groups.
type Result struct {
	Unique []discovery.DiscoveredEpisode `json:"unique"`
	Groups []Group                       `json:"groups"`
}

// Deduper folds a merged discovery list into unique logical episodes.
type Deduper struct{}

// New creates a Deduper with the standard thresholds.
func New() *Deduper {
	return &Deduper{}
}

type batchKeys struct {
	byExtID     map[string]int
	byURL       map[string]int
	byCanonical map[string]int
	titles      []struct {
		normalized string
		index      int
	}
}

// Run applies the three tiers to each entry in order: ext id, URL
// (exact then re-air-stripped), fuzzy title. Batch survivors are
// matched before catalog episodes so intra-batch duplicates collapse
// first.
func (d *Deduper) Run(entries []discovery.DiscoveredEpisode, known *Known) *Result {
	if known == nil {
		known = NewKnown()
	}

	result := &Result{}
	keys := &batchKeys{
		byExtID:     make(map[string]int),
		byURL:       make(map[string]int),
		byCanonical: make(map[string]int),
	}
	groupIndex := make(map[string]int)

	for _, entry := range entries {
		if entry.URL == "" {
			continue
		}

		if idx, reason, ok := d.matchBatch(keys, entry); ok {
			canonical := &result.Unique[idx]
			canonical.Absorb(entry)
			d.record(result, groupIndex, "batch:"+canonical.URL, canonical.URL, 0, entry, reason)
			d.registerKeys(keys, *canonical, idx)
			continue
		}

		// The entry survives. A catalog hit is recorded but does not
		// drop it; ingest resolves it onto the existing episode.
		if existing, ok := d.matchKnown(known, entry); ok {
			d.record(result, groupIndex, fmt.Sprintf("db:%d", existing.ID), existing.URL, existing.ID, entry, ReasonExistingDB)
		}

		result.Unique = append(result.Unique, entry)
		d.registerKeys(keys, entry, len(result.Unique)-1)
	}

	if len(result.Groups) > 0 {
		log.Printf("[DEBUG] dedupe folded %d duplicate(s) across %d group(s), %d unique",
			countMembers(result.Groups), len(result.Groups), len(result.Unique))
	}
	return result
}

func (d *Deduper) matchBatch(keys *batchKeys, entry discovery.DiscoveredEpisode) (int, Reason, bool) {
	if entry.ExtID != "" {
		if idx, ok := keys.byExtID[entry.ExtID]; ok {
			return idx, ReasonExtID, true
		}
	}

	mergeURL := discovery.MergeURL(entry.URL)
	if idx, ok := keys.byURL[mergeURL]; ok {
		return idx, ReasonURLExact, true
	}
	if idx, ok := keys.byCanonical[discovery.CanonicalKey(entry.URL)]; ok {
		return idx, ReasonURLReair, true
	}

	normalized := NormalizeTitle(entry.Title, entry.Series)
	if len([]rune(normalized)) >= minTitleLength {
		for _, title := range keys.titles {
			if lcsRatio(normalized, title.normalized) > fuzzyThreshold {
				return title.index, ReasonTitleFuzzy, true
			}
		}
	}
	return 0, "", false
}

func (d *Deduper) matchKnown(known *Known, entry discovery.DiscoveredEpisode) (KnownEpisode, bool) {
	if entry.ExtID != "" {
		if episode, ok := known.ExtIDs[entry.ExtID]; ok {
			return episode, true
		}
	}

	mergeURL := discovery.MergeURL(entry.URL)
	if episode, ok := known.URLs[mergeURL]; ok {
		return episode, true
	}
	if episode, ok := known.Canonical[discovery.CanonicalKey(entry.URL)]; ok {
		return episode, true
	}

	normalized := NormalizeTitle(entry.Title, entry.Series)
	if len([]rune(normalized)) >= minTitleLength {
		for _, title := range known.Titles {
			if lcsRatio(normalized, title.Normalized) > fuzzyThreshold {
				return title.Episode, true
			}
		}
	}
	return KnownEpisode{}, false
}

func (d *Deduper) registerKeys(keys *batchKeys, entry discovery.DiscoveredEpisode, idx int) {
	if entry.ExtID != "" {
		if _, taken := keys.byExtID[entry.ExtID]; !taken {
			keys.byExtID[entry.ExtID] = idx
		}
	}
	mergeURL := discovery.MergeURL(entry.URL)
	if _, taken := keys.byURL[mergeURL]; !taken {
		keys.byURL[mergeURL] = idx
	}
	canonical := discovery.CanonicalKey(entry.URL)
	if _, taken := keys.byCanonical[canonical]; !taken {
		keys.byCanonical[canonical] = idx
	}
	normalized := NormalizeTitle(entry.Title, entry.Series)
	if len([]rune(normalized)) >= minTitleLength {
		keys.titles = append(keys.titles, struct {
			normalized string
			index      int
		}{normalized, idx})
	}
}

func (d *Deduper) record(result *Result, groupIndex map[string]int, groupKey, canonicalURL string, episodeID uint, entry discovery.DiscoveredEpisode, reason Reason) {
	idx, ok := groupIndex[groupKey]
	if !ok {
		result.Groups = append(result.Groups, Group{CanonicalURL: canonicalURL, EpisodeID: episodeID})
		idx = len(result.Groups) - 1
		groupIndex[groupKey] = idx
	}
	result.Groups[idx].Members = append(result.Groups[idx].Members, Member{
		URL:    entry.URL,
		Title:  entry.Title,
		ExtID:  entry.ExtID,
		Reason: reason,
	})
}

func countMembers(groups []Group) int {
	total := 0
	for _, group := range groups {
		total += len(group.Members)
	}
	return total
}
