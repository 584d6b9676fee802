package discovery

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultSourceTimeout = 2 * time.Minute

// Service fans one program URL out to every configured source in
// parallel, isolates individual failures and merges the outputs in
// source order.
type Service struct {
	sources []Source
	timeout time.Duration
}

// NewService creates a fan-out over the given sources. timeout bounds
// each source separately; zero means the default.
func NewService(timeout time.Duration, sources ...Source) *Service {
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	return &Service{sources: sources, timeout: timeout}
}

// Discover normalizes the program URL, runs every source and merges.
// It fails only when the URL itself is unusable; source failures are
// reported, not raised.
func (s *Service) Discover(ctx context.Context, rawURL string) (*Result, error) {
	target, err := NormalizeTarget(rawURL)
	if err != nil {
		return nil, err
	}
	if target.URL != target.Original {
		log.Printf("[DEBUG] discovery target %s rewritten to %s", target.Original, target.URL)
	}

	type sourceOutput struct {
		episodes []DiscoveredEpisode
		err      error
	}
	outputs := make([]sourceOutput, len(s.sources))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, source := range s.sources {
		i, source := i, source
		g.Go(func() error {
			childCtx, cancel := context.WithTimeout(groupCtx, s.timeout)
			defer cancel()
			episodes, err := source.Discover(childCtx, target)
			outputs[i] = sourceOutput{episodes: episodes, err: err}
			// Source failures must not cancel siblings.
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Target:  target,
		Reports: make([]SourceReport, 0, len(s.sources)),
	}

	var merged []DiscoveredEpisode
	byExtID := make(map[string]int)
	byURL := make(map[string]int)

	for i, source := range s.sources {
		output := outputs[i]
		report := SourceReport{Source: source.Name(), Episodes: len(output.episodes)}
		if output.err != nil {
			report.Err = output.err.Error()
			log.Printf("[WARN] discovery source %s failed for %s: %v", source.Name(), target.URL, output.err)
		}
		result.Reports = append(result.Reports, report)

		for _, episode := range output.episodes {
			if episode.URL == "" {
				continue
			}
			merged = mergeEpisode(merged, byExtID, byURL, episode)
		}
	}

	result.Episodes = merged
	log.Printf("[INFO] discovery of %s merged %d episodes from %d sources", target.URL, len(merged), len(s.sources))
	return result, nil
}

// mergeEpisode matches on ext id first, merge URL second. A match only
// fills the earlier record's gaps; a miss appends.
func mergeEpisode(merged []DiscoveredEpisode, byExtID, byURL map[string]int, episode DiscoveredEpisode) []DiscoveredEpisode {
	urlKey := MergeURL(episode.URL)

	idx := -1
	if episode.ExtID != "" {
		if i, ok := byExtID[episode.ExtID]; ok {
			idx = i
		}
	}
	if idx < 0 {
		if i, ok := byURL[urlKey]; ok {
			idx = i
		}
	}

	if idx >= 0 {
		merged[idx].Absorb(episode)
		// Register the canonical's ext id, which Absorb may have just
		// filled. A conflicting candidate id must not alias this slot.
		if key := merged[idx].ExtID; key != "" {
			byExtID[key] = idx
		}
		byURL[urlKey] = idx
		return merged
	}

	merged = append(merged, episode)
	idx = len(merged) - 1
	if episode.ExtID != "" {
		byExtID[episode.ExtID] = idx
	}
	byURL[urlKey] = idx
	return merged
}
