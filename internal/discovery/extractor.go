package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/mujarchiv/rozhlasd/pkg/ytdlp"
)

// ExtractorSource asks the external extractor for a flat playlist of
// the program page. It is the richest of the four sources and the
// merged output preserves its ordering.
type ExtractorSource struct {
	extractor FlatPlaylister
}

// NewExtractorSource creates the flat-playlist source.
func NewExtractorSource(extractor FlatPlaylister) *ExtractorSource {
	return &ExtractorSource{extractor: extractor}
}

func (s *ExtractorSource) Name() string {
	return SourceExtractor
}

func (s *ExtractorSource) Discover(ctx context.Context, target Target) ([]DiscoveredEpisode, error) {
	playlist, err := s.extractor.FlatPlaylist(ctx, target.URL)
	if err != nil {
		return nil, fmt.Errorf("flat playlist inspect: %w", err)
	}

	episodes := make([]DiscoveredEpisode, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		pageURL := entry.PageURL()
		if pageURL == "" {
			continue
		}

		episode := DiscoveredEpisode{
			URL:             pageURL,
			Title:           entry.Title,
			ExtID:           entry.ID,
			DurationS:       entry.Duration,
			Description:     entry.Description,
			Series:          firstNonEmpty(entry.Series, playlist.Title),
			Uploader:        firstNonEmpty(entry.Uploader, playlist.Uploader),
			IsSeriesEpisode: entry.Series != "" || entry.Episode != "",
			Sources:         []string{SourceExtractor},
			Original:        entryOriginal(entry, playlist.ExtractorKey),
		}
		if published := parseUploadDate(entry.UploadDate); published != nil {
			episode.PublishedAt = published
		}
		episodes = append(episodes, episode)
	}
	return episodes, nil
}

// parseUploadDate turns the extractor's YYYYMMDD stamp into UTC time.
func parseUploadDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation("20060102", s, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

// entryOriginal keeps the raw flat-playlist fields for later sources
// and debugging without committing them to columns.
func entryOriginal(entry ytdlp.Entry, extractorKey string) map[string]any {
	original := map[string]any{
		"id":    entry.ID,
		"title": entry.Title,
		"url":   entry.PageURL(),
	}
	if entry.Duration > 0 {
		original["duration"] = entry.Duration
	}
	if entry.UploadDate != "" {
		original["upload_date"] = entry.UploadDate
	}
	if entry.Uploader != "" {
		original["uploader"] = entry.Uploader
	}
	if entry.Series != "" {
		original["series"] = entry.Series
	}
	if entry.Episode != "" {
		original["episode"] = entry.Episode
	}
	if extractorKey != "" {
		original["extractor_key"] = extractorKey
	}
	return original
}
