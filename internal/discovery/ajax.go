package discovery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mujarchiv/rozhlasd/internal/polite"
)

const (
	ajaxPageSize  = 50
	ajaxShortPage = 10
	ajaxMaxPages  = 40
)

// The ajax listing endpoint returns server-rendered HTML snippets.
// Anchors carry the episode href, Drupal stamps entity UUIDs as data
// attributes on the card wrapper, and title/duration live in
// class-scoped spans or the anchor text itself.
var (
	ajaxAnchorRe     = regexp.MustCompile(`href="(/[a-z0-9\-]+/[a-z0-9\-]+(?:/[a-z0-9\-]+)?)"`)
	ajaxUUIDRe       = regexp.MustCompile(`data-(?:entity-)?uuid="([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})"`)
	ajaxTitleRe      = regexp.MustCompile(`class="[^"]*title[^"]*"[^>]*>\s*([^<]+?)\s*<`)
	ajaxAnchorTextRe = regexp.MustCompile(`^[^>]*>\s*([^<]+?)\s*</a>`)
	ajaxTitleAttrRe  = regexp.MustCompile(`title="([^"]+)"`)
	ajaxDurationRe   = regexp.MustCompile(`class="[^"]*duration[^"]*"[^>]*>\s*(\d{1,2}(?::\d{2}){1,2})\s*<`)
)

// uuidLookBehind is how far before the anchor the card wrapper with the
// entity UUID may start.
const uuidLookBehind = 300

// AjaxSource paginates the program's ajax listing endpoint. Pagination
// stops on a short page, a missing next-page marker, or a 404.
type AjaxSource struct {
	fetcher Fetcher
}

// NewAjaxSource creates the ajax pagination source.
func NewAjaxSource(fetcher Fetcher) *AjaxSource {
	return &AjaxSource{fetcher: fetcher}
}

func (s *AjaxSource) Name() string {
	return SourceAjax
}

func (s *AjaxSource) Discover(ctx context.Context, target Target) ([]DiscoveredEpisode, error) {
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing program url: %w", err)
	}
	programBase := strings.TrimSuffix(target.URL, "/")

	var all []DiscoveredEpisode
	seen := make(map[string]bool)

	for page := 1; page <= ajaxMaxPages; page++ {
		pageURL := fmt.Sprintf("%s/ajax/ajax_list/show?page=%d&size=%d", programBase, page, ajaxPageSize)
		body, err := s.fetcher.FetchBody(ctx, pageURL)
		if err != nil {
			var statusErr *polite.StatusError
			if errors.As(err, &statusErr) && statusErr.IsNotFound() && page > 1 {
				break
			}
			if page == 1 {
				return nil, fmt.Errorf("ajax listing page %d: %w", page, err)
			}
			log.Printf("[WARN] ajax pagination of %s stopped at page %d: %v", programBase, page, err)
			break
		}

		snippet := string(body)
		entries := parseAjaxSnippet(snippet, base)
		added := 0
		for _, entry := range entries {
			if seen[entry.URL] {
				continue
			}
			seen[entry.URL] = true
			all = append(all, entry)
			added++
		}

		if len(entries) < ajaxShortPage || added == 0 {
			break
		}
		if !strings.Contains(snippet, "page="+strconv.Itoa(page+1)) {
			break
		}
	}
	return all, nil
}

// parseAjaxSnippet splits the snippet into per-anchor blocks and pulls
// uuid/title/duration out of each block with the small regexes above.
// The block runs from the anchor's href to the next anchor; the UUID is
// also searched in a short window before the anchor because it sits on
// the card wrapper.
func parseAjaxSnippet(snippet string, base *url.URL) []DiscoveredEpisode {
	matches := ajaxAnchorRe.FindAllStringSubmatchIndex(snippet, -1)
	episodes := make([]DiscoveredEpisode, 0, len(matches))
	seen := make(map[string]bool, len(matches))

	for i, match := range matches {
		href := snippet[match[2]:match[3]]
		blockEnd := len(snippet)
		if i+1 < len(matches) {
			blockEnd = matches[i+1][0]
		}
		block := snippet[match[0]:blockEnd]

		// The wrapper UUID belongs to this card only if it appears
		// after the previous anchor. Take the last one before ours.
		lookStart := match[0] - uuidLookBehind
		if i > 0 && lookStart < matches[i-1][1] {
			lookStart = matches[i-1][1]
		}
		if lookStart < 0 {
			lookStart = 0
		}
		before := snippet[lookStart:match[0]]

		resolved := base.ResolveReference(&url.URL{Path: href}).String()
		if seen[resolved] {
			continue
		}
		seen[resolved] = true

		episode := DiscoveredEpisode{
			URL:     resolved,
			Sources: []string{SourceAjax},
		}
		if ms := ajaxUUIDRe.FindAllStringSubmatch(before, -1); len(ms) > 0 {
			episode.ExtID = strings.ToLower(ms[len(ms)-1][1])
		} else if m := ajaxUUIDRe.FindStringSubmatch(block); m != nil {
			episode.ExtID = strings.ToLower(m[1])
		}
		if m := ajaxTitleRe.FindStringSubmatch(block); m != nil {
			episode.Title = html.UnescapeString(m[1])
		} else if m := ajaxAnchorTextRe.FindStringSubmatch(block); m != nil {
			episode.Title = html.UnescapeString(m[1])
		} else if m := ajaxTitleAttrRe.FindStringSubmatch(block); m != nil {
			episode.Title = html.UnescapeString(m[1])
		}
		if m := ajaxDurationRe.FindStringSubmatch(block); m != nil {
			episode.DurationS = parseClock(m[1])
		}
		episodes = append(episodes, episode)
	}
	return episodes
}

// parseClock converts "mm:ss" or "h:mm:ss" to seconds.
func parseClock(clock string) float64 {
	parts := strings.Split(clock, ":")
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return float64(total)
}
