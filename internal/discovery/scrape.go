package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mujarchiv/rozhlasd/pkg/textnorm"
	"golang.org/x/net/html"
)

// ScrapeSource parses the program page itself. It yields the least
// metadata of the four sources but works when the ajax endpoint is
// missing and the extractor has no site support.
type ScrapeSource struct {
	fetcher Fetcher
}

// NewScrapeSource creates the HTML scraping source.
func NewScrapeSource(fetcher Fetcher) *ScrapeSource {
	return &ScrapeSource{fetcher: fetcher}
}

func (s *ScrapeSource) Name() string {
	return SourceScrape
}

func (s *ScrapeSource) Discover(ctx context.Context, target Target) ([]DiscoveredEpisode, error) {
	body, err := s.fetcher.FetchBody(ctx, target.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching program page: %w", err)
	}
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing program url: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing program html: %w", err)
	}

	programSlug := firstPathSegment(base.Path)
	if programSlug == "" {
		return nil, fmt.Errorf("program url %s has no slug to scope anchors to", target.URL)
	}

	var episodes []DiscoveredEpisode
	seen := make(map[string]bool)

	// Episode cards put the anchor inside a heading, so the heading
	// seen most recently in document order doubles as the title when
	// the anchor text itself is empty.
	lastHeading := ""
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				if text := nodeText(n); text != "" {
					lastHeading = text
				}
			case "a":
				href := attrValue(n, "href")
				resolved, ok := episodeHref(base, programSlug, href)
				if ok && !seen[resolved] {
					seen[resolved] = true
					title := nodeText(n)
					if title == "" {
						title = lastHeading
					}
					episodes = append(episodes, DiscoveredEpisode{
						URL:     resolved,
						Title:   title,
						Sources: []string{SourceScrape},
					})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return episodes, nil
}

// episodeHref resolves href against the program page and accepts it
// only when the path is exactly two segments deep under the program
// slug on the same host.
func episodeHref(base *url.URL, programSlug, href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if !strings.EqualFold(resolved.Host, base.Host) {
		return "", false
	}

	segments := pathSegments(resolved.Path)
	if len(segments) != 2 || segments[0] != programSlug {
		return "", false
	}
	resolved.Fragment = ""
	resolved.RawQuery = ""
	return resolved.String(), true
}

func firstPathSegment(path string) string {
	segments := pathSegments(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

func pathSegments(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(node *html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(textnorm.CollapseWhitespace(sb.String()))
}
