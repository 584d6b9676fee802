package discovery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// aggregatorHost is where every broadcaster program page has its
// playable equivalent.
const aggregatorHost = "www.mujrozhlas.cz"

// reairSuffix matches the trailing numeric id rozhlas.cz appends when
// the same content is republished ("-9391766"). Seven digits keeps
// ordinary slugs like "part-3" untouched.
var reairSuffix = regexp.MustCompile(`-\d{7,}$`)

// NormalizeTarget parses a user-supplied program URL and rewrites
// broadcaster hosts (*.rozhlas.cz) to their aggregator equivalent,
// stripping the numeric slug suffix along the way. The original URL is
// preserved on the Target for the catalog-API source.
func NormalizeTarget(rawURL string) (Target, error) {
	raw := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parsing target url %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Target{}, fmt.Errorf("target url %q is not absolute", rawURL)
	}

	target := Target{URL: parsed.String(), Original: parsed.String()}
	if isBroadcasterHost(parsed.Host) {
		rewritten := *parsed
		rewritten.Host = aggregatorHost
		rewritten.Path = stripReairFromPath(parsed.Path)
		target.URL = rewritten.String()
	}
	return target, nil
}

// isBroadcasterHost reports whether the host belongs to the rozhlas.cz
// broadcaster family. The aggregator's own hosts end with the same
// suffix and must not be rewritten.
func isBroadcasterHost(host string) bool {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	if host == "mujrozhlas.cz" || strings.HasSuffix(host, ".mujrozhlas.cz") {
		return false
	}
	return host == "rozhlas.cz" || strings.HasSuffix(host, ".rozhlas.cz")
}

// HostKind classifies a URL's host for download backend selection.
type HostKind int

const (
	HostOther HostKind = iota
	HostAggregator
	HostBroadcaster
)

func (k HostKind) String() string {
	switch k {
	case HostAggregator:
		return "aggregator"
	case HostBroadcaster:
		return "broadcaster"
	default:
		return "other"
	}
}

// ClassifyHost reports which host family a URL belongs to: the playable
// aggregator, a broadcaster station site, or somewhere else.
func ClassifyHost(rawURL string) HostKind {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" {
		return HostOther
	}
	host := strings.ToLower(parsed.Host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	switch {
	case host == "mujrozhlas.cz" || strings.HasSuffix(host, ".mujrozhlas.cz"):
		return HostAggregator
	case isBroadcasterHost(host):
		return HostBroadcaster
	default:
		return HostOther
	}
}

// MergeURL is the normalized form two discovery records are matched
// on: lowercased host, no trailing slash, no fragment.
func MergeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.TrimSuffix(raw, "/")
	}
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.Fragment = ""
	return parsed.String()
}

// CanonicalKey is MergeURL with the re-air suffix removed from the
// path. Two URLs with equal canonical keys point at the same content.
func CanonicalKey(raw string) string {
	merged := MergeURL(raw)
	parsed, err := url.Parse(merged)
	if err != nil || parsed.Host == "" {
		return reairSuffix.ReplaceAllString(merged, "")
	}
	parsed.Path = stripReairFromPath(parsed.Path)
	return parsed.String()
}

func stripReairFromPath(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	return reairSuffix.ReplaceAllString(trimmed, "")
}
