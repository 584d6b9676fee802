package downloads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrGrabberDisabled is returned when a hand-off is attempted without a
// configured link-grabber host.
var ErrGrabberDisabled = errors.New("link-grabber is not configured")

// GrabberConfig configures the hand-off to a local JDownloader
// instance. An empty Host disables the backend entirely and broadcaster
// links fall through to the extractor.
type GrabberConfig struct {
	Host    string
	Port    int           // default 3128
	Timeout time.Duration // default 10s
}

// Grabber is a thin client for the link-grabber REST API. Field names
// on the wire are the grabber's own and pass through unchanged.
type Grabber struct {
	baseURL string
	client  *http.Client
}

// NewGrabber creates a client from config. With an empty host the
// returned client reports Enabled() == false and every call fails with
// ErrGrabberDisabled.
func NewGrabber(cfg GrabberConfig) *Grabber {
	if cfg.Host == "" {
		return &Grabber{}
	}
	if cfg.Port == 0 {
		cfg.Port = 3128
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Grabber{
		baseURL: fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a grabber host is configured.
func (g *Grabber) Enabled() bool {
	return g != nil && g.baseURL != ""
}

// GrabberPackage is one download package as the grabber reports it.
type GrabberPackage struct {
	UUID       int64  `json:"uuid"`
	Name       string `json:"name"`
	BytesTotal int64  `json:"bytesTotal"`
	Status     string `json:"status"`
	Enabled    bool   `json:"enabled"`
	Finished   bool   `json:"finished"`
}

// Version asks the instance for its build number. It doubles as the
// reachability check before a hand-off.
func (g *Grabber) Version(ctx context.Context) (string, error) {
	if !g.Enabled() {
		return "", ErrGrabberDisabled
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/jd/version", nil)
	if err != nil {
		return "", fmt.Errorf("creating version request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("querying grabber version: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("grabber version returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("reading grabber version: %w", err)
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

// AddLinks pushes URLs into the grabber queue as one named package with
// autostart on. The grabber takes the links as a single newline-joined
// string.
func (g *Grabber) AddLinks(ctx context.Context, packageName string, urls []string) error {
	if !g.Enabled() {
		return ErrGrabberDisabled
	}
	if len(urls) == 0 {
		return errors.New("no links to add")
	}
	payload := []map[string]interface{}{{
		"autostart":   true,
		"links":       strings.Join(urls, "\n"),
		"packageName": packageName,
	}}
	if err := g.post(ctx, "/linkgrabberv2/addLinks", payload, nil); err != nil {
		return fmt.Errorf("adding links: %w", err)
	}
	return nil
}

// QueryPackages lists the download packages the instance knows about.
func (g *Grabber) QueryPackages(ctx context.Context) ([]GrabberPackage, error) {
	if !g.Enabled() {
		return nil, ErrGrabberDisabled
	}
	query := []map[string]interface{}{{
		"bytesTotal": true,
		"status":     true,
		"enabled":    true,
		"finished":   true,
		"maxResults": -1,
		"startAt":    0,
	}}
	var out struct {
		Data []GrabberPackage `json:"data"`
	}
	if err := g.post(ctx, "/downloadsV2/queryPackages", query, &out); err != nil {
		return nil, fmt.Errorf("querying packages: %w", err)
	}
	return out.Data, nil
}

func (g *Grabber) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("grabber returned status %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
