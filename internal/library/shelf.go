package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ShelfConfig holds the library-manager connection settings.
type ShelfConfig struct {
	URL       string        // base URL, empty disables notification
	APIKey    string        // bearer token, optional
	LibraryID string        // optional; the first library is used when empty
	Timeout   time.Duration // Default: 15s
}

// Shelf notifies an Audiobookshelf-compatible library manager that new
// files landed so its scanner picks them up.
type Shelf struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu        sync.Mutex
	libraryID string
}

// NewShelf creates a notifier, applying defaults for zero values.
func NewShelf(cfg ShelfConfig) *Shelf {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Shelf{
		baseURL:   strings.TrimSuffix(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		libraryID: cfg.LibraryID,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a manager URL is configured.
func (s *Shelf) Enabled() bool {
	return s != nil && s.baseURL != ""
}

// Scan asks the manager to rescan the library. Without a configured
// library id the first library the manager reports is used and cached.
func (s *Shelf) Scan(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	id, err := s.resolveLibraryID(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/libraries/%s/scan", s.baseURL, id), nil)
	if err != nil {
		return fmt.Errorf("creating scan request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting library scan: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("library scan returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Shelf) resolveLibraryID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.libraryID != "" {
		return s.libraryID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/libraries", nil)
	if err != nil {
		return "", fmt.Errorf("creating libraries request: %w", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("listing libraries: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("listing libraries returned status %d", resp.StatusCode)
	}

	var payload struct {
		Libraries []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"libraries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding libraries response: %w", err)
	}
	if len(payload.Libraries) == 0 {
		return "", fmt.Errorf("library manager reports no libraries")
	}

	s.libraryID = payload.Libraries[0].ID
	return s.libraryID, nil
}

func (s *Shelf) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
