package downloads

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scratch hands out per-episode working directories under one root.
// Everything the extractor writes for an episode lands in its own
// directory, so a finished download is released in one call and a
// failed one stays behind for inspection until the sweep reclaims it.
type Scratch struct {
	root string
}

// NewScratch creates a scratch manager rooted at the given directory.
// The root itself is created lazily on first use.
func NewScratch(root string) *Scratch {
	return &Scratch{root: root}
}

// Root returns the scratch root directory.
func (s *Scratch) Root() string {
	return s.root
}

// Dir returns the working directory for one episode, creating it on
// first use.
func (s *Scratch) Dir(episodeID uint) (string, error) {
	dir := s.episodeDir(episodeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return dir, nil
}

// Release removes the episode's working directory and everything in it.
// Missing directories are fine, releasing twice is a no-op.
func (s *Scratch) Release(episodeID uint) error {
	dir := s.episodeDir(episodeID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("releasing scratch dir: %w", err)
	}
	return nil
}

// Sweep removes episode directories that have not been touched for
// maxAge. Failed downloads keep their directory so the files can be
// looked at, which makes the sweep the thing that eventually reclaims
// the space. Returns how many directories were removed.
func (s *Scratch) Sweep(maxAge time.Duration) (int, error) {
	if s.root == "" {
		return 0, nil
	}
	dirs, err := filepath.Glob(filepath.Join(s.root, "episode_*"))
	if err != nil {
		return 0, fmt.Errorf("listing scratch dirs: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var removed int
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(dir); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Printf("[DEBUG] downloads: swept %d stale scratch dirs from %s", removed, s.root)
	}
	return removed, nil
}

func (s *Scratch) episodeDir(episodeID uint) string {
	return filepath.Join(s.root, fmt.Sprintf("episode_%d", episodeID))
}
