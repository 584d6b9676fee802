// Package ytdlp wraps the yt-dlp binary. The daemon treats it as an
// opaque extractor: playlist inspection and metadata dumps feed
// discovery, the download mode fetches audio into a scratch directory.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// YtDlp wraps yt-dlp invocations with per-operation timeouts.
type YtDlp struct {
	path            string
	extractTimeout  time.Duration
	downloadTimeout time.Duration
}

// New creates a new YtDlp instance.
func New(path string, extractTimeout, downloadTimeout time.Duration) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	if extractTimeout == 0 {
		extractTimeout = 90 * time.Second
	}
	if downloadTimeout == 0 {
		downloadTimeout = 30 * time.Minute
	}
	return &YtDlp{
		path:            path,
		extractTimeout:  extractTimeout,
		downloadTimeout: downloadTimeout,
	}
}

// ValidateBinary checks that yt-dlp is available.
func (y *YtDlp) ValidateBinary() error {
	if _, err := exec.LookPath(y.path); err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, y.path)
	}
	return nil
}

// Version returns the yt-dlp version string.
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, y.path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// FlatPlaylist inspects a URL without downloading. A single-episode URL
// comes back as a one-entry playlist.
func (y *YtDlp) FlatPlaylist(ctx context.Context, url string) (*Playlist, error) {
	ctx, cancel := context.WithTimeout(ctx, y.extractTimeout)
	defer cancel()

	args := []string{"--flat-playlist", "-J", "--no-warnings", url}
	cmd := exec.CommandContext(ctx, y.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, NewExtractorError("flat_playlist", url, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, NewExtractorError("flat_playlist", url, ErrEmptyOutput, stderr.String())
	}

	var playlist Playlist
	if err := json.Unmarshal(stdout.Bytes(), &playlist); err != nil {
		return nil, NewExtractorError("flat_playlist", url, fmt.Errorf("parse output: %w", err), "")
	}

	if playlist.Type != "playlist" {
		// Single episode: re-read the document as one entry.
		var entry Entry
		if err := json.Unmarshal(stdout.Bytes(), &entry); err != nil {
			return nil, NewExtractorError("flat_playlist", url, fmt.Errorf("parse single entry: %w", err), "")
		}
		if entry.WebpageURL == "" {
			entry.WebpageURL = url
		}
		playlist.Entries = []Entry{entry}
	}

	return &playlist, nil
}

// DumpInfo runs a full metadata extraction without downloading. The raw
// JSON document is returned alongside the parsed subset so callers can
// persist it verbatim.
func (y *YtDlp) DumpInfo(ctx context.Context, url string) ([]byte, *Info, error) {
	ctx, cancel := context.WithTimeout(ctx, y.extractTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, y.path, "-J", "--no-warnings", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, nil, NewExtractorError("dump_info", url, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, nil, NewExtractorError("dump_info", url, ErrEmptyOutput, stderr.String())
	}

	var info Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, nil, NewExtractorError("dump_info", url, fmt.Errorf("parse output: %w", err), "")
	}

	return stdout.Bytes(), &info, nil
}

// DownloadAudio fetches the audio of one episode into destDir and
// writes the metadata sidecar next to it. Files are named by upstream
// id; the library pather renames on the final move.
func (y *YtDlp) DownloadAudio(ctx context.Context, url, destDir string) (*DownloadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, y.downloadTimeout)
	defer cancel()

	args := []string{
		"-P", destDir,
		"-o", "%(id)s.%(ext)s",
		"--write-info-json",
		"--no-progress",
		"--newline",
		"--no-simulate",
		"--print", "after_move:filepath",
		"--no-warnings",
		url,
	}
	cmd := exec.CommandContext(ctx, y.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, NewExtractorError("download", url, err, stderr.String())
	}

	filePath := lastLine(stdout.String())
	if filePath == "" {
		return nil, NewExtractorError("download", url, ErrEmptyOutput, stderr.String())
	}

	result := &DownloadResult{FilePath: filePath}

	// yt-dlp writes the sidecar as <stem>.info.json in the same directory.
	stem := strings.TrimSuffix(filePath, filepath.Ext(filePath))
	infoPath := stem + ".info.json"
	if _, err := os.Stat(infoPath); err == nil {
		result.InfoJSONPath = infoPath
	}

	return result, nil
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
