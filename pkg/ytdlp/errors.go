package ytdlp

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrBinaryNotFound = errors.New("yt-dlp binary not found")
	ErrEmptyOutput    = errors.New("yt-dlp produced no output")
)

// ExtractorError represents a failed yt-dlp invocation with the stderr
// needed to classify the failure.
type ExtractorError struct {
	Operation string // "flat_playlist", "dump_info", "download"
	URL       string
	Err       error
	Stderr    string
}

func (e *ExtractorError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("yt-dlp %s failed for %s: %v (stderr: %s)", e.Operation, e.URL, e.Err, e.Stderr)
	}
	return fmt.Sprintf("yt-dlp %s failed for %s: %v", e.Operation, e.URL, e.Err)
}

func (e *ExtractorError) Unwrap() error {
	return e.Err
}

// NewExtractorError creates a new ExtractorError.
func NewExtractorError(operation, url string, err error, stderr string) *ExtractorError {
	return &ExtractorError{
		Operation: operation,
		URL:       url,
		Err:       err,
		Stderr:    stderr,
	}
}

// Gone reports whether stderr indicates the content was removed
// upstream (expired rights window) rather than a transient failure.
func (e *ExtractorError) Gone() bool {
	s := strings.ToLower(e.Stderr)
	for _, marker := range []string{
		"http error 404",
		"http error 410",
		"no longer available",
		"this content is not available",
		"episode is not available",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Unsupported reports whether yt-dlp has no extractor for the URL.
func (e *ExtractorError) Unsupported() bool {
	return strings.Contains(strings.ToLower(e.Stderr), "unsupported url")
}
