package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Tagger finalizes a downloaded audio file. Implementations may rewrite
// embedded tags and rename; the returned path is the file's final home
// and is what lands on the asset row.
type Tagger interface {
	Finalize(ctx context.Context, scratchPath string, target Paths) (string, error)
}

// Mover is the default Tagger: no tag rewriting, just the move into the
// library layout. The extension follows the scratch file.
type Mover struct{}

// Finalize moves the scratch file to target.Dir/target.Stem with the
// scratch file's extension, creating directories as needed.
func (Mover) Finalize(ctx context.Context, scratchPath string, target Paths) (string, error) {
	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating library directory: %w", err)
	}

	dest := target.File(strings.ToLower(filepath.Ext(scratchPath)))
	if err := moveFile(scratchPath, dest); err != nil {
		return "", fmt.Errorf("moving into library: %w", err)
	}
	return dest, nil
}

// moveFile renames src to dst, falling back to copy and remove when the
// scratch and library directories live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
