package git

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractArchive expands the zip at archivePath into dest and returns the
// effective source root. Snapshot archives commonly wrap the content in a
// single branch-named directory; when expansion yields exactly one top-level
// directory, that directory is the source root, otherwise dest itself is.
func extractArchive(archivePath, dest string) (string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o750); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}

	for _, f := range r.File {
		if err := extractEntry(f, dest); err != nil {
			return "", err
		}
	}

	return sourceRoot(dest)
}

// extractEntry writes a single archive entry under dest, rejecting paths that
// escape it.
func extractEntry(f *zip.File, dest string) error {
	target := filepath.Join(dest, filepath.Clean(f.Name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %s escapes extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o750)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}

// sourceRoot locates the effective content root after extraction.
func sourceRoot(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}
