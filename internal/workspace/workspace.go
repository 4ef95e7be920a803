// Package workspace manages the per-build filesystem layout: an ephemeral
// area holding the acquired source, and an output area holding the generated
// project and the final artifact.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/apkbuilder/internal/logfields"
)

// Workspace holds the paths owned by a single build. Paths are keyed by the
// build id so no two builds ever share a directory.
type Workspace struct {
	buildID   string
	repoDir   string
	archive   string
	outputDir string
}

// New creates a workspace rooted at tempRoot (ephemeral) and dataRoot
// (output, kept for downloads until swept).
func New(tempRoot, dataRoot, buildID string) *Workspace {
	return &Workspace{
		buildID:   buildID,
		repoDir:   filepath.Join(tempRoot, "repo_"+buildID),
		archive:   filepath.Join(tempRoot, "repo_"+buildID+".zip"),
		outputDir: filepath.Join(dataRoot, buildID),
	}
}

// Prepare ensures the parent directories exist and removes any leftovers from
// a previous run with the same id.
func (w *Workspace) Prepare() error {
	for _, dir := range []string{filepath.Dir(w.repoDir), filepath.Dir(w.outputDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create workspace root: %w", err)
		}
	}
	if err := os.RemoveAll(w.repoDir); err != nil {
		return fmt.Errorf("failed to clear repo directory: %w", err)
	}
	if err := os.RemoveAll(w.archive); err != nil {
		return fmt.Errorf("failed to clear archive file: %w", err)
	}
	return nil
}

// BuildID returns the owning build id.
func (w *Workspace) BuildID() string { return w.buildID }

// RepoDir is where the acquired source tree is materialized.
func (w *Workspace) RepoDir() string { return w.repoDir }

// ArchivePath is where a snapshot archive is downloaded before expansion.
func (w *Workspace) ArchivePath() string { return w.archive }

// OutputDir is the packaging project root; the final artifact lands here.
func (w *Workspace) OutputDir() string { return w.outputDir }

// WWWDir is the web content root inside the packaging project.
func (w *Workspace) WWWDir() string { return filepath.Join(w.outputDir, "www") }

// AndroidDir is the native platform scaffold inside the packaging project.
func (w *Workspace) AndroidDir() string { return filepath.Join(w.outputDir, "android") }

// CleanupEphemeral removes the acquired source and any downloaded archive.
// It runs on both success and failure paths and logs rather than fails;
// leftovers are caught by the janitor sweep.
func (w *Workspace) CleanupEphemeral() {
	if err := os.RemoveAll(w.repoDir); err != nil {
		slog.Warn("Failed to remove repo directory", logfields.BuildID(w.buildID), logfields.Path(w.repoDir), logfields.Error(err))
	}
	if err := os.RemoveAll(w.archive); err != nil {
		slog.Warn("Failed to remove archive file", logfields.BuildID(w.buildID), logfields.Path(w.archive), logfields.Error(err))
	}
}
