package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathsAreKeyedByBuildID(t *testing.T) {
	w := New("/tmp/work", "/data/out", "abc123")

	assert.Equal(t, "abc123", w.BuildID())
	assert.Equal(t, filepath.Join("/tmp/work", "repo_abc123"), w.RepoDir())
	assert.Equal(t, filepath.Join("/tmp/work", "repo_abc123.zip"), w.ArchivePath())
	assert.Equal(t, filepath.Join("/data/out", "abc123"), w.OutputDir())
	assert.Equal(t, filepath.Join("/data/out", "abc123", "www"), w.WWWDir())
	assert.Equal(t, filepath.Join("/data/out", "abc123", "android"), w.AndroidDir())
}

func TestPrepareCreatesRootsAndClearsLeftovers(t *testing.T) {
	tempRoot := filepath.Join(t.TempDir(), "work")
	dataRoot := filepath.Join(t.TempDir(), "out")
	w := New(tempRoot, dataRoot, "b1")

	// Simulate leftovers from a crashed earlier run with the same id.
	require.NoError(t, os.MkdirAll(filepath.Join(w.RepoDir(), "stale"), 0o750))
	require.NoError(t, os.WriteFile(w.ArchivePath(), []byte("stale"), 0o644))

	require.NoError(t, w.Prepare())

	_, err := os.Stat(w.RepoDir())
	assert.True(t, os.IsNotExist(err), "previous repo dir must be cleared")
	_, err = os.Stat(w.ArchivePath())
	assert.True(t, os.IsNotExist(err), "previous archive must be cleared")
	_, err = os.Stat(tempRoot)
	assert.NoError(t, err, "workspace roots must exist after Prepare")
}

func TestCleanupEphemeralKeepsOutput(t *testing.T) {
	w := New(t.TempDir(), t.TempDir(), "b2")
	require.NoError(t, w.Prepare())

	require.NoError(t, os.MkdirAll(w.RepoDir(), 0o750))
	require.NoError(t, os.WriteFile(w.ArchivePath(), []byte("zip"), 0o644))
	require.NoError(t, os.MkdirAll(w.OutputDir(), 0o750))
	artifact := filepath.Join(w.OutputDir(), "Demo_v1.0.0.apk")
	require.NoError(t, os.WriteFile(artifact, []byte("apk"), 0o644))

	w.CleanupEphemeral()

	_, err := os.Stat(w.RepoDir())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(w.ArchivePath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(artifact)
	assert.NoError(t, err, "the artifact must remain downloadable")
}

func TestCleanupEphemeralIsIdempotent(t *testing.T) {
	w := New(t.TempDir(), t.TempDir(), "b3")
	require.NoError(t, w.Prepare())

	w.CleanupEphemeral()
	w.CleanupEphemeral()
}
