package builds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/apkbuilder/internal/capacitor"
	apkerrors "git.home.luguber.info/inful/apkbuilder/internal/errors"
	"git.home.luguber.info/inful/apkbuilder/internal/eventstore"
	"git.home.luguber.info/inful/apkbuilder/internal/git"
	"git.home.luguber.info/inful/apkbuilder/internal/ledger"
	"git.home.luguber.info/inful/apkbuilder/internal/workspace"
)

type stubAcquirer struct {
	err      error
	snapshot bool // fall back to the snapshot strategy before succeeding
}

func (a *stubAcquirer) Acquire(_ context.Context, _ string, ws *workspace.Workspace, notify func(git.Strategy)) (string, error) {
	if notify != nil {
		notify(git.StrategyClone)
		if a.snapshot {
			notify(git.StrategySnapshot)
		}
	}
	if a.err != nil {
		return "", a.err
	}
	if err := os.MkdirAll(ws.RepoDir(), 0o750); err != nil {
		return "", err
	}
	return ws.RepoDir(), nil
}

type stubPackager struct {
	err error
}

func (p *stubPackager) Build(_ context.Context, _, appName, appVersion string, ws *workspace.Workspace, baseURL string) (*capacitor.Artifact, error) {
	if p.err != nil {
		return nil, p.err
	}
	filename := capacitor.ArtifactFilename(appName, appVersion)
	return &capacitor.Artifact{
		Path:        filepath.Join(ws.OutputDir(), filename),
		Filename:    filename,
		Size:        2048,
		DownloadURL: fmt.Sprintf("%s/download/%s/%s", baseURL, ws.BuildID(), filename),
	}, nil
}

// memJournal records transitions in order; safe for concurrent appends.
type memJournal struct {
	mu       sync.Mutex
	statuses map[string][]string
}

func newMemJournal() *memJournal {
	return &memJournal{statuses: make(map[string][]string)}
}

func (j *memJournal) Append(_ context.Context, buildID, status, _ string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses[buildID] = append(j.statuses[buildID], status)
	return nil
}

func (j *memJournal) ByBuild(context.Context, string) ([]eventstore.Transition, error) {
	return nil, nil
}

func (j *memJournal) Close() error { return nil }

func (j *memJournal) forBuild(buildID string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.statuses[buildID]...)
}

func newTestService(t *testing.T, acquirer Acquirer, packager Packager, journal *memJournal) (*Service, *ledger.Ledger, string, string) {
	t.Helper()
	tempDir := t.TempDir()
	dataDir := t.TempDir()
	l := ledger.New(filepath.Join(t.TempDir(), "builds.json"), 100)
	opts := Options{
		AllowedHost: "github.com",
		TempDir:     tempDir,
		DataDir:     dataDir,
		Workers:     2,
	}
	if journal != nil {
		opts.Journal = journal
	}
	return NewService(l, acquirer, packager, opts), l, tempDir, dataDir
}

func waitTerminal(t *testing.T, l *ledger.Ledger, id string) ledger.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := l.Get(id); ok && rec.Status.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("build %s never reached a terminal state", id)
	return ledger.Record{}
}

func TestValidateSourceURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"empty", "", "url parameter is required"},
		{"wrong host", "https://gitlab.com/acme/site", "url must reference github.com"},
		{"allowed", "https://github.com/acme/site", ""},
		{"www prefix allowed", "https://www.github.com/acme/site", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSourceURL(tc.url, "github.com")
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apkerrors.CategoryValidation, apkerrors.CategoryOf(err))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSubmitRejectsInvalidURLWithoutLedgerEntry(t *testing.T) {
	svc, l, _, _ := newTestService(t, &stubAcquirer{}, &stubPackager{}, nil)

	_, err := svc.Submit(Request{URL: "https://example.com/acme/site"})
	require.Error(t, err)
	assert.Equal(t, apkerrors.CategoryValidation, apkerrors.CategoryOf(err))

	total, _ := l.List(0)
	assert.Zero(t, total, "rejected submissions must leave no ledger record")
}

func TestSubmitRecordsProcessingImmediately(t *testing.T) {
	svc, l, _, _ := newTestService(t, &stubAcquirer{}, &stubPackager{}, nil)

	rec, err := svc.Submit(Request{
		URL:      "https://github.com/acme/site",
		Name:     "Demo",
		Version:  "2.0.0",
		ClientIP: "10.0.0.1",
		BaseURL:  "http://host",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ledger.StatusProcessing, rec.Status)
	assert.Equal(t, "Starting build process", rec.Message)

	// The record is queryable the moment Submit returns.
	got, ok := l.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, "Demo", got.Name)
	assert.Equal(t, "10.0.0.1", got.IP)

	waitTerminal(t, l, rec.ID)
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestPipelineSuccess(t *testing.T) {
	journal := newMemJournal()
	svc, l, _, _ := newTestService(t, &stubAcquirer{}, &stubPackager{}, journal)

	rec, err := svc.Submit(Request{
		URL:     "https://github.com/acme/site",
		Name:    "Demo",
		Version: "2.0.0",
		BaseURL: "http://host",
	})
	require.NoError(t, err)

	final := waitTerminal(t, l, rec.ID)
	assert.Equal(t, ledger.StatusSucceeded, final.Status)
	assert.Equal(t, "Build succeeded", final.Message)
	assert.Equal(t, "Demo_v2.0.0.apk", final.Filename)
	assert.Equal(t, int64(2048), final.APKSize)
	assert.Equal(t, fmt.Sprintf("http://host/download/%s/Demo_v2.0.0.apk", rec.ID), final.DownloadURL)

	require.NoError(t, svc.Shutdown(context.Background()))
	assert.Equal(t,
		[]string{"processing", "cloning", "building", "succeeded"},
		journal.forBuild(rec.ID))
}

func TestPipelineSnapshotFallbackTransitions(t *testing.T) {
	journal := newMemJournal()
	svc, l, _, _ := newTestService(t, &stubAcquirer{snapshot: true}, &stubPackager{}, journal)

	rec, err := svc.Submit(Request{URL: "https://github.com/acme/site", Name: "Demo", Version: "1.0.0"})
	require.NoError(t, err)
	waitTerminal(t, l, rec.ID)
	require.NoError(t, svc.Shutdown(context.Background()))

	assert.Equal(t,
		[]string{"processing", "cloning", "downloading", "building", "succeeded"},
		journal.forBuild(rec.ID))
}

func TestPipelineAcquisitionFailure(t *testing.T) {
	svc, l, tempDir, _ := newTestService(t,
		&stubAcquirer{err: errors.New("repository not found")}, &stubPackager{}, nil)

	rec, err := svc.Submit(Request{URL: "https://github.com/acme/missing", Name: "Demo", Version: "1.0.0"})
	require.NoError(t, err, "acquisition failures must not fail submission")

	final := waitTerminal(t, l, rec.ID)
	assert.Equal(t, ledger.StatusFailed, final.Status)
	assert.Contains(t, final.Message, "failed to acquire repository")
	assert.Contains(t, final.Message, "repository not found")

	require.NoError(t, svc.Shutdown(context.Background()))

	// The clone directory must not be left behind.
	_, statErr := os.Stat(filepath.Join(tempDir, "repo_"+rec.ID))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipelinePackagingFailure(t *testing.T) {
	svc, l, _, _ := newTestService(t, &stubAcquirer{},
		&stubPackager{err: apkerrors.New(apkerrors.CategoryTool, "stage npm_install failed: exit status 1")}, nil)

	rec, err := svc.Submit(Request{URL: "https://github.com/acme/site", Name: "Demo", Version: "1.0.0"})
	require.NoError(t, err)

	final := waitTerminal(t, l, rec.ID)
	assert.Equal(t, ledger.StatusFailed, final.Status)
	assert.Contains(t, final.Message, "npm_install")
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestConcurrentSubmissionsAllTerminate(t *testing.T) {
	svc, l, _, _ := newTestService(t, &stubAcquirer{}, &stubPackager{}, nil)

	const n = 8
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rec, err := svc.Submit(Request{
			URL:     "https://github.com/acme/site",
			Name:    fmt.Sprintf("App%d", i),
			Version: "1.0.0",
			BaseURL: "http://host",
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	for _, id := range ids {
		final := waitTerminal(t, l, id)
		assert.Equal(t, ledger.StatusSucceeded, final.Status)
	}
	require.NoError(t, svc.Shutdown(context.Background()))
}

func TestSubmitAfterShutdownFailsBuild(t *testing.T) {
	svc, l, _, _ := newTestService(t, &stubAcquirer{}, &stubPackager{}, nil)
	require.NoError(t, svc.Shutdown(context.Background()))

	rec, err := svc.Submit(Request{URL: "https://github.com/acme/site", Name: "Demo", Version: "1.0.0"})
	require.NoError(t, err, "submission still records the build")

	final, ok := l.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusFailed, final.Status)
	assert.Contains(t, final.Message, "shutting down")
}
